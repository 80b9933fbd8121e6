package realtime

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Event   string
	Payload any
}

// recordingSender captures every delivered event; safe for concurrent use.
type recordingSender struct {
	mu     sync.Mutex
	events []recordedEvent
	fail   bool
}

func (s *recordingSender) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("connection gone")
	}
	s.events = append(s.events, recordedEvent{Event: event, Payload: payload})
	return nil
}

func (s *recordingSender) Events() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]recordedEvent, len(s.events))
	copy(out, s.events)
	return out
}

func TestRegistryOnlineLifecycle(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.IsOnline("1"))

	r.Connect("1", "c1", &recordingSender{})
	r.Connect("1", "c2", &recordingSender{})
	assert.True(t, r.IsOnline("1"))
	assert.Equal(t, 2, r.ConnectionCount("1"))

	r.Disconnect("c1")
	assert.True(t, r.IsOnline("1"))

	r.Disconnect("c2")
	assert.False(t, r.IsOnline("1"))
	assert.Equal(t, 0, r.ConnectionCount("1"))
}

func TestRegistryDisconnectTwiceIsNoOp(t *testing.T) {
	r := NewRegistry()
	r.Connect("1", "c1", &recordingSender{})

	r.Disconnect("c1")
	assert.NotPanics(t, func() { r.Disconnect("c1") })
	assert.False(t, r.IsOnline("1"))
}

func TestRegistryDisconnectUnknownConnection(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Disconnect("never-registered") })
}

func TestRegistryPushReachesAllUserConnections(t *testing.T) {
	r := NewRegistry()
	s1 := &recordingSender{}
	s2 := &recordingSender{}
	other := &recordingSender{}
	r.Connect("1", "c1", s1)
	r.Connect("1", "c2", s2)
	r.Connect("2", "c3", other)

	r.Push(UserGroup("1"), "NewNotification", "hello")

	require.Len(t, s1.Events(), 1)
	require.Len(t, s2.Events(), 1)
	assert.Empty(t, other.Events())
	assert.Equal(t, "NewNotification", s1.Events()[0].Event)
}

func TestRegistryPushToEmptyGroup(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Push(UserGroup("404"), "NewNotification", "hello") })
}

func TestRegistryFailedSendDoesNotAffectOthers(t *testing.T) {
	r := NewRegistry()
	dead := &recordingSender{fail: true}
	live := &recordingSender{}
	r.Connect("1", "c1", dead)
	r.Connect("1", "c2", live)

	r.Push(UserGroup("1"), "NewNotification", "hello")

	require.Len(t, live.Events(), 1)
}

func TestRegistryPresenceHookFiresOnTransitionsOnly(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	var transitions []string
	r.SetPresenceHook(func(userID string, online bool) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, fmt.Sprintf("%s:%v", userID, online))
	})

	r.Connect("1", "c1", &recordingSender{})
	r.Connect("1", "c2", &recordingSender{}) // second connection, no transition
	r.Disconnect("c1")                       // still online, no transition
	r.Disconnect("c2")                       // last connection, offline

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1:true", "1:false"}, transitions)
}

func TestRegistryConnectionIDReuseEvictsOldUser(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	var transitions []string
	r.SetPresenceHook(func(userID string, online bool) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, fmt.Sprintf("%s:%v", userID, online))
	})

	old := &recordingSender{}
	replacement := &recordingSender{}
	r.Connect("1", "c1", old)
	r.Connect("2", "c1", replacement)

	assert.False(t, r.IsOnline("1"))
	assert.True(t, r.IsOnline("2"))

	r.Push(UserGroup("1"), "NewNotification", "hello")
	r.Push(UserGroup("2"), "NewNotification", "hello")
	assert.Empty(t, old.Events())
	require.Len(t, replacement.Events(), 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1:true", "1:false", "2:true"}, transitions)
}

func TestRegistryConnectionIDReuseSameUserSwapsSender(t *testing.T) {
	r := NewRegistry()
	var mu sync.Mutex
	var transitions []string
	r.SetPresenceHook(func(userID string, online bool) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, fmt.Sprintf("%s:%v", userID, online))
	})

	old := &recordingSender{}
	replacement := &recordingSender{}
	r.Connect("1", "c1", old)
	r.Connect("1", "c1", replacement)

	assert.True(t, r.IsOnline("1"))
	assert.Equal(t, 1, r.ConnectionCount("1"))

	r.Push(UserGroup("1"), "NewNotification", "hello")
	assert.Empty(t, old.Events())
	require.Len(t, replacement.Events(), 1)

	// The user never left; only the first connect is a transition.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1:true"}, transitions)
}

func TestRegistryOnlineUsers(t *testing.T) {
	r := NewRegistry()
	r.Connect("1", "c1", &recordingSender{})
	r.Connect("1", "c2", &recordingSender{})
	r.Connect("2", "c3", &recordingSender{})

	users := r.OnlineUsers()
	assert.ElementsMatch(t, []string{"1", "2"}, users)
}

func TestRegistryConcurrentConnectDisconnectPush(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("%d", i%5)
			connID := fmt.Sprintf("conn-%d", i)
			r.Connect(userID, connID, &recordingSender{})
			r.Push(UserGroup(userID), "UnreadCountUpdate", i)
			r.Disconnect(connID)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.False(t, r.IsOnline(fmt.Sprintf("%d", i)))
	}
}
