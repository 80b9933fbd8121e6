package realtime

import "sync"

// ViewerTracker records which users are actively viewing which conversation.
// A user looking at a conversation should not receive a redundant push for a
// message they can already see rendered live.
type ViewerTracker struct {
	mu     sync.RWMutex
	byConv map[string]map[string]struct{}
	byUser map[string]map[string]struct{}
}

// NewViewerTracker creates an empty tracker.
func NewViewerTracker() *ViewerTracker {
	return &ViewerTracker{
		byConv: make(map[string]map[string]struct{}),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Enter marks userID as viewing conversationID. Idempotent.
func (t *ViewerTracker) Enter(conversationID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addMember(t.byConv, conversationID, userID)
	addMember(t.byUser, userID, conversationID)
}

// Leave removes userID from conversationID. Idempotent. Empty conversation
// entries are deleted immediately to bound memory.
func (t *ViewerTracker) Leave(conversationID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	removeMember(t.byConv, conversationID, userID)
	removeMember(t.byUser, userID, conversationID)
}

// LeaveAll removes userID from every conversation it was viewing. Called on
// full disconnect, since a dropped connection cannot signal which
// conversations it was viewing.
func (t *ViewerTracker) LeaveAll(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for conversationID := range t.byUser[userID] {
		removeMember(t.byConv, conversationID, userID)
	}
	delete(t.byUser, userID)
}

// IsViewing reports whether userID is currently viewing conversationID.
func (t *ViewerTracker) IsViewing(conversationID, userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.byConv[conversationID][userID]
	return ok
}

func addMember(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[member] = struct{}{}
}

func removeMember(m map[string]map[string]struct{}, key, member string) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, member)
	if len(set) == 0 {
		delete(m, key)
	}
}
