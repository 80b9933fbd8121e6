package realtime

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// GroupOnline is the group every live connection joins.
const GroupOnline = "online"

// UserGroup returns the group key addressing all live connections of a user.
func UserGroup(userID string) string {
	return "user:" + userID
}

// Sender delivers a named event with a JSON-serializable payload to a single
// live connection. Implementations must be safe for concurrent use; a send
// error means the connection is unreachable, never that delivery to other
// connections should stop.
type Sender interface {
	Send(event string, payload any) error
}

// PresenceHook is invoked after a user transitions online or offline. It is
// called outside the registry lock.
type PresenceHook func(userID string, online bool)

type connection struct {
	id     string
	userID string
	sender Sender
	groups map[string]struct{}
}

// Registry tracks live connections and their group memberships. A user may
// hold multiple simultaneous connections; each is independently reachable and
// independently removable.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*connection
	groups   map[string]map[string]*connection
	presence PresenceHook
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]*connection),
		groups: make(map[string]map[string]*connection),
	}
}

// SetPresenceHook installs the callback fired on online/offline transitions.
// Must be called before the first Connect.
func (r *Registry) SetPresenceHook(hook PresenceHook) {
	r.presence = hook
}

// Connect registers a live connection for userID and adds it to the user
// group and the online set. Registering the same connection id twice evicts
// the previous entry from every group it belonged to before installing the
// new one.
func (r *Registry) Connect(userID, connectionID string, sender Sender) {
	r.mu.Lock()
	wasOnline := len(r.groups[UserGroup(userID)]) > 0
	var offlineUser string
	if old, ok := r.conns[connectionID]; ok {
		for group := range old.groups {
			r.leave(old, group)
		}
		delete(r.conns, connectionID)
		if old.userID != userID && len(r.groups[UserGroup(old.userID)]) == 0 {
			offlineUser = old.userID
		}
	}
	conn := &connection{
		id:     connectionID,
		userID: userID,
		sender: sender,
		groups: make(map[string]struct{}),
	}
	r.conns[connectionID] = conn
	r.join(conn, UserGroup(userID))
	r.join(conn, GroupOnline)
	hook := r.presence
	r.mu.Unlock()

	if hook != nil {
		if offlineUser != "" {
			hook(offlineUser, false)
		}
		if !wasOnline {
			hook(userID, true)
		}
	}
}

// Disconnect removes a connection from every group it belonged to. Unknown
// connection ids are a safe no-op, so an abnormal close that races a failed
// handshake still cleans up unconditionally.
func (r *Registry) Disconnect(connectionID string) {
	r.mu.Lock()
	conn, ok := r.conns[connectionID]
	if !ok {
		r.mu.Unlock()
		return
	}
	for group := range conn.groups {
		r.leave(conn, group)
	}
	delete(r.conns, connectionID)
	stillOnline := len(r.groups[UserGroup(conn.userID)]) > 0
	hook := r.presence
	userID := conn.userID
	r.mu.Unlock()

	if !stillOnline && hook != nil {
		hook(userID, false)
	}
}

// Push delivers payload to every connection currently in the group. Stale or
// unreachable connections are skipped; their failures never affect other
// recipients. Connections that are not live simply do not receive the event.
func (r *Registry) Push(group, event string, payload any) {
	r.mu.RLock()
	members := r.groups[group]
	senders := make([]Sender, 0, len(members))
	ids := make([]string, 0, len(members))
	for _, conn := range members {
		senders = append(senders, conn.sender)
		ids = append(ids, conn.id)
	}
	r.mu.RUnlock()

	for i, s := range senders {
		if err := s.Send(event, payload); err != nil {
			logrus.WithFields(logrus.Fields{
				"connection_id": ids[i],
				"event":         event,
			}).Warnf("push failed: %v", err)
		}
	}
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[UserGroup(userID)]) > 0
}

// ConnectionCount returns the number of live connections for a user.
func (r *Registry) ConnectionCount(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups[UserGroup(userID)])
}

// OnlineUsers returns the distinct user ids with at least one live connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	users := make([]string, 0)
	for _, conn := range r.groups[GroupOnline] {
		if _, ok := seen[conn.userID]; ok {
			continue
		}
		seen[conn.userID] = struct{}{}
		users = append(users, conn.userID)
	}
	return users
}

// join and leave require r.mu held for writing.
func (r *Registry) join(conn *connection, group string) {
	members, ok := r.groups[group]
	if !ok {
		members = make(map[string]*connection)
		r.groups[group] = members
	}
	members[conn.id] = conn
	conn.groups[group] = struct{}{}
}

func (r *Registry) leave(conn *connection, group string) {
	members, ok := r.groups[group]
	if !ok {
		return
	}
	delete(members, conn.id)
	if len(members) == 0 {
		delete(r.groups, group)
	}
	delete(conn.groups, group)
}
