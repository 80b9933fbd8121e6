package realtime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Spotibuds/User/internal/models"
	"github.com/sirupsen/logrus"
)

// NotificationStore is the durable side of the fan-out. Its failures are
// non-fatal: the live push proceeds with the data already in hand.
type NotificationStore interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
}

// UserSource supplies display data for payload enrichment.
type UserSource interface {
	GetUserByID(id uint) (*models.User, error)
}

// FriendLister supplies the friend-id list for presence-changed fan-out. The
// registry itself holds no friend-graph knowledge.
type FriendLister interface {
	GetFriendIDs(userID uint) ([]uint, error)
}

// Publisher is the optional outbound cross-service channel. Implementations
// log and drop on transport unavailability and never block the caller.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, eventType string, targetUserID, sourceUserID string)
}

// Coordinator turns a domain event into a durable notification record, an
// unread-count update, and a real-time push to every live session of the
// target user.
type Coordinator struct {
	store        NotificationStore
	registry     *Registry
	viewers      *ViewerTracker
	users        UserSource
	friends      FriendLister
	publisher    Publisher
	ttl          time.Duration
	storeTimeout time.Duration
}

// NewCoordinator wires the fan-out pipeline and installs the presence hook on
// the registry. publisher may be nil when no bus is configured.
func NewCoordinator(store NotificationStore, registry *Registry, viewers *ViewerTracker, users UserSource, friends FriendLister, publisher Publisher, friendRequestTTL, storeTimeout time.Duration) *Coordinator {
	c := &Coordinator{
		store:        store,
		registry:     registry,
		viewers:      viewers,
		users:        users,
		friends:      friends,
		publisher:    publisher,
		ttl:          friendRequestTTL,
		storeTimeout: storeTimeout,
	}
	registry.SetPresenceHook(c.presenceChanged)
	return c
}

// Notify runs the fan-out pipeline for one domain event. Only caller input
// errors are returned; every downstream collaborator failure is absorbed and
// logged, so from the caller's point of view the call succeeds once the event
// is handed off.
func (c *Coordinator) Notify(ctx context.Context, event Event) error {
	if event.TargetUserID == "" {
		return fmt.Errorf("notify: target user id is required")
	}
	if event.Type == "" {
		return fmt.Errorf("notify: event type is required")
	}

	// A user actively looking at the conversation already sees the message
	// rendered live: no record, no push. Applies to message events only.
	if event.Type == models.NotificationMessage && event.ConversationID != "" &&
		c.viewers.IsViewing(event.ConversationID, event.TargetUserID) {
		return nil
	}

	now := time.Now()
	notification := &models.Notification{
		TargetUserID: event.TargetUserID,
		SourceUserID: event.SourceUserID,
		Type:         event.Type,
		Status:       models.StatusUnread,
		Title:        event.Title,
		Message:      event.Message,
		ActionURL:    event.ActionURL,
		CreatedAt:    now,
		ExpiresAt:    models.ExpiryFor(event.Type, now, c.ttl),
	}
	if event.Data != nil {
		notification.Data = event.Data.ToMap()
	}

	// Each store call gets its own timeout so a create that burns the whole
	// budget cannot starve the count recompute.
	createCtx, cancelCreate := context.WithTimeout(ctx, c.storeTimeout)
	err := c.store.CreateNotification(createCtx, notification)
	cancelCreate()
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"target_user_id": event.TargetUserID,
			"type":           event.Type,
		}).Errorf("persisting notification failed, continuing with live push: %v", err)
	}

	payload := c.buildPayload(notification)
	group := UserGroup(event.TargetUserID)
	c.registry.Push(group, EventNewNotification, payload)

	countCtx, cancelCount := context.WithTimeout(ctx, c.storeTimeout)
	defer cancelCount()
	if count, err := c.store.GetUnreadCount(countCtx, event.TargetUserID); err != nil {
		logrus.Warnf("unread count recompute failed for user %s: %v", event.TargetUserID, err)
	} else {
		c.registry.Push(group, EventUnreadCountUpdate, UnreadCountPayload{Count: count})
	}

	if c.publisher != nil && isFriendGraphEvent(event.Type) {
		c.publisher.Publish(ctx, "user.friend", string(event.Type), event.TargetUserID, event.SourceUserID)
	}

	return nil
}

// BroadcastUnreadCount pushes the current absolute unread count to every live
// connection of the user. Called after read/handled mutations so live clients
// converge without polling.
func (c *Coordinator) BroadcastUnreadCount(ctx context.Context, userID string) {
	storeCtx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	count, err := c.store.GetUnreadCount(storeCtx, userID)
	if err != nil {
		logrus.Warnf("unread count recompute failed for user %s: %v", userID, err)
		return
	}
	c.registry.Push(UserGroup(userID), EventUnreadCountUpdate, UnreadCountPayload{Count: count})
}

// presenceChanged fans an online/offline transition out to the user's friends.
// Installed as the registry presence hook; runs outside the registry lock.
func (c *Coordinator) presenceChanged(userID string, online bool) {
	id, err := strconv.ParseUint(userID, 10, 64)
	if err != nil {
		return
	}
	if !online {
		c.viewers.LeaveAll(userID)
	}
	friendIDs, err := c.friends.GetFriendIDs(uint(id))
	if err != nil {
		logrus.Warnf("friend list lookup failed for user %s: %v", userID, err)
		return
	}
	payload := PresencePayload{UserID: userID, Online: online}
	for _, friendID := range friendIDs {
		c.registry.Push(UserGroup(strconv.FormatUint(uint64(friendID), 10)), EventPresenceChanged, payload)
	}
}

func (c *Coordinator) buildPayload(n *models.Notification) NotificationPayload {
	payload := NotificationPayload{
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		ActionURL: n.ActionURL,
		CreatedAt: n.CreatedAt,
	}
	if !n.ID.IsZero() {
		payload.ID = n.ID.Hex()
	}
	if n.SourceUserID != "" {
		if id, err := strconv.ParseUint(n.SourceUserID, 10, 64); err == nil {
			if user, err := c.users.GetUserByID(uint(id)); err == nil {
				compact := user.ToCompact()
				payload.Source = &compact
			}
		}
	}
	return payload
}

func isFriendGraphEvent(t models.NotificationType) bool {
	switch t {
	case models.NotificationFriendRequest,
		models.NotificationFriendRequestAccepted,
		models.NotificationFriendRequestDeclined,
		models.NotificationFriendRemoved:
		return true
	}
	return false
}
