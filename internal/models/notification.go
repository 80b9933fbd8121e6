package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType classifies a notification record.
type NotificationType string

const (
	NotificationFriendRequest         NotificationType = "friend_request"
	NotificationFriendRequestAccepted NotificationType = "friend_request_accepted"
	NotificationFriendRequestDeclined NotificationType = "friend_request_declined"
	NotificationFriendRemoved         NotificationType = "friend_removed"
	NotificationMessage               NotificationType = "message"
	NotificationOther                 NotificationType = "other"
)

// NotificationStatus tracks the read/handled lifecycle. Status only moves
// forward: unread -> read -> handled; handled is terminal.
type NotificationStatus string

const (
	StatusUnread  NotificationStatus = "unread"
	StatusRead    NotificationStatus = "read"
	StatusHandled NotificationStatus = "handled"
)

// Notification represents a user notification (MongoDB)
type Notification struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	TargetUserID string             `json:"target_user_id" bson:"target_user_id"`
	SourceUserID string             `json:"source_user_id,omitempty" bson:"source_user_id,omitempty"`
	Type         NotificationType   `json:"type" bson:"type"`
	Status       NotificationStatus `json:"status" bson:"status"`
	Title        string             `json:"title" bson:"title"`
	Message      string             `json:"message" bson:"message"`
	Data         map[string]any     `json:"data,omitempty" bson:"data,omitempty"`
	ActionURL    string             `json:"action_url,omitempty" bson:"action_url,omitempty"`
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	ReadAt       *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
	HandledAt    *time.Time         `json:"handled_at,omitempty" bson:"handled_at,omitempty"`
	ExpiresAt    *time.Time         `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
}

// NotificationData is the typed in-memory form of the free-form Data map.
// The map form exists only at the storage/wire boundary.
type NotificationData interface {
	ToMap() map[string]any
}

// FriendRequestData correlates a friend-request notification with the request row.
type FriendRequestData struct {
	RequestID uint
}

func (d FriendRequestData) ToMap() map[string]any {
	return map[string]any{"request_id": d.RequestID}
}

// MessageData correlates a message notification with its conversation.
type MessageData struct {
	ConversationID string
	MessageID      string
}

func (d MessageData) ToMap() map[string]any {
	m := map[string]any{"conversation_id": d.ConversationID}
	if d.MessageID != "" {
		m["message_id"] = d.MessageID
	}
	return m
}

// ExpiryFor returns the expiry timestamp for a notification type, or nil for
// types that never expire. Friend requests are ephemeral.
func ExpiryFor(t NotificationType, createdAt time.Time, ttl time.Duration) *time.Time {
	if t != NotificationFriendRequest {
		return nil
	}
	exp := createdAt.Add(ttl)
	return &exp
}
