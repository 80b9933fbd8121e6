package realtime

import (
	"time"

	"github.com/Spotibuds/User/internal/models"
)

// Client-facing event names pushed through the registry.
const (
	EventNewNotification   = "NewNotification"
	EventUnreadCountUpdate = "UnreadCountUpdate"
	EventPresenceChanged   = "PresenceChanged"
)

// Event is a domain event handed to the coordinator. Callers invoke Notify
// exactly once per domain action; the coordinator performs no deduplication.
type Event struct {
	TargetUserID   string
	SourceUserID   string
	Type           models.NotificationType
	Title          string
	Message        string
	Data           models.NotificationData
	ConversationID string
	ActionURL      string
}

// NotificationPayload is the wire form pushed to live connections.
type NotificationPayload struct {
	ID        string                  `json:"id,omitempty"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	Source    *models.UserCompact     `json:"source,omitempty"`
	Data      map[string]any          `json:"data,omitempty"`
	ActionURL string                  `json:"action_url,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// UnreadCountPayload carries an absolute count, never a delta, so clients
// converge on the next update even when pushes arrive out of order.
type UnreadCountPayload struct {
	Count int64 `json:"count"`
}

// PresencePayload announces an online/offline transition of a friend.
type PresencePayload struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}
