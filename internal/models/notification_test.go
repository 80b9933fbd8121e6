package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiryForFriendRequest(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := 30 * 24 * time.Hour

	exp := ExpiryFor(NotificationFriendRequest, createdAt, ttl)
	require.NotNil(t, exp)
	assert.Equal(t, createdAt.Add(ttl), *exp)
}

func TestExpiryForOtherTypesIsNil(t *testing.T) {
	createdAt := time.Now()
	ttl := 30 * 24 * time.Hour

	for _, notificationType := range []NotificationType{
		NotificationFriendRequestAccepted,
		NotificationFriendRequestDeclined,
		NotificationFriendRemoved,
		NotificationMessage,
		NotificationOther,
	} {
		assert.Nil(t, ExpiryFor(notificationType, createdAt, ttl), "type %s", notificationType)
	}
}

func TestFriendRequestDataToMap(t *testing.T) {
	data := FriendRequestData{RequestID: 42}
	assert.Equal(t, map[string]any{"request_id": uint(42)}, data.ToMap())
}

func TestMessageDataToMap(t *testing.T) {
	data := MessageData{ConversationID: "conv-1", MessageID: "m-9"}
	assert.Equal(t, map[string]any{"conversation_id": "conv-1", "message_id": "m-9"}, data.ToMap())

	// Message id is optional
	data = MessageData{ConversationID: "conv-1"}
	assert.Equal(t, map[string]any{"conversation_id": "conv-1"}, data.ToMap())
}

func TestUserIdentityString(t *testing.T) {
	user := User{ID: 1234}
	assert.Equal(t, "1234", user.IdentityString())
}
