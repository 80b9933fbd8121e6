package handlers

import (
	"net/http"

	"github.com/Spotibuds/User/internal/models"
	"github.com/Spotibuds/User/internal/realtime"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// NotifyRequest is the event form accepted from sibling services (e.g. the
// chat service handing off a message event). Callers must invoke it exactly
// once per domain action; no deduplication happens here.
type NotifyRequest struct {
	TargetUserID   string `json:"target_user_id" validate:"required"`
	SourceUserID   string `json:"source_user_id,omitempty"`
	Type           string `json:"type" validate:"required,oneof=friend_request friend_request_accepted friend_request_declined friend_removed message other"`
	Title          string `json:"title" validate:"required"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ActionURL      string `json:"action_url,omitempty"`
}

// NotifyHandler exposes the fan-out coordinator to trusted callers
type NotifyHandler struct {
	coordinator *realtime.Coordinator
}

// NewNotifyHandler creates a new NotifyHandler
func NewNotifyHandler(coordinator *realtime.Coordinator) *NotifyHandler {
	return &NotifyHandler{coordinator: coordinator}
}

// RegisterNotifyRoutes registers the notify endpoint
func (h *NotifyHandler) RegisterNotifyRoutes(g *echo.Group) {
	g.POST("/notify", h.Notify)
}

// Notify hands a domain event to the fan-out coordinator
func (h *NotifyHandler) Notify(c echo.Context) error {
	var req NotifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	event := realtime.Event{
		TargetUserID:   req.TargetUserID,
		SourceUserID:   req.SourceUserID,
		Type:           models.NotificationType(req.Type),
		Title:          req.Title,
		Message:        req.Message,
		ConversationID: req.ConversationID,
		ActionURL:      req.ActionURL,
	}
	if req.ConversationID != "" {
		event.Data = models.MessageData{ConversationID: req.ConversationID, MessageID: req.MessageID}
	}

	if err := h.coordinator.Notify(c.Request().Context(), event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusAccepted, echo.Map{"success": true})
}
