package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Spotibuds/User/internal/realtime"
	"github.com/Spotibuds/User/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	coordinator            *realtime.Coordinator
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, coordinator *realtime.Coordinator) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		coordinator:            coordinator,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/:id/handled", h.MarkAsHandled)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
	g.DELETE("/notifications/cleanup", h.Cleanup)
}

// GetNotifications returns paginated notifications, most recent first
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = 20
	}
	skip := int64((page - 1) * limit)

	notifications, err := h.notificationRepository.GetByTargetID(c.Request().Context(), identityString(currentUserID), skip, int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": notifications,
		},
		"meta": echo.Map{
			"currentPage":  page,
			"itemsPerPage": limit,
		},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	count, err := h.notificationRepository.GetUnreadCount(c.Request().Context(), identityString(currentUserID))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	userID := identityString(currentUserID)
	if err := h.notificationRepository.MarkAsRead(c.Request().Context(), c.Param("id"), userID); err != nil {
		if err == repositories.ErrNotificationNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.coordinator.BroadcastUnreadCount(c.Request().Context(), userID)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}

// MarkAsHandled marks a notification as handled
func (h *NotificationHandler) MarkAsHandled(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	userID := identityString(currentUserID)
	if err := h.notificationRepository.MarkAsHandled(c.Request().Context(), c.Param("id"), userID); err != nil {
		if err == repositories.ErrNotificationNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.coordinator.BroadcastUnreadCount(c.Request().Context(), userID)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"success": true}})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	userID := identityString(currentUserID)
	affected, err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.coordinator.BroadcastUnreadCount(c.Request().Context(), userID)

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"affected": affected}})
}

// Cleanup deletes the user's handled notifications older than the given age
func (h *NotificationHandler) Cleanup(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	days, _ := strconv.Atoi(c.QueryParam("older_than_days"))
	if days < 1 {
		days = 30
	}

	deleted, err := h.notificationRepository.CleanupExpiredHandled(
		c.Request().Context(), identityString(currentUserID), time.Duration(days)*24*time.Hour)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"deleted": deleted}})
}
