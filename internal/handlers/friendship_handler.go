package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/Spotibuds/User/internal/models"
	"github.com/Spotibuds/User/internal/realtime"
	"github.com/Spotibuds/User/internal/repositories"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FriendshipHandler handles HTTP requests related to friendships. Each domain
// action calls Notify exactly once; there is no second delivery path.
type FriendshipHandler struct {
	friendshipRepository repositories.FriendshipRepository
	userRepository       repositories.UserRepository
	coordinator          *realtime.Coordinator
}

// NewFriendshipHandler creates a new FriendshipHandler
func NewFriendshipHandler(friendshipRepo repositories.FriendshipRepository, userRepo repositories.UserRepository, coordinator *realtime.Coordinator) *FriendshipHandler {
	return &FriendshipHandler{
		friendshipRepository: friendshipRepo,
		userRepository:       userRepo,
		coordinator:          coordinator,
	}
}

// RegisterFriendshipRoutes registers friendship-related routes
func (h *FriendshipHandler) RegisterFriendshipRoutes(g *echo.Group) {
	g.POST("/friends/request", h.SendFriendRequest)
	g.GET("/friends/requests/pending", h.GetPendingFriendRequests)
	g.PUT("/friends/request/:id/status", h.UpdateFriendRequestStatus)
	g.GET("/friends", h.GetFriends)
	g.DELETE("/friends/:id", h.DeleteFriend) // Unfriend
}

// SendFriendRequest handles sending a friend request
func (h *FriendshipHandler) SendFriendRequest(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateFriendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	sender, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}

	// Check if receiver exists
	if _, err := h.userRepository.GetUserByID(req.ReceiverID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Receiver user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if sender.ID == req.ReceiverID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot send a friend request to yourself")
	}

	friendRequest := &models.FriendRequest{
		SenderID:   sender.ID,
		ReceiverID: req.ReceiverID,
		Status:     "pending",
	}

	if err := h.friendshipRepository.SendFriendRequest(friendRequest); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.coordinator.Notify(c.Request().Context(), realtime.Event{
		TargetUserID: identityString(req.ReceiverID),
		SourceUserID: sender.IdentityString(),
		Type:         models.NotificationFriendRequest,
		Title:        "New friend request",
		Message:      fmt.Sprintf("%s sent you a friend request", sender.Name),
		Data:         models.FriendRequestData{RequestID: friendRequest.ID},
		ActionURL:    "/friends/requests/pending",
	}); err != nil {
		logrus.Warnf("friend request notification skipped: %v", err)
	}

	return c.JSON(http.StatusCreated, friendRequest)
}

// GetPendingFriendRequests retrieves pending friend requests for the authenticated user
func (h *FriendshipHandler) GetPendingFriendRequests(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	requests, err := h.friendshipRepository.GetUserPendingFriendRequests(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, requests)
}

// UpdateFriendRequestStatus updates the status of a friend request (accept/decline)
func (h *FriendshipHandler) UpdateFriendRequestStatus(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	requestID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request ID")
	}

	var req models.UpdateFriendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	receiver, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}

	friendRequest, err := h.friendshipRepository.GetFriendRequestByID(uint(requestID))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "Friend request not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Ensure the authenticated user is the receiver of the request
	if friendRequest.ReceiverID != receiver.ID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to modify this friend request")
	}

	if friendRequest.Status != "pending" {
		return echo.NewHTTPError(http.StatusBadRequest, "Friend request already resolved")
	}

	if err := h.friendshipRepository.UpdateFriendRequestStatus(uint(requestID), req.Status); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	notificationType := models.NotificationFriendRequestAccepted
	title := "Friend request accepted"
	message := fmt.Sprintf("%s accepted your friend request", receiver.Name)
	if req.Status == "declined" {
		notificationType = models.NotificationFriendRequestDeclined
		title = "Friend request declined"
		message = fmt.Sprintf("%s declined your friend request", receiver.Name)
	}

	if err := h.coordinator.Notify(c.Request().Context(), realtime.Event{
		TargetUserID: identityString(friendRequest.SenderID),
		SourceUserID: receiver.IdentityString(),
		Type:         notificationType,
		Title:        title,
		Message:      message,
		Data:         models.FriendRequestData{RequestID: friendRequest.ID},
	}); err != nil {
		logrus.Warnf("friend request resolution notification skipped: %v", err)
	}

	friendRequest.Status = req.Status
	return c.JSON(http.StatusOK, friendRequest)
}

// GetFriends retrieves the list of friends for the authenticated user
func (h *FriendshipHandler) GetFriends(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	friends, err := h.friendshipRepository.GetUserFriends(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, friends)
}

// DeleteFriend handles unfriending (deleting an accepted friend request)
func (h *FriendshipHandler) DeleteFriend(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	friendUserID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid friend user ID")
	}

	currentUser, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user not found in database")
	}

	// Find the accepted friend request between current user and friendUserID
	friendRequest, err := h.friendshipRepository.GetFriendRequestBySenderReceiver(currentUser.ID, uint(friendUserID))
	if err != nil {
		friendRequest, err = h.friendshipRepository.GetFriendRequestBySenderReceiver(uint(friendUserID), currentUser.ID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return echo.NewHTTPError(http.StatusNotFound, "Friendship not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	if friendRequest.Status != "accepted" {
		return echo.NewHTTPError(http.StatusBadRequest, "Users are not friends")
	}

	if err := h.friendshipRepository.DeleteFriendRequest(friendRequest.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if err := h.coordinator.Notify(c.Request().Context(), realtime.Event{
		TargetUserID: identityString(uint(friendUserID)),
		SourceUserID: currentUser.IdentityString(),
		Type:         models.NotificationFriendRemoved,
		Title:        "Friend removed",
		Message:      fmt.Sprintf("%s removed you as a friend", currentUser.Name),
	}); err != nil {
		logrus.Warnf("friend removed notification skipped: %v", err)
	}

	return c.NoContent(http.StatusNoContent)
}
