package handlers

import (
	"strconv"

	"github.com/Spotibuds/User/internal/models"
	"github.com/labstack/echo/v4"
)

// getUserIDFromContext extracts the authenticated user's id set by the JWT
// middleware. Returns 0 when the request carries no valid identity.
func getUserIDFromContext(c echo.Context) uint {
	claims, ok := c.Get("user").(*models.JwtCustomClaims)
	if !ok || claims == nil {
		return 0
	}
	return claims.UserID
}

// identityString is the string identity form used by the realtime core.
func identityString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
