package middleware

import (
	"net/http"
	"strings"

	"github.com/Spotibuds/User/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// JWTAuth checks for a valid JWT and stores the verified claims in the echo
// context under "user". The service never verifies credentials itself; it
// only trusts identities already signed by the auth collaborator.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var tokenString string
			authHeader := c.Request().Header.Get("Authorization")
			switch {
			case authHeader != "":
				// Expecting "Bearer <token>"
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
				}
				tokenString = parts[1]
			case c.QueryParam("token") != "":
				// Browser websocket clients cannot set headers on the upgrade request
				tokenString = c.QueryParam("token")
			default:
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}

			claims := &models.JwtCustomClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "Unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			c.Set("user", claims)

			return next(c)
		}
	}
}
