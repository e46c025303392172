package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/utils"
)

// JWTAuth requires a valid Bearer access token and stores its user id
// (uint64) and role claim in the context under "user_id" and "role".
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			if !authenticate(c, secret, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			return next(c)
		}
	}
}

// OptionalJWT authenticates the caller when a Bearer token is sent and lets
// guests through otherwise.  A token that is present but invalid is still
// rejected, so an expired session never silently turns into a guest cart.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if ok && !authenticate(c, secret, raw) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			return next(c)
		}
	}
}

func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

func authenticate(c echo.Context, secret, raw string) bool {
	claims, err := utils.ParseAccessToken(secret, raw)
	if err != nil {
		return false
	}
	uid, err := claims.UserID()
	if err != nil || uid == 0 {
		return false
	}
	c.Set(ctxUserID, uid)
	c.Set(ctxRole, claims.Role)
	return true
}
