package middleware

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth and OptionalJWT.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// SessionHeader carries the guest cart session id.
const SessionHeader = "X-Session-ID"

// UserID returns the authenticated user id, if any.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the role of the authenticated user.  After RequireRole it is
// the role currently stored for the user, not the one in the token.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// SessionID returns the trimmed guest session header.
func SessionID(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(SessionHeader))
}

// identity is the rate limiter's notion of who is calling: the user id,
// the guest session, or "anon".
func identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return "u" + strconv.FormatUint(id, 10)
	}
	if s := SessionID(c); s != "" {
		return "s" + s
	}
	return "anon"
}
