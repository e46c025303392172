package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
)

// RoleLookup reads a user's current role.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID uint64) (string, error)
}

// RequireRole lets the request through only when the caller's role is one
// of roles.  The role is read through lookup on every request so a demoted
// admin loses access before their token expires; with a nil lookup the
// token's role claim is trusted.  JWTAuth must run first.
func RequireRole(lookup RoleLookup, roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			role := Role(c)
			if lookup != nil {
				current, err := lookup.RoleOf(c.Request().Context(), uid)
				switch {
				case errors.Is(err, repository.ErrNotFound):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
				case err != nil:
					logrus.WithError(err).WithField("user_id", uid).Error("role lookup failed")
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
				}
				role = current
				c.Set(ctxRole, role)
			}
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
