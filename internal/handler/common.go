package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/middleware"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// requestTimeout bounds the work of one handler.
const requestTimeout = 10 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// caller is the authenticated user, or the zero Caller for guests.
func caller(c echo.Context) service.Caller {
	uid, _ := middleware.UserID(c)
	return service.Caller{UserID: uid, Role: middleware.Role(c)}
}

// cartOwner resolves the cart owner: the user when signed in, otherwise
// the X-Session-ID header.
func cartOwner(c echo.Context) (model.CartOwner, bool) {
	if uid, ok := middleware.UserID(c); ok {
		return model.CartOwner{UserID: uid}, true
	}
	if s := middleware.SessionID(c); s != "" && len(s) <= 64 {
		return model.CartOwner{SessionID: s}, true
	}
	return model.CartOwner{}, false
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c echo.Context, name string) (*time.Time, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, true
	}
	d, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, false
	}
	return &d, true
}

func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
