package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// DashboardAPI is implemented by *service.DashboardService.
type DashboardAPI interface {
	Summary(ctx context.Context, days int) (service.Dashboard, error)
}

type DashboardHandler struct {
	Dashboard DashboardAPI
}

func NewDashboardHandler(d DashboardAPI) *DashboardHandler { return &DashboardHandler{Dashboard: d} }

// Summary serves ?days=N (default 30).
func (h *DashboardHandler) Summary(c echo.Context) error {
	days := 30
	if v := c.QueryParam("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return badRequest(c, "days must be a positive integer")
		}
		days = n
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	d, err := h.Dashboard.Summary(ctx, days)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}
