package router

import (
	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/handler"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/middleware"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

// AdminHandlers groups the back-office handlers.
type AdminHandlers struct {
	Catalog   *handler.CatalogHandler
	Bookings  *handler.BookingHandler
	Dashboard *handler.DashboardHandler
}

// RegisterAdmin registers /api/admin.  Every route requires a valid JWT and
// an admin or super_admin role as currently stored for the user.
func RegisterAdmin(e *echo.Echo, h AdminHandlers, jwtSecret string, roles middleware.RoleLookup) {
	g := e.Group(
		"/api/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(roles, model.RoleAdmin, model.RoleSuperAdmin),
	)

	// ---- Exhibitions ----
	g.GET("/exhibitions", h.Catalog.AdminListExhibitions)
	g.POST("/exhibitions", h.Catalog.CreateExhibition)
	g.GET("/exhibitions/:id", h.Catalog.AdminGetExhibition)
	g.PUT("/exhibitions/:id", h.Catalog.UpdateExhibition)
	g.DELETE("/exhibitions/:id", h.Catalog.DeleteExhibition)

	// ---- Shows ----
	g.GET("/shows", h.Catalog.AdminListShows)
	g.POST("/shows", h.Catalog.CreateShow)
	g.GET("/shows/:id", h.Catalog.AdminGetShow)
	g.PUT("/shows/:id", h.Catalog.UpdateShow)
	g.DELETE("/shows/:id", h.Catalog.DeleteShow)

	// ---- Pricing ----
	g.GET("/pricing", h.Catalog.GetPricing)
	g.PUT("/pricing", h.Catalog.PutPricing)

	// ---- Time slots ----
	g.GET("/time-slots", h.Catalog.AdminListSlots)
	g.POST("/time-slots", h.Catalog.CreateSlot)
	g.POST("/time-slots/generate", h.Catalog.GenerateSlots)
	g.PATCH("/time-slots/:id", h.Catalog.RescheduleSlot)
	g.PATCH("/time-slots/:id/capacity", h.Catalog.ResizeSlot)
	g.DELETE("/time-slots/:id", h.Catalog.DeactivateSlot)

	// ---- Bookings ----
	g.GET("/bookings", h.Bookings.AdminList)
	g.GET("/bookings/:id", h.Bookings.AdminGet)
	g.POST("/bookings/:id/cancel", h.Bookings.AdminCancel)
	g.POST("/bookings/:id/refund", h.Bookings.AdminRefund)

	g.GET("/dashboard", h.Dashboard.Summary)
}
