// Package router registers the HTTP surface on an Echo instance.  Each
// Register* function owns one audience (public, visitor, back office) and
// attaches that audience's middleware at group construction time.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/handler"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/middleware"
)

// RegisterRoutes registers the probes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	if h != nil {
		e.GET("/readyz", h.Ready)
	}
}

// RegisterAuth registers /api/auth and /api/me.  Logout accepts either a
// refresh token in the body or a bearer token, so it runs OptionalJWT.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))

	e.GET("/api/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the unauthenticated catalogue.  cache wraps the
// catalogue pages only; slot listings and availability are always live.
func RegisterPublic(e *echo.Echo, p *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/api")
	g.GET("/exhibitions", p.ListExhibitions, cache)
	g.GET("/exhibitions/:id", p.GetExhibition, cache)
	g.GET("/shows", p.ListShows, cache)
	g.GET("/shows/:id", p.GetShow, cache)

	g.GET("/exhibitions/:id/time-slots", p.ExhibitionSlots)
	g.GET("/exhibitions/:id/calendar", p.Calendar)
	g.GET("/shows/:id/time-slots", p.ShowSlots)
	g.GET("/time-slots/:id/availability", p.Availability)
}
