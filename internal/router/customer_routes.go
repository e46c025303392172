package router

import (
	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/handler"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/middleware"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

// VisitorHandlers groups the handlers behind the visitor routes.
type VisitorHandlers struct {
	Cart     *handler.CartHandler
	Bookings *handler.BookingHandler
	Payments *handler.PaymentHandler
}

// RegisterVisitor registers the cart, checkout and booking routes.  They
// serve signed-in users and guests alike: OptionalJWT identifies users and
// guests are keyed by X-Session-ID.  Writes are rate limited.
func RegisterVisitor(e *echo.Echo, h VisitorHandlers, jwtSecret string, limit echo.MiddlewareFunc) {
	optional := middleware.OptionalJWT(jwtSecret)

	cart := e.Group("/api/cart", optional, limit)
	cart.GET("", h.Cart.Get)
	cart.POST("", h.Cart.Update)
	cart.DELETE("", h.Cart.Clear)
	cart.POST("/add", h.Cart.Add)
	cart.POST("/sync", h.Cart.Sync)
	cart.DELETE("/items/:id", h.Cart.RemoveItem)

	e.POST("/api/bookings-new/create", h.Bookings.CreateDirect, optional, limit)
	e.GET("/api/bookings/:reference", h.Bookings.GetByReference, optional, limit)
	e.GET("/api/my-bookings", h.Bookings.MyBookings, middleware.JWTAuth(jwtSecret))

	e.POST("/api/payment/create-order", h.Payments.CreateOrder, optional, limit)
	// The gateway authenticates with the body signature, not a token.
	e.POST("/api/webhooks/razorpay", h.Payments.Webhook)
}

// RegisterGate registers ticket verification for gate staff and admins.
func RegisterGate(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, roles middleware.RoleLookup) {
	e.POST("/api/tickets/verify", b.VerifyTicket,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(roles, model.RoleStaff, model.RoleAdmin, model.RoleSuperAdmin),
	)
}
