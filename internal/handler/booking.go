package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/middleware"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// BookingAPI is implemented by *service.BookingService.
type BookingAPI interface {
	CreateDirect(ctx context.Context, caller service.Caller, in service.DirectBookingInput) (service.BookingDetail, error)
	GetByReference(ctx context.Context, caller service.Caller, ref, email string) (service.BookingDetail, error)
	Get(ctx context.Context, id uint64) (service.BookingDetail, error)
	MyBookings(ctx context.Context, userID uint64) ([]model.Booking, error)
	List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error)
	Cancel(ctx context.Context, id uint64) (model.Booking, error)
	Refund(ctx context.Context, id uint64) (model.Booking, error)
	VerifyTicket(ctx context.Context, code string) (model.Ticket, error)
}

// BookingHandler serves visitor bookings, gate verification and the
// back-office booking list.
type BookingHandler struct {
	Bookings BookingAPI
}

func NewBookingHandler(b BookingAPI) *BookingHandler { return &BookingHandler{Bookings: b} }

// CreateDirect books without the cart: free admissions for anyone,
// walk-in sales for admins.
func (h *BookingHandler) CreateDirect(c echo.Context) error {
	var in service.DirectBookingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	b, err := h.Bookings.CreateDirect(ctx, caller(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// GetByReference looks a booking up by reference code.  Guests prove
// ownership with ?email=.
func (h *BookingHandler) GetByReference(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	b, err := h.Bookings.GetByReference(ctx, caller(c), c.Param("reference"), c.QueryParam("email"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// MyBookings lists the signed-in user's bookings.
func (h *BookingHandler) MyBookings(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Bookings.MyBookings(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

type verifyReq struct {
	TicketCode string `json:"ticket_code"`
}

// VerifyTicket admits a ticket at the gate.  A repeated scan is 409 with
// the ticket, so the gate can show when it was first used.
func (h *BookingHandler) VerifyTicket(c echo.Context) error {
	var req verifyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	t, err := h.Bookings.VerifyTicket(ctx, req.TicketCode)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"admitted": true, "ticket": t})
	case errors.Is(err, service.ErrTicketUsed), errors.Is(err, service.ErrTicketVoid):
		return c.JSON(http.StatusConflict, echo.Map{"admitted": false, "error": err.Error(), "ticket": t})
	}
	return respondError(c, err)
}
