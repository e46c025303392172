package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
)

// AdminList filters by ?status=, ?payment_status=, ?from=, ?to= (booking
// date) with ?limit= and ?offset= paging.
func (h *BookingHandler) AdminList(c echo.Context) error {
	from, okFrom := queryDate(c, "from")
	to, okTo := queryDate(c, "to")
	if !okFrom || !okTo {
		return badRequest(c, "from/to must be YYYY-MM-DD")
	}
	f := repository.BookingFilter{
		Status:        c.QueryParam("status"),
		PaymentStatus: c.QueryParam("payment_status"),
		From:          from,
		To:            to,
	}
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if f.Offset < 0 {
		f.Offset = 0
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Bookings.List(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *BookingHandler) AdminGet(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	b, err := h.Bookings.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// AdminCancel cancels and releases; cancelling twice is harmless.
func (h *BookingHandler) AdminCancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	b, err := h.Bookings.Cancel(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// AdminRefund refunds through the gateway, then releases.
func (h *BookingHandler) AdminRefund(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	b, err := h.Bookings.Refund(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
