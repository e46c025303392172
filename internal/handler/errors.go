package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/inventory"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/payment"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// statusOf maps domain errors to HTTP statuses.  Unknown errors are 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, repository.ErrForbidden),
		errors.Is(err, service.ErrPaymentRequired):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, inventory.ErrSlotNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrCapacityExceeded),
		errors.Is(err, inventory.ErrSlotInactive),
		errors.Is(err, inventory.ErrCapacityBelowUse),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrEmailExists),
		errors.Is(err, service.ErrOrderConflict),
		errors.Is(err, service.ErrTicketUsed),
		errors.Is(err, service.ErrTicketVoid):
		return http.StatusConflict
	case errors.Is(err, payment.ErrGateway):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes the {"error": "..."} envelope for err.  Internal
// errors are logged and replaced by a generic message.
func respondError(c echo.Context, err error) error {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Request().URL.Path,
		}).Error("request failed")
		msg = "internal error"
	case http.StatusBadGateway:
		logrus.WithError(err).Warn("payment gateway error")
		msg = "payment gateway unavailable"
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
