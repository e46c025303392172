package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// maxWebhookBody bounds the webhook payload read.
const maxWebhookBody = 1 << 20

// Razorpay webhook headers.
const (
	HeaderRazorpaySignature = "X-Razorpay-Signature"
	HeaderRazorpayEventID   = "X-Razorpay-Event-Id"
)

// PaymentAPI is implemented by *service.PaymentService.
type PaymentAPI interface {
	CreateOrder(ctx context.Context, owner model.CartOwner, visitor model.Visitor) (service.Checkout, error)
	HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (service.WebhookResult, error)
}

type PaymentHandler struct {
	Payments PaymentAPI
}

func NewPaymentHandler(p PaymentAPI) *PaymentHandler { return &PaymentHandler{Payments: p} }

type createOrderReq struct {
	Visitor model.Visitor `json:"visitor"`
}

// CreateOrder turns the caller's cart into a gateway order.  The response
// carries what the checkout widget needs.
func (h *PaymentHandler) CreateOrder(c echo.Context) error {
	owner, ok := cartOwner(c)
	if !ok {
		return badRequest(c, noOwnerMsg)
	}
	var req createOrderReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Payments.CreateOrder(ctx, owner, req.Visitor)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// Webhook receives gateway events.  The raw body is verified against
// X-Razorpay-Signature before anything is parsed.  Processing errors are
// answered with 500 so the gateway retries; a conflict is acknowledged
// because retrying cannot resolve it.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	sig := c.Request().Header.Get(HeaderRazorpaySignature)
	eventID := c.Request().Header.Get(HeaderRazorpayEventID)

	res, err := h.Payments.HandleWebhook(c.Request().Context(), body, sig, eventID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			logrus.WithField("event_id", eventID).Warn("webhook signature rejected")
		}
		return respondError(c, err)
	}
	entry := logrus.WithFields(logrus.Fields{"event": res.Event, "event_id": eventID})
	if res.Conflict {
		entry.Error("paid order could not be fulfilled; refund required")
	} else {
		entry.WithField("bookings", res.Bookings).Info("webhook processed")
	}
	return c.JSON(http.StatusOK, res)
}
