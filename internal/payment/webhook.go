package payment

import (
	"encoding/json"
	"fmt"
)

// Webhook event names the service reacts to.
const (
	EventPaymentCaptured = "payment.captured"
	EventOrderPaid       = "order.paid"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
	EventRefundCreated   = "refund.created"
)

// Notes is the free-form key/value map Razorpay attaches to entities.  The
// API sends an empty JSON array instead of an empty object, and numbers
// where the merchant stored numbers.
type Notes map[string]string

// UnmarshalJSON accepts an object, an empty array or null.
func (n *Notes) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := Notes{}
	switch v := raw.(type) {
	case nil:
	case []interface{}:
		if len(v) > 0 {
			return fmt.Errorf("notes: unexpected non-empty array")
		}
	case map[string]interface{}:
		for k, val := range v {
			switch s := val.(type) {
			case string:
				out[k] = s
			case nil:
			default:
				out[k] = fmt.Sprint(s)
			}
		}
	default:
		return fmt.Errorf("notes: unexpected %T", raw)
	}
	*n = out
	return nil
}

// PaymentEntity is the subset of a payment object the service reads.
type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Notes    Notes  `json:"notes"`
}

// OrderEntity is the subset of an order object the service reads.
type OrderEntity struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
	Notes  Notes  `json:"notes"`
}

// RefundEntity is the subset of a refund object the service reads.
type RefundEntity struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	Notes     Notes  `json:"notes"`
}

// WebhookEvent is a decoded delivery.  Entities absent from the payload
// are nil.
type WebhookEvent struct {
	Event   string
	Payment *PaymentEntity
	Order   *OrderEntity
	Refund  *RefundEntity
}

type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity OrderEntity `json:"entity"`
		} `json:"order"`
		Refund *struct {
			Entity RefundEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// ParseWebhook decodes a verified webhook body.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	if env.Event == "" {
		return WebhookEvent{}, fmt.Errorf("decode webhook: missing event")
	}
	ev := WebhookEvent{Event: env.Event}
	if p := env.Payload.Payment; p != nil {
		ev.Payment = &p.Entity
	}
	if o := env.Payload.Order; o != nil {
		ev.Order = &o.Entity
	}
	if r := env.Payload.Refund; r != nil {
		ev.Refund = &r.Entity
	}
	return ev, nil
}

// GatewayOrderID returns the order id carried by the event, preferring
// the order entity over the payment's back reference.
func (e WebhookEvent) GatewayOrderID() string {
	if e.Order != nil && e.Order.ID != "" {
		return e.Order.ID
	}
	if e.Payment != nil {
		return e.Payment.OrderID
	}
	return ""
}

// PaymentID returns the payment id carried by the event.
func (e WebhookEvent) PaymentID() string {
	if e.Payment != nil && e.Payment.ID != "" {
		return e.Payment.ID
	}
	if e.Refund != nil {
		return e.Refund.PaymentID
	}
	return ""
}
