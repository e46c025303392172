// Package payment talks to the Razorpay API: it creates gateway orders for
// checkout, issues refunds and verifies and decodes webhook deliveries.
package payment

import (
	"context"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"
)

// ErrGateway wraps every failure reported by the payment provider.
// Handlers map it to 502.
var ErrGateway = errors.New("payment gateway error")

// Order is the gateway side of a checkout.  Amount is in the currency's
// minor unit (paise).
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Gateway is what the payment and booking services need from a provider.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (Order, error)
	Refund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (string, error)
	VerifyWebhook(body []byte, signature string) bool
	KeyID() string
}

// Razorpay implements Gateway with the official SDK.
type Razorpay struct {
	client        *razorpay.Client
	keyID         string
	webhookSecret string
}

// NewRazorpay builds a client for the given key pair.  webhookSecret is the
// secret configured on the dashboard for the webhook endpoint, which is not
// the API key secret.
func NewRazorpay(keyID, keySecret, webhookSecret string) *Razorpay {
	return &Razorpay{
		client:        razorpay.NewClient(keyID, keySecret),
		keyID:         keyID,
		webhookSecret: webhookSecret,
	}
}

// KeyID is returned to the browser so checkout.js can open the order.
func (r *Razorpay) KeyID() string { return r.keyID }

// CreateOrder registers an order for amount with the gateway.  The SDK has
// no context support; ctx is checked before the call only.
func (r *Razorpay) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}
	data := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}
	body, err := r.client.Order.Create(data, nil)
	if err != nil {
		return Order{}, fmt.Errorf("%w: create order: %v", ErrGateway, err)
	}
	id, _ := body["id"].(string)
	if id == "" {
		return Order{}, fmt.Errorf("%w: create order: response has no id", ErrGateway)
	}
	return Order{ID: id, Amount: amount, Currency: currency, Receipt: receipt}, nil
}

// Refund refunds amount of a captured payment and returns the refund id.
// The refund.processed webhook that follows is what cancels bookings.
func (r *Razorpay) Refund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data := map[string]interface{}{}
	if len(notes) > 0 {
		data["notes"] = notes
	}
	body, err := r.client.Payment.Refund(paymentID, int(amount), data, nil)
	if err != nil {
		return "", fmt.Errorf("%w: refund %s: %v", ErrGateway, paymentID, err)
	}
	id, _ := body["id"].(string)
	return id, nil
}

// VerifyWebhook checks the X-Razorpay-Signature header against the raw
// request body.
func (r *Razorpay) VerifyWebhook(body []byte, signature string) bool {
	if signature == "" || r.webhookSecret == "" {
		return false
	}
	return rzputils.VerifyWebhookSignature(string(body), signature, r.webhookSecret)
}
