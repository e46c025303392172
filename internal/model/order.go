package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Payment order statuses.
const (
	OrderCreated  = "created"
	OrderPaid     = "paid"
	OrderFailed   = "failed"
	OrderRefunded = "refunded"
	OrderConflict = "conflict"
)

// SnapshotLine is one frozen cart line.  CartItemID points back at the
// cart row whose reservation backs the line.
type SnapshotLine struct {
	CartItemID  uint64       `json:"cart_item_id"`
	TimeSlotID  uint64       `json:"time_slot_id"`
	BookingDate string       `json:"booking_date"`
	Tickets     TicketCounts `json:"tickets"`
	Subtotal    int64        `json:"subtotal"`
}

// CartSnapshot is stored as JSON in payment_orders.cart_snapshot.
type CartSnapshot []SnapshotLine

// TotalTickets sums tickets across all lines.
func (s CartSnapshot) TotalTickets() int {
	n := 0
	for _, l := range s {
		n += l.Tickets.Total()
	}
	return n
}

// Value implements driver.Valuer.
func (s CartSnapshot) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *CartSnapshot) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Visitor is the contact block attached to orders and bookings.
type Visitor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Validate requires a name and a plausible email.
func (v Visitor) Validate() error {
	if v.Name == "" {
		return errors.New("visitor name is required")
	}
	if len(v.Email) < 3 || !containsAt(v.Email) {
		return errors.New("visitor email is invalid")
	}
	return nil
}

func containsAt(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '@' {
			return i > 0 && i < len(s)-1
		}
	}
	return false
}

// Value implements driver.Valuer.
func (v Visitor) Value() (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (v *Visitor) Scan(src interface{}) error {
	return scanJSON(src, v)
}

// PaymentOrder mirrors `payment_orders`.  CartSnapshot is written once at
// creation and never updated.
type PaymentOrder struct {
	ID               uint64       `db:"id" json:"id"`
	GatewayOrderID   string       `db:"gateway_order_id" json:"gateway_order_id"`
	GatewayPaymentID *string      `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	UserID           *uint64      `db:"user_id" json:"user_id,omitempty"`
	SessionID        string       `db:"session_id" json:"-"`
	Amount           int64        `db:"amount" json:"amount"`
	Currency         string       `db:"currency" json:"currency"`
	CartSnapshot     CartSnapshot `db:"cart_snapshot" json:"cart_snapshot"`
	Visitor          Visitor      `db:"visitor" json:"visitor"`
	Status           string       `db:"status" json:"status"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

func scanJSON(src interface{}, dest interface{}) error {
	switch t := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(t, dest)
	case string:
		return json.Unmarshal([]byte(t), dest)
	}
	return fmt.Errorf("unsupported JSON column type %T", src)
}
