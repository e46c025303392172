package model

import "time"

// CartItem mirrors the `cart_items` table.  While SettledAt is nil and
// ExpiresAt is in the future, the item's ticket total is counted in its
// slot's current_bookings.  SettledAt is set exactly once, when the
// reservation is either released or transferred to a booking.
type CartItem struct {
	ID             uint64     `db:"id" json:"id"`
	SessionID      string     `db:"session_id" json:"-"`
	UserID         *uint64    `db:"user_id" json:"-"`
	TimeSlotID     uint64     `db:"time_slot_id" json:"time_slot_id"`
	BookingDate    time.Time  `db:"booking_date" json:"booking_date"`
	TicketCounts              // adult/child/student/senior
	Subtotal       int64      `db:"subtotal" json:"subtotal"`
	ExpiresAt      time.Time  `db:"expires_at" json:"expires_at"`
	PaymentOrderID *uint64    `db:"payment_order_id" json:"payment_order_id,omitempty"`
	SettledAt      *time.Time `db:"settled_at" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the hold has lapsed at now.
func (c CartItem) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// CartOwner identifies a cart: the signed-in user when known, otherwise
// the guest session id.
type CartOwner struct {
	UserID    uint64
	SessionID string
}

// Valid reports whether the owner can be resolved to rows.
func (o CartOwner) Valid() bool {
	return o.UserID != 0 || o.SessionID != ""
}
