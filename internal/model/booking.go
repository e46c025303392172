package model

import "time"

// Booking statuses and payment statuses.
const (
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"

	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// Ticket statuses.
const (
	TicketValid = "valid"
	TicketUsed  = "used"
	TicketVoid  = "void"
)

// Booking mirrors `bookings`.  ReleasedAt is set by the transition that
// returned the booking's tickets to its slot; it is never cleared.
type Booking struct {
	ID             uint64     `db:"id" json:"id"`
	ReferenceCode  string     `db:"reference_code" json:"reference_code"`
	PaymentOrderID *uint64    `db:"payment_order_id" json:"payment_order_id,omitempty"`
	UserID         *uint64    `db:"user_id" json:"user_id,omitempty"`
	VisitorName    string     `db:"visitor_name" json:"visitor_name"`
	VisitorEmail   string     `db:"visitor_email" json:"visitor_email"`
	VisitorPhone   string     `db:"visitor_phone" json:"visitor_phone,omitempty"`
	TimeSlotID     uint64     `db:"time_slot_id" json:"time_slot_id"`
	BookingDate    time.Time  `db:"booking_date" json:"booking_date"`
	TicketCounts              // adult/child/student/senior
	TotalTickets   int        `db:"total_tickets" json:"total_tickets"`
	TotalAmount    int64      `db:"total_amount" json:"total_amount"`
	Status         string     `db:"status" json:"status"`
	PaymentStatus  string     `db:"payment_status" json:"payment_status"`
	ReleasedAt     *time.Time `db:"released_at" json:"released_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Ticket mirrors `tickets`; one row per admitted visitor.
type Ticket struct {
	ID         uint64     `db:"id" json:"id"`
	BookingID  uint64     `db:"booking_id" json:"booking_id"`
	TicketCode string     `db:"ticket_code" json:"ticket_code"`
	TicketType string     `db:"ticket_type" json:"ticket_type"`
	Status     string     `db:"status" json:"status"`
	UsedAt     *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
