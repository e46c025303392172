// Package queue carries booking events over RabbitMQ: a publisher used by
// the payment and booking services and the ticket-delivery consumer.
package queue

// BookingConfirmedEvent is published once per booking after the
// transaction that created it commits.  It holds enough for delivery
// (visitor contact, slot window, ticket codes) that consumers never query
// the primary database.
type BookingConfirmedEvent struct {
	BookingID      uint64   `json:"booking_id"`
	ReferenceCode  string   `json:"reference_code"`
	PaymentOrderID uint64   `json:"payment_order_id,omitempty"`
	UserID         uint64   `json:"user_id,omitempty"`
	VisitorName    string   `json:"visitor_name"`
	VisitorEmail   string   `json:"visitor_email"`
	TimeSlotID     uint64   `json:"time_slot_id"`
	BookingDate    string   `json:"booking_date"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	TicketCodes    []string `json:"ticket_codes"`
	TotalTickets   int      `json:"total_tickets"`
	TotalAmount    int64    `json:"total_amount"`
	ConfirmedAt    string   `json:"confirmed_at"`
}
