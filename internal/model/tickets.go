package model

import "errors"

// Ticket types priced per exhibition or show.
const (
	TicketAdult   = "adult"
	TicketChild   = "child"
	TicketStudent = "student"
	TicketSenior  = "senior"
)

// TicketTypes lists every type in display order.
var TicketTypes = []string{TicketAdult, TicketChild, TicketStudent, TicketSenior}

var (
	errNegativeCount = errors.New("ticket counts cannot be negative")
	errNoTickets     = errors.New("at least one ticket is required")
)

// TicketCounts is the per-type breakdown carried by cart items, snapshots
// and bookings.
type TicketCounts struct {
	Adult   int `db:"adult_count" json:"adult"`
	Child   int `db:"child_count" json:"child"`
	Student int `db:"student_count" json:"student"`
	Senior  int `db:"senior_count" json:"senior"`
}

// Total is the number of admitted visitors.
func (t TicketCounts) Total() int {
	return t.Adult + t.Child + t.Student + t.Senior
}

// ByType returns the count for one ticket type.
func (t TicketCounts) ByType(ticketType string) int {
	switch ticketType {
	case TicketAdult:
		return t.Adult
	case TicketChild:
		return t.Child
	case TicketStudent:
		return t.Student
	case TicketSenior:
		return t.Senior
	}
	return 0
}

// Validate rejects negative counts and empty requests.
func (t TicketCounts) Validate() error {
	if t.Adult < 0 || t.Child < 0 || t.Student < 0 || t.Senior < 0 {
		return errNegativeCount
	}
	if t.Total() == 0 {
		return errNoTickets
	}
	return nil
}
