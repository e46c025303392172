package service

import (
	"fmt"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

// Quote prices a ticket breakdown against a price list.  Requesting a type
// the list does not carry is a validation error; a type priced at zero is
// free admission.
func Quote(prices []model.Pricing, tickets model.TicketCounts) (int64, error) {
	byType := make(map[string]int64, len(prices))
	for _, p := range prices {
		byType[p.TicketType] = p.Price
	}
	var total int64
	for _, tt := range model.TicketTypes {
		n := tickets.ByType(tt)
		if n == 0 {
			continue
		}
		price, ok := byType[tt]
		if !ok {
			return 0, fmt.Errorf("%w: %s tickets are not sold here", ErrValidation, tt)
		}
		total += price * int64(n)
	}
	return total, nil
}

// validateTickets applies the per-item limit on top of the model checks.
func validateTickets(t model.TicketCounts, maxPerItem int) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if maxPerItem > 0 && t.Total() > maxPerItem {
		return fmt.Errorf("%w: at most %d tickets per slot", ErrValidation, maxPerItem)
	}
	return nil
}

// newTickets expands a booking into one valid ticket per admitted visitor.
func newTickets(b model.Booking, code func() string) []model.Ticket {
	out := make([]model.Ticket, 0, b.TicketCounts.Total())
	for _, tt := range model.TicketTypes {
		for i := 0; i < b.TicketCounts.ByType(tt); i++ {
			out = append(out, model.Ticket{
				BookingID:  b.ID,
				TicketCode: code(),
				TicketType: tt,
				Status:     model.TicketValid,
			})
		}
	}
	return out
}
