package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/config"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/payment"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/utils"
)

// BookingService covers direct bookings, lookups, cancellation, admin
// refunds and gate verification.
type BookingService struct {
	tx        TxRunner
	ledger    CapacityLedger
	bookings  BookingStore
	tickets   TicketStore
	orders    OrderStore
	slots     SlotStore
	prices    PriceLister
	gateway   payment.Gateway
	publisher EventPublisher
	roles     RoleSource
	maxPerRow int
	now       clock
	newRef    func() string
	newCode   func() string
	log       *logrus.Entry
}

// BookingDeps groups BookingService collaborators.  Gateway and Publisher
// may be nil; refunds of paid orders then fail.  Without Roles the role
// claim of the access token is trusted as is.
type BookingDeps struct {
	Tx        TxRunner
	Ledger    CapacityLedger
	Bookings  BookingStore
	Tickets   TicketStore
	Orders    OrderStore
	Slots     SlotStore
	Prices    PriceLister
	Gateway   payment.Gateway
	Publisher EventPublisher
	Roles     RoleSource
}

func NewBookingService(d BookingDeps, policy config.BookingConfig) *BookingService {
	return &BookingService{
		tx:        d.Tx,
		ledger:    d.Ledger,
		bookings:  d.Bookings,
		tickets:   d.Tickets,
		orders:    d.Orders,
		slots:     d.Slots,
		prices:    d.Prices,
		gateway:   d.Gateway,
		publisher: d.Publisher,
		roles:     d.Roles,
		maxPerRow: policy.MaxTicketsPerRow,
		now:       utcNow,
		newRef:    utils.NewReferenceCode,
		newCode:   utils.NewTicketCode,
		log:       logrus.WithField("component", "booking"),
	}
}

// DirectBookingInput is the body of a direct booking request.
type DirectBookingInput struct {
	TimeSlotID uint64             `json:"time_slot_id"`
	Tickets    model.TicketCounts `json:"tickets"`
	Visitor    model.Visitor      `json:"visitor"`
}

// BookingDetail is a booking with its tickets.
type BookingDetail struct {
	model.Booking
	Tickets []model.Ticket `json:"tickets"`
}

// CreateDirect books without the cart.  Free admissions are open to
// everyone; a priced booking is only accepted from an admin (walk-in) and
// starts with payment_status pending.
func (s *BookingService) CreateDirect(ctx context.Context, caller Caller, in DirectBookingInput) (BookingDetail, error) {
	if err := validateTickets(in.Tickets, s.maxPerRow); err != nil {
		return BookingDetail{}, err
	}
	if err := in.Visitor.Validate(); err != nil {
		return BookingDetail{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	slot, err := bookableSlot(ctx, s.slots, in.TimeSlotID)
	if err != nil {
		return BookingDetail{}, err
	}
	prices, err := s.prices.ListFor(ctx, slot.Owner())
	if err != nil {
		return BookingDetail{}, err
	}
	total, err := Quote(prices, in.Tickets)
	if err != nil {
		return BookingDetail{}, err
	}
	if total > 0 {
		if caller, err = s.currentRole(ctx, caller); err != nil {
			return BookingDetail{}, err
		}
		if !caller.IsAdmin() {
			return BookingDetail{}, ErrPaymentRequired
		}
	}

	b := model.Booking{
		ReferenceCode: s.newRef(),
		VisitorName:   in.Visitor.Name,
		VisitorEmail:  in.Visitor.Email,
		VisitorPhone:  in.Visitor.Phone,
		TimeSlotID:    slot.ID,
		BookingDate:   *slot.SlotDate,
		TicketCounts:  in.Tickets,
		TotalTickets:  in.Tickets.Total(),
		TotalAmount:   total,
		Status:        model.BookingConfirmed,
		PaymentStatus: model.PaymentPaid,
	}
	if total > 0 {
		b.PaymentStatus = model.PaymentPending
	}
	if caller.UserID != 0 {
		uid := caller.UserID
		b.UserID = &uid
	}
	var tickets []model.Ticket
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.ledger.WithReservation(ctx, slot.ID, b.TotalTickets, func(ctx context.Context) error {
			if err := s.bookings.Create(ctx, &b); err != nil {
				return err
			}
			tickets = newTickets(b, s.newCode)
			return s.bookings.CreateTickets(ctx, tickets)
		})
	})
	if err != nil {
		return BookingDetail{}, err
	}
	if s.publisher != nil {
		ev := confirmedEvent(b, tickets, s.now())
		ev.StartTime, ev.EndTime = slot.StartTime, slot.EndTime
		if perr := s.publisher.PublishBookingConfirmed(ctx, ev); perr != nil {
			s.log.WithError(perr).WithField("reference", b.ReferenceCode).Warn("booking event not published")
		}
	}
	return BookingDetail{Booking: b, Tickets: tickets}, nil
}

// GetByReference returns a booking to its owner, to whoever knows the
// visitor email on it, or to an admin.  Everyone else gets ErrNotFound so
// references cannot be probed.
func (s *BookingService) GetByReference(ctx context.Context, caller Caller, ref, email string) (BookingDetail, error) {
	b, err := s.bookings.GetByReference(ctx, strings.ToUpper(strings.TrimSpace(ref)))
	if err != nil {
		return BookingDetail{}, err
	}
	owner := b.UserID != nil && caller.UserID != 0 && *b.UserID == caller.UserID
	byEmail := email != "" && strings.EqualFold(strings.TrimSpace(email), b.VisitorEmail)
	if !owner && !byEmail {
		if caller, err = s.currentRole(ctx, caller); err != nil {
			return BookingDetail{}, err
		}
		if !caller.IsAdmin() {
			return BookingDetail{}, repository.ErrNotFound
		}
	}
	return s.detail(ctx, b)
}

// currentRole replaces the token's role claim with the stored role, so a
// demotion applies before the token expires.  A deactivated account keeps
// no role.
func (s *BookingService) currentRole(ctx context.Context, caller Caller) (Caller, error) {
	if s.roles == nil || caller.UserID == 0 {
		return caller, nil
	}
	role, err := s.roles.RoleOf(ctx, caller.UserID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		caller.Role = ""
	case err != nil:
		return Caller{}, err
	default:
		caller.Role = role
	}
	return caller, nil
}

// Get is the admin lookup by id.
func (s *BookingService) Get(ctx context.Context, id uint64) (BookingDetail, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return BookingDetail{}, err
	}
	return s.detail(ctx, b)
}

func (s *BookingService) detail(ctx context.Context, b model.Booking) (BookingDetail, error) {
	ts, err := s.bookings.ListTickets(ctx, b.ID)
	if err != nil {
		return BookingDetail{}, err
	}
	return BookingDetail{Booking: b, Tickets: ts}, nil
}

// MyBookings lists the caller's bookings, newest first.
func (s *BookingService) MyBookings(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// List is the admin listing.
func (s *BookingService) List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error) {
	return s.bookings.List(ctx, f)
}

// Cancel cancels a booking and returns its tickets to the slot.
// Cancelling twice is a no-op that returns the booking unchanged.
func (s *BookingService) Cancel(ctx context.Context, id uint64) (model.Booking, error) {
	var out model.Booking
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := releaseBooking(ctx, s.bookings, s.ledger, b, ""); err != nil {
			return err
		}
		out, err = s.bookings.GetByID(ctx, id)
		return err
	})
	return out, err
}

// Refund refunds a paid booking.  The booking row stays locked while the
// gateway refund is requested, so concurrent refunds of one booking reach
// the gateway once; the later caller finds it refunded.  The provider's
// refund webhook finds the booking already released.
func (s *BookingService) Refund(ctx context.Context, id uint64) (model.Booking, error) {
	var out model.Booking
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		b, err := s.bookings.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if b.PaymentStatus == model.PaymentRefunded {
			out = b
			return nil
		}
		if b.PaymentStatus != model.PaymentPaid {
			return fmt.Errorf("%w: booking is not paid", ErrValidation)
		}
		if err := s.refundAtGateway(ctx, b); err != nil {
			return err
		}
		won, err := releaseBooking(ctx, s.bookings, s.ledger, b, model.PaymentRefunded)
		if err != nil {
			return err
		}
		if !won {
			// Cancelled earlier without a refund; record the refund now.
			if err := s.bookings.SetPaymentStatus(ctx, b.ID, model.PaymentRefunded); err != nil {
				return err
			}
		}
		out, err = s.bookings.GetByID(ctx, id)
		return err
	})
	return out, err
}

// refundAtGateway refunds the captured payment behind b, tagged with the
// booking reference.  Walk-in and free bookings have nothing to refund.
func (s *BookingService) refundAtGateway(ctx context.Context, b model.Booking) error {
	if b.PaymentOrderID == nil || b.TotalAmount == 0 {
		return nil
	}
	if s.gateway == nil {
		return fmt.Errorf("%w: no gateway configured", payment.ErrGateway)
	}
	order, err := s.orders.GetByID(ctx, *b.PaymentOrderID)
	if err != nil {
		return err
	}
	if order.GatewayPaymentID == nil || *order.GatewayPaymentID == "" {
		return fmt.Errorf("%w: order has no captured payment", ErrValidation)
	}
	refundID, err := s.gateway.Refund(ctx, *order.GatewayPaymentID, b.TotalAmount,
		map[string]string{"booking_ref": b.ReferenceCode})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"reference": b.ReferenceCode, "refund": refundID}).Info("refund requested")
	return nil
}

// VerifyTicket admits a ticket at the gate: valid becomes used.  A used
// ticket is returned with ErrTicketUsed so the gate can show when it was
// scanned; a void ticket yields ErrTicketVoid.
func (s *BookingService) VerifyTicket(ctx context.Context, code string) (model.Ticket, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.Ticket{}, fmt.Errorf("%w: ticket code is required", ErrValidation)
	}
	ok, err := s.tickets.MarkUsed(ctx, code)
	if err != nil {
		return model.Ticket{}, err
	}
	t, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		return model.Ticket{}, err
	}
	if ok {
		return t, nil
	}
	switch t.Status {
	case model.TicketUsed:
		return t, ErrTicketUsed
	case model.TicketVoid:
		return t, ErrTicketVoid
	}
	return t, errors.New("ticket state changed during verification")
}
