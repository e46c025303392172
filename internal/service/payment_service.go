package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/config"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/inventory"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/payment"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/queue"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/utils"
)

// EventDeduper remembers webhook event ids.  FirstSeen reports true the
// first time an id is offered; Forget undoes that after a failed attempt
// so the provider's retry is processed.
type EventDeduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// PaymentService turns carts into gateway orders and gateway events into
// bookings.
type PaymentService struct {
	tx        TxRunner
	ledger    CapacityLedger
	cart      *CartService
	carts     CartStore
	orders    OrderStore
	bookings  BookingStore
	slots     SlotStore
	gateway   payment.Gateway
	publisher EventPublisher
	deduper   EventDeduper
	currency  string
	holdTTL   time.Duration
	now       clock
	newRef    func() string
	newCode   func() string
	log       *logrus.Entry
}

// PaymentDeps groups PaymentService collaborators.  Publisher and Deduper
// may be nil.
type PaymentDeps struct {
	Tx        TxRunner
	Ledger    CapacityLedger
	Cart      *CartService
	Carts     CartStore
	Orders    OrderStore
	Bookings  BookingStore
	Slots     SlotStore
	Gateway   payment.Gateway
	Publisher EventPublisher
	Deduper   EventDeduper
}

// NewPaymentService wires the checkout and webhook flows.
func NewPaymentService(d PaymentDeps, rp config.RazorpayConfig, policy config.BookingConfig) *PaymentService {
	currency := rp.Currency
	if currency == "" {
		currency = "INR"
	}
	return &PaymentService{
		tx:        d.Tx,
		ledger:    d.Ledger,
		cart:      d.Cart,
		carts:     d.Carts,
		orders:    d.Orders,
		bookings:  d.Bookings,
		slots:     d.Slots,
		gateway:   d.Gateway,
		publisher: d.Publisher,
		deduper:   d.Deduper,
		currency:  currency,
		holdTTL:   policy.OrderHoldTTL,
		now:       utcNow,
		newRef:    utils.NewReferenceCode,
		newCode:   utils.NewTicketCode,
		log:       logrus.WithField("component", "payment"),
	}
}

// Checkout is what the browser needs to open the gateway's checkout.
type Checkout struct {
	PaymentOrderID uint64    `json:"payment_order_id"`
	OrderID        string    `json:"order_id"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	KeyID          string    `json:"key_id"`
	HoldUntil      time.Time `json:"hold_until"`
}

// CreateOrder snapshots the owner's live cart into a payment order,
// registers it with the gateway and extends the items' holds so they
// outlive the payment window.
func (s *PaymentService) CreateOrder(ctx context.Context, owner model.CartOwner, visitor model.Visitor) (Checkout, error) {
	if err := visitor.Validate(); err != nil {
		return Checkout{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	cart, err := s.cart.Get(ctx, owner)
	if err != nil {
		return Checkout{}, err
	}
	if len(cart.Items) == 0 {
		return Checkout{}, ErrEmptyCart
	}
	if cart.Total <= 0 {
		return Checkout{}, fmt.Errorf("%w: cart total is zero; book directly", ErrValidation)
	}

	snapshot := make(model.CartSnapshot, 0, len(cart.Items))
	ids := make([]uint64, 0, len(cart.Items))
	for _, it := range cart.Items {
		snapshot = append(snapshot, model.SnapshotLine{
			CartItemID:  it.ID,
			TimeSlotID:  it.TimeSlotID,
			BookingDate: it.BookingDate.Format("2006-01-02"),
			Tickets:     it.TicketCounts,
			Subtotal:    it.Subtotal,
		})
		ids = append(ids, it.ID)
	}

	receipt := utils.NewReceipt()
	notes := map[string]string{"receipt": receipt, "visitor_email": visitor.Email}
	if owner.UserID != 0 {
		notes["user_id"] = strconv.FormatUint(owner.UserID, 10)
	}
	gwOrder, err := s.gateway.CreateOrder(ctx, cart.Total, s.currency, receipt, notes)
	if err != nil {
		return Checkout{}, err
	}

	order := model.PaymentOrder{
		GatewayOrderID: gwOrder.ID,
		SessionID:      owner.SessionID,
		Amount:         cart.Total,
		Currency:       s.currency,
		CartSnapshot:   snapshot,
		Visitor:        visitor,
	}
	if owner.UserID != 0 {
		uid := owner.UserID
		order.UserID = &uid
	}
	holdUntil := s.now().Add(s.holdTTL)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, &order); err != nil {
			return err
		}
		n, err := s.carts.AttachToOrder(ctx, ids, order.ID, holdUntil)
		if err != nil {
			return err
		}
		if n != len(ids) {
			return fmt.Errorf("%w: cart changed during checkout", repository.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return Checkout{}, err
	}
	s.log.WithFields(logrus.Fields{"order": gwOrder.ID, "amount": cart.Total, "lines": len(snapshot)}).Info("payment order created")
	return Checkout{
		PaymentOrderID: order.ID,
		OrderID:        gwOrder.ID,
		Amount:         cart.Total,
		Currency:       s.currency,
		KeyID:          s.gateway.KeyID(),
		HoldUntil:      holdUntil,
	}, nil
}

// WebhookResult tells the handler what happened, for logging and tests.
type WebhookResult struct {
	Event     string `json:"event"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Ignored   bool   `json:"ignored,omitempty"`
	Bookings  int    `json:"bookings,omitempty"`
	Cancelled int    `json:"cancelled,omitempty"`
	Conflict  bool   `json:"conflict,omitempty"`
}

// HandleWebhook verifies and dispatches one gateway delivery.  eventID is
// the provider's delivery id and may be empty.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (WebhookResult, error) {
	if !s.gateway.VerifyWebhook(body, signature) {
		return WebhookResult{}, ErrInvalidSignature
	}
	ev, err := payment.ParseWebhook(body)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	res := WebhookResult{Event: ev.Event}

	if eventID != "" && s.deduper != nil {
		first, err := s.deduper.FirstSeen(ctx, eventID)
		if err != nil {
			// The database checks below still make replays harmless.
			s.log.WithError(err).Warn("event dedupe unavailable")
		} else if !first {
			res.Duplicate = true
			return res, nil
		}
	}

	err = s.dispatch(ctx, ev, &res)
	switch {
	case errors.Is(err, ErrOrderConflict):
		// Acknowledged: retrying cannot help, the order waits for a refund.
		res.Conflict = true
		return res, nil
	case errors.Is(err, repository.ErrNotFound):
		s.log.WithField("event", ev.Event).Warn("webhook for unknown order or payment")
		res.Ignored = true
		return res, nil
	case err != nil && eventID != "" && s.deduper != nil:
		if ferr := s.deduper.Forget(context.WithoutCancel(ctx), eventID); ferr != nil {
			s.log.WithError(ferr).Warn("event dedupe forget failed")
		}
	}
	return res, err
}

func (s *PaymentService) dispatch(ctx context.Context, ev payment.WebhookEvent, res *WebhookResult) error {
	switch ev.Event {
	case payment.EventPaymentCaptured, payment.EventOrderPaid:
		orderID := ev.GatewayOrderID()
		if orderID == "" {
			return fmt.Errorf("%w: event has no order id", ErrValidation)
		}
		bookings, err := s.ConfirmOrder(ctx, orderID, ev.PaymentID())
		res.Bookings = len(bookings)
		return err
	case payment.EventPaymentFailed:
		orderID := ev.GatewayOrderID()
		if orderID == "" {
			return fmt.Errorf("%w: event has no order id", ErrValidation)
		}
		return s.FailOrder(ctx, orderID, ev.PaymentID())
	case payment.EventRefundProcessed, payment.EventRefundCreated:
		paymentID := ev.PaymentID()
		if paymentID == "" {
			return fmt.Errorf("%w: event has no payment id", ErrValidation)
		}
		ref := ""
		if ev.Refund != nil {
			ref = ev.Refund.Notes["booking_ref"]
		}
		n, err := s.RefundOrder(ctx, paymentID, ref)
		res.Cancelled = n
		return err
	default:
		res.Ignored = true
		return nil
	}
}

// ConfirmOrder materializes the bookings of a paid order.  It is
// idempotent: if the order already has bookings they are returned and
// nothing is written.  Each snapshot line takes over its cart item's
// reservation; a line whose hold was already released reserves again, and
// if that fails the order is marked conflict and ErrOrderConflict returned.
func (s *PaymentService) ConfirmOrder(ctx context.Context, gatewayOrderID, paymentID string) ([]model.Booking, error) {
	var (
		out     []model.Booking
		tickets = map[uint64][]model.Ticket{}
		created bool
		orderPK uint64
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByGatewayIDForUpdate(ctx, gatewayOrderID)
		if err != nil {
			return err
		}
		orderPK = order.ID
		existing, err := s.bookings.ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			out = existing
			return nil
		}
		if order.Status == model.OrderConflict || order.Status == model.OrderRefunded {
			return ErrOrderConflict
		}
		for _, line := range order.CartSnapshot {
			b, ts, err := s.materialize(ctx, order, line)
			if err != nil {
				return err
			}
			out = append(out, b)
			tickets[b.ID] = ts
		}
		created = true
		return s.orders.UpdateStatus(ctx, order.ID, model.OrderPaid, paymentID)
	})
	if err != nil {
		if errors.Is(err, ErrOrderConflict) {
			return nil, err
		}
		if isCapacityErr(err) && orderPK != 0 {
			if uerr := s.orders.UpdateStatus(context.WithoutCancel(ctx), orderPK, model.OrderConflict, paymentID); uerr != nil {
				s.log.WithError(uerr).WithField("order", gatewayOrderID).Error("mark order conflict failed")
			}
			s.log.WithError(err).WithField("order", gatewayOrderID).Error("paid order could not be fulfilled; refund required")
			return nil, fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
		return nil, err
	}
	if created {
		s.log.WithFields(logrus.Fields{"order": gatewayOrderID, "bookings": len(out)}).Info("order confirmed")
		for _, b := range out {
			s.publish(ctx, b, tickets[b.ID])
		}
	}
	return out, nil
}

func (s *PaymentService) materialize(ctx context.Context, order model.PaymentOrder, line model.SnapshotLine) (model.Booking, []model.Ticket, error) {
	n := line.Tickets.Total()
	claimed, err := s.carts.Settle(ctx, line.CartItemID)
	if err != nil {
		return model.Booking{}, nil, err
	}
	if claimed {
		if err := s.carts.Delete(ctx, line.CartItemID); err != nil {
			return model.Booking{}, nil, err
		}
	} else if err := s.ledger.Reserve(ctx, line.TimeSlotID, n); err != nil {
		return model.Booking{}, nil, fmt.Errorf("slot %d: %w", line.TimeSlotID, err)
	}

	date, err := time.Parse("2006-01-02", line.BookingDate)
	if err != nil {
		return model.Booking{}, nil, fmt.Errorf("snapshot booking date: %w", err)
	}
	orderID := order.ID
	b := model.Booking{
		ReferenceCode:  s.newRef(),
		PaymentOrderID: &orderID,
		UserID:         order.UserID,
		VisitorName:    order.Visitor.Name,
		VisitorEmail:   order.Visitor.Email,
		VisitorPhone:   order.Visitor.Phone,
		TimeSlotID:     line.TimeSlotID,
		BookingDate:    date,
		TicketCounts:   line.Tickets,
		TotalTickets:   n,
		TotalAmount:    line.Subtotal,
		Status:         model.BookingConfirmed,
		PaymentStatus:  model.PaymentPaid,
	}
	if err := s.bookings.Create(ctx, &b); err != nil {
		return model.Booking{}, nil, err
	}
	ts := newTickets(b, s.newCode)
	if err := s.bookings.CreateTickets(ctx, ts); err != nil {
		return model.Booking{}, nil, err
	}
	return b, ts, nil
}

// FailOrder records a failed payment attempt.  Paid orders are left alone;
// the provider reports failed attempts that precede a successful one.
func (s *PaymentService) FailOrder(ctx context.Context, gatewayOrderID, paymentID string) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByGatewayIDForUpdate(ctx, gatewayOrderID)
		if err != nil {
			return err
		}
		if order.Status != model.OrderCreated {
			return nil
		}
		return s.orders.UpdateStatus(ctx, order.ID, model.OrderFailed, paymentID)
	})
}

// RefundOrder cancels the bookings paid by paymentID, or only the one
// named by bookingRef, releasing each booking's tickets exactly once.  It
// reports how many bookings this call cancelled.
func (s *PaymentService) RefundOrder(ctx context.Context, paymentID, bookingRef string) (int, error) {
	cancelled := 0
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.GetByPaymentIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		list, err := s.bookings.ListByOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		open := 0
		for _, b := range list {
			if bookingRef != "" && b.ReferenceCode != bookingRef {
				if b.ReleasedAt == nil {
					open++
				}
				continue
			}
			won, err := releaseBooking(ctx, s.bookings, s.ledger, b, model.PaymentRefunded)
			if err != nil {
				return err
			}
			if won {
				cancelled++
			} else if b.PaymentStatus != model.PaymentRefunded {
				if err := s.bookings.SetPaymentStatus(ctx, b.ID, model.PaymentRefunded); err != nil {
					return err
				}
			}
		}
		if open == 0 && order.Status != model.OrderRefunded {
			return s.orders.UpdateStatus(ctx, order.ID, model.OrderRefunded, "")
		}
		return nil
	})
	if err == nil && cancelled > 0 {
		s.log.WithFields(logrus.Fields{"payment": paymentID, "cancelled": cancelled}).Info("refund applied")
	}
	return cancelled, err
}

func (s *PaymentService) publish(ctx context.Context, b model.Booking, tickets []model.Ticket) {
	if s.publisher == nil {
		return
	}
	ev := confirmedEvent(b, tickets, s.now())
	if slot, err := s.slots.GetByID(ctx, b.TimeSlotID); err == nil {
		ev.StartTime, ev.EndTime = slot.StartTime, slot.EndTime
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		s.log.WithError(err).WithField("reference", b.ReferenceCode).Warn("booking event not published")
	}
}

// releaseBooking cancels b and returns its tickets to the slot if this
// call is the transition that sets released_at.
func releaseBooking(ctx context.Context, bookings BookingStore, ledger CapacityLedger, b model.Booking, paymentStatus string) (bool, error) {
	won, err := bookings.MarkReleased(ctx, b.ID, paymentStatus)
	if err != nil || !won {
		return false, err
	}
	if b.TotalTickets > 0 {
		if err := ledger.Release(ctx, b.TimeSlotID, b.TotalTickets); err != nil {
			return false, err
		}
	}
	return true, bookings.VoidTickets(ctx, b.ID)
}

func confirmedEvent(b model.Booking, tickets []model.Ticket, at time.Time) queue.BookingConfirmedEvent {
	ev := queue.BookingConfirmedEvent{
		BookingID:     b.ID,
		ReferenceCode: b.ReferenceCode,
		VisitorName:   b.VisitorName,
		VisitorEmail:  b.VisitorEmail,
		TimeSlotID:    b.TimeSlotID,
		BookingDate:   b.BookingDate.Format("2006-01-02"),
		TotalTickets:  b.TotalTickets,
		TotalAmount:   b.TotalAmount,
		ConfirmedAt:   at.Format(time.RFC3339),
	}
	if b.PaymentOrderID != nil {
		ev.PaymentOrderID = *b.PaymentOrderID
	}
	if b.UserID != nil {
		ev.UserID = *b.UserID
	}
	for _, t := range tickets {
		ev.TicketCodes = append(ev.TicketCodes, t.TicketCode)
	}
	return ev
}

func isCapacityErr(err error) bool {
	return errors.Is(err, inventory.ErrCapacityExceeded) ||
		errors.Is(err, inventory.ErrSlotInactive) ||
		errors.Is(err, inventory.ErrSlotNotFound)
}
