// Package service holds the booking flows that span several tables: cart
// holds, checkout, the payment webhook bridge, direct bookings, refunds,
// ticket verification, slot planning and the dashboard.  Every change to a
// slot's counter goes through a CapacityLedger.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/queue"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
)

var (
	// ErrValidation marks bad input.  Handlers map it to 400.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyCart is returned by checkout when the owner has no live items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrPaymentRequired rejects a direct booking with a non-zero total from
	// a caller who is not an admin.
	ErrPaymentRequired = errors.New("payment required")
	// ErrInvalidSignature is returned for webhooks that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrTicketUsed is returned when a ticket is scanned a second time.
	ErrTicketUsed = errors.New("ticket already used")
	// ErrTicketVoid is returned when a cancelled booking's ticket is scanned.
	ErrTicketVoid = errors.New("ticket is void")
	// ErrOrderConflict means payment arrived for an order whose hold lapsed
	// and whose slot has no capacity left; it needs a manual refund.
	ErrOrderConflict = errors.New("order could not be fulfilled")
)

// TxRunner runs fn in one database transaction carried by its context.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CapacityLedger is the reserve/release API of the inventory package.
type CapacityLedger interface {
	Available(ctx context.Context, slotID uint64) (int, error)
	Reserve(ctx context.Context, slotID uint64, n int) error
	Release(ctx context.Context, slotID uint64, n int) error
	WithReservation(ctx context.Context, slotID uint64, n int, fn func(ctx context.Context) error) error
	Resize(ctx context.Context, slotID uint64, capacity, buffer int) error
}

// SlotStore reads and writes slot schedules.  It never touches the counter.
type SlotStore interface {
	GetByID(ctx context.Context, id uint64) (model.TimeSlot, error)
	Create(ctx context.Context, s *model.TimeSlot) error
	CreateBulk(ctx context.Context, slots []model.TimeSlot) (int, error)
	List(ctx context.Context, f repository.SlotFilter) ([]model.TimeSlot, error)
	UpdateTimes(ctx context.Context, id uint64, start, end string) error
}

// PriceLister returns the price list of an exhibition or show.
type PriceLister interface {
	ListFor(ctx context.Context, owner model.Owner) ([]model.Pricing, error)
}

// CartStore is the persistence behind CartService.
type CartStore interface {
	Create(ctx context.Context, item *model.CartItem) error
	ListActive(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error)
	GetForOwner(ctx context.Context, id uint64, owner model.CartOwner) (model.CartItem, error)
	ListExpired(ctx context.Context, owner model.CartOwner, now time.Time, limit int) ([]model.CartItem, error)
	Settle(ctx context.Context, id uint64) (bool, error)
	Delete(ctx context.Context, id uint64) error
	UpdateCounts(ctx context.Context, item model.CartItem) error
	AttachToOrder(ctx context.Context, ids []uint64, orderID uint64, expiresAt time.Time) (int, error)
	DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OrderStore persists payment orders.
type OrderStore interface {
	Create(ctx context.Context, o *model.PaymentOrder) error
	GetByGatewayIDForUpdate(ctx context.Context, gatewayOrderID string) (model.PaymentOrder, error)
	GetByPaymentIDForUpdate(ctx context.Context, paymentID string) (model.PaymentOrder, error)
	GetByID(ctx context.Context, id uint64) (model.PaymentOrder, error)
	UpdateStatus(ctx context.Context, id uint64, status, paymentID string) error
}

// BookingStore persists bookings and their tickets.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	CreateTickets(ctx context.Context, tickets []model.Ticket) error
	ListByOrder(ctx context.Context, orderID uint64) ([]model.Booking, error)
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	GetByIDForUpdate(ctx context.Context, id uint64) (model.Booking, error)
	GetByReference(ctx context.Context, ref string) (model.Booking, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
	List(ctx context.Context, f repository.BookingFilter) ([]model.Booking, error)
	MarkReleased(ctx context.Context, id uint64, paymentStatus string) (bool, error)
	SetPaymentStatus(ctx context.Context, id uint64, paymentStatus string) error
	VoidTickets(ctx context.Context, bookingID uint64) error
	ListTickets(ctx context.Context, bookingID uint64) ([]model.Ticket, error)
}

// TicketStore is the gate-side view of tickets.
type TicketStore interface {
	MarkUsed(ctx context.Context, code string) (bool, error)
	GetByCode(ctx context.Context, code string) (model.Ticket, error)
}

// EventPublisher delivers booking events to the broker.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// Caller is the authenticated principal behind a request.  UserID is zero
// for guests.
type Caller struct {
	UserID uint64
	Role   string
}

// IsAdmin reports whether the caller may use back-office operations.
func (c Caller) IsAdmin() bool { return model.IsAdmin(c.Role) }

// RoleSource returns the stored role of an active user.
type RoleSource interface {
	RoleOf(ctx context.Context, userID uint64) (string, error)
}

type clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }
