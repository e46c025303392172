// Package inventory owns the time-slot capacity counter.  Nothing else in
// the service writes time_slots.current_bookings; cart, booking and payment
// flows go through Reserve, Release and WithReservation.
package inventory

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

// Store is the persistence contract behind the ledger.  IncrementIfAvailable
// must be a single atomic conditional write: it either adds n without
// pushing current_bookings past capacity - buffer_capacity, or changes
// nothing and returns false.
type Store interface {
	Get(ctx context.Context, slotID uint64) (model.TimeSlot, error)
	IncrementIfAvailable(ctx context.Context, slotID uint64, n int) (bool, error)
	Decrement(ctx context.Context, slotID uint64, n int) error
	ResizeIfFits(ctx context.Context, slotID uint64, capacity, buffer int) (bool, error)
}

// Ledger is the reserve/release API over a Store.
type Ledger struct {
	store Store
	log   *logrus.Entry
}

// NewLedger wraps store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, log: logrus.WithField("component", "inventory")}
}

// Available returns max(0, capacity - current_bookings - buffer_capacity).
// The figure is advisory; only Reserve is authoritative.
func (l *Ledger) Available(ctx context.Context, slotID uint64) (int, error) {
	slot, err := l.store.Get(ctx, slotID)
	if err != nil {
		return 0, err
	}
	return slot.Available(), nil
}

// Reserve adds n tickets to the slot's counter or fails without mutating it.
func (l *Ledger) Reserve(ctx context.Context, slotID uint64, n int) error {
	if n <= 0 {
		return ErrInvalidQuantity
	}
	ok, err := l.store.IncrementIfAvailable(ctx, slotID, n)
	if err != nil {
		return fmt.Errorf("reserve %d on slot %d: %w", n, slotID, err)
	}
	if ok {
		return nil
	}
	// Nothing changed; work out why for the caller.
	slot, err := l.store.Get(ctx, slotID)
	if err != nil {
		return err
	}
	if !slot.Bookable() {
		return ErrSlotInactive
	}
	return ErrCapacityExceeded
}

// Release returns n tickets to the slot, flooring the counter at zero.
// Callers gate it on their own released flag so a reservation is never
// returned twice.
func (l *Ledger) Release(ctx context.Context, slotID uint64, n int) error {
	if n <= 0 {
		return ErrInvalidQuantity
	}
	if err := l.store.Decrement(ctx, slotID, n); err != nil {
		return fmt.Errorf("release %d on slot %d: %w", n, slotID, err)
	}
	return nil
}

// WithReservation reserves n tickets, runs fn, and releases them again if
// fn returns an error or panics.  fn is where the owning cart item or
// booking row is written.
func (l *Ledger) WithReservation(ctx context.Context, slotID uint64, n int, fn func(ctx context.Context) error) (err error) {
	if err := l.Reserve(ctx, slotID, n); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			l.compensate(ctx, slotID, n)
			panic(p)
		}
		if err != nil {
			l.compensate(ctx, slotID, n)
		}
	}()
	return fn(ctx)
}

func (l *Ledger) compensate(ctx context.Context, slotID uint64, n int) {
	if relErr := l.Release(context.WithoutCancel(ctx), slotID, n); relErr != nil {
		l.log.WithFields(logrus.Fields{"slot_id": slotID, "tickets": n}).
			WithError(relErr).Error("compensating release failed")
	}
}

// Resize changes a slot's capacity and buffer, refusing values that would
// leave existing reservations above capacity - buffer.
func (l *Ledger) Resize(ctx context.Context, slotID uint64, capacity, buffer int) error {
	if capacity <= 0 || buffer < 0 || buffer >= capacity {
		return ErrInvalidQuantity
	}
	ok, err := l.store.ResizeIfFits(ctx, slotID, capacity, buffer)
	if err != nil {
		return fmt.Errorf("resize slot %d: %w", slotID, err)
	}
	if ok {
		return nil
	}
	if _, err := l.store.Get(ctx, slotID); err != nil {
		return err
	}
	return ErrCapacityBelowUse
}
