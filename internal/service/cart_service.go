package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/config"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/inventory"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
)

// CartService manages cart holds.  Every live cart item is backed by a
// reservation on its slot; the item's settled_at flag decides who gives
// that reservation back.
type CartService struct {
	tx     TxRunner
	ledger CapacityLedger
	carts  CartStore
	slots  SlotStore
	prices PriceLister
	policy config.BookingConfig
	now    clock
	log    *logrus.Entry
}

// NewCartService wires the cart flows.
func NewCartService(tx TxRunner, ledger CapacityLedger, carts CartStore, slots SlotStore, prices PriceLister, policy config.BookingConfig) *CartService {
	return &CartService{
		tx:     tx,
		ledger: ledger,
		carts:  carts,
		slots:  slots,
		prices: prices,
		policy: policy,
		now:    utcNow,
		log:    logrus.WithField("component", "cart"),
	}
}

// AddItemInput is one line of an add or sync request.
type AddItemInput struct {
	TimeSlotID  uint64             `json:"time_slot_id"`
	BookingDate string             `json:"booking_date,omitempty"`
	Tickets     model.TicketCounts `json:"tickets"`
}

// Cart is the read model returned to clients.
type Cart struct {
	Items        []model.CartItem `json:"items"`
	TotalTickets int              `json:"total_tickets"`
	Total        int64            `json:"total"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
}

// Add reserves the requested tickets and records the cart item.  The slot
// counter and the row are written in one transaction, and the reservation
// is released again if the insert fails.
func (s *CartService) Add(ctx context.Context, owner model.CartOwner, in AddItemInput) (model.CartItem, error) {
	if !owner.Valid() {
		return model.CartItem{}, fmt.Errorf("%w: cart owner is required", ErrValidation)
	}
	if err := s.releaseExpired(ctx, owner); err != nil {
		return model.CartItem{}, err
	}
	var item model.CartItem
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.addOne(ctx, owner, in)
		return err
	})
	return item, err
}

func (s *CartService) addOne(ctx context.Context, owner model.CartOwner, in AddItemInput) (model.CartItem, error) {
	if err := validateTickets(in.Tickets, s.policy.MaxTicketsPerRow); err != nil {
		return model.CartItem{}, err
	}
	slot, err := bookableSlot(ctx, s.slots, in.TimeSlotID)
	if err != nil {
		return model.CartItem{}, err
	}
	if in.BookingDate != "" && in.BookingDate != slot.SlotDate.Format("2006-01-02") {
		return model.CartItem{}, fmt.Errorf("%w: booking_date does not match the slot", ErrValidation)
	}
	subtotal, err := s.quote(ctx, slot, in.Tickets)
	if err != nil {
		return model.CartItem{}, err
	}

	item := model.CartItem{
		SessionID:    owner.SessionID,
		TimeSlotID:   slot.ID,
		BookingDate:  *slot.SlotDate,
		TicketCounts: in.Tickets,
		Subtotal:     subtotal,
		ExpiresAt:    s.now().Add(s.policy.CartTTL),
	}
	if owner.UserID != 0 {
		uid := owner.UserID
		item.UserID = &uid
	}
	err = s.ledger.WithReservation(ctx, slot.ID, in.Tickets.Total(), func(ctx context.Context) error {
		return s.carts.Create(ctx, &item)
	})
	return item, err
}

// Sync replaces the owner's cart with items.  Old holds are released and
// new ones reserved in one transaction; if any new line cannot be reserved
// nothing changes.
func (s *CartService) Sync(ctx context.Context, owner model.CartOwner, items []AddItemInput) (Cart, error) {
	if !owner.Valid() {
		return Cart{}, fmt.Errorf("%w: cart owner is required", ErrValidation)
	}
	var out []model.CartItem
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.carts.ListActive(ctx, owner)
		if err != nil {
			return err
		}
		for _, it := range current {
			if err := s.releaseItem(ctx, it); err != nil {
				return err
			}
		}
		out = make([]model.CartItem, 0, len(items))
		for i, in := range items {
			item, err := s.addOne(ctx, owner, in)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return summarize(out), nil
}

// Get releases the owner's lapsed holds and returns what is left.
func (s *CartService) Get(ctx context.Context, owner model.CartOwner) (Cart, error) {
	if !owner.Valid() {
		return Cart{Items: []model.CartItem{}}, nil
	}
	if err := s.releaseExpired(ctx, owner); err != nil {
		return Cart{}, err
	}
	items, err := s.carts.ListActive(ctx, owner)
	if err != nil {
		return Cart{}, err
	}
	return summarize(items), nil
}

// UpdateItem sets new ticket counts on an item and moves only the
// difference through the ledger.  All-zero counts remove the item.
func (s *CartService) UpdateItem(ctx context.Context, owner model.CartOwner, itemID uint64, tickets model.TicketCounts) (model.CartItem, error) {
	if tickets.Total() == 0 {
		return model.CartItem{}, s.Remove(ctx, owner, itemID)
	}
	if err := validateTickets(tickets, s.policy.MaxTicketsPerRow); err != nil {
		return model.CartItem{}, err
	}
	if err := s.releaseExpired(ctx, owner); err != nil {
		return model.CartItem{}, err
	}
	var item model.CartItem
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.carts.GetForOwner(ctx, itemID, owner)
		if err != nil {
			return err
		}
		if item.PaymentOrderID != nil {
			return fmt.Errorf("%w: item is part of a pending checkout", repository.ErrConflict)
		}
		slot, err := s.slots.GetByID(ctx, item.TimeSlotID)
		if err != nil {
			return err
		}
		subtotal, err := s.quote(ctx, slot, tickets)
		if err != nil {
			return err
		}
		if tickets == item.TicketCounts && subtotal == item.Subtotal {
			return nil
		}
		delta := tickets.Total() - item.TicketCounts.Total()
		item.TicketCounts = tickets
		item.Subtotal = subtotal
		switch {
		case delta > 0:
			return s.ledger.WithReservation(ctx, item.TimeSlotID, delta, func(ctx context.Context) error {
				return s.carts.UpdateCounts(ctx, item)
			})
		case delta < 0:
			if err := s.carts.UpdateCounts(ctx, item); err != nil {
				return err
			}
			return s.ledger.Release(ctx, item.TimeSlotID, -delta)
		default:
			return s.carts.UpdateCounts(ctx, item)
		}
	})
	return item, err
}

// Remove releases and deletes one item.
func (s *CartService) Remove(ctx context.Context, owner model.CartOwner, itemID uint64) error {
	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		item, err := s.carts.GetForOwner(ctx, itemID, owner)
		if err != nil {
			return err
		}
		return s.releaseItem(ctx, item)
	})
}

// Clear releases and deletes every item of the owner's cart.
func (s *CartService) Clear(ctx context.Context, owner model.CartOwner) (int, error) {
	n := 0
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		items, err := s.carts.ListActive(ctx, owner)
		if err != nil {
			return err
		}
		for _, it := range items {
			if err := s.releaseItem(ctx, it); err != nil {
				return err
			}
		}
		n = len(items)
		return nil
	})
	return n, err
}

// ReleaseExpired is the background sweep: it releases up to limit lapsed
// holds across all carts, each in its own transaction, and reports how many
// it released.
func (s *CartService) ReleaseExpired(ctx context.Context, limit int) (int, error) {
	items, err := s.carts.ListExpired(ctx, model.CartOwner{}, s.now(), limit)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		if err := s.tx.WithTx(ctx, func(ctx context.Context) error { return s.releaseItem(ctx, it) }); err != nil {
			s.log.WithError(err).WithField("cart_item_id", it.ID).Error("release expired item failed")
			continue
		}
		released++
	}
	return released, nil
}

// PurgeSettled deletes settled rows older than age.
func (s *CartService) PurgeSettled(ctx context.Context, age time.Duration) (int64, error) {
	return s.carts.DeleteSettledBefore(ctx, s.now().Add(-age))
}

func (s *CartService) releaseExpired(ctx context.Context, owner model.CartOwner) error {
	items, err := s.carts.ListExpired(ctx, owner, s.now(), 100)
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := s.tx.WithTx(ctx, func(ctx context.Context) error { return s.releaseItem(ctx, it) }); err != nil {
			return err
		}
	}
	return nil
}

// releaseItem hands an item's reservation back to its slot if this call is
// the one that settles it, then deletes the row.
func (s *CartService) releaseItem(ctx context.Context, it model.CartItem) error {
	won, err := s.carts.Settle(ctx, it.ID)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	if err := s.ledger.Release(ctx, it.TimeSlotID, it.TicketCounts.Total()); err != nil {
		return err
	}
	return s.carts.Delete(ctx, it.ID)
}

func (s *CartService) quote(ctx context.Context, slot model.TimeSlot, tickets model.TicketCounts) (int64, error) {
	prices, err := s.prices.ListFor(ctx, slot.Owner())
	if err != nil {
		return 0, err
	}
	return Quote(prices, tickets)
}

func summarize(items []model.CartItem) Cart {
	c := Cart{Items: items}
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	for i := range items {
		c.TotalTickets += items[i].TicketCounts.Total()
		c.Total += items[i].Subtotal
		if c.ExpiresAt == nil || items[i].ExpiresAt.Before(*c.ExpiresAt) {
			exp := items[i].ExpiresAt
			c.ExpiresAt = &exp
		}
	}
	return c
}

// bookableSlot loads a slot and rejects templates and inactive slots
// before any write is attempted.
func bookableSlot(ctx context.Context, slots SlotStore, id uint64) (model.TimeSlot, error) {
	slot, err := slots.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return slot, inventory.ErrSlotNotFound
	}
	if err != nil {
		return slot, err
	}
	if !slot.Bookable() {
		return slot, inventory.ErrSlotInactive
	}
	return slot, nil
}
