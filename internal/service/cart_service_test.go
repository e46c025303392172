package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/inventory"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
)

var guest = model.CartOwner{SessionID: "sess-1"}

func adults(n int) model.TicketCounts { return model.TicketCounts{Adult: n} }

func TestCartAddReservesAndPrices(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()

	item, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: model.TicketCounts{Adult: 2, Child: 1}})
	require.NoError(t, err)

	assert.Equal(t, 3, f.slots.current(1))
	assert.Equal(t, int64(120000), item.Subtotal)
	assert.Equal(t, f.now.Add(15*time.Minute), item.ExpiresAt)
	assert.True(t, item.BookingDate.Equal(testDate))
}

func TestCartAddRejections(t *testing.T) {
	template := dated(3, 10, 0)
	template.SlotDate = nil
	f := newFixture(dated(1, 10, 2), dated(2, 10, 0), template)
	ctx := context.Background()

	inactive := f.slots.slots[2]
	inactive.IsActive = false

	cases := []struct {
		name string
		in   AddItemInput
		want error
	}{
		{"over capacity minus buffer", AddItemInput{TimeSlotID: 1, Tickets: adults(9)}, inventory.ErrCapacityExceeded},
		{"unknown slot", AddItemInput{TimeSlotID: 99, Tickets: adults(1)}, inventory.ErrSlotNotFound},
		{"inactive slot", AddItemInput{TimeSlotID: 2, Tickets: adults(1)}, inventory.ErrSlotInactive},
		{"weekday template", AddItemInput{TimeSlotID: 3, Tickets: adults(1)}, inventory.ErrSlotInactive},
		{"no tickets", AddItemInput{TimeSlotID: 1}, ErrValidation},
		{"too many per item", AddItemInput{TimeSlotID: 1, Tickets: adults(21)}, ErrValidation},
		{"date mismatch", AddItemInput{TimeSlotID: 1, BookingDate: "2026-11-03", Tickets: adults(1)}, ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.cart.Add(ctx, guest, tc.in)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, f.slots.current(1))
			assert.Equal(t, 0, f.carts.count())
		})
	}

	_, err := f.cart.Add(ctx, model.CartOwner{}, AddItemInput{TimeSlotID: 1, Tickets: adults(1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCartAddExactlyRemaining(t *testing.T) {
	f := newFixture(dated(1, 10, 2))
	ctx := context.Background()

	_, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(8)})
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(1)})
	assert.ErrorIs(t, err, inventory.ErrCapacityExceeded)
	assert.Equal(t, 8, f.slots.current(1))
}

func TestCartAddCompensatesWhenInsertFails(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	f.carts.failCreate = errors.New("disk full")

	_, err := f.cart.Add(context.Background(), guest, AddItemInput{TimeSlotID: 1, Tickets: adults(4)})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 0, f.slots.current(1))
}

func TestCartLazyExpiryReleasesOnRead(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()

	_, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(3)})
	require.NoError(t, err)

	f.now = f.now.Add(14 * time.Minute)
	cart, err := f.cart.Get(ctx, guest)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Equal(t, 3, f.slots.current(1))

	f.now = f.now.Add(time.Minute)
	cart, err = f.cart.Get(ctx, guest)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Nil(t, cart.ExpiresAt)
	assert.Equal(t, 0, f.slots.current(1))
}

func TestCartSweepReleasesAcrossOwners(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	ctx := context.Background()
	other := model.CartOwner{UserID: 7}

	_, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(2)})
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, other, AddItemInput{TimeSlotID: 2, Tickets: adults(5)})
	require.NoError(t, err)

	n, err := f.cart.ReleaseExpired(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = f.now.Add(16 * time.Minute)
	n, err = f.cart.ReleaseExpired(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, f.slots.current(1))
	assert.Equal(t, 0, f.slots.current(2))

	// Nothing left to release the second time round.
	n, err = f.cart.ReleaseExpired(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCartReleaseItemOnlyOnce(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()

	item, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(3)})
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, model.CartOwner{SessionID: "sess-2"}, AddItemInput{TimeSlotID: 1, Tickets: adults(2)})
	require.NoError(t, err)

	require.NoError(t, f.cart.releaseItem(ctx, item))
	require.NoError(t, f.cart.releaseItem(ctx, item))
	assert.Equal(t, 2, f.slots.current(1))
}

func TestCartUpdateItemMovesDelta(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()

	item, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(3)})
	require.NoError(t, err)

	updated, err := f.cart.UpdateItem(ctx, guest, item.ID, model.TicketCounts{Adult: 3, Student: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, f.slots.current(1))
	assert.Equal(t, int64(210000), updated.Subtotal)

	_, err = f.cart.UpdateItem(ctx, guest, item.ID, adults(1))
	require.NoError(t, err)
	assert.Equal(t, 1, f.slots.current(1))

	_, err = f.cart.UpdateItem(ctx, guest, item.ID, adults(11))
	assert.ErrorIs(t, err, inventory.ErrCapacityExceeded)
	assert.Equal(t, 1, f.slots.current(1))

	_, err = f.cart.UpdateItem(ctx, guest, item.ID, model.TicketCounts{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.slots.current(1))
}

func TestCartUpdateItemSameCounts(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()

	item, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(2)})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := f.cart.UpdateItem(ctx, guest, item.ID, adults(2))
		require.NoError(t, err)
		assert.Equal(t, item.Subtotal, got.Subtotal)
	}
	assert.Zero(t, f.carts.rewrites)
	assert.Equal(t, 2, f.slots.current(1))
}

func TestCartUpdateItemOwnedByAnotherCart(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()

	item, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(1)})
	require.NoError(t, err)
	_, err = f.cart.UpdateItem(ctx, model.CartOwner{SessionID: "intruder"}, item.ID, adults(2))
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, f.cart.Remove(ctx, model.CartOwner{SessionID: "intruder"}, item.ID), repository.ErrNotFound)
	assert.Equal(t, 1, f.slots.current(1))
}

func TestCartRemoveAndClear(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	ctx := context.Background()

	a, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(2)})
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 2, Tickets: adults(3)})
	require.NoError(t, err)

	require.NoError(t, f.cart.Remove(ctx, guest, a.ID))
	assert.Equal(t, 0, f.slots.current(1))
	assert.ErrorIs(t, f.cart.Remove(ctx, guest, a.ID), repository.ErrNotFound)

	n, err := f.cart.Clear(ctx, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, f.slots.current(2))
	assert.Equal(t, 0, f.carts.count())
}

func TestCartSyncReplacesHolds(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	ctx := context.Background()

	_, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(4)})
	require.NoError(t, err)

	cart, err := f.cart.Sync(ctx, guest, []AddItemInput{
		{TimeSlotID: 1, Tickets: adults(1)},
		{TimeSlotID: 2, Tickets: model.TicketCounts{Child: 2}},
	})
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.TotalTickets)
	assert.Equal(t, int64(90000), cart.Total)
	assert.Equal(t, 1, f.slots.current(1))
	assert.Equal(t, 2, f.slots.current(2))
}

func TestCartUpdateRefusedDuringCheckout(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()

	item, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(1)})
	require.NoError(t, err)
	_, err = f.carts.AttachToOrder(ctx, []uint64{item.ID}, 9, f.now.Add(time.Hour))
	require.NoError(t, err)

	_, err = f.cart.UpdateItem(ctx, guest, item.ID, adults(2))
	assert.ErrorIs(t, err, repository.ErrConflict)
}
