package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/payment"
)

var visitor = model.Visitor{Name: "Ada Lovelace", Email: "ada@example.com"}

func capturedBody(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":140000,"notes":[]}}}}`,
		paymentID, orderID))
}

func refundBody(paymentID, ref string) []byte {
	notes := `[]`
	if ref != "" {
		notes = fmt.Sprintf(`{"booking_ref":%q}`, ref)
	}
	return []byte(fmt.Sprintf(`{"event":"refund.processed","payload":{"refund":{"entity":{"id":"rfnd_1","payment_id":%q,"amount":100,"notes":%s}}}}`,
		paymentID, notes))
}

// checkout fills the guest cart with two lines totalling four tickets and
// creates the payment order.
func checkout(t *testing.T, f *fixture) Checkout {
	t.Helper()
	ctx := context.Background()
	_, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(2)})
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 2, Tickets: model.TicketCounts{Adult: 1, Child: 1}})
	require.NoError(t, err)

	f.gateway.On("CreateOrder", mock.Anything, int64(170000), "INR", mock.AnythingOfType("string"), mock.Anything).
		Return(payment.Order{ID: "order_1", Amount: 170000, Currency: "INR"}, nil).Once()
	co, err := f.payments.CreateOrder(ctx, guest, visitor)
	require.NoError(t, err)
	return co
}

func TestCreateOrderSnapshotsAndExtendsHold(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	co := checkout(t, f)

	assert.Equal(t, "order_1", co.OrderID)
	assert.Equal(t, int64(170000), co.Amount)
	assert.Equal(t, "rzp_test", co.KeyID)
	assert.Equal(t, f.now.Add(30*time.Minute), co.HoldUntil)

	order, err := f.orders.GetByGatewayIDForUpdate(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCreated, order.Status)
	require.Len(t, order.CartSnapshot, 2)
	assert.Equal(t, 4, order.CartSnapshot.TotalTickets())
	assert.Equal(t, "2026-11-02", order.CartSnapshot[0].BookingDate)

	// The cart TTL alone would have lapsed; the order hold keeps it.
	f.now = f.now.Add(20 * time.Minute)
	cart, err := f.cart.Get(context.Background(), guest)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.Equal(t, 2, f.slots.current(1))
	f.gateway.AssertExpectations(t)
}

func TestCreateOrderRejections(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()

	_, err := f.payments.CreateOrder(ctx, guest, visitor)
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = f.payments.CreateOrder(ctx, guest, model.Visitor{Name: "x", Email: "nope"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: model.TicketCounts{Senior: 2}})
	require.NoError(t, err)
	_, err = f.payments.CreateOrder(ctx, guest, visitor)
	assert.ErrorIs(t, err, ErrValidation, "free carts are booked directly")
	f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateOrderGatewayFailure(t *testing.T) {
	f := newFixture(dated(1, 10, 0))
	ctx := context.Background()
	_, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(1)})
	require.NoError(t, err)

	f.gateway.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(payment.Order{}, fmt.Errorf("%w: timeout", payment.ErrGateway))
	_, err = f.payments.CreateOrder(ctx, guest, visitor)
	assert.ErrorIs(t, err, payment.ErrGateway)
	assert.Empty(t, f.orders.orders)
	assert.Equal(t, 1, f.slots.current(1))
}

func TestWebhookReplayCreatesOneSetOfBookings(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	checkout(t, f)
	ctx := context.Background()
	body := capturedBody("order_1", "pay_1")
	f.gateway.On("VerifyWebhook", body, "sig").Return(true)

	for i := 0; i < 2; i++ {
		res, err := f.payments.HandleWebhook(ctx, body, "sig", "")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Bookings)
	}

	all, err := f.bookings.List(ctx, repositoryFilter())
	require.NoError(t, err)
	require.Len(t, all, 2)
	total := 0
	for _, b := range all {
		total += b.TotalTickets
		assert.Equal(t, model.PaymentPaid, b.PaymentStatus)
		assert.Regexp(t, `^MUS-[0-9A-F]{10}$`, b.ReferenceCode)
	}
	assert.Equal(t, 4, total)
	assert.Equal(t, 4, f.bookings.ticketCount())

	// The reservations moved to the bookings; the counters did not change.
	assert.Equal(t, 2, f.slots.current(1))
	assert.Equal(t, 2, f.slots.current(2))
	assert.Equal(t, 0, f.carts.count())
	assert.Equal(t, model.OrderPaid, f.orders.status("order_1"))
	assert.Equal(t, 2, f.publisher.count())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture()
	body := capturedBody("order_1", "pay_1")
	f.gateway.On("VerifyWebhook", body, "forged").Return(false)

	_, err := f.payments.HandleWebhook(context.Background(), body, "forged", "evt_1")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestWebhookIgnoresUnknownEvents(t *testing.T) {
	f := newFixture()
	body := []byte(`{"event":"payment.authorized","payload":{}}`)
	f.gateway.On("VerifyWebhook", body, "sig").Return(true)

	res, err := f.payments.HandleWebhook(context.Background(), body, "sig", "")
	require.NoError(t, err)
	assert.True(t, res.Ignored)
}

func TestWebhookLapsedHoldIsReservedAgain(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	checkout(t, f)
	ctx := context.Background()

	// The hold lapses and the sweep hands the tickets back.
	f.now = f.now.Add(31 * time.Minute)
	n, err := f.cart.ReleaseExpired(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 0, f.slots.current(1))

	body := capturedBody("order_1", "pay_1")
	f.gateway.On("VerifyWebhook", body, "sig").Return(true)
	res, err := f.payments.HandleWebhook(ctx, body, "sig", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Bookings)
	assert.Equal(t, 2, f.slots.current(1))
	assert.Equal(t, 2, f.slots.current(2))
}

func TestWebhookLapsedHoldWithoutCapacityMarksConflict(t *testing.T) {
	f := newFixture(dated(1, 2, 0))
	ctx := context.Background()
	_, err := f.cart.Add(ctx, guest, AddItemInput{TimeSlotID: 1, Tickets: adults(2)})
	require.NoError(t, err)
	f.gateway.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(payment.Order{ID: "order_9"}, nil)
	_, err = f.payments.CreateOrder(ctx, guest, visitor)
	require.NoError(t, err)

	f.now = f.now.Add(31 * time.Minute)
	_, err = f.cart.ReleaseExpired(ctx, 10)
	require.NoError(t, err)
	// Someone else takes the freed capacity.
	_, err = f.cart.Add(ctx, model.CartOwner{SessionID: "other"}, AddItemInput{TimeSlotID: 1, Tickets: adults(2)})
	require.NoError(t, err)

	body := capturedBody("order_9", "pay_9")
	f.gateway.On("VerifyWebhook", body, "sig").Return(true)
	res, err := f.payments.HandleWebhook(ctx, body, "sig", "")
	require.NoError(t, err)
	assert.True(t, res.Conflict)
	assert.Equal(t, model.OrderConflict, f.orders.status("order_9"))
	assert.Equal(t, 2, f.slots.current(1))
	assert.Zero(t, f.bookings.ticketCount())
}

func TestWebhookPaymentFailed(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	checkout(t, f)
	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_x","order_id":"order_1","status":"failed"}}}}`)
	f.gateway.On("VerifyWebhook", body, "sig").Return(true)

	_, err := f.payments.HandleWebhook(context.Background(), body, "sig", "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderFailed, f.orders.status("order_1"))
	// Holds stay until they lapse.
	assert.Equal(t, 2, f.slots.current(1))
}

func TestRefundWebhookReleasesOnce(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	checkout(t, f)
	ctx := context.Background()
	paid := capturedBody("order_1", "pay_1")
	f.gateway.On("VerifyWebhook", mock.Anything, "sig").Return(true)
	_, err := f.payments.HandleWebhook(ctx, paid, "sig", "")
	require.NoError(t, err)

	body := refundBody("pay_1", "")
	res, err := f.payments.HandleWebhook(ctx, body, "sig", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Cancelled)
	assert.Equal(t, 0, f.slots.current(1))
	assert.Equal(t, 0, f.slots.current(2))
	assert.Equal(t, model.OrderRefunded, f.orders.status("order_1"))

	res, err = f.payments.HandleWebhook(ctx, body, "sig", "")
	require.NoError(t, err)
	assert.Zero(t, res.Cancelled)
	assert.Equal(t, 0, f.slots.current(1))

	for _, tk := range f.bookings.tickets {
		assert.Equal(t, model.TicketVoid, tk.Status)
	}
}

func TestRefundWebhookForOneBooking(t *testing.T) {
	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	checkout(t, f)
	ctx := context.Background()
	f.gateway.On("VerifyWebhook", mock.Anything, "sig").Return(true)
	_, err := f.payments.HandleWebhook(ctx, capturedBody("order_1", "pay_1"), "sig", "")
	require.NoError(t, err)

	all, _ := f.bookings.List(ctx, repositoryFilter())
	first := all[0]
	res, err := f.payments.HandleWebhook(ctx, refundBody("pay_1", first.ReferenceCode), "sig", "")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Cancelled)
	assert.Equal(t, 0, f.slots.current(first.TimeSlotID))
	assert.Equal(t, 2, f.slots.current(all[1].TimeSlotID))
	assert.Equal(t, model.OrderPaid, f.orders.status("order_1"))
}

func TestWebhookUnknownOrderIsAcknowledged(t *testing.T) {
	f := newFixture()
	body := capturedBody("order_missing", "pay_1")
	f.gateway.On("VerifyWebhook", body, "sig").Return(true)

	res, err := f.payments.HandleWebhook(context.Background(), body, "sig", "")
	require.NoError(t, err)
	assert.True(t, res.Ignored)
}

func TestRedisDeduperSkipsRepeatedEventIDs(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(dated(1, 10, 0), dated(2, 10, 0))
	f.payments.deduper = NewRedisEventDeduper(rdb, time.Hour)
	checkout(t, f)
	ctx := context.Background()
	body := capturedBody("order_1", "pay_1")
	f.gateway.On("VerifyWebhook", body, "sig").Return(true)

	res, err := f.payments.HandleWebhook(ctx, body, "sig", "evt_1")
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	res, err = f.payments.HandleWebhook(ctx, body, "sig", "evt_1")
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 4, f.bookings.ticketCount())

	ttl := mr.TTL("webhook:event:evt_1")
	assert.Equal(t, time.Hour, ttl)
}

func TestRedisDeduperForgetsFailedAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture()
	f.payments.deduper = NewRedisEventDeduper(rdb, 0)
	body := []byte(`{"event":"payment.captured","payload":{}}`)
	f.gateway.On("VerifyWebhook", body, "sig").Return(true)

	_, err := f.payments.HandleWebhook(context.Background(), body, "sig", "evt_2")
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, mr.Exists("webhook:event:evt_2"))
}
