package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/config"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/inventory"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/payment"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/queue"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
)

// passTx runs fn directly.  The fakes below commit every write
// immediately, so tests only exercise paths whose outcome does not depend
// on a rollback.
type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// serialTx runs one transaction at a time, like the row lock taken by
// GetByIDForUpdate.
type serialTx struct{ mu sync.Mutex }

func (t *serialTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}

// storedRoles maps user ids to the role column; missing ids are inactive.
type storedRoles map[uint64]string

func (r storedRoles) RoleOf(_ context.Context, id uint64) (string, error) {
	role, ok := r[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return role, nil
}

var testDate = time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)

func u64(v uint64) *uint64 { return &v }

// slotTable is both the ledger's inventory.Store and the SlotStore.
type slotTable struct {
	mu     sync.Mutex
	slots  map[uint64]*model.TimeSlot
	nextID uint64
}

func newSlotTable(slots ...model.TimeSlot) *slotTable {
	t := &slotTable{slots: map[uint64]*model.TimeSlot{}, nextID: 100}
	for i := range slots {
		s := slots[i]
		t.slots[s.ID] = &s
	}
	return t
}

func dated(id uint64, capacity, buffer int) model.TimeSlot {
	d := testDate
	return model.TimeSlot{
		ID: id, ExhibitionID: u64(1), SlotDate: &d, StartTime: "10:00:00", EndTime: "11:00:00",
		Capacity: capacity, BufferCapacity: buffer, IsActive: true,
	}
}

func (t *slotTable) current(id uint64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[id].CurrentBookings
}

func (t *slotTable) Get(_ context.Context, id uint64) (model.TimeSlot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[id]
	if !ok {
		return model.TimeSlot{}, inventory.ErrSlotNotFound
	}
	return *s, nil
}

func (t *slotTable) IncrementIfAvailable(_ context.Context, id uint64, n int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[id]
	if !ok || !s.Bookable() || s.CurrentBookings+n > s.Capacity-s.BufferCapacity {
		return false, nil
	}
	s.CurrentBookings += n
	return true, nil
}

func (t *slotTable) Decrement(_ context.Context, id uint64, n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.slots[id]; ok {
		s.CurrentBookings -= n
		if s.CurrentBookings < 0 {
			s.CurrentBookings = 0
		}
	}
	return nil
}

func (t *slotTable) ResizeIfFits(_ context.Context, id uint64, capacity, buffer int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[id]
	if !ok || s.CurrentBookings > capacity-buffer {
		return false, nil
	}
	s.Capacity, s.BufferCapacity = capacity, buffer
	return true, nil
}

func (t *slotTable) GetByID(ctx context.Context, id uint64) (model.TimeSlot, error) {
	s, err := t.Get(ctx, id)
	if errors.Is(err, inventory.ErrSlotNotFound) {
		return s, repository.ErrNotFound
	}
	return s, err
}

func (t *slotTable) Create(_ context.Context, s *model.TimeSlot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	s.ID = t.nextID
	s.IsActive = true
	cp := *s
	t.slots[s.ID] = &cp
	return nil
}

func (t *slotTable) CreateBulk(ctx context.Context, slots []model.TimeSlot) (int, error) {
	for i := range slots {
		if err := t.Create(ctx, &slots[i]); err != nil {
			return i, err
		}
	}
	return len(slots), nil
}

func (t *slotTable) UpdateTimes(_ context.Context, id uint64, start, end string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.slots[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.StartTime, s.EndTime = start, end
	return nil
}

func (t *slotTable) List(_ context.Context, f repository.SlotFilter) ([]model.TimeSlot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []model.TimeSlot
	for _, s := range t.slots {
		if f.Owner.ExhibitionID != nil && (s.ExhibitionID == nil || *s.ExhibitionID != *f.Owner.ExhibitionID) {
			continue
		}
		if f.Owner.ShowID != nil && (s.ShowID == nil || *s.ShowID != *f.Owner.ShowID) {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type priceList []model.Pricing

func (p priceList) ListFor(context.Context, model.Owner) ([]model.Pricing, error) { return p, nil }

var standardPrices = priceList{
	{TicketType: model.TicketAdult, Price: 50000},
	{TicketType: model.TicketChild, Price: 20000},
	{TicketType: model.TicketStudent, Price: 30000},
	{TicketType: model.TicketSenior, Price: 0},
}

type cartTable struct {
	mu         sync.Mutex
	items      map[uint64]*model.CartItem
	nextID     uint64
	failCreate error
	rewrites   int
}

func newCartTable() *cartTable { return &cartTable{items: map[uint64]*model.CartItem{}} }

func owns(it *model.CartItem, o model.CartOwner) bool {
	if o.UserID != 0 {
		return it.UserID != nil && *it.UserID == o.UserID
	}
	return it.UserID == nil && it.SessionID == o.SessionID
}

func (c *cartTable) Create(_ context.Context, item *model.CartItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failCreate != nil {
		return c.failCreate
	}
	c.nextID++
	item.ID = c.nextID
	cp := *item
	c.items[item.ID] = &cp
	return nil
}

func (c *cartTable) ListActive(_ context.Context, o model.CartOwner) ([]model.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []model.CartItem{}
	for _, it := range c.items {
		if it.SettledAt == nil && owns(it, o) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *cartTable) GetForOwner(_ context.Context, id uint64, o model.CartOwner) (model.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok || it.SettledAt != nil || !owns(it, o) {
		return model.CartItem{}, repository.ErrNotFound
	}
	return *it, nil
}

func (c *cartTable) ListExpired(_ context.Context, o model.CartOwner, now time.Time, limit int) ([]model.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []model.CartItem{}
	for _, it := range c.items {
		if it.SettledAt == nil && it.Expired(now) && (!o.Valid() || owns(it, o)) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *cartTable) Settle(_ context.Context, id uint64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[id]
	if !ok || it.SettledAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	it.SettledAt = &now
	return true, nil
}

func (c *cartTable) Delete(_ context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[id]; ok && it.SettledAt != nil {
		delete(c.items, id)
	}
	return nil
}

func (c *cartTable) UpdateCounts(_ context.Context, item model.CartItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[item.ID]
	if !ok || it.SettledAt != nil {
		return repository.ErrConflict
	}
	it.TicketCounts, it.Subtotal = item.TicketCounts, item.Subtotal
	c.rewrites++
	return nil
}

func (c *cartTable) AttachToOrder(_ context.Context, ids []uint64, orderID uint64, expiresAt time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, id := range ids {
		if it, ok := c.items[id]; ok && it.SettledAt == nil {
			it.PaymentOrderID = u64(orderID)
			it.ExpiresAt = expiresAt
			n++
		}
	}
	return n, nil
}

func (c *cartTable) DeleteSettledBefore(_ context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for id, it := range c.items {
		if it.SettledAt != nil && it.SettledAt.Before(cutoff) {
			delete(c.items, id)
			n++
		}
	}
	return n, nil
}

func (c *cartTable) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type orderTable struct {
	mu     sync.Mutex
	orders map[uint64]*model.PaymentOrder
	nextID uint64
}

func newOrderTable() *orderTable { return &orderTable{orders: map[uint64]*model.PaymentOrder{}} }

func (o *orderTable) Create(_ context.Context, po *model.PaymentOrder) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	po.ID = o.nextID
	po.Status = model.OrderCreated
	cp := *po
	o.orders[po.ID] = &cp
	return nil
}

func (o *orderTable) find(match func(*model.PaymentOrder) bool) (model.PaymentOrder, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, po := range o.orders {
		if match(po) {
			return *po, nil
		}
	}
	return model.PaymentOrder{}, repository.ErrNotFound
}

func (o *orderTable) GetByGatewayIDForUpdate(_ context.Context, id string) (model.PaymentOrder, error) {
	return o.find(func(po *model.PaymentOrder) bool { return po.GatewayOrderID == id })
}

func (o *orderTable) GetByPaymentIDForUpdate(_ context.Context, id string) (model.PaymentOrder, error) {
	return o.find(func(po *model.PaymentOrder) bool { return po.GatewayPaymentID != nil && *po.GatewayPaymentID == id })
}

func (o *orderTable) GetByID(_ context.Context, id uint64) (model.PaymentOrder, error) {
	return o.find(func(po *model.PaymentOrder) bool { return po.ID == id })
}

func (o *orderTable) UpdateStatus(_ context.Context, id uint64, status, paymentID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	po, ok := o.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	po.Status = status
	if paymentID != "" {
		p := paymentID
		po.GatewayPaymentID = &p
	}
	return nil
}

func (o *orderTable) status(gatewayID string) string {
	po, _ := o.GetByGatewayIDForUpdate(context.Background(), gatewayID)
	return po.Status
}

type bookingTable struct {
	mu       sync.Mutex
	bookings map[uint64]*model.Booking
	tickets  []model.Ticket
	nextID   uint64
}

func newBookingTable() *bookingTable { return &bookingTable{bookings: map[uint64]*model.Booking{}} }

func (b *bookingTable) Create(_ context.Context, bk *model.Booking) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	bk.ID = b.nextID
	cp := *bk
	b.bookings[bk.ID] = &cp
	return nil
}

func (b *bookingTable) CreateTickets(_ context.Context, ts []model.Ticket) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range ts {
		t.ID = uint64(len(b.tickets) + 1)
		b.tickets = append(b.tickets, t)
	}
	return nil
}

func (b *bookingTable) list(match func(*model.Booking) bool) []model.Booking {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.Booking{}
	for _, bk := range b.bookings {
		if match(bk) {
			out = append(out, *bk)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *bookingTable) ListByOrder(_ context.Context, orderID uint64) ([]model.Booking, error) {
	return b.list(func(bk *model.Booking) bool { return bk.PaymentOrderID != nil && *bk.PaymentOrderID == orderID }), nil
}

func (b *bookingTable) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	if l := b.list(func(bk *model.Booking) bool { return bk.ID == id }); len(l) == 1 {
		return l[0], nil
	}
	return model.Booking{}, repository.ErrNotFound
}

func (b *bookingTable) GetByIDForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	return b.GetByID(ctx, id)
}

func (b *bookingTable) GetByReference(_ context.Context, ref string) (model.Booking, error) {
	if l := b.list(func(bk *model.Booking) bool { return bk.ReferenceCode == ref }); len(l) == 1 {
		return l[0], nil
	}
	return model.Booking{}, repository.ErrNotFound
}

func (b *bookingTable) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	return b.list(func(bk *model.Booking) bool { return bk.UserID != nil && *bk.UserID == userID }), nil
}

func (b *bookingTable) List(context.Context, repository.BookingFilter) ([]model.Booking, error) {
	return b.list(func(*model.Booking) bool { return true }), nil
}

func (b *bookingTable) MarkReleased(_ context.Context, id uint64, paymentStatus string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bk, ok := b.bookings[id]
	if !ok || bk.ReleasedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	bk.ReleasedAt = &now
	bk.Status = model.BookingCancelled
	if paymentStatus != "" {
		bk.PaymentStatus = paymentStatus
	}
	return true, nil
}

func (b *bookingTable) SetPaymentStatus(_ context.Context, id uint64, paymentStatus string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bk, ok := b.bookings[id]; ok {
		bk.PaymentStatus = paymentStatus
	}
	return nil
}

func (b *bookingTable) VoidTickets(_ context.Context, bookingID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tickets {
		if b.tickets[i].BookingID == bookingID && b.tickets[i].Status == model.TicketValid {
			b.tickets[i].Status = model.TicketVoid
		}
	}
	return nil
}

func (b *bookingTable) ListTickets(_ context.Context, bookingID uint64) ([]model.Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.Ticket{}
	for _, t := range b.tickets {
		if t.BookingID == bookingID {
			out = append(out, t)
		}
	}
	return out, nil
}

// MarkUsed and GetByCode make bookingTable the TicketStore as well.
func (b *bookingTable) MarkUsed(_ context.Context, code string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.tickets {
		if b.tickets[i].TicketCode == code && b.tickets[i].Status == model.TicketValid {
			now := time.Now().UTC()
			b.tickets[i].Status = model.TicketUsed
			b.tickets[i].UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (b *bookingTable) GetByCode(_ context.Context, code string) (model.Ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tickets {
		if t.TicketCode == code {
			return t, nil
		}
	}
	return model.Ticket{}, repository.ErrNotFound
}

func (b *bookingTable) ticketCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.tickets)
}

type gatewayMock struct{ mock.Mock }

func (g *gatewayMock) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (payment.Order, error) {
	args := g.Called(ctx, amount, currency, receipt, notes)
	return args.Get(0).(payment.Order), args.Error(1)
}

func (g *gatewayMock) Refund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (string, error) {
	args := g.Called(ctx, paymentID, amount, notes)
	return args.String(0), args.Error(1)
}

func (g *gatewayMock) VerifyWebhook(body []byte, signature string) bool {
	return g.Called(body, signature).Bool(0)
}

func (g *gatewayMock) KeyID() string { return "rzp_test" }

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingConfirmedEvent
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

var testPolicy = config.BookingConfig{
	CartTTL:          15 * time.Minute,
	OrderHoldTTL:     30 * time.Minute,
	MaxTicketsPerRow: 20,
}

// fixture wires every service over the same in-memory tables.
type fixture struct {
	slots     *slotTable
	carts     *cartTable
	orders    *orderTable
	bookings  *bookingTable
	gateway   *gatewayMock
	publisher *recordingPublisher
	ledger    *inventory.Ledger
	now       time.Time

	cart     *CartService
	payments *PaymentService
	booking  *BookingService
}

func newFixture(slots ...model.TimeSlot) *fixture {
	f := &fixture{
		slots:     newSlotTable(slots...),
		carts:     newCartTable(),
		orders:    newOrderTable(),
		bookings:  newBookingTable(),
		gateway:   &gatewayMock{},
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
	}
	f.ledger = inventory.NewLedger(f.slots)
	clk := func() time.Time { return f.now }

	f.cart = NewCartService(passTx{}, f.ledger, f.carts, f.slots, standardPrices, testPolicy)
	f.cart.now = clk
	f.payments = NewPaymentService(PaymentDeps{
		Tx: passTx{}, Ledger: f.ledger, Cart: f.cart, Carts: f.carts, Orders: f.orders,
		Bookings: f.bookings, Slots: f.slots, Gateway: f.gateway, Publisher: f.publisher,
	}, config.RazorpayConfig{Currency: "INR"}, testPolicy)
	f.payments.now = clk
	f.booking = NewBookingService(BookingDeps{
		Tx: passTx{}, Ledger: f.ledger, Bookings: f.bookings, Tickets: f.bookings, Orders: f.orders,
		Slots: f.slots, Prices: standardPrices, Gateway: f.gateway, Publisher: f.publisher,
	}, testPolicy)
	f.booking.now = clk
	return f
}

func repositoryFilter() repository.BookingFilter { return repository.BookingFilter{} }
