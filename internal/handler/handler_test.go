package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/inventory"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/middleware"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/payment"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/utils"
)

const testSecret = "handler-secret"

func do(e *echo.Echo, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearerFor(t *testing.T, uid uint64, role string) map[string]string {
	t.Helper()
	tok, err := utils.NewAccessToken(testSecret, uid, role, 5)
	require.NoError(t, err)
	return map[string]string{echo.HeaderAuthorization: "Bearer " + tok.Token}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad date", service.ErrValidation), http.StatusBadRequest},
		{service.ErrEmptyCart, http.StatusBadRequest},
		{service.ErrInvalidSignature, http.StatusUnauthorized},
		{service.ErrPaymentRequired, http.StatusForbidden},
		{repository.ErrNotFound, http.StatusNotFound},
		{inventory.ErrSlotNotFound, http.StatusNotFound},
		{fmt.Errorf("slot 3: %w", inventory.ErrCapacityExceeded), http.StatusConflict},
		{inventory.ErrSlotInactive, http.StatusConflict},
		{inventory.ErrCapacityBelowUse, http.StatusConflict},
		{repository.ErrEmailExists, http.StatusConflict},
		{service.ErrTicketUsed, http.StatusConflict},
		{fmt.Errorf("%w: timeout", payment.ErrGateway), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return respondError(c, errors.New("dsn password=secret")) })
	rec := do(e, http.MethodGet, "/x", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

type cartMock struct{ mock.Mock }

func (m *cartMock) Add(ctx context.Context, o model.CartOwner, in service.AddItemInput) (model.CartItem, error) {
	args := m.Called(o, in)
	return args.Get(0).(model.CartItem), args.Error(1)
}

func (m *cartMock) Sync(ctx context.Context, o model.CartOwner, items []service.AddItemInput) (service.Cart, error) {
	args := m.Called(o, items)
	return args.Get(0).(service.Cart), args.Error(1)
}

func (m *cartMock) Get(ctx context.Context, o model.CartOwner) (service.Cart, error) {
	args := m.Called(o)
	return args.Get(0).(service.Cart), args.Error(1)
}

func (m *cartMock) UpdateItem(ctx context.Context, o model.CartOwner, id uint64, t model.TicketCounts) (model.CartItem, error) {
	args := m.Called(o, id, t)
	return args.Get(0).(model.CartItem), args.Error(1)
}

func (m *cartMock) Remove(ctx context.Context, o model.CartOwner, id uint64) error {
	return m.Called(o, id).Error(0)
}

func (m *cartMock) Clear(ctx context.Context, o model.CartOwner) (int, error) {
	args := m.Called(o)
	return args.Int(0), args.Error(1)
}

func cartServer(m *cartMock) *echo.Echo {
	h := NewCartHandler(m)
	e := echo.New()
	g := e.Group("/api/cart", middleware.OptionalJWT(testSecret))
	g.GET("", h.Get)
	g.POST("", h.Update)
	g.DELETE("", h.Clear)
	g.POST("/add", h.Add)
	g.DELETE("/items/:id", h.RemoveItem)
	return e
}

func TestCartRequiresOwner(t *testing.T) {
	m := &cartMock{}
	rec := do(cartServer(m), http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	m.AssertNotCalled(t, "Get", mock.Anything)
}

func TestCartAddAsGuestAndUser(t *testing.T) {
	m := &cartMock{}
	e := cartServer(m)
	body := `{"time_slot_id":4,"tickets":{"adult":2}}`
	in := service.AddItemInput{TimeSlotID: 4, Tickets: model.TicketCounts{Adult: 2}}

	m.On("Add", model.CartOwner{SessionID: "guest-1"}, in).Return(model.CartItem{ID: 1, TimeSlotID: 4}, nil).Once()
	rec := do(e, http.MethodPost, "/api/cart/add", body, map[string]string{middleware.SessionHeader: "guest-1"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	// A signed-in user's cart wins over the session header.
	headers := bearerFor(t, 8, model.RoleCustomer)
	headers[middleware.SessionHeader] = "guest-1"
	m.On("Add", model.CartOwner{UserID: 8}, in).Return(model.CartItem{}, inventory.ErrCapacityExceeded).Once()
	rec = do(e, http.MethodPost, "/api/cart/add", body, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "capacity")

	m.AssertExpectations(t)
}

func TestCartUpdateToZeroRemoves(t *testing.T) {
	m := &cartMock{}
	owner := model.CartOwner{SessionID: "g"}
	m.On("UpdateItem", owner, uint64(3), model.TicketCounts{}).Return(model.CartItem{}, nil)

	rec := do(cartServer(m), http.MethodPost, "/api/cart", `{"item_id":3,"tickets":{}}`, map[string]string{middleware.SessionHeader: "g"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCartRemoveItemNotFound(t *testing.T) {
	m := &cartMock{}
	owner := model.CartOwner{SessionID: "g"}
	m.On("Remove", owner, uint64(9)).Return(repository.ErrNotFound)

	rec := do(cartServer(m), http.MethodDelete, "/api/cart/items/9", "", map[string]string{middleware.SessionHeader: "g"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(cartServer(m), http.MethodDelete, "/api/cart/items/abc", "", map[string]string{middleware.SessionHeader: "g"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type paymentMock struct{ mock.Mock }

func (m *paymentMock) CreateOrder(ctx context.Context, o model.CartOwner, v model.Visitor) (service.Checkout, error) {
	args := m.Called(o, v)
	return args.Get(0).(service.Checkout), args.Error(1)
}

func (m *paymentMock) HandleWebhook(ctx context.Context, body []byte, sig, eventID string) (service.WebhookResult, error) {
	args := m.Called(string(body), sig, eventID)
	return args.Get(0).(service.WebhookResult), args.Error(1)
}

func TestWebhookPassesRawBodyAndHeaders(t *testing.T) {
	m := &paymentMock{}
	h := NewPaymentHandler(m)
	e := echo.New()
	e.POST("/api/webhooks/razorpay", h.Webhook)

	body := `{"event":"payment.captured"}`
	m.On("HandleWebhook", body, "sig-1", "evt_1").Return(service.WebhookResult{Event: "payment.captured", Bookings: 2}, nil)
	m.On("HandleWebhook", body, "bad", "").Return(service.WebhookResult{}, service.ErrInvalidSignature)
	m.On("HandleWebhook", body, "sig-2", "evt_2").Return(service.WebhookResult{Event: "payment.captured", Conflict: true}, nil)
	m.On("HandleWebhook", body, "sig-3", "evt_3").Return(service.WebhookResult{}, errors.New("deadlock"))

	rec := do(e, http.MethodPost, "/api/webhooks/razorpay", body, map[string]string{HeaderRazorpaySignature: "sig-1", HeaderRazorpayEventID: "evt_1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"event":"payment.captured","bookings":2}`, rec.Body.String())

	rec = do(e, http.MethodPost, "/api/webhooks/razorpay", body, map[string]string{HeaderRazorpaySignature: "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/api/webhooks/razorpay", body, map[string]string{HeaderRazorpaySignature: "sig-2", HeaderRazorpayEventID: "evt_2"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Transient failures are 500 so the gateway redelivers.
	rec = do(e, http.MethodPost, "/api/webhooks/razorpay", body, map[string]string{HeaderRazorpaySignature: "sig-3", HeaderRazorpayEventID: "evt_3"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	m.AssertExpectations(t)
}

func TestCreateOrderMapsErrors(t *testing.T) {
	m := &paymentMock{}
	h := NewPaymentHandler(m)
	e := echo.New()
	e.POST("/api/payment/create-order", h.CreateOrder)

	v := model.Visitor{Name: "Ada", Email: "ada@example.com"}
	m.On("CreateOrder", model.CartOwner{SessionID: "s1"}, v).Return(service.Checkout{}, service.ErrEmptyCart)
	m.On("CreateOrder", model.CartOwner{SessionID: "s2"}, v).Return(service.Checkout{}, fmt.Errorf("%w: 503", payment.ErrGateway))
	m.On("CreateOrder", model.CartOwner{SessionID: "s3"}, v).Return(service.Checkout{OrderID: "order_9", Amount: 5000, KeyID: "rzp"}, nil)

	body := `{"visitor":{"name":"Ada","email":"ada@example.com"}}`
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodPost, "/api/payment/create-order", body, map[string]string{middleware.SessionHeader: "s1"}).Code)
	assert.Equal(t, http.StatusBadGateway, do(e, http.MethodPost, "/api/payment/create-order", body, map[string]string{middleware.SessionHeader: "s2"}).Code)
	rec := do(e, http.MethodPost, "/api/payment/create-order", body, map[string]string{middleware.SessionHeader: "s3"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order_id":"order_9"`)
}

// bookingStub implements BookingAPI for the gate and lookup tests.
type bookingStub struct {
	BookingAPI
	tickets map[string]model.Ticket
	errs    map[string]error
	lookups []service.Caller
}

func (b *bookingStub) VerifyTicket(_ context.Context, code string) (model.Ticket, error) {
	return b.tickets[code], b.errs[code]
}

func (b *bookingStub) GetByReference(_ context.Context, c service.Caller, ref, email string) (service.BookingDetail, error) {
	b.lookups = append(b.lookups, c)
	if email != "ada@example.com" && c.UserID == 0 {
		return service.BookingDetail{}, repository.ErrNotFound
	}
	return service.BookingDetail{Booking: model.Booking{ReferenceCode: ref}}, nil
}

func TestVerifyTicketResponses(t *testing.T) {
	used := time.Date(2026, 11, 2, 10, 5, 0, 0, time.UTC)
	stub := &bookingStub{
		tickets: map[string]model.Ticket{
			"OK":   {TicketCode: "OK", Status: model.TicketUsed},
			"USED": {TicketCode: "USED", Status: model.TicketUsed, UsedAt: &used},
			"VOID": {TicketCode: "VOID", Status: model.TicketVoid},
		},
		errs: map[string]error{
			"USED": service.ErrTicketUsed,
			"VOID": service.ErrTicketVoid,
			"NONE": repository.ErrNotFound,
		},
	}
	h := NewBookingHandler(stub)
	e := echo.New()
	e.POST("/api/tickets/verify", h.VerifyTicket)

	cases := []struct {
		code   string
		status int
		body   string
	}{
		{"OK", http.StatusOK, `"admitted":true`},
		{"USED", http.StatusConflict, `"used_at":"2026-11-02T10:05:00Z"`},
		{"VOID", http.StatusConflict, `"admitted":false`},
		{"NONE", http.StatusNotFound, `"error"`},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/tickets/verify", `{"ticket_code":"`+tc.code+`"}`, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}

func TestBookingLookupPassesCaller(t *testing.T) {
	stub := &bookingStub{}
	h := NewBookingHandler(stub)
	e := echo.New()
	e.GET("/api/bookings/:reference", h.GetByReference, middleware.OptionalJWT(testSecret))

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/bookings/MUS-1", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/bookings/MUS-1?email=ada@example.com", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/bookings/MUS-1", "", bearerFor(t, 4, model.RoleCustomer)).Code)
	require.Len(t, stub.lookups, 3)
	assert.Equal(t, service.Caller{UserID: 4, Role: model.RoleCustomer}, stub.lookups[2])
}
