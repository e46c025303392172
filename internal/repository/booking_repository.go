package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

const bookingColumns = `id, reference_code, payment_order_id, user_id, visitor_name, visitor_email, visitor_phone,
	time_slot_id, booking_date, adult_count, child_count, student_count, senior_count, total_tickets,
	total_amount, status, payment_status, released_at, created_at, updated_at`

// BookingRepo persists bookings and their tickets.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a new BookingRepo bound to the provided database.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a booking and assigns its ID.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO bookings (reference_code, payment_order_id, user_id, visitor_name, visitor_email, visitor_phone,
		 time_slot_id, booking_date, adult_count, child_count, student_count, senior_count, total_tickets,
		 total_amount, status, payment_status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ReferenceCode, b.PaymentOrderID, b.UserID, b.VisitorName, b.VisitorEmail, b.VisitorPhone,
		b.TimeSlotID, b.BookingDate.Format("2006-01-02"), b.Adult, b.Child, b.Student, b.Senior, b.TotalTickets,
		b.TotalAmount, b.Status, b.PaymentStatus)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// CreateTickets bulk inserts ticket rows.  Passing an empty slice has no
// effect.
func (r *BookingRepo) CreateTickets(ctx context.Context, tickets []model.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO tickets (booking_id, ticket_code, ticket_type, status) VALUES `)
	args := make([]interface{}, 0, len(tickets)*4)
	for i, t := range tickets {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, t.BookingID, t.TicketCode, t.TicketType, t.Status)
	}
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, b.String(), args...)
	return err
}

// ListByOrder returns the bookings materialized from one payment order.
// An empty result is how the webhook bridge knows an order is still
// unprocessed.
func (r *BookingRepo) ListByOrder(ctx context.Context, orderID uint64) ([]model.Booking, error) {
	out := []model.Booking{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT `+bookingColumns+` FROM bookings WHERE payment_order_id = ? ORDER BY id`, orderID)
	return out, err
}

// GetByID returns ErrNotFound if there is no matching row.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
}

// GetByIDForUpdate row-locks a booking inside a transaction.
func (r *BookingRepo) GetByIDForUpdate(ctx context.Context, id uint64) (model.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
}

// GetByReference looks a booking up by its public reference code.
func (r *BookingRepo) GetByReference(ctx context.Context, ref string) (model.Booking, error) {
	return r.getOne(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE reference_code = ?`, ref)
}

func (r *BookingRepo) getOne(ctx context.Context, query string, arg interface{}) (model.Booking, error) {
	var b model.Booking
	err := database.Conn(ctx, r.db).GetContext(ctx, &b, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

// ListByUser returns a user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	out := []model.Booking{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	return out, err
}

// BookingFilter narrows the admin list.
type BookingFilter struct {
	Status        string
	PaymentStatus string
	From, To      *time.Time
	Limit, Offset int
}

// List returns bookings for the back office.
func (r *BookingRepo) List(ctx context.Context, f BookingFilter) ([]model.Booking, error) {
	var where []string
	var args []interface{}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.PaymentStatus != "" {
		where = append(where, "payment_status = ?")
		args = append(args, f.PaymentStatus)
	}
	if f.From != nil {
		where = append(where, "booking_date >= ?")
		args = append(args, f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		where = append(where, "booking_date <= ?")
		args = append(args, f.To.Format("2006-01-02"))
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)
	out := []model.Booking{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out, query, args...)
	return out, err
}

// MarkReleased cancels a booking and stamps released_at.  It reports false
// when the booking was already released, in which case the caller must not
// release its tickets again.  paymentStatus overrides payment_status when
// non-empty (refunds).
func (r *BookingRepo) MarkReleased(ctx context.Context, id uint64, paymentStatus string) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE bookings SET status = ?, released_at = UTC_TIMESTAMP(),
		 payment_status = COALESCE(NULLIF(?, ''), payment_status)
		 WHERE id = ? AND released_at IS NULL`,
		model.BookingCancelled, paymentStatus, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// SetPaymentStatus updates payment_status only.
func (r *BookingRepo) SetPaymentStatus(ctx context.Context, id uint64, paymentStatus string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE bookings SET payment_status = ? WHERE id = ?`, paymentStatus, id)
	return err
}

// VoidTickets invalidates every still-valid ticket of a booking.
func (r *BookingRepo) VoidTickets(ctx context.Context, bookingID uint64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE booking_id = ? AND status = ?`,
		model.TicketVoid, bookingID, model.TicketValid)
	return err
}

// ListTickets returns a booking's tickets.
func (r *BookingRepo) ListTickets(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
	out := []model.Ticket{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT id, booking_id, ticket_code, ticket_type, status, used_at, created_at FROM tickets WHERE booking_id = ? ORDER BY id`,
		bookingID)
	return out, err
}
