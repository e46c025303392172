package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

const cartColumns = `id, session_id, user_id, time_slot_id, booking_date, adult_count, child_count,
	student_count, senior_count, subtotal, expires_at, payment_order_id, settled_at, created_at`

// CartRepo provides data access to the cart_items table.  An item's
// reservation is live until settled_at is set; every method that hands a
// reservation back to the slot or over to a booking goes through Settle so
// that only one caller ever wins.  All timestamps are UTC.
type CartRepo struct {
	db *sqlx.DB
}

// NewCartRepo returns a new CartRepo bound to the provided database.
func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

func ownerClause(o model.CartOwner) (string, interface{}) {
	if o.UserID != 0 {
		return "user_id = ?", o.UserID
	}
	return "user_id IS NULL AND session_id = ?", o.SessionID
}

// Create inserts a new item and assigns its ID.
func (r *CartRepo) Create(ctx context.Context, item *model.CartItem) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO cart_items (session_id, user_id, time_slot_id, booking_date, adult_count, child_count,
		 student_count, senior_count, subtotal, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.SessionID, item.UserID, item.TimeSlotID, item.BookingDate.Format("2006-01-02"),
		item.Adult, item.Child, item.Student, item.Senior, item.Subtotal, item.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = uint64(id)
	return nil
}

// ListActive returns the owner's unsettled items, expired or not, oldest
// first.
func (r *CartRepo) ListActive(ctx context.Context, owner model.CartOwner) ([]model.CartItem, error) {
	clause, arg := ownerClause(owner)
	out := []model.CartItem{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT `+cartColumns+` FROM cart_items WHERE `+clause+` AND settled_at IS NULL ORDER BY id`, arg)
	return out, err
}

// GetForOwner loads and row-locks one unsettled item that belongs to owner.
// Outside a transaction the lock is released as soon as the read returns.
func (r *CartRepo) GetForOwner(ctx context.Context, id uint64, owner model.CartOwner) (model.CartItem, error) {
	clause, arg := ownerClause(owner)
	var item model.CartItem
	err := database.Conn(ctx, r.db).GetContext(ctx, &item,
		`SELECT `+cartColumns+` FROM cart_items WHERE id = ? AND `+clause+` AND settled_at IS NULL FOR UPDATE`, id, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}

// ListExpired returns up to limit unsettled items whose hold lapsed at or
// before now.  A zero-value owner means every cart (background sweep).
func (r *CartRepo) ListExpired(ctx context.Context, owner model.CartOwner, now time.Time, limit int) ([]model.CartItem, error) {
	query := `SELECT ` + cartColumns + ` FROM cart_items WHERE settled_at IS NULL AND expires_at <= ?`
	args := []interface{}{now.UTC()}
	if owner.Valid() {
		clause, arg := ownerClause(owner)
		query += ` AND ` + clause
		args = append(args, arg)
	}
	query += ` ORDER BY expires_at LIMIT ?`
	args = append(args, limit)
	out := []model.CartItem{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out, query, args...)
	return out, err
}

// Settle marks the item's reservation as no longer owned by the cart row.
// It reports false when another caller settled it first, in which case the
// caller must not touch the slot counter.
func (r *CartRepo) Settle(ctx context.Context, id uint64) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE cart_items SET settled_at = UTC_TIMESTAMP() WHERE id = ? AND settled_at IS NULL`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Delete removes a settled row.
func (r *CartRepo) Delete(ctx context.Context, id uint64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM cart_items WHERE id = ? AND settled_at IS NOT NULL`, id)
	return err
}

// UpdateCounts rewrites the ticket breakdown and subtotal of an unsettled
// item.
func (r *CartRepo) UpdateCounts(ctx context.Context, item model.CartItem) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE cart_items SET adult_count = ?, child_count = ?, student_count = ?, senior_count = ?, subtotal = ?
		 WHERE id = ? AND settled_at IS NULL`,
		item.Adult, item.Child, item.Student, item.Senior, item.Subtotal, item.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Rewriting identical counts also reports zero rows; only a missing or
	// settled item is a conflict.
	var live int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &live,
		"SELECT COUNT(*) FROM cart_items WHERE id = ? AND settled_at IS NULL", item.ID); err != nil {
		return err
	}
	if live == 0 {
		return ErrConflict
	}
	return nil
}

// AttachToOrder links items to a payment order and extends their hold to
// expiresAt.  Items that were settled in the meantime are skipped; the
// returned count lets the caller detect that.
func (r *CartRepo) AttachToOrder(ctx context.Context, ids []uint64, orderID uint64, expiresAt time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(
		`UPDATE cart_items SET payment_order_id = ?, expires_at = ? WHERE id IN (?) AND settled_at IS NULL`,
		orderID, expiresAt.UTC(), ids)
	if err != nil {
		return 0, err
	}
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteSettledBefore purges settled rows older than cutoff.  The sweep
// calls it so the table does not grow without bound.
func (r *CartRepo) DeleteSettledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM cart_items WHERE settled_at IS NOT NULL AND settled_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

