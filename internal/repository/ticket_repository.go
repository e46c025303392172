package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

// TicketRepo handles gate-side ticket state.
type TicketRepo struct {
	db *sqlx.DB
}

func NewTicketRepo(db *sqlx.DB) *TicketRepo { return &TicketRepo{db: db} }

// MarkUsed flips a ticket from valid to used.  It reports false when the
// ticket is unknown or not in the valid state; callers load it to find
// out which.
func (r *TicketRepo) MarkUsed(ctx context.Context, code string) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE tickets SET status = ?, used_at = UTC_TIMESTAMP() WHERE ticket_code = ? AND status = ?`,
		model.TicketUsed, code, model.TicketValid)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// GetByCode returns ErrNotFound if there is no matching row.
func (r *TicketRepo) GetByCode(ctx context.Context, code string) (model.Ticket, error) {
	var t model.Ticket
	err := database.Conn(ctx, r.db).GetContext(ctx, &t,
		`SELECT id, booking_id, ticket_code, ticket_type, status, used_at, created_at FROM tickets WHERE ticket_code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}
