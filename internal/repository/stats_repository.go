package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
)

// PeriodTotals aggregates confirmed bookings created in a window.
type PeriodTotals struct {
	Bookings int   `db:"bookings" json:"bookings"`
	Tickets  int   `db:"tickets" json:"tickets"`
	Revenue  int64 `db:"revenue" json:"revenue"`
}

// OwnerRevenue is one row of the revenue breakdown.
type OwnerRevenue struct {
	Kind     string `db:"kind" json:"kind"`
	OwnerID  uint64 `db:"owner_id" json:"owner_id"`
	Title    string `db:"title" json:"title"`
	Bookings int    `db:"bookings" json:"bookings"`
	Tickets  int    `db:"tickets" json:"tickets"`
	Revenue  int64  `db:"revenue" json:"revenue"`
}

// StatsRepo runs the dashboard aggregations.
type StatsRepo struct {
	db *sqlx.DB
}

func NewStatsRepo(db *sqlx.DB) *StatsRepo { return &StatsRepo{db: db} }

// Totals sums bookings created in [from, to) that were not cancelled.
func (r *StatsRepo) Totals(ctx context.Context, from, to time.Time) (PeriodTotals, error) {
	var t PeriodTotals
	err := database.Conn(ctx, r.db).GetContext(ctx, &t,
		`SELECT COUNT(*) AS bookings, COALESCE(SUM(total_tickets), 0) AS tickets, COALESCE(SUM(total_amount), 0) AS revenue
		 FROM bookings WHERE status = 'confirmed' AND created_at >= ? AND created_at < ?`,
		from.UTC(), to.UTC())
	return t, err
}

// RevenueByOwner groups the same window by exhibition or show.
func (r *StatsRepo) RevenueByOwner(ctx context.Context, from, to time.Time) ([]OwnerRevenue, error) {
	out := []OwnerRevenue{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out,
		`SELECT IF(ts.exhibition_id IS NULL, 'show', 'exhibition') AS kind,
		        COALESCE(ts.exhibition_id, ts.show_id) AS owner_id,
		        COALESCE(e.title, s.title, '') AS title,
		        COUNT(*) AS bookings, SUM(b.total_tickets) AS tickets, SUM(b.total_amount) AS revenue
		 FROM bookings b
		 JOIN time_slots ts ON ts.id = b.time_slot_id
		 LEFT JOIN exhibitions e ON e.id = ts.exhibition_id
		 LEFT JOIN shows s ON s.id = ts.show_id
		 WHERE b.status = 'confirmed' AND b.created_at >= ? AND b.created_at < ?
		 GROUP BY kind, owner_id, title
		 ORDER BY revenue DESC`,
		from.UTC(), to.UTC())
	return out, err
}
