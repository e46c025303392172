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

const slotColumns = `id, exhibition_id, show_id, slot_date, day_of_week, start_time, end_time,
	capacity, current_bookings, buffer_capacity, is_active, created_at, updated_at`

// TimeSlotRepo covers slot schedule management.  It never touches
// current_bookings; the inventory package owns that column.
type TimeSlotRepo struct {
	db *sqlx.DB
}

// NewTimeSlotRepo constructs a TimeSlotRepo with the given DB handle.
func NewTimeSlotRepo(db *sqlx.DB) *TimeSlotRepo { return &TimeSlotRepo{db: db} }

// SlotFilter narrows List.  Zero values mean "any".
type SlotFilter struct {
	Owner      model.Owner
	Date       *time.Time
	From, To   *time.Time
	ActiveOnly bool
}

// GetByID returns ErrNotFound if there is no matching row.
func (r *TimeSlotRepo) GetByID(ctx context.Context, id uint64) (model.TimeSlot, error) {
	var s model.TimeSlot
	err := database.Conn(ctx, r.db).GetContext(ctx, &s, `SELECT `+slotColumns+` FROM time_slots WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// List returns slots ordered by date and start time.  Weekday templates
// (slot_date NULL) are included when no date bounds are given.
func (r *TimeSlotRepo) List(ctx context.Context, f SlotFilter) ([]model.TimeSlot, error) {
	var where []string
	var args []interface{}
	if f.Owner.ExhibitionID != nil {
		where = append(where, "exhibition_id = ?")
		args = append(args, *f.Owner.ExhibitionID)
	}
	if f.Owner.ShowID != nil {
		where = append(where, "show_id = ?")
		args = append(args, *f.Owner.ShowID)
	}
	if f.Date != nil {
		where = append(where, "slot_date = ?")
		args = append(args, f.Date.Format("2006-01-02"))
	}
	if f.From != nil {
		where = append(where, "slot_date >= ?")
		args = append(args, f.From.Format("2006-01-02"))
	}
	if f.To != nil {
		where = append(where, "slot_date <= ?")
		args = append(args, f.To.Format("2006-01-02"))
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	query := `SELECT ` + slotColumns + ` FROM time_slots`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY slot_date IS NULL, slot_date, start_time`
	out := []model.TimeSlot{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out, query, args...)
	return out, err
}

// Create inserts one slot.  current_bookings always starts at zero.
func (r *TimeSlotRepo) Create(ctx context.Context, s *model.TimeSlot) error {
	q := database.Conn(ctx, r.db)
	res, err := q.ExecContext(ctx,
		`INSERT INTO time_slots (exhibition_id, show_id, slot_date, day_of_week, start_time, end_time, capacity, buffer_capacity, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		s.ExhibitionID, s.ShowID, dateArg(s.SlotDate), s.DayOfWeek, s.StartTime, s.EndTime, s.Capacity, s.BufferCapacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	return q.GetContext(ctx, s, `SELECT `+slotColumns+` FROM time_slots WHERE id = ?`, id)
}

// CreateBulk inserts many generated slots in one statement.  Callers run
// it inside a transaction together with any validation reads.
func (r *TimeSlotRepo) CreateBulk(ctx context.Context, slots []model.TimeSlot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO time_slots (exhibition_id, show_id, slot_date, day_of_week, start_time, end_time, capacity, buffer_capacity, is_active) VALUES `)
	args := make([]interface{}, 0, len(slots)*8)
	for i, s := range slots {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, 1)")
		args = append(args, s.ExhibitionID, s.ShowID, dateArg(s.SlotDate), s.DayOfWeek, s.StartTime, s.EndTime, s.Capacity, s.BufferCapacity)
	}
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UpdateTimes changes the window of a slot.
func (r *TimeSlotRepo) UpdateTimes(ctx context.Context, id uint64, start, end string) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE time_slots SET start_time = ?, end_time = ? WHERE id = ?`, start, end, id); err != nil {
		return err
	}
	_, err := r.GetByID(ctx, id)
	return err
}

// SetActive toggles is_active.  Slots are deactivated, never deleted.
func (r *TimeSlotRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE time_slots SET is_active = ? WHERE id = ?`, active, id); err != nil {
		return err
	}
	_, err := r.GetByID(ctx, id)
	return err
}

// DayAvailability is one row of the calendar view.
type DayAvailability struct {
	Date      time.Time `db:"slot_date" json:"date"`
	Slots     int       `db:"slots" json:"slots"`
	Capacity  int       `db:"capacity" json:"capacity"`
	Available int       `db:"available" json:"available"`
}

// Calendar sums availability per day for one exhibition or show between
// from and to inclusive.  The per-slot figure uses the same
// max(0, capacity - current_bookings - buffer_capacity) formula as the
// ledger.
func (r *TimeSlotRepo) Calendar(ctx context.Context, owner model.Owner, from, to time.Time) ([]DayAvailability, error) {
	col, id := "exhibition_id", uint64(0)
	switch {
	case owner.ExhibitionID != nil:
		id = *owner.ExhibitionID
	case owner.ShowID != nil:
		col, id = "show_id", *owner.ShowID
	}
	query := `SELECT slot_date, COUNT(*) AS slots, SUM(capacity) AS capacity,
		SUM(GREATEST(0, capacity - current_bookings - buffer_capacity)) AS available
		FROM time_slots
		WHERE ` + col + ` = ? AND is_active = 1 AND slot_date BETWEEN ? AND ?
		GROUP BY slot_date ORDER BY slot_date`
	out := []DayAvailability{}
	err := database.Conn(ctx, r.db).SelectContext(ctx, &out, query, id, from.Format("2006-01-02"), to.Format("2006-01-02"))
	return out, err
}

func dateArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format("2006-01-02")
}
