package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

const (
	selectSlot = `SELECT id, exhibition_id, show_id, slot_date, day_of_week, start_time, end_time,
		capacity, current_bookings, buffer_capacity, is_active, created_at, updated_at
		FROM time_slots WHERE id = ?`

	// The WHERE clause is the whole concurrency story: InnoDB locks the row
	// for the UPDATE, so concurrent reservations serialize and the
	// condition is evaluated against the committed counter.
	reserveSlot = `UPDATE time_slots SET current_bookings = current_bookings + ?
		WHERE id = ? AND is_active = 1 AND slot_date IS NOT NULL
		AND current_bookings + ? <= capacity - buffer_capacity`

	releaseSlot = `UPDATE time_slots SET current_bookings = GREATEST(0, current_bookings - ?) WHERE id = ?`

	resizeSlot = `UPDATE time_slots SET capacity = ?, buffer_capacity = ?
		WHERE id = ? AND current_bookings <= ? - ?`
)

// SQLStore implements Store on MySQL.  It joins any transaction carried by
// the context.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore binds the store to db.
func NewSQLStore(db *sqlx.DB) *SQLStore { return &SQLStore{db: db} }

// Get loads a slot or returns ErrSlotNotFound.
func (s *SQLStore) Get(ctx context.Context, slotID uint64) (model.TimeSlot, error) {
	var slot model.TimeSlot
	err := database.Conn(ctx, s.db).GetContext(ctx, &slot, selectSlot, slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TimeSlot{}, ErrSlotNotFound
	}
	return slot, err
}

// IncrementIfAvailable runs the conditional UPDATE and reports whether a
// row changed.
func (s *SQLStore) IncrementIfAvailable(ctx context.Context, slotID uint64, n int) (bool, error) {
	res, err := database.Conn(ctx, s.db).ExecContext(ctx, reserveSlot, n, slotID, n)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Decrement floors at zero.  MySQL reports zero affected rows when the
// counter was already zero, so the result is not inspected.
func (s *SQLStore) Decrement(ctx context.Context, slotID uint64, n int) error {
	_, err := database.Conn(ctx, s.db).ExecContext(ctx, releaseSlot, n, slotID)
	return err
}

// ResizeIfFits updates capacity and buffer when current bookings still fit.
func (s *SQLStore) ResizeIfFits(ctx context.Context, slotID uint64, capacity, buffer int) (bool, error) {
	res, err := database.Conn(ctx, s.db).ExecContext(ctx, resizeSlot, capacity, buffer, slotID, capacity, buffer)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 1 {
		return true, nil
	}
	// Unchanged values also report zero rows; treat a fitting no-op as success.
	slot, err := s.Get(ctx, slotID)
	if err != nil {
		return false, err
	}
	return slot.Capacity == capacity && slot.BufferCapacity == buffer, nil
}
