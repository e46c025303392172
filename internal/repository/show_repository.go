package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

const showColumns = `id, slug, title, description, show_type, duration_minutes, is_active, created_at, updated_at`

// ShowRepo manages persistence for shows (planetarium, 3D theatre and
// similar programmes that run in their own time slots).
type ShowRepo struct {
	db *sqlx.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sqlx.DB) *ShowRepo { return &ShowRepo{db: db} }

// Create inserts a new show and reloads DB defaults into s.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) error {
	q := database.Conn(ctx, r.db)
	res, err := q.ExecContext(ctx,
		`INSERT INTO shows (slug, title, description, show_type, duration_minutes) VALUES (?, ?, ?, ?, ?)`,
		s.Slug, s.Title, s.Description, s.ShowType, s.DurationMinutes)
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
	return q.GetContext(ctx, s, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
}

// GetByID retrieves a show by its ID.  It returns ErrNotFound if there is
// no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (model.Show, error) {
	var s model.Show
	err := database.Conn(ctx, r.db).GetContext(ctx, &s, `SELECT `+showColumns+` FROM shows WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// List returns shows ordered by title.
func (r *ShowRepo) List(ctx context.Context, activeOnly bool) ([]model.Show, error) {
	query := `SELECT ` + showColumns + ` FROM shows`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY title`
	out := []model.Show{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	return out, nil
}

// Update overwrites the editable fields.
func (r *ShowRepo) Update(ctx context.Context, s *model.Show) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE shows SET slug = ?, title = ?, description = ?, show_type = ?, duration_minutes = ?, is_active = ? WHERE id = ?`,
		s.Slug, s.Title, s.Description, s.ShowType, s.DurationMinutes, s.IsActive, s.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.GetByID(ctx, s.ID)
	return err
}

// Deactivate soft-deletes a show.
func (r *ShowRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE shows SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.GetByID(ctx, id)
	return err
}
