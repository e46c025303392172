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

const exhibitionColumns = `id, slug, title, description, category, duration_minutes, is_active, created_at, updated_at`

// ExhibitionRepo manages persistence for exhibitions.
type ExhibitionRepo struct {
	db *sqlx.DB
}

// NewExhibitionRepo constructs an ExhibitionRepo with the given DB handle.
func NewExhibitionRepo(db *sqlx.DB) *ExhibitionRepo { return &ExhibitionRepo{db: db} }

// Create inserts a new exhibition and reloads it so DB defaults
// (is_active, timestamps) are populated on e.  Duplicate slugs yield
// ErrConflict.
func (r *ExhibitionRepo) Create(ctx context.Context, e *model.Exhibition) error {
	q := database.Conn(ctx, r.db)
	res, err := q.ExecContext(ctx,
		`INSERT INTO exhibitions (slug, title, description, category, duration_minutes) VALUES (?, ?, ?, ?, ?)`,
		e.Slug, e.Title, e.Description, e.Category, e.DurationMinutes)
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
	return q.GetContext(ctx, e, `SELECT `+exhibitionColumns+` FROM exhibitions WHERE id = ?`, id)
}

// GetByID returns ErrNotFound if there is no matching row.
func (r *ExhibitionRepo) GetByID(ctx context.Context, id uint64) (model.Exhibition, error) {
	var e model.Exhibition
	err := database.Conn(ctx, r.db).GetContext(ctx, &e, `SELECT `+exhibitionColumns+` FROM exhibitions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

// List returns exhibitions ordered by title.  When activeOnly is set,
// deactivated rows are skipped (public catalogue).
func (r *ExhibitionRepo) List(ctx context.Context, activeOnly bool) ([]model.Exhibition, error) {
	query := `SELECT ` + exhibitionColumns + ` FROM exhibitions`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY title`
	out := []model.Exhibition{}
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list exhibitions: %w", err)
	}
	return out, nil
}

// Update overwrites the editable fields.
func (r *ExhibitionRepo) Update(ctx context.Context, e *model.Exhibition) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE exhibitions SET slug = ?, title = ?, description = ?, category = ?, duration_minutes = ?, is_active = ? WHERE id = ?`,
		e.Slug, e.Title, e.Description, e.Category, e.DurationMinutes, e.IsActive, e.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	return r.requireRow(ctx, res, e.ID)
}

// Deactivate hides the exhibition.  Rows are never hard-deleted because
// bookings reference their slots.
func (r *ExhibitionRepo) Deactivate(ctx context.Context, id uint64) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE exhibitions SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return r.requireRow(ctx, res, id)
}

// requireRow tells "no row" apart from "nothing changed" (MySQL reports
// zero affected rows for both).
func (r *ExhibitionRepo) requireRow(ctx context.Context, res sql.Result, id uint64) error {
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err := r.GetByID(ctx, id)
	return err
}
