package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

// PricingRepo stores per-ticket-type prices for exhibitions and shows.
type PricingRepo struct {
	db *sqlx.DB
}

func NewPricingRepo(db *sqlx.DB) *PricingRepo { return &PricingRepo{db: db} }

// ListFor returns the price rows of one exhibition or show.
func (r *PricingRepo) ListFor(ctx context.Context, owner model.Owner) ([]model.Pricing, error) {
	const base = `SELECT id, exhibition_id, show_id, ticket_type, price FROM pricing`
	out := []model.Pricing{}
	var err error
	if owner.ExhibitionID != nil {
		err = database.Conn(ctx, r.db).SelectContext(ctx, &out, base+` WHERE exhibition_id = ? ORDER BY ticket_type`, *owner.ExhibitionID)
	} else if owner.ShowID != nil {
		err = database.Conn(ctx, r.db).SelectContext(ctx, &out, base+` WHERE show_id = ? ORDER BY ticket_type`, *owner.ShowID)
	}
	return out, err
}

// Upsert writes one price per (owner, ticket type).  The unique key on the
// generated owner_key column turns a second write into an update.
func (r *PricingRepo) Upsert(ctx context.Context, p model.Pricing) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO pricing (exhibition_id, show_id, ticket_type, price) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE price = VALUES(price)`,
		p.ExhibitionID, p.ShowID, p.TicketType, p.Price)
	return err
}
