package handler

import (
	"context"
	"time"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// ExhibitionStore is implemented by *repository.ExhibitionRepo.
type ExhibitionStore interface {
	Create(ctx context.Context, e *model.Exhibition) error
	GetByID(ctx context.Context, id uint64) (model.Exhibition, error)
	List(ctx context.Context, activeOnly bool) ([]model.Exhibition, error)
	Update(ctx context.Context, e *model.Exhibition) error
	Deactivate(ctx context.Context, id uint64) error
}

// ShowStore is implemented by *repository.ShowRepo.
type ShowStore interface {
	Create(ctx context.Context, s *model.Show) error
	GetByID(ctx context.Context, id uint64) (model.Show, error)
	List(ctx context.Context, activeOnly bool) ([]model.Show, error)
	Update(ctx context.Context, s *model.Show) error
	Deactivate(ctx context.Context, id uint64) error
}

// PricingStore is implemented by *repository.PricingRepo.
type PricingStore interface {
	ListFor(ctx context.Context, owner model.Owner) ([]model.Pricing, error)
	Upsert(ctx context.Context, p model.Pricing) error
}

// SlotReader is the read side of *repository.TimeSlotRepo plus the
// schedule edits that do not touch capacity.
type SlotReader interface {
	GetByID(ctx context.Context, id uint64) (model.TimeSlot, error)
	List(ctx context.Context, f repository.SlotFilter) ([]model.TimeSlot, error)
	Calendar(ctx context.Context, owner model.Owner, from, to time.Time) ([]repository.DayAvailability, error)
	SetActive(ctx context.Context, id uint64, active bool) error
}

// SlotPlanner is implemented by *service.SlotService.
type SlotPlanner interface {
	Create(ctx context.Context, slot *model.TimeSlot) error
	Generate(ctx context.Context, in service.PlanInput) (int, error)
	Resize(ctx context.Context, id uint64, capacity, buffer int) (model.TimeSlot, error)
	Reschedule(ctx context.Context, id uint64, start, end string) (model.TimeSlot, error)
	Availability(ctx context.Context, id uint64) (service.SlotView, error)
}

// CatalogHandler serves exhibitions, shows, their prices and their time
// slots, publicly and in the back office.
type CatalogHandler struct {
	Exhibitions ExhibitionStore
	Shows       ShowStore
	Prices      PricingStore
	Slots       SlotReader
	Planner     SlotPlanner
	now         func() time.Time
}

func NewCatalogHandler(e ExhibitionStore, s ShowStore, p PricingStore, slots SlotReader, planner SlotPlanner) *CatalogHandler {
	return &CatalogHandler{
		Exhibitions: e,
		Shows:       s,
		Prices:      p,
		Slots:       slots,
		Planner:     planner,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func exhibitionOwner(id uint64) model.Owner { return model.Owner{ExhibitionID: &id} }
func showOwner(id uint64) model.Owner       { return model.Owner{ShowID: &id} }
