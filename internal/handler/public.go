package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// slotHorizon is how far ahead an undated slot listing reaches.
const slotHorizon = 30 * 24 * time.Hour

// ListExhibitions returns the active exhibitions.  ?q= matches the title
// and ?category= the category, both case-insensitively.
func (h *CatalogHandler) ListExhibitions(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	all, err := h.Exhibitions.List(ctx, true)
	if err != nil {
		return respondError(c, err)
	}
	q, category := c.QueryParam("q"), c.QueryParam("category")
	out := all[:0:0]
	for _, e := range all {
		if matches(e.Title, q) && (category == "" || strings.EqualFold(e.Category, category)) {
			out = append(out, e)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func matches(title, q string) bool {
	q = strings.TrimSpace(q)
	return q == "" || strings.Contains(strings.ToLower(title), strings.ToLower(q))
}

// GetExhibition returns one active exhibition with its price list.
func (h *CatalogHandler) GetExhibition(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	e, err := h.Exhibitions.GetByID(ctx, id)
	if err == nil && !e.IsActive {
		err = repository.ErrNotFound
	}
	if err != nil {
		return respondError(c, err)
	}
	prices, err := h.Prices.ListFor(ctx, exhibitionOwner(id))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"exhibition": e, "pricing": prices})
}

// ListShows returns the active shows, filtered like ListExhibitions with
// ?type= for the show type.
func (h *CatalogHandler) ListShows(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	all, err := h.Shows.List(ctx, true)
	if err != nil {
		return respondError(c, err)
	}
	q, showType := c.QueryParam("q"), c.QueryParam("type")
	out := all[:0:0]
	for _, s := range all {
		if matches(s.Title, q) && (showType == "" || strings.EqualFold(s.ShowType, showType)) {
			out = append(out, s)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetShow returns one active show with its price list.
func (h *CatalogHandler) GetShow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Shows.GetByID(ctx, id)
	if err == nil && !s.IsActive {
		err = repository.ErrNotFound
	}
	if err != nil {
		return respondError(c, err)
	}
	prices, err := h.Prices.ListFor(ctx, showOwner(id))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show": s, "pricing": prices})
}

// ExhibitionSlots lists bookable slots of an exhibition.
func (h *CatalogHandler) ExhibitionSlots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	return h.publicSlots(c, exhibitionOwner(id))
}

// ShowSlots lists bookable slots of a show.
func (h *CatalogHandler) ShowSlots(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	return h.publicSlots(c, showOwner(id))
}

// publicSlots lists active dated slots on ?date=, or from today over the
// next thirty days, each with its available capacity.
func (h *CatalogHandler) publicSlots(c echo.Context, owner model.Owner) error {
	date, ok := queryDate(c, "date")
	if !ok {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	f := repository.SlotFilter{Owner: owner, ActiveOnly: true}
	if date != nil {
		f.Date = date
	} else {
		today := h.now().Truncate(24 * time.Hour)
		until := today.Add(slotHorizon)
		f.From, f.To = &today, &until
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	slots, err := h.Slots.List(ctx, f)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": service.Views(slots)})
}

// Calendar sums availability per day of ?month=YYYY-MM (default: the
// current month) for an exhibition.
func (h *CatalogHandler) Calendar(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	first := h.now()
	if m := c.QueryParam("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			return badRequest(c, "month must be YYYY-MM")
		}
		first = t
	}
	first = time.Date(first.Year(), first.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	ctx, cancel := withTimeout(c)
	defer cancel()
	days, err := h.Slots.Calendar(ctx, exhibitionOwner(id), first, last)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"month": first.Format("2006-01"), "days": days})
}

// Availability is the live capacity reading of one slot.  It is never
// cached.
func (h *CatalogHandler) Availability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	v, err := h.Planner.Availability(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"time_slot_id":       v.ID,
		"capacity":           v.Capacity,
		"current_bookings":   v.CurrentBookings,
		"buffer_capacity":    v.BufferCapacity,
		"available_capacity": v.AvailableCapacity,
		"bookable":           v.Bookable,
	})
}
