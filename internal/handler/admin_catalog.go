package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

type exhibitionReq struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        *bool  `json:"is_active"`
}

func (r exhibitionReq) validate() string {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return "title is required"
	case strings.TrimSpace(r.Slug) == "":
		return "slug is required"
	case r.DurationMinutes < 0:
		return "duration_minutes cannot be negative"
	}
	return ""
}

// AdminListExhibitions includes inactive rows.
func (h *CatalogHandler) AdminListExhibitions(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Exhibitions.List(ctx, false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *CatalogHandler) AdminGetExhibition(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	e, err := h.Exhibitions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *CatalogHandler) CreateExhibition(c echo.Context) error {
	var req exhibitionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	e := model.Exhibition{
		Slug:            strings.ToLower(strings.TrimSpace(req.Slug)),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Category:        req.Category,
		DurationMinutes: req.DurationMinutes,
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Exhibitions.Create(ctx, &e); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *CatalogHandler) UpdateExhibition(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req exhibitionReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	e, err := h.Exhibitions.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	e.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	e.Title = strings.TrimSpace(req.Title)
	e.Description, e.Category, e.DurationMinutes = req.Description, req.Category, req.DurationMinutes
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	if err := h.Exhibitions.Update(ctx, &e); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// DeleteExhibition deactivates; bookings keep their slots.
func (h *CatalogHandler) DeleteExhibition(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Exhibitions.Deactivate(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type showReq struct {
	Slug            string `json:"slug"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	ShowType        string `json:"show_type"`
	DurationMinutes int    `json:"duration_minutes"`
	IsActive        *bool  `json:"is_active"`
}

func (r showReq) validate() string {
	return exhibitionReq{Slug: r.Slug, Title: r.Title, DurationMinutes: r.DurationMinutes}.validate()
}

func (h *CatalogHandler) AdminListShows(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Shows.List(ctx, false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *CatalogHandler) AdminGetShow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Shows.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *CatalogHandler) CreateShow(c echo.Context) error {
	var req showReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	s := model.Show{
		Slug:            strings.ToLower(strings.TrimSpace(req.Slug)),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		ShowType:        req.ShowType,
		DurationMinutes: req.DurationMinutes,
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Shows.Create(ctx, &s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *CatalogHandler) UpdateShow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req showReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if msg := req.validate(); msg != "" {
		return badRequest(c, msg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	s, err := h.Shows.GetByID(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	s.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	s.Title = strings.TrimSpace(req.Title)
	s.Description, s.ShowType, s.DurationMinutes = req.Description, req.ShowType, req.DurationMinutes
	if req.IsActive != nil {
		s.IsActive = *req.IsActive
	}
	if err := h.Shows.Update(ctx, &s); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *CatalogHandler) DeleteShow(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Shows.Deactivate(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ownerFromQuery reads ?exhibition_id= or ?show_id=; exactly one must be
// given.
func ownerFromQuery(c echo.Context) (model.Owner, bool) {
	var o model.Owner
	if v := c.QueryParam("exhibition_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return o, false
		}
		o.ExhibitionID = &id
	}
	if v := c.QueryParam("show_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return o, false
		}
		o.ShowID = &id
	}
	return o, o.Valid()
}

// GetPricing lists the price list of ?exhibition_id= or ?show_id=.
func (h *CatalogHandler) GetPricing(c echo.Context) error {
	owner, ok := ownerFromQuery(c)
	if !ok {
		return badRequest(c, "exactly one of exhibition_id or show_id is required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	out, err := h.Prices.ListFor(ctx, owner)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

type pricingReq struct {
	ExhibitionID *uint64          `json:"exhibition_id"`
	ShowID       *uint64          `json:"show_id"`
	Prices       map[string]int64 `json:"prices"`
}

// PutPricing upserts one price per posted ticket type.
func (h *CatalogHandler) PutPricing(c echo.Context) error {
	var req pricingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	owner := model.Owner{ExhibitionID: req.ExhibitionID, ShowID: req.ShowID}
	if !owner.Valid() {
		return badRequest(c, "exactly one of exhibition_id or show_id is required")
	}
	if len(req.Prices) == 0 {
		return badRequest(c, "prices are required")
	}
	known := map[string]bool{}
	for _, t := range model.TicketTypes {
		known[t] = true
	}
	for t, p := range req.Prices {
		if !known[t] {
			return badRequest(c, "unknown ticket type "+t)
		}
		if p < 0 {
			return badRequest(c, "prices cannot be negative")
		}
	}

	ctx, cancel := withTimeout(c)
	defer cancel()
	for _, t := range model.TicketTypes {
		p, ok := req.Prices[t]
		if !ok {
			continue
		}
		if err := h.Prices.Upsert(ctx, model.Pricing{ExhibitionID: owner.ExhibitionID, ShowID: owner.ShowID, TicketType: t, Price: p}); err != nil {
			return respondError(c, err)
		}
	}
	out, err := h.Prices.ListFor(ctx, owner)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}
