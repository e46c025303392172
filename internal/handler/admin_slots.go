package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// AdminListSlots lists every slot of ?exhibition_id= or ?show_id=,
// including templates and inactive slots, optionally bounded by ?from= and
// ?to=.
func (h *CatalogHandler) AdminListSlots(c echo.Context) error {
	owner, ok := ownerFromQuery(c)
	if !ok {
		return badRequest(c, "exactly one of exhibition_id or show_id is required")
	}
	from, okFrom := queryDate(c, "from")
	to, okTo := queryDate(c, "to")
	if !okFrom || !okTo {
		return badRequest(c, "from/to must be YYYY-MM-DD")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	slots, err := h.Slots.List(ctx, repository.SlotFilter{Owner: owner, From: from, To: to})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": service.Views(slots)})
}

type slotReq struct {
	ExhibitionID   *uint64 `json:"exhibition_id"`
	ShowID         *uint64 `json:"show_id"`
	SlotDate       string  `json:"slot_date"`
	DayOfWeek      *int    `json:"day_of_week"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Capacity       int     `json:"capacity"`
	BufferCapacity int     `json:"buffer_capacity"`
}

// CreateSlot adds one dated slot or weekday template.
func (h *CatalogHandler) CreateSlot(c echo.Context) error {
	var req slotReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	slot := model.TimeSlot{
		ExhibitionID:   req.ExhibitionID,
		ShowID:         req.ShowID,
		DayOfWeek:      req.DayOfWeek,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Capacity:       req.Capacity,
		BufferCapacity: req.BufferCapacity,
		IsActive:       true,
	}
	if req.SlotDate != "" {
		d, err := parseDay(req.SlotDate)
		if err != nil {
			return badRequest(c, "slot_date must be YYYY-MM-DD")
		}
		slot.SlotDate = &d
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Planner.Create(ctx, &slot); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, service.Views([]model.TimeSlot{slot})[0])
}

type generateReq struct {
	ExhibitionID *uint64 `json:"exhibition_id"`
	ShowID       *uint64 `json:"show_id"`
	service.PlanInput
}

// GenerateSlots expands a date range, weekdays and daily windows into
// dated slots.
func (h *CatalogHandler) GenerateSlots(c echo.Context) error {
	var req generateReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in := req.PlanInput
	in.Owner = model.Owner{ExhibitionID: req.ExhibitionID, ShowID: req.ShowID}
	ctx, cancel := withTimeout(c)
	defer cancel()
	n, err := h.Planner.Generate(ctx, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": n})
}

type resizeReq struct {
	Capacity       int `json:"capacity"`
	BufferCapacity int `json:"buffer_capacity"`
}

// ResizeSlot changes capacity and buffer.  409 when the new values do not
// cover the tickets already reserved.
func (h *CatalogHandler) ResizeSlot(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req resizeReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	slot, err := h.Planner.Resize(ctx, id, req.Capacity, req.BufferCapacity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, service.Views([]model.TimeSlot{slot})[0])
}

type rescheduleReq struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// RescheduleSlot changes the daily window of a slot.
func (h *CatalogHandler) RescheduleSlot(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req rescheduleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	slot, err := h.Planner.Reschedule(ctx, id, req.StartTime, req.EndTime)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, service.Views([]model.TimeSlot{slot})[0])
}

// DeactivateSlot stops new reservations.  Existing bookings stay valid.
func (h *CatalogHandler) DeactivateSlot(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Slots.SetActive(ctx, id, false); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
