package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/inventory"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
)

// MaxGeneratedSlots caps one bulk generation request.
const MaxGeneratedSlots = 1000

// SlotService manages the slot schedule.  Capacity changes go through the
// ledger so they can never undercut existing reservations.
type SlotService struct {
	tx     TxRunner
	ledger CapacityLedger
	slots  SlotStore
}

func NewSlotService(tx TxRunner, ledger CapacityLedger, slots SlotStore) *SlotService {
	return &SlotService{tx: tx, ledger: ledger, slots: slots}
}

// SlotView is a slot with its advisory availability.
type SlotView struct {
	model.TimeSlot
	AvailableCapacity int  `json:"available_capacity"`
	Bookable          bool `json:"bookable"`
}

// Views decorates slots for display using the same formula as the ledger.
func Views(slots []model.TimeSlot) []SlotView {
	out := make([]SlotView, len(slots))
	for i, s := range slots {
		out[i] = SlotView{TimeSlot: s, AvailableCapacity: s.Available(), Bookable: s.Bookable() && s.Available() > 0}
	}
	return out
}

// Window is one daily opening window, "HH:MM" or "HH:MM:SS".
type Window struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// PlanInput describes a bulk generation: every date in [From, To] whose
// weekday is listed (all days when Weekdays is empty) gets one slot per
// window.
type PlanInput struct {
	Owner    model.Owner `json:"-"`
	From     string      `json:"from"`
	To       string      `json:"to"`
	Weekdays []int       `json:"weekdays"`
	Windows  []Window    `json:"windows"`
	Capacity int         `json:"capacity"`
	Buffer   int         `json:"buffer_capacity"`
}

// PlanSlots expands in into dated slots without touching storage.
func PlanSlots(in PlanInput) ([]model.TimeSlot, error) {
	if !in.Owner.Valid() {
		return nil, fmt.Errorf("%w: exactly one of exhibition or show is required", ErrValidation)
	}
	if err := validateCapacity(in.Capacity, in.Buffer); err != nil {
		return nil, err
	}
	from, err := time.Parse("2006-01-02", in.From)
	if err != nil {
		return nil, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrValidation)
	}
	to, err := time.Parse("2006-01-02", in.To)
	if err != nil {
		return nil, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrValidation)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to is before from", ErrValidation)
	}
	if len(in.Windows) == 0 {
		return nil, fmt.Errorf("%w: at least one window is required", ErrValidation)
	}
	windows := make([]Window, len(in.Windows))
	for i, w := range in.Windows {
		start, end, err := normalizeWindow(w.Start, w.End)
		if err != nil {
			return nil, err
		}
		windows[i] = Window{Start: start, End: end}
	}
	days := map[time.Weekday]bool{}
	for _, d := range in.Weekdays {
		if d < 0 || d > 6 {
			return nil, fmt.Errorf("%w: weekday %d out of range 0-6", ErrValidation, d)
		}
		days[time.Weekday(d)] = true
	}

	var out []model.TimeSlot
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if len(days) > 0 && !days[d.Weekday()] {
			continue
		}
		for _, w := range windows {
			if len(out) == MaxGeneratedSlots {
				return nil, fmt.Errorf("%w: more than %d slots requested", ErrValidation, MaxGeneratedSlots)
			}
			date := d
			out = append(out, model.TimeSlot{
				ExhibitionID:   in.Owner.ExhibitionID,
				ShowID:         in.Owner.ShowID,
				SlotDate:       &date,
				StartTime:      w.Start,
				EndTime:        w.End,
				Capacity:       in.Capacity,
				BufferCapacity: in.Buffer,
				IsActive:       true,
			})
		}
	}
	return out, nil
}

// Generate plans and inserts slots, skipping any date and start time the
// owner already has.  It returns the number inserted.
func (s *SlotService) Generate(ctx context.Context, in PlanInput) (int, error) {
	planned, err := PlanSlots(in)
	if err != nil || len(planned) == 0 {
		return 0, err
	}
	n := 0
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		from, to := planned[0].SlotDate, planned[len(planned)-1].SlotDate
		existing, err := s.slots.List(ctx, repository.SlotFilter{Owner: in.Owner, From: from, To: to})
		if err != nil {
			return err
		}
		taken := make(map[string]bool, len(existing))
		for _, e := range existing {
			if e.SlotDate != nil {
				taken[slotKey(*e.SlotDate, e.StartTime)] = true
			}
		}
		fresh := planned[:0:0]
		for _, p := range planned {
			if !taken[slotKey(*p.SlotDate, p.StartTime)] {
				fresh = append(fresh, p)
			}
		}
		n, err = s.slots.CreateBulk(ctx, fresh)
		return err
	})
	return n, err
}

func slotKey(d time.Time, start string) string {
	return d.Format("2006-01-02") + " " + start
}

// Create validates and inserts a single slot, dated or weekday template.
func (s *SlotService) Create(ctx context.Context, slot *model.TimeSlot) error {
	if !slot.Owner().Valid() {
		return fmt.Errorf("%w: exactly one of exhibition or show is required", ErrValidation)
	}
	if err := validateCapacity(slot.Capacity, slot.BufferCapacity); err != nil {
		return err
	}
	if (slot.SlotDate == nil) == (slot.DayOfWeek == nil) {
		return fmt.Errorf("%w: set either slot_date or day_of_week", ErrValidation)
	}
	if slot.DayOfWeek != nil && (*slot.DayOfWeek < 0 || *slot.DayOfWeek > 6) {
		return fmt.Errorf("%w: day_of_week out of range 0-6", ErrValidation)
	}
	start, end, err := normalizeWindow(slot.StartTime, slot.EndTime)
	if err != nil {
		return err
	}
	slot.StartTime, slot.EndTime = start, end
	return s.slots.Create(ctx, slot)
}

// Resize changes capacity and buffer.  It refuses values below what is
// already reserved.
func (s *SlotService) Resize(ctx context.Context, id uint64, capacity, buffer int) (model.TimeSlot, error) {
	if err := validateCapacity(capacity, buffer); err != nil {
		return model.TimeSlot{}, err
	}
	if err := s.ledger.Resize(ctx, id, capacity, buffer); err != nil {
		return model.TimeSlot{}, err
	}
	return s.slots.GetByID(ctx, id)
}

// Reschedule moves a slot to a new daily window.  Reservations are kept.
func (s *SlotService) Reschedule(ctx context.Context, id uint64, start, end string) (model.TimeSlot, error) {
	start, end, err := normalizeWindow(start, end)
	if err != nil {
		return model.TimeSlot{}, err
	}
	if err := s.slots.UpdateTimes(ctx, id, start, end); err != nil {
		return model.TimeSlot{}, err
	}
	return s.slots.GetByID(ctx, id)
}

// Availability is the capacity reader for one slot.
func (s *SlotService) Availability(ctx context.Context, id uint64) (SlotView, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return SlotView{}, inventory.ErrSlotNotFound
	}
	if err != nil {
		return SlotView{}, err
	}
	return Views([]model.TimeSlot{slot})[0], nil
}

func validateCapacity(capacity, buffer int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrValidation)
	}
	if buffer < 0 || buffer >= capacity {
		return fmt.Errorf("%w: buffer_capacity must be in [0, capacity)", ErrValidation)
	}
	return nil
}

func normalizeWindow(start, end string) (string, string, error) {
	st, err := parseClock(start)
	if err != nil {
		return "", "", err
	}
	et, err := parseClock(end)
	if err != nil {
		return "", "", err
	}
	if !et.After(st) {
		return "", "", fmt.Errorf("%w: end_time must be after start_time", ErrValidation)
	}
	return st.Format("15:04:05"), et.Format("15:04:05"), nil
}

func parseClock(s string) (time.Time, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not HH:MM", ErrValidation, s)
}
