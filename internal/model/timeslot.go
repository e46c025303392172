package model

import "time"

// TimeSlot represents a row in the `time_slots` table: a bookable window
// for either an exhibition or a show.  Slots with a nil SlotDate are
// recurring weekday templates; they are listed in schedules but cannot be
// reserved against until materialized into dated slots.
type TimeSlot struct {
	ID              uint64     `db:"id" json:"id"`
	ExhibitionID    *uint64    `db:"exhibition_id" json:"exhibition_id,omitempty"`
	ShowID          *uint64    `db:"show_id" json:"show_id,omitempty"`
	SlotDate        *time.Time `db:"slot_date" json:"slot_date,omitempty"`
	DayOfWeek       *int       `db:"day_of_week" json:"day_of_week,omitempty"`
	StartTime       string     `db:"start_time" json:"start_time"`
	EndTime         string     `db:"end_time" json:"end_time"`
	Capacity        int        `db:"capacity" json:"capacity"`
	CurrentBookings int        `db:"current_bookings" json:"current_bookings"`
	BufferCapacity  int        `db:"buffer_capacity" json:"buffer_capacity"`
	IsActive        bool       `db:"is_active" json:"is_active"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// Available is capacity - current_bookings - buffer_capacity floored at 0.
func (s TimeSlot) Available() int {
	n := s.Capacity - s.CurrentBookings - s.BufferCapacity
	if n < 0 {
		return 0
	}
	return n
}

// Bookable reports whether the slot can take reservations at all.
func (s TimeSlot) Bookable() bool {
	return s.IsActive && s.SlotDate != nil
}

// Owner returns the exhibition or show the slot belongs to.
func (s TimeSlot) Owner() Owner {
	return Owner{ExhibitionID: s.ExhibitionID, ShowID: s.ShowID}
}

// Owner identifies an exhibition or a show.  Exactly one field is set.
type Owner struct {
	ExhibitionID *uint64 `json:"exhibition_id,omitempty"`
	ShowID       *uint64 `json:"show_id,omitempty"`
}

// Valid reports whether exactly one of the references is set.
func (o Owner) Valid() bool {
	return (o.ExhibitionID != nil) != (o.ShowID != nil)
}
