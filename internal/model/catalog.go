package model

import "time"

// Exhibition mirrors `exhibitions`.
type Exhibition struct {
	ID              uint64    `db:"id" json:"id"`
	Slug            string    `db:"slug" json:"slug"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	Category        string    `db:"category" json:"category"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Show mirrors `shows` (planetarium and theatre programmes).
type Show struct {
	ID              uint64    `db:"id" json:"id"`
	Slug            string    `db:"slug" json:"slug"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	ShowType        string    `db:"show_type" json:"show_type"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Pricing mirrors `pricing`; prices are in paise.
type Pricing struct {
	ID           uint64  `db:"id" json:"id"`
	ExhibitionID *uint64 `db:"exhibition_id" json:"exhibition_id,omitempty"`
	ShowID       *uint64 `db:"show_id" json:"show_id,omitempty"`
	TicketType   string  `db:"ticket_type" json:"ticket_type"`
	Price        int64   `db:"price" json:"price"`
}
