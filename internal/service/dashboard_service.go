package service

import (
	"context"
	"math"
	"time"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
)

// StatsSource runs the dashboard aggregations.
type StatsSource interface {
	Totals(ctx context.Context, from, to time.Time) (repository.PeriodTotals, error)
	RevenueByOwner(ctx context.Context, from, to time.Time) ([]repository.OwnerRevenue, error)
}

// Dashboard compares the last Days days with the Days before them.
type Dashboard struct {
	Days     int                       `json:"days"`
	From     time.Time                 `json:"from"`
	To       time.Time                 `json:"to"`
	Current  repository.PeriodTotals   `json:"current"`
	Previous repository.PeriodTotals   `json:"previous"`
	Change   Deltas                    `json:"change_pct"`
	ByOwner  []repository.OwnerRevenue `json:"revenue_by_owner"`
}

// Deltas are percentage changes rounded to one decimal.
type Deltas struct {
	Bookings float64 `json:"bookings"`
	Tickets  float64 `json:"tickets"`
	Revenue  float64 `json:"revenue"`
}

type DashboardService struct {
	stats StatsSource
	now   clock
}

func NewDashboardService(stats StatsSource) *DashboardService {
	return &DashboardService{stats: stats, now: utcNow}
}

// Summary builds the dashboard.  days is clamped to [1, 366].
func (s *DashboardService) Summary(ctx context.Context, days int) (Dashboard, error) {
	if days < 1 {
		days = 30
	}
	if days > 366 {
		days = 366
	}
	to := s.now()
	from := to.AddDate(0, 0, -days)
	prevFrom := from.AddDate(0, 0, -days)

	cur, err := s.stats.Totals(ctx, from, to)
	if err != nil {
		return Dashboard{}, err
	}
	prev, err := s.stats.Totals(ctx, prevFrom, from)
	if err != nil {
		return Dashboard{}, err
	}
	byOwner, err := s.stats.RevenueByOwner(ctx, from, to)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{
		Days:     days,
		From:     from,
		To:       to,
		Current:  cur,
		Previous: prev,
		Change: Deltas{
			Bookings: PercentChange(float64(prev.Bookings), float64(cur.Bookings)),
			Tickets:  PercentChange(float64(prev.Tickets), float64(cur.Tickets)),
			Revenue:  PercentChange(float64(prev.Revenue), float64(cur.Revenue)),
		},
		ByOwner: byOwner,
	}, nil
}

// PercentChange is (cur-prev)/prev*100 rounded to one decimal.  Growth
// from zero is reported as 100 and no activity in either period as 0.
func PercentChange(prev, cur float64) float64 {
	if prev == 0 {
		if cur == 0 {
			return 0
		}
		return 100
	}
	return math.Round((cur-prev)/prev*1000) / 10
}
