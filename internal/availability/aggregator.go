// Package availability overlays active reservations onto the priced
// slot grid of a venue's day. The view is computed fresh on every call
// and never cached, so it reflects reservations created up to the
// instant of the query.
package availability

import (
	"context"
	"time"

	"fieldbook/internal/domain"
	"fieldbook/internal/models"
	"fieldbook/internal/pricing"
)

type Aggregator struct {
	repo domain.Repository
}

func NewAggregator(repo domain.Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// DaySchedule returns the venue's slot grid for the date with slots
// covered by a pending or confirmed reservation marked unavailable.
// Cancelled and completed reservations no longer hold the venue. Slots
// come back ascending by start time.
func (a *Aggregator) DaySchedule(ctx context.Context, venueID int64, date time.Time) ([]models.Slot, error) {
	venue, err := a.repo.GetVenueByID(ctx, venueID)
	if err != nil {
		return nil, err
	}

	slots := pricing.BuildSlots(venue, date)
	return a.overlay(ctx, venueID, date, slots)
}

// HourlyGrid is DaySchedule over a plain 24-hour grid, for callers that
// want occupancy without venue pricing.
func (a *Aggregator) HourlyGrid(ctx context.Context, venueID int64, date time.Time) ([]models.Slot, error) {
	if _, err := a.repo.GetVenueByID(ctx, venueID); err != nil {
		return nil, err
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var slots []models.Slot
	for hour := 0; hour < 24; hour++ {
		start := day.Add(time.Duration(hour) * time.Hour)
		slots = append(slots, models.Slot{
			StartTime:   start,
			EndTime:     start.Add(time.Hour),
			IsPeakHour:  models.IsPeak(hour),
			IsAvailable: true,
		})
	}
	return a.overlay(ctx, venueID, date, slots)
}

func (a *Aggregator) overlay(ctx context.Context, venueID int64, date time.Time, slots []models.Slot) ([]models.Slot, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	reservations, err := a.repo.GetActiveReservationsForRange(ctx, venueID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	// Часы, занятые хотя бы одной активной бронью
	booked := make(map[int]bool)
	for _, r := range reservations {
		start := r.StartTime
		if start.Before(dayStart) {
			start = dayStart
		}
		end := r.EndTime
		if end.After(dayEnd) {
			end = dayEnd
		}
		for t := start.Truncate(time.Hour); t.Before(end); t = t.Add(time.Hour) {
			booked[t.Hour()] = true
		}
	}

	for i := range slots {
		if booked[slots[i].StartTime.Hour()] {
			slots[i].IsAvailable = false
		}
	}
	return slots, nil
}
