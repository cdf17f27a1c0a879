// Package pricing derives the priced slot grid for a venue's day.
// Slots are computed on demand and never stored.
package pricing

import (
	"time"

	"fieldbook/internal/models"
)

// PriceFor resolves the price of a slot starting at the given hour. The
// first configured rate rule of the resolved day type whose range
// contains the hour wins; rule order is the only tie-break for
// overlapping ranges. Without a matching rule the built-in defaults
// apply: 500000 during peak hours, 300000 otherwise.
func PriceFor(venue *models.Venue, dayType string, hour int) int64 {
	for _, rule := range venue.RateRules {
		if rule.DayType == dayType && rule.Contains(hour) {
			return rule.Price
		}
	}

	if models.IsPeak(hour) {
		return models.DefaultPeakPrice
	}
	return models.DefaultOffPeakPrice
}

// BuildSlots produces one slot per hour covering [open, close) of the
// venue's operating day, priced and flagged for peak hours. Every slot
// starts out available; the availability package overlays reservations.
func BuildSlots(venue *models.Venue, date time.Time) []models.Slot {
	dayType := models.DayTypeFor(date)
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

	var slots []models.Slot
	for hour := venue.OpenHour; hour < venue.CloseHour; hour += models.SlotDurationHours {
		start := day.Add(time.Duration(hour) * time.Hour)
		slots = append(slots, models.Slot{
			StartTime:   start,
			EndTime:     start.Add(models.SlotDurationHours * time.Hour),
			Price:       PriceFor(venue, dayType, hour),
			IsPeakHour:  models.IsPeak(hour),
			IsAvailable: true,
		})
	}
	return slots
}

// QuoteInterval prices a candidate interval as the sum of the hourly
// slot prices it touches.
func QuoteInterval(venue *models.Venue, start, end time.Time) int64 {
	dayType := models.DayTypeFor(start)

	var total int64
	for t := start.Truncate(time.Hour); t.Before(end); t = t.Add(time.Hour) {
		total += PriceFor(venue, dayType, t.Hour())
	}
	return total
}
