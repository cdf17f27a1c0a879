package models

import "time"

// Slot is a derived view of one bookable hour of a venue's day.
// Slots are always recomputed on demand and never persisted.
type Slot struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Price       int64     `json:"price"`
	IsPeakHour  bool      `json:"is_peak_hour"`
	IsAvailable bool      `json:"is_available"`
}

// IsPeak reports whether a slot starting at the given hour falls in the
// fixed peak window [PeakHourStart, PeakHourEnd).
func IsPeak(hour int) bool {
	return hour >= PeakHourStart && hour < PeakHourEnd
}
