package models

import "time"

type Venue struct {
	ID          int64      `yaml:"id" json:"id"`
	Name        string     `yaml:"name" json:"name"`
	Description string     `yaml:"description" json:"description"`
	OpenHour    int        `yaml:"open_hour" json:"open_hour"`
	CloseHour   int        `yaml:"close_hour" json:"close_hour"`
	RateRules   []RateRule `yaml:"rate_rules" json:"rate_rules,omitempty"`
	SortOrder   int64      `yaml:"sort_order" json:"sort_order"`
	IsActive    bool       `yaml:"is_active" json:"is_active"`
	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at" json:"updated_at"`
}

// RateRule is one configured price for a day type and a time-of-day range.
// Ranges are half-open hours: [start_hour, end_hour).
type RateRule struct {
	DayType   string `yaml:"day_type" json:"day_type"` // weekday, weekend
	StartHour int    `yaml:"start_hour" json:"start_hour"`
	EndHour   int    `yaml:"end_hour" json:"end_hour"`
	Price     int64  `yaml:"price" json:"price"`
}

// Contains reports whether a slot starting at the given hour falls in the rule range.
func (r RateRule) Contains(hour int) bool {
	return hour >= r.StartHour && hour < r.EndHour
}

// DayTypeFor classifies a calendar date: Saturday and Sunday are weekend.
func DayTypeFor(date time.Time) string {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return DayTypeWeekend
	default:
		return DayTypeWeekday
	}
}
