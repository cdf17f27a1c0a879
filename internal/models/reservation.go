package models

import "time"

type Reservation struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	VenueID    int64     `json:"venue_id"`
	VenueName  string    `json:"venue_name"`
	PlayerID   int64     `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Phone      string    `json:"phone"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Price      int64     `json:"price"`
	Status     string    `json:"status"` // pending, confirmed, cancelled, completed
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int64     `json:"version"`
}

// Overlaps reports whether the reservation interval intersects [start, end).
// Intervals are half-open, so touching endpoints do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

// HoursCovered returns every whole hour of the day the interval touches.
func (r *Reservation) HoursCovered() []int {
	var hours []int
	start := r.StartTime.Truncate(time.Hour)
	for t := start; t.Before(r.EndTime); t = t.Add(time.Hour) {
		hours = append(hours, t.Hour())
	}
	return hours
}

// ReservationView is the read-only projection returned to clients.
// The code is redacted while the reservation is pending and revealed
// once it is confirmed or later.
type ReservationView struct {
	ID         string    `json:"id"`
	Code       string    `json:"code,omitempty"`
	VenueID    int64     `json:"venue_id"`
	VenueName  string    `json:"venue_name"`
	PlayerID   int64     `json:"player_id"`
	PlayerName string    `json:"player_name"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Price      int64     `json:"price"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	Version    int64     `json:"version"`
}

// View builds the client projection with the code redaction rule applied.
func (r *Reservation) View() ReservationView {
	v := ReservationView{
		ID:         r.ID,
		VenueID:    r.VenueID,
		VenueName:  r.VenueName,
		PlayerID:   r.PlayerID,
		PlayerName: r.PlayerName,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Price:      r.Price,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		Version:    r.Version,
	}
	if r.Status != StatusPending {
		v.Code = r.Code
	}
	return v
}
