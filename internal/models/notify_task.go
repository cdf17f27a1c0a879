package models

import "time"

// NotifyTask is one queued notification delivery attempt, persisted in
// the notify_queue table until a worker delivers or abandons it.
type NotifyTask struct {
	ID            int64      `json:"id"`
	Kind          string     `json:"kind"`
	ReservationID string     `json:"reservation_id"`
	Payload       string     `json:"payload"`
	Status        string     `json:"status"` // pending, queued, retry, completed, failed
	RetryCount    int        `json:"retry_count"`
	LastError     string     `json:"last_error"`
	CreatedAt     time.Time  `json:"created_at"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
}
