package domain

import (
	"context"
	"time"

	"fieldbook/internal/models"
)

// Repository is the reservation store plus venue directory consulted by
// the booking engines. All state lives behind this interface; the
// engines keep no shared mutable collections of their own.
type Repository interface {
	GetReservation(ctx context.Context, id string) (*models.Reservation, error)
	GetReservationByCode(ctx context.Context, code string) (*models.Reservation, error)
	CreateReservation(ctx context.Context, r *models.Reservation) error
	CreateReservationWithLock(ctx context.Context, r *models.Reservation) error
	UpdateReservationStatusWithVersion(ctx context.Context, id string, fromVersion int64, status string) error
	FindOverlapping(ctx context.Context, venueID int64, start, end time.Time) (*models.Reservation, error)
	GetActiveReservationsForRange(ctx context.Context, venueID int64, start, end time.Time) ([]*models.Reservation, error)
	GetReservationsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Reservation, error)
	GetDailyReservations(ctx context.Context, start, end time.Time) (map[string][]*models.Reservation, error)
	GetPlayerReservations(ctx context.Context, playerID int64) ([]*models.Reservation, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	GetVenueByID(ctx context.Context, id int64) (*models.Venue, error)
	GetActiveVenues(ctx context.Context) ([]models.Venue, error)
	SetVenues(venues []models.Venue)
}

// RateLimitRepository tracks request counts per key in a shared store
// with an in-memory fallback behind it.
type RateLimitRepository interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Clock supplies the current instant. The fallback code generator relies
// on it being monotonic.
type Clock interface {
	Now() time.Time
}

// EventPublisher decouples notification dispatch from the booking path.
// Publish failures must never fail the reservation operation.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotifyQueue accepts notification tasks for asynchronous best-effort
// delivery.
type NotifyQueue interface {
	EnqueueNotification(ctx context.Context, kind string, reservation *models.Reservation) error
}

// BookingService is the reservation lifecycle surface exposed to
// transports.
type BookingService interface {
	Create(ctx context.Context, req models.Reservation) (*models.Reservation, error)
	Confirm(ctx context.Context, id string) (*models.Reservation, error)
	Cancel(ctx context.Context, id string) (*models.Reservation, error)
	Complete(ctx context.Context, id, suppliedCode string) (*models.Reservation, error)
	Get(ctx context.Context, id string) (*models.Reservation, error)
	GetByCode(ctx context.Context, code string) (*models.Reservation, error)
	PlayerReservations(ctx context.Context, playerID int64) ([]*models.Reservation, error)
}
