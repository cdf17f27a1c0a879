package service

import (
	"context"
	"time"

	"fieldbook/internal/database"
	"fieldbook/internal/domain"
	"fieldbook/internal/events"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"
	"fieldbook/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService drives the reservation lifecycle:
// pending -> confirmed -> completed, with pending -> cancelled.
// Every transition re-reads the persisted reservation; client-supplied
// state is never trusted.
type BookingService struct {
	repo           domain.Repository
	eventBus       domain.EventPublisher
	notifyQueue    domain.NotifyQueue
	codes          *CodeGenerator
	clock          domain.Clock
	maxBookingDays int
	logger         *zerolog.Logger
}

func NewBookingService(repo domain.Repository, eventBus domain.EventPublisher, notifyQueue domain.NotifyQueue, clock domain.Clock, maxBookingDays int, logger *zerolog.Logger) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = 365
	}
	if clock == nil {
		clock = NewClock()
	}
	return &BookingService{
		repo:           repo,
		eventBus:       eventBus,
		notifyQueue:    notifyQueue,
		codes:          NewCodeGenerator(repo, clock),
		clock:          clock,
		maxBookingDays: maxBookingDays,
		logger:         logger,
	}
}

// ValidateInterval checks interval shape and the booking horizon against
// the current instant.
func (s *BookingService) ValidateInterval(start, end time.Time) error {
	if !start.Before(end) {
		return ErrInvalidInterval
	}

	now := s.clock.Now()
	if start.Before(now) {
		return ErrPastBooking
	}

	maxDate := now.AddDate(0, 0, s.maxBookingDays)
	if start.After(maxDate) {
		return ErrDateTooFar
	}

	return nil
}

// Create validates the request, prices the interval when the caller did
// not, allocates a unique code and persists the reservation in pending
// state. The conflict check and the insert run in one transaction, so a
// concurrent create for an overlapping interval fails with a
// ConflictError naming the blocking reservation.
func (s *BookingService) Create(ctx context.Context, req models.Reservation) (*models.Reservation, error) {
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()

	if err := s.ValidateInterval(start, end); err != nil {
		return nil, err
	}

	venue, err := s.repo.GetVenueByID(ctx, req.VenueID)
	if err != nil {
		return nil, err
	}

	price := req.Price
	if price == 0 {
		price = pricing.QuoteInterval(venue, start, end)
	}

	code, err := s.codes.Generate(ctx)
	if err != nil {
		return nil, err
	}

	r := &models.Reservation{
		ID:         uuid.NewString(),
		Code:       code,
		VenueID:    venue.ID,
		VenueName:  venue.Name,
		PlayerID:   req.PlayerID,
		PlayerName: req.PlayerName,
		Phone:      req.Phone,
		StartTime:  start,
		EndTime:    end,
		Price:      price,
		Status:     models.StatusPending,
		Comment:    req.Comment,
	}

	if err := s.repo.CreateReservationWithLock(ctx, r); err != nil {
		if database.IsConflict(err) {
			metrics.IncReservationConflict()
		}
		return nil, err
	}

	metrics.IncReservationCreated()
	s.publishEvent(events.EventReservationCreated, r)
	s.enqueueNotification(ctx, events.EventReservationCreated, r)

	return r, nil
}

// Confirm moves a pending reservation to confirmed.
func (s *BookingService) Confirm(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.Status != models.StatusPending {
		return nil, invalidTransition("confirm", r.Status, models.StatusPending)
	}

	if err := s.repo.UpdateReservationStatusWithVersion(ctx, r.ID, r.Version, models.StatusConfirmed); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetReservation(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationConfirmed, updated)
	return updated, nil
}

// Cancel moves a pending reservation to cancelled. Confirmed
// reservations are deliberately not cancellable through this path.
func (s *BookingService) Cancel(ctx context.Context, id string) (*models.Reservation, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.Status != models.StatusPending {
		return nil, invalidTransition("cancel", r.Status, models.StatusPending)
	}

	if err := s.repo.UpdateReservationStatusWithVersion(ctx, r.ID, r.Version, models.StatusCancelled); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetReservation(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationCancelled, updated)
	s.enqueueNotification(ctx, events.EventReservationCancelled, updated)
	return updated, nil
}

// Complete closes a confirmed reservation after verifying the supplied
// code. The code is compared first, case-sensitively, regardless of the
// current status.
func (s *BookingService) Complete(ctx context.Context, id, suppliedCode string) (*models.Reservation, error) {
	r, err := s.repo.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	if suppliedCode != r.Code {
		return nil, ErrInvalidCode
	}

	if r.Status != models.StatusConfirmed {
		return nil, invalidTransition("complete", r.Status, models.StatusConfirmed)
	}

	if err := s.repo.UpdateReservationStatusWithVersion(ctx, r.ID, r.Version, models.StatusCompleted); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetReservation(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventReservationCompleted, updated)
	return updated, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	return s.repo.GetReservation(ctx, id)
}

func (s *BookingService) GetByCode(ctx context.Context, code string) (*models.Reservation, error) {
	return s.repo.GetReservationByCode(ctx, code)
}

func (s *BookingService) PlayerReservations(ctx context.Context, playerID int64) ([]*models.Reservation, error) {
	return s.repo.GetPlayerReservations(ctx, playerID)
}

func (s *BookingService) publishEvent(eventType string, r *models.Reservation) {
	if s.eventBus == nil {
		return
	}

	payload := events.ReservationEventPayload{
		ReservationID: r.ID,
		VenueID:       r.VenueID,
		VenueName:     r.VenueName,
		PlayerID:      r.PlayerID,
		PlayerName:    r.PlayerName,
		Status:        r.Status,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Price:         r.Price,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("reservation_id", r.ID).Msg("publish event error")
	}
}

// enqueueNotification is best-effort: delivery failures are logged and
// never escalate into a reservation-operation failure.
func (s *BookingService) enqueueNotification(ctx context.Context, kind string, r *models.Reservation) {
	if s.notifyQueue == nil {
		return
	}

	if err := s.notifyQueue.EnqueueNotification(ctx, kind, r); err != nil {
		s.logger.Error().Err(err).Str("reservation_id", r.ID).Str("kind", kind).Msg("notify enqueue error")
	}
}
