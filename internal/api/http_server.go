package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldbook/internal/availability"
	"fieldbook/internal/config"
	"fieldbook/internal/database"
	"fieldbook/internal/domain"
	"fieldbook/internal/export"
	"fieldbook/internal/metrics"
	"fieldbook/internal/models"
	"fieldbook/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the reservation lifecycle and the day schedule
// over a small JSON API.
type HTTPServer struct {
	cfg        config.APIConfig
	bookingCfg config.BookingConfig
	bookings   domain.BookingService
	schedule   *availability.Aggregator
	repo       domain.Repository
	limits     domain.RateLimitRepository
	exporter   *export.ScheduleExporter
	server     *http.Server
	auth       *HTTPAuth
	logger     *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookingCfg config.BookingConfig, bookings domain.BookingService, schedule *availability.Aggregator, repo domain.Repository, limits domain.RateLimitRepository, exporter *export.ScheduleExporter, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:        cfg,
		bookingCfg: bookingCfg,
		bookings:   bookings,
		schedule:   schedule,
		repo:       repo,
		limits:     limits,
		exporter:   exporter,
		logger:     logger,
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/venues", srv.handleVenues)
	mux.HandleFunc("/api/v1/venues/", srv.handleVenueSchedule)
	mux.HandleFunc("/api/v1/reservations", srv.handleReservations)
	mux.HandleFunc("/api/v1/reservations/", srv.handleReservation)
	mux.HandleFunc("/api/v1/players/", srv.handlePlayerReservations)
	mux.HandleFunc("/api/v1/exports/schedule", srv.handleExportSchedule)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleVenues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("venues")

	venues, err := s.repo.GetActiveVenues(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list venues")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": venues})
}

// handleVenueSchedule serves two read-only views of a venue's day:
//
//	GET /api/v1/venues/{id}/schedule?date=YYYY-MM-DD  - priced slots over opening hours
//	GET /api/v1/venues/{id}/occupancy?date=YYYY-MM-DD - plain 24-hour occupancy grid
func (s *HTTPServer) handleVenueSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	const prefix = "/api/v1/venues/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	idStr, suffix, found := strings.Cut(rest, "/")
	if !found || (suffix != "schedule" && suffix != "occupancy") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	metrics.IncHTTP("venue_" + suffix)

	venueID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid venue id")
		return
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	var slots []models.Slot
	if suffix == "occupancy" {
		slots, err = s.schedule.HourlyGrid(r.Context(), venueID, date)
	} else {
		slots, err = s.schedule.DaySchedule(r.Context(), venueID, date)
	}
	if err != nil {
		if errors.Is(err, database.ErrVenueNotFound) {
			writeError(w, http.StatusNotFound, "venue not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build schedule")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"venue_id": venueID,
		"date":     dateStr,
		"day_type": models.DayTypeFor(date),
		"slots":    slots,
	})
}

type createReservationRequest struct {
	VenueID    int64     `json:"venue_id"`
	PlayerID   int64     `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Phone      string    `json:"phone"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Comment    string    `json:"comment"`
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		metrics.IncHTTP("reservation_lookup")
		code := strings.TrimSpace(r.URL.Query().Get("code"))
		if code == "" {
			writeError(w, http.StatusBadRequest, "code is required")
			return
		}
		reservation, err := s.bookings.GetByCode(r.Context(), code)
		if err != nil {
			s.writeBookingError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reservation.View())
	case http.MethodPost:
		s.createReservation(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) createReservation(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("reservation_create")

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	var body createReservationRequest
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.VenueID == 0 || body.PlayerID == 0 {
		writeError(w, http.StatusBadRequest, "venue_id and player_id are required")
		return
	}

	if s.limits != nil {
		key := fmt.Sprintf("player:%d", body.PlayerID)
		window := time.Duration(s.bookingCfg.RateLimitWindow) * time.Second
		allowed, err := s.limits.CheckRateLimit(r.Context(), key, s.bookingCfg.RateLimitCreates, window)
		if err == nil && !allowed {
			writeError(w, http.StatusTooManyRequests, "too many booking attempts")
			return
		}
	}

	created, err := s.bookings.Create(r.Context(), models.Reservation{
		VenueID:    body.VenueID,
		PlayerID:   body.PlayerID,
		PlayerName: body.PlayerName,
		Phone:      body.Phone,
		StartTime:  body.StartTime,
		EndTime:    body.EndTime,
		Comment:    body.Comment,
	})
	if err != nil {
		s.writeBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, created.View())
}

// handleReservation serves /api/v1/reservations/{id}[/confirm|/cancel|/complete]
func (s *HTTPServer) handleReservation(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/reservations/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		metrics.IncHTTP("reservation_get")
		s.getReservation(w, r, id)
	case action == "confirm" && r.Method == http.MethodPost:
		metrics.IncHTTP("reservation_confirm")
		s.transition(w, r, func() (*models.Reservation, error) {
			return s.bookings.Confirm(r.Context(), id)
		})
	case action == "cancel" && r.Method == http.MethodPost:
		metrics.IncHTTP("reservation_cancel")
		s.transition(w, r, func() (*models.Reservation, error) {
			return s.bookings.Cancel(r.Context(), id)
		})
	case action == "complete" && r.Method == http.MethodPost:
		metrics.IncHTTP("reservation_complete")
		s.completeReservation(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePlayerReservations serves GET /api/v1/players/{id}/reservations
func (s *HTTPServer) handlePlayerReservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("player_reservations")

	const prefix = "/api/v1/players/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	idStr, suffix, found := strings.Cut(rest, "/")
	if !found || suffix != "reservations" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	playerID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}

	reservations, err := s.bookings.PlayerReservations(r.Context(), playerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reservations")
		return
	}

	views := make([]models.ReservationView, 0, len(reservations))
	for _, res := range reservations {
		views = append(views, res.View())
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": views})
}

// handleExportSchedule serves GET /api/v1/exports/schedule?start=YYYY-MM-DD&end=YYYY-MM-DD
func (s *HTTPServer) handleExportSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	metrics.IncHTTP("export_schedule")

	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "exports are not configured")
		return
	}

	startStr := strings.TrimSpace(r.URL.Query().Get("start"))
	endStr := strings.TrimSpace(r.URL.Query().Get("end"))
	if startStr == "" || endStr == "" {
		writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date; expected YYYY-MM-DD")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must not be before start")
		return
	}

	path, err := s.exporter.ExportRange(r.Context(), start, end)
	if err != nil {
		s.logger.Error().Err(err).Msg("Ошибка экспорта расписания")
		writeError(w, http.StatusInternalServerError, "failed to export schedule")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"file_path": path})
}

func (s *HTTPServer) getReservation(w http.ResponseWriter, r *http.Request, id string) {
	reservation, err := s.bookings.Get(r.Context(), id)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation.View())
}

func (s *HTTPServer) transition(w http.ResponseWriter, r *http.Request, fn func() (*models.Reservation, error)) {
	reservation, err := fn()
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation.View())
}

func (s *HTTPServer) completeReservation(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Code string `json:"code"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reservation, err := s.bookings.Complete(r.Context(), id, body.Code)
	if err != nil {
		s.writeBookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservation.View())
}

// writeBookingError maps the service error taxonomy onto HTTP statuses.
func (s *HTTPServer) writeBookingError(w http.ResponseWriter, err error) {
	var conflict *database.ConflictError
	switch {
	case errors.Is(err, service.ErrInvalidInterval),
		errors.Is(err, service.ErrPastBooking),
		errors.Is(err, service.ErrDateTooFar):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":       "interval conflicts with an existing reservation",
			"blocking_id": conflict.BlockingID,
		})
	case errors.Is(err, database.ErrReservationNotFound),
		errors.Is(err, database.ErrVenueNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCode):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("unhandled booking error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
