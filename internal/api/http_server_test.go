package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"fieldbook/internal/availability"
	"fieldbook/internal/config"
	"fieldbook/internal/database"
	"fieldbook/internal/export"
	"fieldbook/internal/models"
	"fieldbook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T, apiCfg config.APIConfig) (*HTTPServer, *database.DB) {
	t.Helper()

	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetVenues([]models.Venue{
		{ID: 1, Name: "Main Field", OpenHour: 8, CloseHour: 22, IsActive: true},
		{ID: 2, Name: "Back Court", OpenHour: 10, CloseHour: 20, IsActive: true},
	})

	bookings := service.NewBookingService(db, nil, nil, service.NewClock(), 365, &logger)
	schedule := availability.NewAggregator(db)

	exporter := export.NewScheduleExporter(db, config.ExportConfig{Path: t.TempDir()}, &logger)

	bookingCfg := config.BookingConfig{MaxBookingDays: 365, RateLimitCreates: 100, RateLimitWindow: 60}
	srv := NewHTTPServer(apiCfg, bookingCfg, bookings, schedule, db, nil, exporter, &logger)
	return srv, db
}

func boolPtr(b bool) *bool { return &b }

func openConfig() config.APIConfig {
	return config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true, Port: 0},
		Auth:    config.APIAuthConfig{Enabled: boolPtr(false)},
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func futureSlot(hours int) (time.Time, time.Time) {
	day := time.Now().UTC().AddDate(0, 0, 2)
	start := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	return start, start.Add(time.Duration(hours) * time.Hour)
}

func createBody(venueID int64, start, end time.Time) map[string]any {
	return map[string]any{
		"venue_id":    venueID,
		"player_id":   int64(100),
		"player_name": "Alex",
		"phone":       "+79990001122",
		"start_time":  start,
		"end_time":    end,
	}
}

func TestListVenues(t *testing.T) {
	srv, _ := setupServer(t, openConfig())

	rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Venues []models.Venue `json:"venues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Venues, 2)
}

func TestVenueSchedule(t *testing.T) {
	srv, _ := setupServer(t, openConfig())

	date := time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02")
	rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues/1/schedule?date="+date, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		VenueID int64         `json:"venue_id"`
		DayType string        `json:"day_type"`
		Slots   []models.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.VenueID)
	assert.Len(t, resp.Slots, 14)

	t.Run("missing date", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues/1/schedule", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid date", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues/1/schedule?date=tomorrow", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown venue", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues/42/schedule?date="+date, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestVenueOccupancy(t *testing.T) {
	srv, _ := setupServer(t, openConfig())

	date := time.Now().UTC().AddDate(0, 0, 2).Format("2006-01-02")
	rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues/1/occupancy?date="+date, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		VenueID int64         `json:"venue_id"`
		Slots   []models.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.VenueID)
	assert.Len(t, resp.Slots, 24)

	t.Run("unknown venue", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues/42/occupancy?date="+date, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing date", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues/1/occupancy", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCreateReservationEndpoint(t *testing.T) {
	srv, _ := setupServer(t, openConfig())
	start, end := futureSlot(2)

	rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start, end))
	require.Equal(t, http.StatusCreated, rec.Code)

	var view models.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.NotEmpty(t, view.ID)
	assert.Equal(t, models.StatusPending, view.Status)
	// Пока бронь pending, код в ответе скрыт
	assert.Empty(t, view.Code)
	assert.Equal(t, int64(2*models.DefaultOffPeakPrice), view.Price)
}

func TestCreateReservationEndpoint_Errors(t *testing.T) {
	srv, _ := setupServer(t, openConfig())
	start, end := futureSlot(2)

	t.Run("conflict", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start, end))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start.Add(time.Hour), end.Add(time.Hour)))
		require.Equal(t, http.StatusConflict, rec.Code)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp["blocking_id"])
	})

	t.Run("inverted interval", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(2, end, start))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("past interval", func(t *testing.T) {
		past := time.Now().UTC().Add(-2 * time.Hour)
		rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(2, past, past.Add(time.Hour)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown venue", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(42, start, end))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestReservationLifecycleOverHTTP(t *testing.T) {
	srv, db := setupServer(t, openConfig())
	start, end := futureSlot(1)

	rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start, end))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// confirm
	rec = doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations/"+created.ID+"/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var confirmed models.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	assert.NotEmpty(t, confirmed.Code)

	// повторный confirm отклоняется
	rec = doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations/"+created.ID+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// cancel подтвержденной брони отклоняется
	rec = doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations/"+created.ID+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// complete с неверным кодом
	rec = doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations/"+created.ID+"/complete",
		map[string]string{"code": "FB-WRONG2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// complete с верным кодом
	rec = doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations/"+created.ID+"/complete",
		map[string]string{"code": confirmed.Code})
	require.Equal(t, http.StatusOK, rec.Code)

	var completed models.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, models.StatusCompleted, completed.Status)

	// Завершенная бронь освобождает интервал
	blocking, err := db.FindOverlapping(context.Background(), 1, start, end)
	require.NoError(t, err)
	assert.Nil(t, blocking)
}

func TestCancelPendingOverHTTP(t *testing.T) {
	srv, _ := setupServer(t, openConfig())
	start, end := futureSlot(1)

	rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start, end))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations/"+created.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled models.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	// Код виден после выхода из pending
	assert.NotEmpty(t, cancelled.Code)
}

func TestGetReservationEndpoints(t *testing.T) {
	srv, _ := setupServer(t, openConfig())
	start, end := futureSlot(1)

	rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start, end))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/reservations/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/reservations/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/players/100/reservations", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Reservations []models.ReservationView `json:"reservations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Reservations, 1)
}

func TestScheduleReflectsReservations(t *testing.T) {
	srv, _ := setupServer(t, openConfig())
	start, end := futureSlot(2) // 10:00-12:00

	rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start, end))
	require.Equal(t, http.StatusCreated, rec.Code)

	date := start.Format("2006-01-02")
	rec = doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues/1/schedule?date="+date, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Slots []models.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	for _, s := range resp.Slots {
		switch s.StartTime.Hour() {
		case 10, 11:
			assert.False(t, s.IsAvailable, "hour %d", s.StartTime.Hour())
		default:
			assert.True(t, s.IsAvailable, "hour %d", s.StartTime.Hour())
		}
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := openConfig()
	cfg.Auth = config.APIAuthConfig{
		Enabled:      boolPtr(true),
		HeaderAPIKey: "x-api-key",
		HeaderExtra:  "x-api-extra",
		APIKeys: []config.APIClientKey{
			{Key: "key-1", Extra: "extra-1", Name: "reader", Permissions: []string{"read:venues"}},
			{Key: "key-2", Extra: "extra-2", Name: "admin"},
		},
	}
	srv, _ := setupServer(t, cfg)

	t.Run("missing headers", func(t *testing.T) {
		rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong extra", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/venues", nil)
		req.Header.Set("x-api-key", "key-1")
		req.Header.Set("x-api-extra", "wrong")
		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid key with permission", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/venues", nil)
		req.Header.Set("x-api-key", "key-1")
		req.Header.Set("x-api-extra", "extra-1")
		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("valid key without permission", func(t *testing.T) {
		start, end := futureSlot(1)
		raw, _ := json.Marshal(createBody(2, start, end))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader(raw))
		req.Header.Set("x-api-key", "key-1")
		req.Header.Set("x-api-extra", "extra-1")
		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("empty permissions allow all", func(t *testing.T) {
		start, end := futureSlot(1)
		raw, _ := json.Marshal(createBody(2, start, end))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reservations", bytes.NewReader(raw))
		req.Header.Set("x-api-key", "key-2")
		req.Header.Set("x-api-extra", "extra-2")
		rec := httptest.NewRecorder()
		srv.server.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := openConfig()
	cfg.RateLimit = config.APIRateLimitConfig{RPS: 1, Burst: 2}
	srv, _ := setupServer(t, cfg)

	var last int
	for i := 0; i < 5; i++ {
		rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/venues", nil)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := setupServer(t, openConfig())

	for _, path := range []string{"/api/v1/venues", "/api/v1/venues/1/schedule"} {
		rec := doJSON(t, srv.server.Handler, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, path)
	}
}

func TestCodeLookupEndpoint(t *testing.T) {
	srv, db := setupServer(t, openConfig())
	start, end := futureSlot(1)

	rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start, end))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.ReservationView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	stored, err := db.GetReservation(context.Background(), created.ID)
	require.NoError(t, err)

	rec = doJSON(t, srv.server.Handler, http.MethodGet, fmt.Sprintf("/api/v1/reservations?code=%s", stored.Code), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/reservations?code=FB-NOPE22", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/reservations", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportScheduleEndpoint(t *testing.T) {
	srv, _ := setupServer(t, openConfig())
	start, end := futureSlot(2)

	rec := doJSON(t, srv.server.Handler, http.MethodPost, "/api/v1/reservations", createBody(1, start, end))
	require.Equal(t, http.StatusCreated, rec.Code)

	day := start.Format("2006-01-02")
	rec = doJSON(t, srv.server.Handler, http.MethodGet,
		fmt.Sprintf("/api/v1/exports/schedule?start=%s&end=%s", day, day), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		FilePath string `json:"file_path"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.FilePath)

	_, err := os.Stat(resp.FilePath)
	assert.NoError(t, err)
}

func TestExportScheduleEndpoint_BadRequests(t *testing.T) {
	srv, _ := setupServer(t, openConfig())

	cases := []struct {
		name  string
		query string
	}{
		{"missing params", ""},
		{"bad start", "?start=2026-13-40&end=2026-09-02"},
		{"bad end", "?start=2026-09-01&end=yesterday"},
		{"end before start", "?start=2026-09-05&end=2026-09-01"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, srv.server.Handler, http.MethodGet, "/api/v1/exports/schedule"+tc.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
