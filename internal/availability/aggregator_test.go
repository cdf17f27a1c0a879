package availability

import (
	"context"
	"os"
	"testing"
	"time"

	"fieldbook/internal/database"
	"fieldbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAggregator(t *testing.T) (*Aggregator, *database.DB) {
	t.Helper()

	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	db.SetVenues([]models.Venue{
		{ID: 1, Name: "Main Field", OpenHour: 8, CloseHour: 22, IsActive: true},
	})

	return NewAggregator(db), db
}

func insertReservation(t *testing.T, db *database.DB, venueID int64, status string, start, end time.Time) *models.Reservation {
	t.Helper()

	r := &models.Reservation{
		ID:         uuid.NewString(),
		Code:       "FB-" + uuid.NewString()[:6],
		VenueID:    venueID,
		VenueName:  "Main Field",
		PlayerID:   100,
		PlayerName: "Alex",
		StartTime:  start.UTC(),
		EndTime:    end.UTC(),
		Status:     status,
	}
	require.NoError(t, db.CreateReservation(context.Background(), r))
	return r
}

func TestDaySchedule_EmptyDay(t *testing.T) {
	agg, _ := setupAggregator(t)
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	slots, err := agg.DaySchedule(context.Background(), 1, date)
	require.NoError(t, err)
	require.Len(t, slots, 14) // 8:00-22:00

	for _, s := range slots {
		assert.True(t, s.IsAvailable)
		assert.NotZero(t, s.Price)
	}
}

func TestDaySchedule_ReservationBlocksSlots(t *testing.T) {
	agg, db := setupAggregator(t)
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	insertReservation(t, db, 1, models.StatusConfirmed, date.Add(10*time.Hour), date.Add(12*time.Hour))

	slots, err := agg.DaySchedule(context.Background(), 1, date)
	require.NoError(t, err)

	for _, s := range slots {
		switch s.StartTime.Hour() {
		case 10, 11:
			assert.False(t, s.IsAvailable, "hour %d should be booked", s.StartTime.Hour())
		default:
			assert.True(t, s.IsAvailable, "hour %d should be free", s.StartTime.Hour())
		}
	}
}

func TestDaySchedule_PendingAlsoBlocks(t *testing.T) {
	agg, db := setupAggregator(t)
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	insertReservation(t, db, 1, models.StatusPending, date.Add(9*time.Hour), date.Add(10*time.Hour))

	slots, err := agg.DaySchedule(context.Background(), 1, date)
	require.NoError(t, err)

	for _, s := range slots {
		if s.StartTime.Hour() == 9 {
			assert.False(t, s.IsAvailable)
		}
	}
}

func TestDaySchedule_CancelledAndCompletedDoNotBlock(t *testing.T) {
	agg, db := setupAggregator(t)
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	insertReservation(t, db, 1, models.StatusCancelled, date.Add(10*time.Hour), date.Add(11*time.Hour))
	insertReservation(t, db, 1, models.StatusCompleted, date.Add(12*time.Hour), date.Add(13*time.Hour))

	slots, err := agg.DaySchedule(context.Background(), 1, date)
	require.NoError(t, err)

	for _, s := range slots {
		assert.True(t, s.IsAvailable, "hour %d", s.StartTime.Hour())
	}
}

func TestDaySchedule_OtherVenueDoesNotBlock(t *testing.T) {
	agg, db := setupAggregator(t)
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	insertReservation(t, db, 2, models.StatusConfirmed, date.Add(10*time.Hour), date.Add(12*time.Hour))

	slots, err := agg.DaySchedule(context.Background(), 1, date)
	require.NoError(t, err)

	for _, s := range slots {
		assert.True(t, s.IsAvailable)
	}
}

func TestDaySchedule_UnknownVenue(t *testing.T) {
	agg, _ := setupAggregator(t)

	_, err := agg.DaySchedule(context.Background(), 42, time.Now())
	assert.ErrorIs(t, err, database.ErrVenueNotFound)
}

func TestHourlyGrid(t *testing.T) {
	agg, db := setupAggregator(t)
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	insertReservation(t, db, 1, models.StatusConfirmed, date.Add(6*time.Hour), date.Add(7*time.Hour))

	slots, err := agg.HourlyGrid(context.Background(), 1, date)
	require.NoError(t, err)
	require.Len(t, slots, 24)

	assert.False(t, slots[6].IsAvailable)
	assert.True(t, slots[7].IsAvailable)
}

func TestHourlyGrid_UnknownVenue(t *testing.T) {
	agg, _ := setupAggregator(t)

	_, err := agg.HourlyGrid(context.Background(), 42, time.Now())
	assert.ErrorIs(t, err, database.ErrVenueNotFound)
}

func TestDaySchedule_SlotsAscending(t *testing.T) {
	agg, _ := setupAggregator(t)
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	slots, err := agg.DaySchedule(context.Background(), 1, date)
	require.NoError(t, err)

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].StartTime.Before(slots[i].StartTime))
		assert.True(t, slots[i-1].EndTime.Equal(slots[i].StartTime))
	}
}
