package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRateLimitRepo struct {
	mock.Mock
}

func (m *mockRateLimitRepo) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverRateLimit(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	window := time.Minute

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary := new(mockRateLimitRepo)
		fallback := new(mockRateLimitRepo)
		repo := NewFailoverRateLimitRepository(primary, fallback, &logger)

		primary.On("CheckRateLimit", ctx, "player:1", 5, window).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "player:1", 5, window)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
		fallback.AssertNotCalled(t, "CheckRateLimit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FallbackOnPrimaryFailure", func(t *testing.T) {
		primary := new(mockRateLimitRepo)
		fallback := new(mockRateLimitRepo)
		repo := NewFailoverRateLimitRepository(primary, fallback, &logger)

		primary.On("CheckRateLimit", ctx, "player:2", 5, window).Return(false, errors.New("connection refused")).Once()
		fallback.On("CheckRateLimit", ctx, "player:2", 5, window).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "player:2", 5, window)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		primary := new(mockRateLimitRepo)
		fallback := new(mockRateLimitRepo)
		repo := NewFailoverRateLimitRepository(primary, fallback, &logger)

		primary.On("CheckRateLimit", ctx, "player:3", 5, window).Return(false, errors.New("down")).Once()
		fallback.On("CheckRateLimit", ctx, "player:3", 5, window).Return(true, nil).Twice()

		_, err := repo.CheckRateLimit(ctx, "player:3", 5, window)
		assert.NoError(t, err)

		// Пока не прошла минута, primary не трогаем
		_, err = repo.CheckRateLimit(ctx, "player:3", 5, window)
		assert.NoError(t, err)

		primary.AssertNumberOfCalls(t, "CheckRateLimit", 1)
		fallback.AssertExpectations(t)
	})
}
