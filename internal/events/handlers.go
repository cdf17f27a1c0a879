package events

import (
	"encoding/json"

	"fieldbook/internal/metrics"

	"github.com/rs/zerolog"
)

// RegisterLifecycleHandlers подписывает стандартные обработчики на все
// события жизненного цикла брони: структурный лог и счетчик метрик по
// типу события.
func RegisterLifecycleHandlers(bus *EventBus, logger *zerolog.Logger) {
	handler := lifecycleLogHandler(logger)
	for _, eventType := range []string{
		EventReservationCreated,
		EventReservationConfirmed,
		EventReservationCancelled,
		EventReservationCompleted,
	} {
		bus.Subscribe(eventType, handler)
	}
}

func lifecycleLogHandler(logger *zerolog.Logger) EventHandler {
	return func(event *Event) error {
		metrics.IncLifecycleEvent(event.Type)

		var payload ReservationEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event payload")
			return err
		}

		logger.Info().
			Str("event_type", event.Type).
			Str("reservation_id", payload.ReservationID).
			Int64("venue_id", payload.VenueID).
			Int64("player_id", payload.PlayerID).
			Str("status", payload.Status).
			Time("start", payload.StartTime).
			Msg("reservation event")
		return nil
	}
}
