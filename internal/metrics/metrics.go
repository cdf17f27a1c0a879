package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldbook",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservationsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fieldbook",
			Name:      "reservations_created_total",
			Help:      "Successfully created reservations.",
		},
	)

	reservationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fieldbook",
			Name:      "reservation_conflicts_total",
			Help:      "Create attempts rejected because of an interval conflict.",
		},
	)

	codeFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fieldbook",
			Name:      "code_fallbacks_total",
			Help:      "Booking codes produced by the deterministic fallback after collisions.",
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldbook",
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome.",
		},
		[]string{"outcome"},
	)

	lifecycleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fieldbook",
			Name:      "lifecycle_events_total",
			Help:      "Reservation lifecycle events by type.",
		},
		[]string{"event_type"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			reservationsCreated,
			reservationConflicts,
			codeFallbacks,
			notifications,
			lifecycleEvents,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncReservationCreated() {
	reservationsCreated.Inc()
}

func IncReservationConflict() {
	reservationConflicts.Inc()
}

func IncCodeFallback() {
	codeFallbacks.Inc()
}

// IncNotification records a notification delivery outcome ("delivered",
// "retried", "dead_letter").
func IncNotification(outcome string) {
	notifications.WithLabelValues(outcome).Inc()
}

// IncLifecycleEvent counts a published reservation lifecycle event.
func IncLifecycleEvent(eventType string) {
	lifecycleEvents.WithLabelValues(eventType).Inc()
}
