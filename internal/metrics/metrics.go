package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "slotbook"

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_created_total",
			Help:      "Count of bookings created by status.",
		},
		[]string{"status"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Count of submissions rejected because the slot was taken.",
		},
		[]string{"stage"},
	)

	statusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_status_changes_total",
			Help:      "Count of booking status transitions by target status.",
		},
		[]string{"status"},
	)

	slotGeneration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_generation_seconds",
			Help:      "Time to fetch data and generate slots for one staff/date.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Count of notification attempts by result.",
		},
		[]string{"result"},
	)

	recurringOccurrences = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurring_occurrences_total",
			Help:      "Count of recurring occurrences by materialisation result.",
		},
		[]string{"result"},
	)

	staleData = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_data_total",
			Help:      "Count of collaborator fetch failures degraded to empty results.",
		},
		[]string{"source"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated,
			bookingConflicts,
			statusChanges,
			slotGeneration,
			notifications,
			recurringOccurrences,
			staleData,
			httpRequests,
		)
	})
}

func IncBookingCreated(status string) {
	bookingCreated.WithLabelValues(status).Inc()
}

func IncConflict(stage string) {
	bookingConflicts.WithLabelValues(stage).Inc()
}

func IncStatusChange(status string) {
	statusChanges.WithLabelValues(status).Inc()
}

func ObserveSlotGeneration(seconds float64) {
	slotGeneration.Observe(seconds)
}

func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

func IncRecurringOccurrence(result string) {
	recurringOccurrences.WithLabelValues(result).Inc()
}

func IncStaleData(source string) {
	staleData.WithLabelValues(source).Inc()
}

func IncHTTP(endpoint string, code int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
}
