package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := value(t, bookingCreated.WithLabelValues("confirmed"))
	IncBookingCreated("confirmed")
	assert.Equal(t, before+1, value(t, bookingCreated.WithLabelValues("confirmed")))

	before = value(t, bookingConflicts.WithLabelValues("submit"))
	IncConflict("submit")
	IncConflict("submit")
	assert.Equal(t, before+2, value(t, bookingConflicts.WithLabelValues("submit")))

	before = value(t, recurringOccurrences.WithLabelValues("failed"))
	IncRecurringOccurrence("failed")
	assert.Equal(t, before+1, value(t, recurringOccurrences.WithLabelValues("failed")))

	before = value(t, httpRequests.WithLabelValues("submit", "409"))
	IncHTTP("submit", 409)
	assert.Equal(t, before+1, value(t, httpRequests.WithLabelValues("submit", "409")))
}
