package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("clinic", reg)

	m.BookingDecisions.WithLabelValues("accepted").Inc()
	m.BookingConflicts.WithLabelValues("store").Inc()
	m.LockFallbacks.WithLabelValues("timeout").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["clinic_scheduling_booking_decisions_total"])
	assert.True(t, names["clinic_appointments_conflicts_total"])
	assert.True(t, names["clinic_appointments_lock_fallbacks_total"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BookingDecisions.WithLabelValues("accepted")))
}

func TestNewNop_DoesNotRegister(t *testing.T) {
	// two nops must not collide on the default registry
	a, b := NewNop(), NewNop()
	a.HTTPRequests.WithLabelValues("/", "GET", "200").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.HTTPRequests.WithLabelValues("/", "GET", "200")))
}
