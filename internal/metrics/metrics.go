package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors for the scheduling engine and the booking
// lifecycle.
type Metrics struct {
	// Scheduling engine
	BookingDecisions *prometheus.CounterVec
	SlotQueryLatency prometheus.Histogram
	SlotsReturned    prometheus.Histogram

	// Booking lifecycle
	AppointmentTransitions *prometheus.CounterVec
	BookingConflicts       *prometheus.CounterVec
	LockFallbacks          *prometheus.CounterVec

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BookingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "booking_decisions_total",
			Help:      "Booking guard decisions by result code",
		}, []string{"result"}),
		SlotQueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "slot_query_duration_seconds",
			Help:      "Time spent computing free slots, including store reads",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		SlotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "slots_returned",
			Help:      "Number of slots returned per query",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		AppointmentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment lifecycle transitions",
		}, []string{"event"}),
		BookingConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "conflicts_total",
			Help:      "Booking conflicts by the layer that caught them",
		}, []string{"source"}),
		LockFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "lock_fallbacks_total",
			Help:      "Booking writes that ran without the doctor lock, by reason",
		}, []string{"reason"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "method", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BookingDecisions,
			m.SlotQueryLatency,
			m.SlotsReturned,
			m.AppointmentTransitions,
			m.BookingConflicts,
			m.LockFallbacks,
			m.HTTPRequests,
			m.HTTPLatency,
		)
	}
	return m
}

// NewNop returns unregistered collectors.
func NewNop() *Metrics {
	return New("test", nil)
}
