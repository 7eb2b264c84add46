package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's Prometheus collectors. It is constructed
// once in the container and injected where needed, so no collector lives in
// package-global state.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	HoldsCreated      prometheus.Counter
	HoldsExpired      prometheus.Counter
	HoldsCancelled    prometheus.Counter
	HoldsConverted    prometheus.Counter
	CapacityConflicts prometheus.Counter
	BookingsCreated   prometheus.Counter
	SweepDuration     prometheus.Histogram
	SweepFailures     prometheus.Counter
	EventsPublished   *prometheus.CounterVec
	EventsDropped     prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		HoldsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holds_created_total",
			Help: "Total number of holds created",
		}),
		HoldsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holds_expired_total",
			Help: "Total number of holds flipped to expired by the sweeper",
		}),
		HoldsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holds_cancelled_total",
			Help: "Total number of holds cancelled by users or staff",
		}),
		HoldsConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holds_converted_total",
			Help: "Total number of holds converted to bookings",
		}),
		CapacityConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "capacity_conflicts_total",
			Help: "Total number of requests rejected for insufficient capacity",
		}),
		BookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total number of bookings created",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hold_sweep_duration_seconds",
			Help:    "Duration of hold expiry sweeps",
			Buckets: prometheus.DefBuckets,
		}),
		SweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hold_sweep_failures_total",
			Help: "Total number of failed hold expiry sweeps",
		}),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Total number of events published to subscribers",
			},
			[]string{"kind"},
		),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of events dropped due to slow subscribers",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.HoldsCreated,
		m.HoldsExpired,
		m.HoldsCancelled,
		m.HoldsConverted,
		m.CapacityConflicts,
		m.BookingsCreated,
		m.SweepDuration,
		m.SweepFailures,
		m.EventsPublished,
		m.EventsDropped,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
