package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all dashboard metrics
type Metrics struct {
	// Library API client
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec
	BreakerOpen prometheus.Gauge

	// Order lifecycle
	Transitions        *prometheus.CounterVec
	PendingTransitions prometheus.Gauge
	OrdersInView       *prometheus.GaugeVec

	// Polling
	Polls *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests want.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		APIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of Library API requests",
		}, []string{"method", "route", "status"}),
		APILatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Duration of Library API requests",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "circuit_open",
			Help:      "1 while the Library API circuit breaker is open",
		}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transitions_total",
			Help:      "Order transitions by kind and result",
		}, []string{"kind", "result"}),
		PendingTransitions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "pending_transitions",
			Help:      "Transitions currently in flight",
		}),
		OrdersInView: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "in_view",
			Help:      "Orders held in each view's working list",
		}, []string{"view"}),

		Polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "ticks_total",
			Help:      "Poll ticks by subscription and result",
		}, []string{"key", "result"}),
	}
}
