package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the coordinator's collectors.
	Registry = prometheus.NewRegistry()

	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_core",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Authentication attempts by outcome.",
		},
		[]string{"outcome"},
	)

	sessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_core",
			Subsystem: "session",
			Name:      "swept_total",
			Help:      "Expired sessions removed by the sweeper.",
		},
	)

	ordersCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_core",
			Subsystem: "order",
			Name:      "created_total",
			Help:      "Orders placed.",
		},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_core",
			Subsystem: "order",
			Name:      "transitions_total",
			Help:      "Order status changes by target status.",
		},
		[]string{"status"},
	)

	pricesRecorded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "market_core",
			Subsystem: "catalog",
			Name:      "prices_recorded_total",
			Help:      "Price observations written.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_core",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Ops HTTP requests by route and status.",
		},
		[]string{"route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "market_core",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of ops HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~0.5s
		},
		[]string{"route"},
	)

	analyticsQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market_core",
			Subsystem: "analytics",
			Name:      "queries_total",
			Help:      "Analytics queries by kind and result.",
		},
		[]string{"kind", "result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		logins,
		sessionsSwept,
		ordersCreated,
		orderTransitions,
		pricesRecorded,
		analyticsQueries,
		httpRequests,
		httpDuration,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served ops request.
func ObserveHTTP(route, status string, dur time.Duration) {
	httpRequests.WithLabelValues(route, status).Inc()
	httpDuration.WithLabelValues(route).Observe(dur.Seconds())
}

func ObserveLogin(outcome string) {
	logins.WithLabelValues(outcome).Inc()
}

func ObserveSweep(n int64) {
	if n > 0 {
		sessionsSwept.Add(float64(n))
	}
}

func ObserveOrderCreated() {
	ordersCreated.Inc()
}

func ObserveOrderTransition(status string) {
	orderTransitions.WithLabelValues(status).Inc()
}

func ObservePriceRecorded() {
	pricesRecorded.Inc()
}

// ObserveAnalytics records one analytics query. err == nil counts as "ok".
func ObserveAnalytics(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	analyticsQueries.WithLabelValues(kind, result).Inc()
}
