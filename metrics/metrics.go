package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ImportRows counts processed rows by outcome: inserted, updated,
	// unchanged or failed.
	ImportRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_import_rows_total",
			Help: "Rows processed by review import jobs",
		},
		[]string{"outcome"},
	)

	ImportJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_import_jobs_total",
			Help: "Review import jobs by terminal status",
		},
		[]string{"status"},
	)

	ImportJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "review_import_job_duration_seconds",
			Help:    "Wall time of review import jobs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	ImportJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "review_import_jobs_active",
			Help: "Import jobs currently being processed",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Open websocket connections",
		},
	)
)

// Register mounts the Prometheus handler on /metrics.
func Register(app *fiber.App) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}
