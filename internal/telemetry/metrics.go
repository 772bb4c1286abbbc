// Package telemetry provides application-level observability for the log center.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<LGC_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint returns the Prometheus text exposition
// format and is intended to be scraped every 15–60 seconds. It is NOT served
// by the Gin router.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /logs/level/:level)
// rather than the raw request URL to prevent unbounded label cardinality from
// user-supplied path segments such as process names or keywords.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/log-center/log-center/internal/safego"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Ingestion and key lifecycle metrics.
//
// LogsIngestedTotal counts accepted log records by severity level and
// emitting process. Process names come from authenticated clients, so the
// label set is bounded by the key registry rather than arbitrary input.
//
// Example PromQL queries:
//   - Ingest rate by level:  sum by (level) (rate(logs_ingested_total[5m]))
//   - Noisiest processes:    topk(5, sum by (process) (rate(logs_ingested_total[1h])))
//
// APIKeysIssuedTotal and APIKeysDeactivatedTotal count key lifecycle events
// by kind (USER, PROCESS, ADMIN).
//
// TokenCollisionRetriesTotal counts redraws inside key issuance. With 256-bit
// tokens this counter should stay at zero; any sustained increase means the
// token generator is broken and warrants an immediate alert.
var (
	LogsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logs_ingested_total",
			Help: "Total number of log records accepted, by level and process name.",
		},
		[]string{"level", "process"},
	)

	APIKeysIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_keys_issued_total",
			Help: "Total number of API keys issued, by kind.",
		},
		[]string{"kind"},
	)

	APIKeysDeactivatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_keys_deactivated_total",
			Help: "Total number of API keys deactivated, by kind.",
		},
		[]string{"kind"},
	)

	HolderDeactivationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "holder_deactivations_total",
			Help: "Total number of key holder deactivations, including the key cascade.",
		},
	)

	TokenCollisionRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "token_collision_retries_total",
			Help: "Total number of token redraws caused by a uniqueness collision at issuance.",
		},
	)

	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_failures_total",
			Help: "Total number of rejected requests, by credential namespace (admin or operational).",
		},
		[]string{"namespace"},
	)
)

// DBOpenConnections is a Gauge that tracks the number of open connections
// currently held by the sql.DB connection pool. It is sampled every 30
// seconds by StartDBStatsCollector rather than per-request.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates DBOpenConnections.
// The goroutine exits when the database becomes unreachable, which happens
// automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(db *sql.DB) {
	safego.Go(func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	})
}
