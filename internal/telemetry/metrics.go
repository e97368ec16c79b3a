// Package telemetry provides application-level observability for the Medcore
// platform.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<MED_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router, keeping
// the scrape path off the public ingress and outside the rate-limiting
// middleware.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Audit trail counters: entries appended by severity and category, write
//     failures on the persistence side channel, CSV exports, ledger size
//   - Authorization counters: permission denials and quota denials
//   - Archive upload counters by backend
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/admin/audit/logs) rather than the raw request URL to prevent
// unbounded label cardinality. Audit and authorization metrics are labelled
// only with closed enumerations (severity, category, resource kind).
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
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

// Audit trail metrics.
//
// AuditEntriesTotal counts every entry appended to the ledger, labelled by
// the entry's derived severity and category — both closed enumerations, so
// cardinality is bounded at 4×8 series.
//
// AuditWriteFailuresTotal counts persistence failures on the audit side
// channel. The business operation that triggered the entry is never failed by
// these; alert on any non-zero rate.
//
// Example PromQL queries:
//   - Critical actions last hour:  sum(increase(audit_entries_total{severity="critical"}[1h]))
//   - Lost audit writes:           rate(audit_write_failures_total[5m]) > 0
var (
	AuditEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_entries_total",
			Help: "Total number of audit entries appended, by severity and category.",
		},
		[]string{"severity", "category"},
	)

	AuditWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of audit entries that could not be persisted to the database side channel.",
		},
	)

	AuditLedgerSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_ledger_size",
			Help: "Current number of entries retained in the in-memory audit ledger.",
		},
	)

	AuditExportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_exports_total",
			Help: "Total number of audit CSV exports served or archived.",
		},
	)
)

// Authorization metrics.
//
// AccessDenialsTotal counts requests rejected by the RBAC middleware,
// labelled by the permission that was missing. QuotaDenialsTotal counts
// resource creations rejected by plan quota checks, labelled by resource
// kind.
var (
	AccessDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_denials_total",
			Help: "Total number of requests denied by permission checks, by permission tag.",
		},
		[]string{"permission"},
	)

	QuotaDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_denials_total",
			Help: "Total number of resource creations denied by plan quotas, by resource kind.",
		},
		[]string{"resource"},
	)
)

// Archive metrics — compliance snapshot uploads, labelled by backend
// (local, s3, gcs, azure).
var (
	ArchiveUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_archive_uploads_total",
			Help: "Total number of audit archive snapshots uploaded, by storage backend.",
		},
		[]string{"backend"},
	)

	ArchiveUploadFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_archive_upload_failures_total",
			Help: "Total number of failed audit archive uploads, by storage backend.",
		},
		[]string{"backend"},
	)
)

// DBOpenConnections reports the connection pool size, sampled by
// StartDBStatsCollector rather than per-request to avoid the overhead of
// sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits cleanly when the database
// becomes unreachable (db.Ping fails), which happens automatically when the
// application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
