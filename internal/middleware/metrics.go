package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medcore-hms/medcore/internal/telemetry"
)

// MetricsMiddleware records request count and latency for every request.
//
// Recorded metrics:
//   - http_requests_total{method, path, status}    — CounterVec
//   - http_request_duration_seconds{method, path}  — HistogramVec
//
// The path label uses c.FullPath(), the matched route template (e.g.
// /api/v1/admin/audit-logs/:id) rather than the raw URL, so label cardinality
// stays bounded by the route table. Requests that match no route use the
// literal "<no-route>".
//
// Register after gin.Recovery() so the status written by the panic handler is
// the one recorded.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		duration := time.Since(start).Seconds()
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}
