package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medcore-hms/medcore/internal/audit"
)

// AuditOptions controls which requests the audit middleware records. The
// defaults record only successful write operations; reads and failures are
// opt-in because they dominate traffic volume.
type AuditOptions struct {
	// LogReadOperations records GET and HEAD requests as well as writes.
	LogReadOperations bool
	// LogFailedRequests records requests that ended in a 4xx or 5xx status.
	LogFailedRequests bool
}

// AuditMiddleware records completed HTTP requests in the audit trail. It runs
// the handler first and writes afterwards, so the entry carries the real
// status code. OPTIONS preflights are never recorded. Authorization denials
// are recorded by the RBAC layer with full detail, so a 403 here is skipped
// to avoid a duplicate entry for the same request.
func AuditMiddleware(recorder *audit.Recorder, opts AuditOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if c.Request.Method == "OPTIONS" {
			return
		}

		isRead := c.Request.Method == "GET" || c.Request.Method == "HEAD"
		if isRead && !opts.LogReadOperations {
			return
		}

		status := c.Writer.Status()
		if status == 403 {
			return
		}
		if status >= 400 && !opts.LogFailedRequests {
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		action := c.Request.Method + " " + route

		rec := audit.Record{
			Actor:       audit.SnapshotActor(ActorFromContext(c)),
			Action:      action,
			Success:     status < 400,
			IPAddress:   c.ClientIP(),
			UserAgent:   c.Request.UserAgent(),
			Description: fmt.Sprintf("%s completed with status %d", action, status),
			Metadata: map[string]any{
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			},
		}
		if status >= 400 {
			rec.ErrorMessage = fmt.Sprintf("request failed with status %d", status)
		}
		recorder.Record(rec)
	}
}
