package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medcore-hms/medcore/internal/archive"
	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/db/repositories"
	"github.com/medcore-hms/medcore/internal/middleware"
	"github.com/medcore-hms/medcore/internal/telemetry"
)

// AuditHandlers serves the audit-trail endpoints: live ledger queries and
// stats, CSV export, the persisted history, and manual archive triggers.
type AuditHandlers struct {
	recorder *audit.Recorder
	repo     *repositories.AuditRepository
	exporter *archive.Exporter
}

// NewAuditHandlers creates the audit-trail handlers. exporter may be nil when
// archiving is disabled; the archive endpoint then answers 503.
func NewAuditHandlers(recorder *audit.Recorder, repo *repositories.AuditRepository, exporter *archive.Exporter) *AuditHandlers {
	return &AuditHandlers{recorder: recorder, repo: repo, exporter: exporter}
}

// ledgerFilters builds audit.Filters from the request's query parameters.
func ledgerFilters(c *gin.Context) audit.Filters {
	f := audit.Filters{
		UserID:    c.Query("user_id"),
		Action:    c.Query("action"),
		Category:  audit.Category(c.Query("category")),
		Severity:  audit.Severity(c.Query("severity")),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		f.Limit = limit
	}
	return f
}

// ListLogs queries the in-memory ledger, newest first.
func (h *AuditHandlers) ListLogs(c *gin.Context) {
	entries := h.recorder.Ledger().Query(ledgerFilters(c))
	c.JSON(http.StatusOK, gin.H{
		"logs":  entries,
		"count": len(entries),
	})
}

// GetStats returns aggregate counts over the ledger.
func (h *AuditHandlers) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.recorder.Ledger().Stats())
}

// History pages through the persisted audit rows, which extend beyond the
// ledger's capacity bound.
func (h *AuditHandlers) History(c *gin.Context) {
	filters := repositories.AuditFilters{}
	if v := c.Query("user_id"); v != "" {
		filters.UserID = &v
	}
	if v := c.Query("action"); v != "" {
		filters.Action = &v
	}
	if v := c.Query("category"); v != "" {
		filters.Category = &v
	}
	if v := c.Query("severity"); v != "" {
		filters.Severity = &v
	}
	if v := c.Query("start_date"); v != "" {
		t, err := parseDateBound(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date", "details": err.Error()})
			return
		}
		filters.StartDate = &t
	}
	if v := c.Query("end_date"); v != "" {
		t, err := parseDateBound(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date", "details": err.Error()})
			return
		}
		// A bare date means the whole day, inclusive.
		if len(v) == len(time.DateOnly) {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		filters.EndDate = &t
	}

	limit := 50
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}

	logs, total, err := h.repo.ListAuditLogs(c.Request.Context(), filters, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query audit history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func parseDateBound(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

// ExportCSV serializes the filtered ledger contents as a CSV download. The
// export itself is an audited action.
func (h *AuditHandlers) ExportCSV(c *gin.Context) {
	filters := ledgerFilters(c)
	if filters.Limit <= 0 {
		// Exports default to everything retained, not the query page size.
		filters.Limit = h.recorder.Ledger().Capacity()
	}
	entries := h.recorder.Ledger().Query(filters)
	csv := audit.ExportCSV(entries)

	telemetry.AuditExportsTotal.Inc()
	actor := middleware.ActorFromContext(c)
	h.recorder.RecordEvent(audit.EventLogExport, audit.SnapshotActor(actor), "audit trail",
		audit.WithMetadata(map[string]any{"entries": len(entries)}),
		audit.WithClientInfo(c.ClientIP(), c.Request.UserAgent()))

	c.Header("Content-Disposition", `attachment; filename="audit-log-export.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

// Archive snapshots the ledger to the compliance archive backend on demand.
// The same export runs periodically via the archiver job; this endpoint
// exists for pre-maintenance snapshots and incident response.
func (h *AuditHandlers) Archive(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Archiving is not configured"})
		return
	}

	result, err := h.exporter.Export(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive audit snapshot"})
		return
	}

	actor := middleware.ActorFromContext(c)
	h.recorder.RecordEvent(audit.EventBackupComplete, audit.SnapshotActor(actor), result.Key,
		audit.WithMetadata(map[string]any{"bytes": result.Size, "sha256": result.Checksum}),
		audit.WithClientInfo(c.ClientIP(), c.Request.UserAgent()))

	c.JSON(http.StatusCreated, gin.H{
		"key":    result.Key,
		"size":   result.Size,
		"sha256": result.Checksum,
	})
}
