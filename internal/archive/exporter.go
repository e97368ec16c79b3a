package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/medcore-hms/medcore/internal/audit"
	"github.com/medcore-hms/medcore/internal/telemetry"
)

// Exporter writes gzip-compressed CSV snapshots of the audit ledger to the
// archive backend. Keys are date-partitioned so retention tooling can prune
// by prefix.
type Exporter struct {
	ledger      *audit.Ledger
	backend     Backend
	backendName string
}

// NewExporter creates an Exporter writing snapshots of ledger to backend.
// backendName is used as the metric label for upload counters.
func NewExporter(ledger *audit.Ledger, backend Backend, backendName string) *Exporter {
	return &Exporter{
		ledger:      ledger,
		backend:     backend,
		backendName: backendName,
	}
}

// snapshotKey builds the storage key for a snapshot taken at ts.
func snapshotKey(ts time.Time) string {
	ts = ts.UTC()
	return fmt.Sprintf("audit/%04d/%02d/audit-%s.csv.gz",
		ts.Year(), ts.Month(), ts.Format("20060102T150405Z"))
}

// Export snapshots the ledger, compresses it, and uploads it. An empty
// ledger still produces a snapshot containing only the CSV header; a file
// per interval makes gaps in the archive visible.
func (e *Exporter) Export(ctx context.Context) (*PutResult, error) {
	entries := e.ledger.Snapshot()
	csv := audit.ExportCSV(entries)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(csv)); err != nil {
		return nil, fmt.Errorf("failed to compress audit snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress audit snapshot: %w", err)
	}

	key := snapshotKey(time.Now())
	result, err := e.backend.Put(ctx, key, &buf)
	if err != nil {
		telemetry.ArchiveUploadFailuresTotal.WithLabelValues(e.backendName).Inc()
		return nil, fmt.Errorf("failed to upload audit snapshot: %w", err)
	}

	telemetry.ArchiveUploadsTotal.WithLabelValues(e.backendName).Inc()
	slog.Info("audit snapshot archived",
		"backend", e.backendName,
		"key", result.Key,
		"entries", len(entries),
		"bytes", result.Size,
		"sha256", result.Checksum)
	return result, nil
}
