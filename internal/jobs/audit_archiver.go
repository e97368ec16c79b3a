// Package jobs contains background workers that run on a schedule: the audit
// archiver snapshots the ledger to the compliance archive, and the retention
// job purges persisted audit rows past their retention window. Both are
// idempotent; re-running after a crash produces the same result as a clean
// run.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medcore-hms/medcore/internal/archive"
)

// AuditArchiver periodically writes a gzip CSV snapshot of the audit ledger
// to the archive backend.
type AuditArchiver struct {
	exporter *archive.Exporter
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewAuditArchiver creates the archiver. An interval of 0 disables it; Start
// becomes a no-op.
func NewAuditArchiver(exporter *archive.Exporter, interval time.Duration) *AuditArchiver {
	return &AuditArchiver{
		exporter: exporter,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins periodic archiving. The first snapshot is taken after one full
// interval, not at startup; a crash-restart loop must not flood the archive.
func (j *AuditArchiver) Start(ctx context.Context) {
	if j.interval <= 0 || j.exporter == nil {
		slog.Info("audit archiver disabled")
		return
	}
	slog.Info("audit archiver started", "interval", j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				j.run(ctx)
			case <-j.stopCh:
				slog.Info("audit archiver stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *AuditArchiver) run(ctx context.Context) {
	if _, err := j.exporter.Export(ctx); err != nil {
		slog.Error("scheduled audit archive failed", "error", err)
	}
}

// Stop halts the archiver and waits for an in-flight snapshot to finish.
func (j *AuditArchiver) Stop() {
	close(j.stopCh)
	j.wg.Wait()
}
