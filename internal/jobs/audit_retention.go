package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RetentionStore is the slice of the audit repository the retention job
// needs.
type RetentionStore interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRetention deletes persisted audit rows older than the retention
// window. The in-memory ledger is untouched; it has its own capacity bound.
type AuditRetention struct {
	store         RetentionStore
	retentionDays int
	checkInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

// NewAuditRetention creates the retention job. retentionDays of 0 disables
// purging entirely.
func NewAuditRetention(store RetentionStore, retentionDays int) *AuditRetention {
	return &AuditRetention{
		store:         store,
		retentionDays: retentionDays,
		checkInterval: 24 * time.Hour,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the daily purge cycle, with one purge at startup so a service
// that was down past a retention boundary catches up immediately.
func (j *AuditRetention) Start(ctx context.Context) {
	if j.retentionDays <= 0 {
		slog.Info("audit retention disabled")
		return
	}
	slog.Info("audit retention started", "retention_days", j.retentionDays)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.checkInterval)
		defer ticker.Stop()

		j.run(ctx)

		for {
			select {
			case <-ticker.C:
				j.run(ctx)
			case <-j.stopCh:
				slog.Info("audit retention stopped")
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (j *AuditRetention) run(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -j.retentionDays)
	purged, err := j.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("audit retention purge failed", "cutoff", cutoff, "error", err)
		return
	}
	if purged > 0 {
		slog.Info("purged expired audit rows", "rows", purged, "cutoff", cutoff)
	}
}

// Stop halts the retention job and waits for an in-flight purge to finish.
func (j *AuditRetention) Stop() {
	close(j.stopCh)
	j.wg.Wait()
}
