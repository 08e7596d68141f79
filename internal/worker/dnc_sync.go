// Package worker hosts background loops for the do-not-contact engine.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/crm-suppression/internal/domain"
	"github.com/ignite/crm-suppression/internal/pkg/logger"
)

// EntrySource yields the full do-not-contact list, typically the Postgres
// repository.
type EntrySource interface {
	AllEntries(ctx context.Context) ([]domain.SuppressionEntry, error)
}

// SnapshotSink receives full-list rebuilds. Both the RAM index and the
// Redis store implement it.
type SnapshotSink interface {
	Rebuild(ctx context.Context, entries []domain.SuppressionEntry) error
}

// DNCSyncWorker periodically copies the list from the source of truth into
// a snapshot sink. A failed cycle leaves the previous snapshot serving —
// stale-but-consistent beats partially-updated for a suppression list.
type DNCSyncWorker struct {
	source   EntrySource
	sink     SnapshotSink
	interval time.Duration

	cancel  context.CancelFunc
	done    chan struct{}
	running int32

	mu         sync.Mutex
	lastSyncAt time.Time
	lastCount  int
}

// NewDNCSyncWorker creates a sync worker. Intervals ≤ 0 default to 5 minutes.
func NewDNCSyncWorker(source EntrySource, sink SnapshotSink, interval time.Duration) *DNCSyncWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &DNCSyncWorker{source: source, sink: sink, interval: interval}
}

// Start launches the sync loop. The first sync runs immediately.
func (w *DNCSyncWorker) Start() {
	if !atomic.CompareAndSwapInt32(&w.running, 0, 1) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)
		if err := w.SyncOnce(ctx); err != nil {
			logger.Error("dnc snapshot sync failed", "error", err.Error())
		}
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.SyncOnce(ctx); err != nil {
					logger.Error("dnc snapshot sync failed", "error", err.Error())
				}
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight sync to finish.
func (w *DNCSyncWorker) Stop() {
	if !atomic.CompareAndSwapInt32(&w.running, 1, 0) {
		return
	}
	w.cancel()
	<-w.done
}

// SyncOnce performs one source→sink copy.
func (w *DNCSyncWorker) SyncOnce(ctx context.Context) error {
	started := time.Now()
	entries, err := w.source.AllEntries(ctx)
	if err != nil {
		return err
	}
	if err := w.sink.Rebuild(ctx, entries); err != nil {
		return err
	}

	w.mu.Lock()
	w.lastSyncAt = time.Now()
	w.lastCount = len(entries)
	w.mu.Unlock()

	logger.Info("dnc snapshot synced",
		"entries", len(entries),
		"elapsed", time.Since(started).Round(time.Millisecond).String())
	return nil
}

// LastSync reports when the last successful sync finished and how many
// entries it carried.
func (w *DNCSyncWorker) LastSync() (time.Time, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSyncAt, w.lastCount
}
