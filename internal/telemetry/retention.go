package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/jwulff/picorelay/internal/storage"
)

// PruneInterval is how often the retention loop runs.
const PruneInterval = time.Hour

// Pruner deletes events older than a retention window. Event history is
// unbounded by default; the pruner is an opt-in extension enabled through
// configuration.
type Pruner struct {
	store     storage.Store
	retention time.Duration
	now       func() time.Time
}

// NewPruner creates a pruner that keeps events for the given retention
// window.
func NewPruner(store storage.Store, retention time.Duration) *Pruner {
	return &Pruner{store: store, retention: retention, now: time.Now}
}

// PruneOnce deletes all events older than the retention window and returns
// the number removed.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	return p.store.PruneEventsBefore(ctx, p.now().Add(-p.retention))
}

// Run prunes on an interval until the context is cancelled. Failures are
// logged and retried next interval.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pruned, err := p.PruneOnce(ctx)
			if err != nil {
				log.Printf("retention: prune failed: %v", err)
				continue
			}
			if pruned > 0 {
				log.Printf("retention: pruned %d events", pruned)
			}
		case <-ctx.Done():
			return
		}
	}
}
