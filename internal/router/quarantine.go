// Package router traverses the model fallback chain, quarantining models
// that fail transport-level checks and returning the first validated
// explanation.
package router

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Quarantine is the set of model names temporarily excluded from chain
// selection. The whole set is cleared together on a fixed interval; there
// is no per-entry TTL. An instance is injected into each Router so tests
// can run independent routers without cross-contamination.
type Quarantine struct {
	mu    sync.Mutex
	names map[string]struct{}
}

// NewQuarantine creates an empty quarantine set.
func NewQuarantine() *Quarantine {
	return &Quarantine{names: make(map[string]struct{})}
}

// Add marks a model as quarantined. Adding is idempotent.
func (q *Quarantine) Add(name string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.names[name] = struct{}{}
}

// IsQuarantined reports whether a model is currently excluded.
func (q *Quarantine) IsQuarantined(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.names[name]
	return ok
}

// Clear atomically empties the whole set.
func (q *Quarantine) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.names = make(map[string]struct{})
}

// Len returns the number of quarantined models.
func (q *Quarantine) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.names)
}

// Names returns a snapshot of the quarantined model names.
func (q *Quarantine) Names() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.names))
	for name := range q.names {
		out = append(out, name)
	}
	return out
}

// StartSweeper clears the set on every tick until the context is
// cancelled. Runs in its own goroutine.
func (q *Quarantine) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := q.Len(); n > 0 {
					zap.L().Info("clearing model quarantine", zap.Int("models", n))
				}
				q.Clear()
			}
		}
	}()
}
