package pipeline

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/geowatch/disaster-watch/internal/models"
	"github.com/geowatch/disaster-watch/internal/store"
)

// Gate answers "which of these dedup keys are already stored". Both
// implementations are best-effort: two concurrent ingestion runs can
// race past the gate and double-write. The invariant is idempotence
// across a single sequential run, not global exactly-once.
type Gate interface {
	// Begin is called once at the start of an ingestion run.
	Begin(ctx context.Context) error
	// Existing returns the subset of keys already stored.
	Existing(ctx context.Context, keys []models.EventKey) (map[models.EventKey]bool, error)
}

// BatchGate issues one existence query per adapter batch, amortizing
// the store round-trip across all candidate keys.
type BatchGate struct {
	store store.EventStore
}

func NewBatchGate(s store.EventStore) *BatchGate {
	return &BatchGate{store: s}
}

func (g *BatchGate) Begin(context.Context) error { return nil }

func (g *BatchGate) Existing(ctx context.Context, keys []models.EventKey) (map[models.EventKey]bool, error) {
	return g.store.FilterExistingKeys(ctx, keys)
}

// WindowGate prefetches every key stored inside the recent window into
// memory once per run and answers membership locally. Cheaper when the
// candidate count per run is large; keys older than the window are
// invisible to it, which retention makes acceptable.
type WindowGate struct {
	store  store.EventStore
	clock  clockwork.Clock
	window time.Duration
	keys   map[models.EventKey]bool
}

func NewWindowGate(s store.EventStore, clock clockwork.Clock, window time.Duration) *WindowGate {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = 72 * time.Hour
	}
	return &WindowGate{store: s, clock: clock, window: window}
}

func (g *WindowGate) Begin(ctx context.Context) error {
	keys, err := g.store.RecentKeys(ctx, g.clock.Now().UTC().Add(-g.window))
	if err != nil {
		return err
	}
	g.keys = keys
	return nil
}

func (g *WindowGate) Existing(_ context.Context, keys []models.EventKey) (map[models.EventKey]bool, error) {
	existing := make(map[models.EventKey]bool)
	for _, k := range keys {
		if g.keys[k] {
			existing[k] = true
		}
	}
	return existing, nil
}
