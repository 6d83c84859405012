// Package maintenance holds the periodic housekeeping jobs: expiring
// stale events and logging store statistics.
package maintenance

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/geowatch/disaster-watch/internal/observability"
	"github.com/geowatch/disaster-watch/internal/store"
)

type Janitor struct {
	events  store.EventStore
	metrics *observability.Metrics
	clock   clockwork.Clock
}

func NewJanitor(events store.EventStore, metrics *observability.Metrics, clock clockwork.Clock) *Janitor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Janitor{events: events, metrics: metrics, clock: clock}
}

// Sweep deletes events whose retention window has lapsed. Returns the
// number removed.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	removed, err := j.events.DeleteExpired(ctx, j.clock.Now().UTC())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.Info("expired events removed", "count", removed)
	}
	if j.metrics != nil {
		j.metrics.EventsExpired.Add(float64(removed))
	}
	return removed, nil
}

// LogStats emits per-source and per-type stored event counts for
// operators.
func (j *Janitor) LogStats(ctx context.Context) {
	bySource, err := j.events.CountBySource(ctx)
	if err != nil {
		slog.Warn("collecting store stats failed", "error", err)
		return
	}
	byType, err := j.events.CountByType(ctx)
	if err != nil {
		slog.Warn("collecting store stats failed", "error", err)
		return
	}

	args := make([]any, 0, (len(bySource)+len(byType))*2)
	for source, n := range bySource {
		args = append(args, "source_"+source, n)
	}
	for t, n := range byType {
		args = append(args, "type_"+string(t), n)
	}
	slog.Info("store stats", args...)
}
