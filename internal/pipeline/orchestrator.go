package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/geowatch/disaster-watch/internal/logging"
	"github.com/geowatch/disaster-watch/internal/models"
	"github.com/geowatch/disaster-watch/internal/observability"
	"github.com/geowatch/disaster-watch/internal/sources"
	"github.com/geowatch/disaster-watch/internal/store"
)

// AdapterSummary reports one adapter's slice of an ingestion run.
type AdapterSummary struct {
	Source           string
	Fetched          int
	Persisted        int
	SkippedInvalid   int
	SkippedDuplicate int
	Failed           bool
}

// RunSummary reports one full orchestrator run.
type RunSummary struct {
	Adapters []AdapterSummary
	Duration time.Duration
}

func (r RunSummary) TotalPersisted() int {
	n := 0
	for _, a := range r.Adapters {
		n += a.Persisted
	}
	return n
}

// Orchestrator runs every registered adapter sequentially, isolating
// failures per adapter, and commits one write batch per adapter.
type Orchestrator struct {
	adapters   []sources.Adapter
	normalizer *Normalizer
	gate       Gate
	store      store.EventStore
	metrics    *observability.Metrics
	clock      clockwork.Clock
	// onPersist is invoked once per newly persisted event, after the
	// batch commit. The fan-out trigger hangs off this.
	onPersist func(*models.DisasterEvent)
}

func NewOrchestrator(adapters []sources.Adapter, normalizer *Normalizer, gate Gate,
	s store.EventStore, metrics *observability.Metrics, clock clockwork.Clock,
	onPersist func(*models.DisasterEvent)) *Orchestrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Orchestrator{
		adapters:   adapters,
		normalizer: normalizer,
		gate:       gate,
		store:      s,
		metrics:    metrics,
		clock:      clock,
		onPersist:  onPersist,
	}
}

// Run executes one ingestion cycle. A failing adapter never aborts the
// run; it is recorded in the summary and the next adapter proceeds.
func (o *Orchestrator) Run(ctx context.Context) RunSummary {
	start := o.clock.Now()
	summary := RunSummary{Adapters: make([]AdapterSummary, 0, len(o.adapters))}

	if err := o.gate.Begin(ctx); err != nil {
		// without the gate every observation would double-write, so
		// the whole cycle is abandoned; the next scheduled run retries
		slog.Error("dedup gate initialization failed, aborting run", "error", err)
		summary.Duration = o.clock.Since(start)
		return summary
	}

	for _, adapter := range o.adapters {
		summary.Adapters = append(summary.Adapters, o.runAdapter(ctx, adapter))
	}

	summary.Duration = o.clock.Since(start)
	o.metrics.RunDuration.Observe(summary.Duration.Seconds())

	slog.Info("ingestion run complete",
		"adapters", len(summary.Adapters),
		"persisted", summary.TotalPersisted(),
		"duration", summary.Duration,
	)
	return summary
}

func (o *Orchestrator) runAdapter(ctx context.Context, adapter sources.Adapter) AdapterSummary {
	code := adapter.Code()
	s := AdapterSummary{Source: code}
	log := logging.ForSource(code)

	observations, err := adapter.Fetch(ctx)
	if err != nil {
		log.Error("fetch failed", "error", err)
		o.metrics.AdapterFailures.WithLabelValues(code).Inc()
		s.Failed = true
		return s
	}
	s.Fetched = len(observations)
	o.metrics.ObservationsFetched.WithLabelValues(code).Add(float64(len(observations)))

	candidates := make([]*models.DisasterEvent, 0, len(observations))
	keys := make([]models.EventKey, 0, len(observations))
	for _, obs := range observations {
		e, err := o.normalizer.Normalize(obs, code)
		if err != nil {
			log.Debug("observation skipped", "id", obs.ExternalID, "reason", err)
			s.SkippedInvalid++
			o.metrics.ObservationsSkipped.WithLabelValues(code, "invalid").Inc()
			continue
		}
		candidates = append(candidates, e)
		keys = append(keys, e.Key())
	}

	existing, err := o.gate.Existing(ctx, keys)
	if err != nil {
		log.Error("dedup query failed", "error", err)
		o.metrics.AdapterFailures.WithLabelValues(code).Inc()
		s.Failed = true
		return s
	}

	batch := make([]*models.DisasterEvent, 0, len(candidates))
	seen := make(map[models.EventKey]bool, len(candidates))
	for _, e := range candidates {
		k := e.Key()
		if existing[k] || seen[k] {
			s.SkippedDuplicate++
			o.metrics.ObservationsSkipped.WithLabelValues(code, "duplicate").Inc()
			continue
		}
		seen[k] = true
		batch = append(batch, e)
	}

	if len(batch) == 0 {
		log.Debug("nothing new", "fetched", s.Fetched)
		return s
	}

	if err := o.store.AddBatch(ctx, batch); err != nil {
		log.Error("batch commit failed", "count", len(batch), "error", err)
		o.metrics.AdapterFailures.WithLabelValues(code).Inc()
		s.Failed = true
		return s
	}
	s.Persisted = len(batch)
	o.metrics.EventsPersisted.WithLabelValues(code).Add(float64(len(batch)))

	if o.onPersist != nil {
		for _, e := range batch {
			o.onPersist(e)
		}
	}

	log.Info("adapter run complete",
		"fetched", s.Fetched, "persisted", s.Persisted,
		"skipped_invalid", s.SkippedInvalid, "skipped_duplicate", s.SkippedDuplicate)
	return s
}
