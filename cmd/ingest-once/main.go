// Command ingest-once runs a single ingestion cycle plus an expiry
// sweep and exits, for deployments that schedule ingestion externally
// (cron, systemd timers) instead of running the long-lived server.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/geowatch/disaster-watch/internal/config"
	"github.com/geowatch/disaster-watch/internal/logging"
	"github.com/geowatch/disaster-watch/internal/maintenance"
	"github.com/geowatch/disaster-watch/internal/observability"
	"github.com/geowatch/disaster-watch/internal/pipeline"
	"github.com/geowatch/disaster-watch/internal/sources"
	"github.com/geowatch/disaster-watch/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, "ingest-once")

	clock := clockwork.NewRealClock()

	db, err := store.NewSQLite(cfg.DB.Path, clock)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	adapters := buildAdapters(cfg)
	if len(adapters) == 0 {
		logging.Fatalf("No ingestion sources enabled")
	}

	var gate pipeline.Gate
	if cfg.Dedup.Strategy == "window" {
		gate = pipeline.NewWindowGate(db, clock, cfg.Dedup.Window)
	} else {
		gate = pipeline.NewBatchGate(db)
	}

	metrics := observability.NewMetrics()
	orch := pipeline.NewOrchestrator(adapters, pipeline.NewNormalizer(clock), gate,
		db, metrics, clock, nil)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Ingest.Interval)
	defer cancel()

	summary := orch.Run(ctx)

	janitor := maintenance.NewJanitor(db, metrics, clock)
	removed, err := janitor.Sweep(ctx)
	if err != nil {
		slog.Error("expiry sweep failed", "error", err)
	}

	failed := 0
	for _, a := range summary.Adapters {
		if a.Failed {
			failed++
		}
	}

	slog.Info("ingestion cycle complete",
		"persisted", summary.TotalPersisted(),
		"adapters", len(summary.Adapters),
		"failed", failed,
		"expired", removed,
		"duration", summary.Duration)

	if failed == len(summary.Adapters) {
		os.Exit(1)
	}
}

func buildAdapters(cfg *config.Config) []sources.Adapter {
	timeout := cfg.Ingest.FetchTimeout
	var adapters []sources.Adapter

	if cfg.Sources.USGSEnabled {
		adapters = append(adapters, sources.NewUSGS(cfg.Sources.USGSURL, timeout))
	}
	if cfg.Sources.GDACSEnabled {
		adapters = append(adapters, sources.NewGDACS(cfg.Sources.GDACSURL, timeout))
	}
	if cfg.Sources.NHCEnabled {
		adapters = append(adapters, sources.NewNHC(cfg.Sources.NHCURL, timeout))
	}
	if cfg.Sources.GVPEnabled {
		adapters = append(adapters, sources.NewGVP(cfg.Sources.GVPURL, timeout))
	}
	if cfg.Sources.EONETEnabled {
		adapters = append(adapters, sources.NewEONET(cfg.Sources.EONETURL, timeout))
	}
	if cfg.Sources.DMCEnabled {
		adapters = append(adapters, sources.NewDMC(cfg.Sources.DMCURL, timeout))
	}
	if cfg.Sources.CSNEnabled {
		adapters = append(adapters, sources.NewCSN(cfg.Sources.CSNURL, timeout))
	}

	return adapters
}
