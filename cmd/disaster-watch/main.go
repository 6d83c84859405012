package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/geowatch/disaster-watch/internal/api"
	"github.com/geowatch/disaster-watch/internal/config"
	"github.com/geowatch/disaster-watch/internal/fanout"
	"github.com/geowatch/disaster-watch/internal/logging"
	"github.com/geowatch/disaster-watch/internal/maintenance"
	"github.com/geowatch/disaster-watch/internal/observability"
	"github.com/geowatch/disaster-watch/internal/pipeline"
	"github.com/geowatch/disaster-watch/internal/push"
	"github.com/geowatch/disaster-watch/internal/sources"
	"github.com/geowatch/disaster-watch/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, "disaster-watch")

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)

	clock := clockwork.NewRealClock()

	db, err := store.NewSQLite(cfg.DB.Path, clock)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Broadcaster carries newly persisted events to the fan-out engine
	// and any debug subscribers
	broadcaster := fanout.NewBroadcaster()

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

	orch := pipeline.NewOrchestrator(adapters, pipeline.NewNormalizer(clock), gate,
		db, metrics, clock, broadcaster.Broadcast)

	var wg sync.WaitGroup

	// Fan-out engine runs as a broadcast subscriber
	var subID uint64
	if cfg.Fanout.Enabled {
		sender, err := push.NewSNSSender(ctx, cfg.Fanout.SNSRegion)
		if err != nil {
			logging.Fatalf("Failed to initialize push sender: %v", err)
		}
		engine := fanout.NewEngine(db, sender, metrics, clock,
			cfg.Fanout.MinSeverity, cfg.Fanout.Concurrency)

		id, events := broadcaster.Subscribe()
		subID = id
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.Run(ctx, events)
		}()
	}

	// Ingestion scheduler: one cycle now, then on every tick
	wg.Add(1)
	go func() {
		defer wg.Done()
		runCycle(ctx, orch)

		ticker := time.NewTicker(cfg.Ingest.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCycle(ctx, orch)
			}
		}
	}()

	// Housekeeping: expiry sweep and stats, hourly
	janitor := maintenance.NewJanitor(db, metrics, clock)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := janitor.Sweep(ctx); err != nil {
					slog.Error("expiry sweep failed", "error", err)
				}
				janitor.LogStats(ctx)
			}
		}
	}()

	// Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	router.Use(api.RateLimitMiddleware(5)) // 5 req/s global limit

	handler := api.NewHandler(db, broadcaster)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	if subID != 0 {
		broadcaster.Unsubscribe(subID)
	}
	broadcaster.Close()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}

func runCycle(ctx context.Context, orch *pipeline.Orchestrator) {
	summary := orch.Run(ctx)
	slog.Info("ingestion cycle complete",
		"persisted", summary.TotalPersisted(),
		"adapters", len(summary.Adapters),
		"duration", summary.Duration)
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
