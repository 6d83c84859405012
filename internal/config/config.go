package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Ingest  IngestConfig
	Sources SourcesConfig
	Dedup   DedupConfig
	Fanout  FanoutConfig
	DB      DatabaseConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type IngestConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

type SourcesConfig struct {
	USGSEnabled  bool
	USGSURL      string
	GDACSEnabled bool
	GDACSURL     string
	NHCEnabled   bool
	NHCURL       string
	GVPEnabled   bool
	GVPURL       string
	EONETEnabled bool
	EONETURL     string
	DMCEnabled   bool
	DMCURL       string
	CSNEnabled   bool
	CSNURL       string
}

type DedupConfig struct {
	// Strategy is "batch" (per-batch existence query) or "window"
	// (prefetch recent keys once per run).
	Strategy string
	Window   time.Duration
}

type FanoutConfig struct {
	Enabled     bool
	MinSeverity int
	Concurrency int
	SNSRegion   string
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Ingest: IngestConfig{
			Interval:     getEnvDuration("INGEST_INTERVAL", 5*time.Minute),
			FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 20*time.Second),
		},
		Sources: SourcesConfig{
			USGSEnabled:  getEnvBool("USGS_ENABLED", true),
			USGSURL:      getEnv("USGS_URL", "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson"),
			GDACSEnabled: getEnvBool("GDACS_ENABLED", true),
			GDACSURL:     getEnv("GDACS_URL", "https://www.gdacs.org/xml/rss.xml"),
			NHCEnabled:   getEnvBool("NHC_ENABLED", true),
			NHCURL:       getEnv("NHC_URL", "https://www.nhc.noaa.gov/CurrentStorms.json"),
			GVPEnabled:   getEnvBool("GVP_ENABLED", true),
			GVPURL:       getEnv("GVP_URL", "https://volcano.si.edu/news/WeeklyVolcanoRSS.xml"),
			EONETEnabled: getEnvBool("EONET_ENABLED", true),
			EONETURL:     getEnv("EONET_URL", "https://eonet.gsfc.nasa.gov/api/v3/events?status=open&days=2"),
			DMCEnabled:   getEnvBool("DMC_ENABLED", false),
			DMCURL:       getEnv("DMC_URL", "https://www.meteochile.gob.cl/PortalDMC-web/index.xhtml"),
			CSNEnabled:   getEnvBool("CSN_ENABLED", false),
			CSNURL:       getEnv("CSN_URL", "https://www.sismologia.cl/index.html"),
		},
		Dedup: DedupConfig{
			Strategy: getEnv("DEDUP_STRATEGY", "batch"),
			Window:   getEnvDuration("DEDUP_WINDOW", 72*time.Hour),
		},
		Fanout: FanoutConfig{
			Enabled:     getEnvBool("FANOUT_ENABLED", true),
			MinSeverity: getEnvInt("FANOUT_MIN_SEVERITY", 2),
			Concurrency: getEnvInt("FANOUT_CONCURRENCY", 4),
			SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/disaster-watch.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Ingest.Interval < time.Minute {
		return fmt.Errorf("ingest interval must be at least 1 minute")
	}
	if c.Ingest.FetchTimeout < time.Second {
		return fmt.Errorf("fetch timeout must be at least 1 second")
	}

	if c.Dedup.Strategy != "batch" && c.Dedup.Strategy != "window" {
		return fmt.Errorf("invalid dedup strategy: %s", c.Dedup.Strategy)
	}
	if c.Dedup.Window < time.Hour {
		return fmt.Errorf("dedup window must be at least 1 hour")
	}

	if c.Fanout.MinSeverity < 1 || c.Fanout.MinSeverity > 5 {
		return fmt.Errorf("invalid fanout min severity: %d", c.Fanout.MinSeverity)
	}
	if c.Fanout.Concurrency < 1 {
		return fmt.Errorf("fanout concurrency must be at least 1")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
