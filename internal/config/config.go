package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env             string        // dev, prod
	HTTPPort        string        // default 8080
	DataDir         string        // collection files live here
	BackupDir       string        // timestamped collection snapshots
	ReportDir       string        // generated CSV reports
	CacheCapacity   int           // max entries held by the LRU cache
	CacheTTL        time.Duration // per-entry time to live
	CleanupInterval time.Duration // how often expired cache entries are swept
	BackupSchedule  string        // cron expression for the backup worker
	ShutdownTimeout time.Duration // graceful shutdown timeout
}

const (
	DefaultCacheCapacity = 100
	DefaultCacheTTL      = 5 * time.Minute
)

func Load() (Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "data")

	cfg := Config{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DataDir:         dataDir,
		BackupDir:       getEnv("BACKUP_DIR", filepath.Join(dataDir, "backups")),
		ReportDir:       getEnv("REPORT_DIR", filepath.Join(dataDir, "reports")),
		CacheCapacity:   getInt("CACHE_CAPACITY", DefaultCacheCapacity),
		CacheTTL:        getDuration("CACHE_TTL", DefaultCacheTTL),
		CleanupInterval: getDuration("CLEANUP_INTERVAL", time.Minute),
		BackupSchedule:  getEnv("BACKUP_SCHEDULE", "@every 1h"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.CacheCapacity <= 0 {
		return Config{}, fmt.Errorf("CACHE_CAPACITY must be > 0, got %d", cfg.CacheCapacity)
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be > 0, got %s", cfg.CacheTTL)
	}

	return cfg, nil
}

// EnsureDirs creates the data, backup, and report directories.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.BackupDir, c.ReportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		fmt.Fprintf(os.Stderr, "invalid integer for %s=%q, using default %d\n", key, v, def)
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "invalid duration for %s=%q, using default %s\n", key, v, def)
	}
	return def
}
