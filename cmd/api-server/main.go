package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinicdesk/appointment-scheduling/internal/api"
	"github.com/clinicdesk/appointment-scheduling/internal/cache"
	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/report"
	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("directory setup error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s data_dir=%s cache_capacity=%d cache_ttl=%s",
		cfg.Env, cfg.HTTPPort, cfg.DataDir, cfg.CacheCapacity, cfg.CacheTTL)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The composition root owns every shared instance; nothing here is
	// a package-level singleton.
	store := storage.NewStore(cfg.DataDir)
	entityCache := cache.New(cfg.CacheCapacity, cfg.CacheTTL)
	svc := scheduling.NewService(store, entityCache, scheduling.NewMutexLocker())
	reports := report.NewService(cfg.ReportDir)

	router := api.NewRouter(api.RouterConfig{
		Service:   svc,
		Store:     store,
		Cache:     entityCache,
		Reports:   reports,
		DataDir:   cfg.DataDir,
		BackupDir: cfg.BackupDir,
		Env:       cfg.Env,
		Version:   version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go sweepExpiredEntries(rootCtx, entityCache, cfg.CleanupInterval)

	go func() {
		log.Printf("listening on :%s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// sweepExpiredEntries periodically drops TTL-expired cache entries so
// memory is not held by keys nobody reads again.
func sweepExpiredEntries(ctx context.Context, c *cache.Cache, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.CleanupExpired(); n > 0 {
				log.Printf("event=cache_cleanup expired=%d", n)
			}
		}
	}
}
