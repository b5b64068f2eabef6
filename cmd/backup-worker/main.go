// backup-worker snapshots every collection file on a cron schedule so
// that a corrupted or fat-fingered data directory can be restored from
// a recent point in time.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/clinicdesk/appointment-scheduling/internal/config"
	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

var collections = []string{
	scheduling.CollectionPatients,
	scheduling.CollectionProviders,
	scheduling.CollectionAppointments,
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("backup-worker starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("directory setup error: %v", err)
	}

	store := storage.NewStore(cfg.DataDir)

	// Take one snapshot immediately so a fresh deployment is covered
	// before the first tick.
	runBackups(store, cfg.BackupDir)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.BackupSchedule, func() {
		runBackups(store, cfg.BackupDir)
	}); err != nil {
		log.Fatalf("invalid BACKUP_SCHEDULE %q: %v", cfg.BackupSchedule, err)
	}

	log.Printf("schedule=%q backup_dir=%s", cfg.BackupSchedule, cfg.BackupDir)
	scheduler.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("shutting down backup-worker")
	<-scheduler.Stop().Done()
}

func runBackups(store *storage.Store, backupDir string) {
	for _, collection := range collections {
		name, err := store.Backup(collection, backupDir)
		if err != nil {
			log.Printf("event=backup_failed collection=%s error=%v", collection, err)
			continue
		}
		log.Printf("event=backup_written collection=%s file=%s", collection, name)
	}
}
