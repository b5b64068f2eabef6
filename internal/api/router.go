package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clinicdesk/appointment-scheduling/internal/cache"
	"github.com/clinicdesk/appointment-scheduling/internal/report"
	"github.com/clinicdesk/appointment-scheduling/internal/scheduling"
	"github.com/clinicdesk/appointment-scheduling/internal/storage"
)

type RouterConfig struct {
	Service   *scheduling.Service
	Store     *storage.Store
	Cache     *cache.Cache
	Reports   *report.Service
	DataDir   string
	BackupDir string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(RequestLogger)

	health := NewHealthHandler(cfg.DataDir, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handler{
		svc:       cfg.Service,
		store:     cfg.Store,
		cache:     cfg.Cache,
		reports:   cfg.Reports,
		backupDir: cfg.BackupDir,
	}

	r.Route("/patients", func(r chi.Router) {
		r.Post("/", h.createPatient)
		r.Get("/", h.listPatients)
		r.Get("/{id}", h.getPatient)
		r.Put("/{id}", h.updatePatient)
		r.Delete("/{id}", h.deletePatient)
	})

	r.Route("/providers", func(r chi.Router) {
		r.Post("/", h.createProvider)
		r.Get("/", h.listProviders)
		r.Get("/{id}", h.getProvider)
		r.Delete("/{id}", h.deleteProvider)
		r.Post("/{id}/slots", h.addProviderSlot)
		r.Delete("/{id}/slots", h.removeProviderSlot)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.bookAppointment)
		r.Get("/", h.listAppointments)
		r.Get("/{id}", h.getAppointment)
		r.Post("/{id}/status", h.updateAppointmentStatus)
		r.Post("/{id}/confirm", h.confirmAppointment)
		r.Post("/{id}/cancel", h.cancelAppointment)
	})

	r.Get("/stats", h.stats)
	r.Get("/cache/stats", h.cacheStats)
	r.Post("/cache/clear", h.cacheClear)

	r.Post("/backups/{collection}", h.createBackup)
	r.Get("/backups", h.listBackups)

	r.Post("/reports/{kind}", h.generateReport)
	r.Get("/reports", h.listReports)

	return r
}
