package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

type HealthHandler struct {
	dataDir string
	env     string
	version string
}

func NewHealthHandler(dataDir, env, version string) *HealthHandler {
	return &HealthHandler{dataDir: dataDir, env: env, version: version}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness verifies the data directory is writable, since every
// operation ends in a file write there.
func (h *HealthHandler) Readiness(w http.ResponseWriter, _ *http.Request) {
	deps := map[string]string{"data_dir": "ok"}
	status := "ok"
	httpStatus := http.StatusOK

	probe := filepath.Join(h.dataDir, ".ready_"+uuid.NewString()[:8])
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		deps["data_dir"] = "down"
		status = "error"
		httpStatus = http.StatusServiceUnavailable
	} else {
		_ = os.Remove(probe)
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}
