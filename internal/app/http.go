package app

import (
	"encoding/json"
	"net/http"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/coordinator"
	"github.com/Aleph-Alpha/embedding-pipeline/internal/registry"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/metrics"
)

// HealthResponse is served on /healthz.
type HealthResponse struct {
	Status   string               `json:"status"`
	Counters coordinator.Snapshot `json:"counters"`
}

// HealthHandler reports liveness together with the pipeline totals.
func HealthHandler(counters *coordinator.Counters) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, HealthResponse{Status: "ok", Counters: counters.Snapshot()})
	})
}

// ModelsHandler lists the registered embedding models.
func ModelsHandler(reg *registry.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, reg.Describe())
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// registerHandlers mounts the handlers next to /metrics.
func registerHandlers(m *metrics.Metrics, counters *coordinator.Counters, reg *registry.Registry) {
	m.Handle("/healthz", HealthHandler(counters))
	m.Handle("/models", ModelsHandler(reg))
}
