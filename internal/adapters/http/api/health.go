package api

import (
	"net/http"

	"github.com/okian/lifeboat/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler handles liveness and metrics requests.
type HealthHandler struct {
	model   ModelDescriber
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(model ModelDescriber) *HealthHandler {
	return &HealthHandler{
		model:   model,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version,omitempty"`
}

// HandleHealth handles GET /healthz requests. A running process always has a
// model, since startup fails without one.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, "api.healthz", http.MethodGet, http.MethodHead) {
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ModelVersion: h.model.Describe().Version})
}

// HandleMetrics serves the custom Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.UpdateSystemStats()
	h.metrics.ServeHTTP(w, r)
}
