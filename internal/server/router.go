package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hunthawk-systems/hunthawk/internal/handlers"
	"github.com/hunthawk-systems/hunthawk/internal/middleware"
)

// NewRouter constructs the engine's HTTP API.
func NewRouter(h *handlers.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.HealthCheck)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/campaigns/run", h.RunCampaign)
	mux.HandleFunc("POST /api/v1/purge", h.Purge)

	mux.HandleFunc("POST /api/v1/analytics", h.CreateAnalytic)
	mux.HandleFunc("GET /api/v1/analytics/{id}", h.GetAnalytic)
	mux.HandleFunc("PUT /api/v1/analytics/{id}/query", h.UpdateAnalyticQuery)
	mux.HandleFunc("PUT /api/v1/analytics/{id}/status", h.TransitionAnalytic)
	mux.HandleFunc("POST /api/v1/analytics/{id}/regenerate", h.RegenerateStats)

	mux.HandleFunc("GET /api/v1/tasks", h.ListTasks)
	mux.HandleFunc("GET /api/v1/tasks/{id}", h.GetTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", h.CancelTask)

	return middleware.RequestID(mux)
}
