package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		RequestID(),
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Graphs
	mux.Handle("GET /api/v1/graphs", chain(http.HandlerFunc(h.ListGraphs)))
	mux.Handle("POST /api/v1/graphs", chain(http.HandlerFunc(h.CreateGraph)))
	mux.Handle("GET /api/v1/graphs/{id}", chain(http.HandlerFunc(h.GetGraph)))
	mux.Handle("PUT /api/v1/graphs/{id}", chain(http.HandlerFunc(h.ReplaceGraph)))
	mux.Handle("DELETE /api/v1/graphs/{id}", chain(http.HandlerFunc(h.DeleteGraph)))

	// Graph editing
	mux.Handle("POST /api/v1/graphs/{id}/nodes", chain(http.HandlerFunc(h.AddNode)))
	mux.Handle("DELETE /api/v1/graphs/{id}/nodes/{node}", chain(http.HandlerFunc(h.RemoveNode)))
	mux.Handle("POST /api/v1/graphs/{id}/links", chain(http.HandlerFunc(h.AddLink)))
	mux.Handle("DELETE /api/v1/graphs/{id}/links/{link}", chain(http.HandlerFunc(h.RemoveLink)))
	mux.Handle("GET /api/v1/graphs/{id}/validate", chain(http.HandlerFunc(h.ValidateGraph)))

	// Runs
	mux.Handle("POST /api/v1/graphs/{id}/runs", chain(http.HandlerFunc(h.RunGraph)))
	mux.Handle("POST /api/v1/graphs/{id}/runs/async", chain(http.HandlerFunc(h.EnqueueRun)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))

	// Registry
	mux.Handle("GET /api/v1/node-types", chain(http.HandlerFunc(h.ListNodeTypes)))

	// Ops
	mux.HandleFunc("GET /healthz", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{}))
	}
}

// Health отвечает 200, если зависимости доступны.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			Unavailable(w, "unhealthy")
			return
		}
	}
	Success(w, map[string]string{"status": "ok"})
}
