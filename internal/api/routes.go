package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(),
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Pipelines
	mux.Handle("GET /api/v1/pipelines", chain(http.HandlerFunc(h.ListPipelines)))
	mux.Handle("GET /api/v1/pipelines/{name}", chain(http.HandlerFunc(h.GetPipeline)))
	mux.Handle("POST /api/v1/pipelines/{name}/runs", chain(http.HandlerFunc(h.StartRun)))
	mux.Handle("GET /api/v1/pipelines/{name}/dropped", chain(http.HandlerFunc(h.ListDropped)))

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))

	// Storage events
	mux.Handle("POST /api/v1/events", chain(http.HandlerFunc(h.PostEvents)))
}
