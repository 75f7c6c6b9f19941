package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/orchestrator"
)

// ListPipelines возвращает настроенные pipelines.
// GET /api/v1/pipelines
func (h *Handler) ListPipelines(w http.ResponseWriter, r *http.Request) {
	ctrls := h.dispatcher.Controllers()

	result := make([]PipelineResponse, len(ctrls))
	for i, c := range ctrls {
		result[i] = PipelineFromController(c)
	}

	List(w, result, len(result))
}

// GetPipeline возвращает pipeline по имени.
// GET /api/v1/pipelines/{name}
func (h *Handler) GetPipeline(w http.ResponseWriter, r *http.Request) {
	c, ok := h.dispatcher.Controller(r.PathValue("name"))
	if !ok {
		NotFound(w, "pipeline not found")
		return
	}

	Success(w, PipelineFromController(c))
}

// StartRun запускает run вручную.
// POST /api/v1/pipelines/{name}/runs
//
// 202 — run создан, 409 — у pipeline уже есть активный run (trigger отброшен).
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	decision, err := h.dispatcher.Trigger(r.Context(), r.PathValue("name"), domain.ManualEvent(req.Source))
	if HandleTriggerError(w, h.logger, err) {
		return
	}

	if decision.Kind == orchestrator.DecisionDuplicate {
		JSON(w, http.StatusConflict, DataResponse{Data: DecisionFromOrchestrator(decision)})
		return
	}

	Accepted(w, DecisionFromOrchestrator(decision))
}

// ListDropped возвращает отброшенные triggers pipeline.
// GET /api/v1/pipelines/{name}/dropped?limit=...
func (h *Handler) ListDropped(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := h.dispatcher.Controller(name); !ok {
		NotFound(w, "pipeline not found")
		return
	}

	limit := int(mustParseInt(r.URL.Query().Get("limit"), 50))

	dropped, err := h.runs.ListDropped(r.Context(), name, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DroppedTriggerResponse, len(dropped))
	for i, d := range dropped {
		result[i] = DroppedFromDomain(d)
	}

	List(w, result, len(result))
}
