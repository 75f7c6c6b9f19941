package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?pipeline=...&outcome=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repo.RunFilter{
		Pipeline: q.Get("pipeline"),
		Limit:    int(mustParseInt(q.Get("limit"), 50)),
		Offset:   int(mustParseInt(q.Get("offset"), 0)),
	}

	if outcome := q.Get("outcome"); outcome != "" {
		switch o := domain.RunOutcome(outcome); o {
		case domain.RunOutcomeInProgress, domain.RunOutcomeSucceeded, domain.RunOutcomeFailed, domain.RunOutcomeAborted:
			filter.Outcome = o
		default:
			BadRequest(w, "invalid outcome")
			return
		}
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// mustParseInt парсит строку в int с дефолтным значением.
// Отрицательные значения заменяются дефолтом.
func mustParseInt(s string, defaultVal int64) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
