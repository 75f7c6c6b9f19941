package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/orchestrator"
	"github.com/shaiso/Skyline/internal/repo"
	"github.com/shaiso/Skyline/internal/stages"
	"github.com/shaiso/Skyline/internal/stages/stagestest"
	"github.com/shaiso/Skyline/internal/trigger"
)

type testServer struct {
	mux        *http.ServeMux
	store      *repo.MemoryRunStore
	jobs       *stagestest.Jobs
	dispatcher *orchestrator.Dispatcher
}

func newTestServer(t *testing.T, jobStatuses []string) *testServer {
	t.Helper()
	return newTestServerWithStore(t, jobStatuses, nil)
}

// newTestServerWithStore подменяет хранилище контроллера (nil — общий MemoryRunStore).
func newTestServerWithStore(t *testing.T, jobStatuses []string, runs orchestrator.RunStore) *testServer {
	t.Helper()

	store := repo.NewMemoryRunStore()
	if runs == nil {
		runs = store
	}
	jobs := stagestest.NewJobs(map[string][]string{"FinalGlue": jobStatuses})
	crawlers := stagestest.NewCrawlers(map[string]string{"airline": "SUCCEEDED"})

	ctrl, err := orchestrator.New(orchestrator.Config{
		Pipeline: orchestrator.Pipeline{
			Name: "airline-operations",
			Stages: []domain.StageDescriptor{
				{Kind: domain.StageKindETLJob, Name: "FinalGlue", PollInterval: time.Millisecond, MaxWait: time.Minute},
				{Kind: domain.StageKindCatalogCrawler, Name: "airline", PollInterval: time.Millisecond, MaxWait: time.Second},
			},
			Filter: trigger.FilterConfig{
				OutputPrefixes:  []string{"silver/"},
				IncludePrefixes: []string{"raw/"},
			},
		},
		Store:    runs,
		Registry: stages.DefaultRegistry(stages.Services{Jobs: jobs, Crawlers: crawlers}),
	})
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}

	d := orchestrator.NewDispatcher(nil, ctrl)
	t.Cleanup(d.Stop)

	h := NewHandler(Config{Runs: store, Dispatcher: d})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return &testServer{mux: mux, store: store, jobs: jobs, dispatcher: d}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp.Data
}

func TestListPipelines(t *testing.T) {
	s := newTestServer(t, []string{"SUCCEEDED"})

	rec := s.do(t, http.MethodGet, "/api/v1/pipelines", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	pipelines := decode[[]PipelineResponse](t, rec)
	if len(pipelines) != 1 || pipelines[0].Name != "airline-operations" {
		t.Fatalf("unexpected pipelines: %+v", pipelines)
	}
	if len(pipelines[0].Stages) != 2 || pipelines[0].Stages[0].Kind != "etl-job" {
		t.Errorf("unexpected stages: %+v", pipelines[0].Stages)
	}
	if pipelines[0].ActiveRunID != nil {
		t.Error("no run should be active")
	}
}

func TestGetPipeline_NotFound(t *testing.T) {
	s := newTestServer(t, nil)

	if rec := s.do(t, http.MethodGet, "/api/v1/pipelines/missing", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestStartRun(t *testing.T) {
	s := newTestServer(t, []string{"RUNNING"})

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/airline-operations/runs", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	first := decode[DecisionResponse](t, rec)
	if first.Decision != "accepted" || first.RunID == nil {
		t.Fatalf("unexpected decision: %+v", first)
	}

	// Второй запуск при активном run
	rec = s.do(t, http.MethodPost, "/api/v1/pipelines/airline-operations/runs", []byte(`{"source":"ops"}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	dup := decode[DecisionResponse](t, rec)
	if dup.Decision != "duplicate" || *dup.RunID != *first.RunID {
		t.Errorf("expected duplicate of %s, got %+v", *first.RunID, dup)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/pipelines/airline-operations", nil)
	p := decode[PipelineResponse](t, rec)
	if p.ActiveRunID == nil || *p.ActiveRunID != *first.RunID {
		t.Errorf("expected active run %s, got %v", *first.RunID, p.ActiveRunID)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/pipelines/airline-operations/dropped", nil)
	dropped := decode[[]DroppedTriggerResponse](t, rec)
	if len(dropped) != 1 || dropped[0].SourceLocation != "ops" {
		t.Errorf("expected one dropped trigger from ops, got %+v", dropped)
	}
}

func TestStartRun_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	if rec := s.do(t, http.MethodPost, "/api/v1/pipelines/missing/runs", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown pipeline: expected 404, got %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/v1/pipelines/airline-operations/runs", []byte("{")); rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected 400, got %d", rec.Code)
	}

	s.dispatcher.Stop()
	if rec := s.do(t, http.MethodPost, "/api/v1/pipelines/airline-operations/runs", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("stopped controller: expected 503, got %d", rec.Code)
	}
}

func TestRuns(t *testing.T) {
	s := newTestServer(t, []string{"FAILED"})

	rec := s.do(t, http.MethodPost, "/api/v1/pipelines/airline-operations/runs", nil)
	decision := decode[DecisionResponse](t, rec)
	s.dispatcher.Wait()

	rec = s.do(t, http.MethodGet, "/api/v1/runs/"+decision.RunID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	run := decode[RunResponse](t, rec)
	if run.Outcome != "failed" || run.FailedStage != "FinalGlue" || run.TriggerSource != "manual" {
		t.Errorf("unexpected run: %+v", run)
	}
	if len(run.Stages) != 1 || run.Stages[0].FinalStatus != "FAILED" {
		t.Errorf("unexpected stages: %+v", run.Stages)
	}

	rec = s.do(t, http.MethodGet, "/api/v1/runs?pipeline=airline-operations&outcome=failed", nil)
	runs := decode[[]RunResponse](t, rec)
	if len(runs) != 1 {
		t.Errorf("expected 1 failed run, got %d", len(runs))
	}

	rec = s.do(t, http.MethodGet, "/api/v1/runs?outcome=succeeded", nil)
	if runs := decode[[]RunResponse](t, rec); len(runs) != 0 {
		t.Errorf("expected no succeeded runs, got %d", len(runs))
	}
}

func TestRuns_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/runs/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/runs/" + uuid.New().String(), http.StatusNotFound},
		{"/api/v1/runs?outcome=maybe", http.StatusBadRequest},
	}

	for _, tt := range tests {
		if rec := s.do(t, http.MethodGet, tt.path, nil); rec.Code != tt.want {
			t.Errorf("GET %s: expected %d, got %d", tt.path, tt.want, rec.Code)
		}
	}
}

func TestPostEvents(t *testing.T) {
	s := newTestServer(t, []string{"SUCCEEDED"})

	body := []byte(`{"Records":[
		{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"airline-data"},"object":{"key":"silver/airline/part-0.parquet"}}},
		{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"airline-data"},"object":{"key":"raw/flights_2024_01.csv"}}}
	]}`)

	rec := s.do(t, http.MethodPost, "/api/v1/events", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	resp := decode[EventsResponse](t, rec)
	if len(resp.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(resp.Events))
	}
	if got := resp.Events[0].Decisions[0]; got.Decision != "rejected" || got.Reason != trigger.ReasonOwnOutput {
		t.Errorf("own output should be rejected, got %+v", got)
	}
	if got := resp.Events[1].Decisions[0]; got.Decision != "accepted" {
		t.Errorf("raw upload should be accepted, got %+v", got)
	}

	s.dispatcher.Wait()
	runs, _ := s.store.List(context.Background(), repo.RunFilter{})
	if len(runs) != 1 || runs[0].Outcome != domain.RunOutcomeSucceeded {
		t.Errorf("expected one succeeded run, got %+v", runs)
	}
}

func TestPostEvents_Malformed(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{"", "not json", `{"Records":[]}`, `{"foo":"bar"}`} {
		rec := s.do(t, http.MethodPost, "/api/v1/events", []byte(body))
		if rec.Code != http.StatusAccepted {
			t.Errorf("body %q: expected 202, got %d", body, rec.Code)
			continue
		}
		if resp := decode[EventsResponse](t, rec); len(resp.Events) != 0 {
			t.Errorf("body %q: expected no events, got %d", body, len(resp.Events))
		}
	}
}

// failingStore — хранилище, в котором не удаётся создать run.
type failingStore struct {
	*repo.MemoryRunStore
}

func (failingStore) Begin(context.Context, *domain.Run) (uuid.UUID, error) {
	return uuid.Nil, errors.New("connection refused")
}

func TestPostEvents_StoreUnavailable(t *testing.T) {
	s := newTestServerWithStore(t, []string{"SUCCEEDED"}, failingStore{repo.NewMemoryRunStore()})

	raw := []byte(`{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"airline-data"},"object":{"key":"raw/flights_2024_01.csv"}}}]}`)
	if rec := s.do(t, http.MethodPost, "/api/v1/events", raw); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when no run could be created, got %d", rec.Code)
	}

	// Отклонённое событие не трогает хранилище
	own := []byte(`{"Records":[{"eventName":"s3:ObjectCreated:Put","s3":{"bucket":{"name":"airline-data"},"object":{"key":"silver/airline/part-0.parquet"}}}]}`)
	if rec := s.do(t, http.MethodPost, "/api/v1/events", own); rec.Code != http.StatusAccepted {
		t.Errorf("expected 202 for rejected event, got %d", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	discard := slog.New(slog.DiscardHandler)
	h := Chain(Recovery(discard), Logging(discard))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	// Заданный клиентом ID сохраняется
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-42" || rec.Header().Get(HeaderRequestID) != "req-42" {
		t.Errorf("expected request id req-42, got ctx %q header %q", seen, rec.Header().Get(HeaderRequestID))
	}

	// Без заголовка генерируется UUID
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if _, err := uuid.Parse(rec.Header().Get(HeaderRequestID)); err != nil {
		t.Errorf("expected generated uuid, got %q", rec.Header().Get(HeaderRequestID))
	}
	if seen != rec.Header().Get(HeaderRequestID) {
		t.Errorf("context id %q differs from header", seen)
	}
}
