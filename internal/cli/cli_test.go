package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_ListRunsQuery(t *testing.T) {
	var query string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  []map[string]any{{"id": "r1", "pipeline": "airline-operations", "outcome": "failed"}},
			"total": 1,
		})
	})

	runs, err := client.ListRuns(ListRunsOpts{Pipeline: "airline-operations", Outcome: "failed", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "r1" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	for _, want := range []string{"pipeline=airline-operations", "outcome=failed", "limit=5"} {
		if !strings.Contains(query, want) {
			t.Errorf("query %q should contain %q", query, want)
		}
	}
	if strings.Contains(query, "offset") {
		t.Errorf("zero offset should not be sent: %q", query)
	}
}

func TestClient_StartRunDuplicate(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/pipelines/airline-operations/runs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"data": map[string]any{"pipeline": "airline-operations", "decision": "duplicate", "run_id": "r1"},
		})
	})

	decision, err := client.StartRun("airline-operations", StartRunRequest{})
	if err != nil {
		t.Fatalf("duplicate should not be an error: %v", err)
	}
	if decision.Decision != "duplicate" || decision.RunID != "r1" {
		t.Errorf("unexpected decision: %+v", decision)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]string{"code": "NOT_FOUND", "message": "pipeline not found"},
		})
	})

	_, err := client.GetPipeline("missing")
	if err == nil || err.Error() != "NOT_FOUND: pipeline not found" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestClient_SendEvent(t *testing.T) {
	var got EventRequest
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"data": map[string]any{"events": []map[string]any{{
				"source_location": got.SourceLocation,
				"event_type":      got.EventType,
				"decisions":       []map[string]any{{"pipeline": "airline-operations", "decision": "accepted", "run_id": "r2"}},
			}}},
		})
	})

	events, err := client.SendEvent(EventRequest{SourceLocation: "raw/flights.csv", EventType: "put"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceLocation != "raw/flights.csv" {
		t.Errorf("unexpected request body: %+v", got)
	}
	if len(events) != 1 || events[0].Decisions[0].RunID != "r2" {
		t.Errorf("unexpected events: %+v", events)
	}
}

func TestRunStartCmd_PrintsDecision(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusAccepted, map[string]any{
			"data": map[string]any{"pipeline": "airline-operations", "decision": "accepted", "run_id": "r3"},
		})
	})

	var stdout, stderr bytes.Buffer
	cmd := NewRunCmd(
		func() *Client { return client },
		func() *Output { return NewOutputTo(false, &stdout, &stderr) },
	)
	cmd.SetArgs([]string{"start", "airline-operations"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr.String(), "Run started: r3") {
		t.Errorf("unexpected stderr: %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "accepted") {
		t.Errorf("unexpected stdout: %q", stdout.String())
	}
}

func TestPipelineListCmd_JSON(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":  []map[string]any{{"name": "airline-operations", "stages": []map[string]any{{"kind": "etl-job", "name": "FinalGlue"}}}},
			"total": 1,
		})
	})

	var stdout, stderr bytes.Buffer
	cmd := NewPipelineCmd(
		func() *Client { return client },
		func() *Output { return NewOutputTo(true, &stdout, &stderr) },
	)
	cmd.SetArgs([]string{"list"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var pipelines []PipelineResponse
	if err := json.Unmarshal(stdout.Bytes(), &pipelines); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if len(pipelines) != 1 || pipelines[0].Stages[0].Name != "FinalGlue" {
		t.Errorf("unexpected pipelines: %+v", pipelines)
	}
}
