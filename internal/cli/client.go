package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// StageResponse — стадия pipeline из API.
type StageResponse struct {
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	PollInterval string `json:"poll_interval"`
	MaxWait      string `json:"max_wait"`
	Retryable    bool   `json:"retryable"`
	MaxAttempts  int    `json:"max_attempts"`
}

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	Name        string          `json:"name"`
	Stages      []StageResponse `json:"stages"`
	ActiveRunID string          `json:"active_run_id,omitempty"`
	ActiveState string          `json:"active_state,omitempty"`
}

// StageResultResponse — результат стадии из API.
type StageResultResponse struct {
	StageName     string `json:"stage_name"`
	Kind          string `json:"kind"`
	ExternalRunID string `json:"external_run_id,omitempty"`
	FinalStatus   string `json:"final_status,omitempty"`
	Outcome       string `json:"outcome"`
	NoOp          bool   `json:"no_op,omitempty"`
	Attempts      int    `json:"attempts"`
	Polls         int    `json:"polls"`
	DurationMs    int64  `json:"duration_ms"`
	Error         string `json:"error,omitempty"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID            string                `json:"id"`
	Pipeline      string                `json:"pipeline"`
	TriggerSource string                `json:"trigger_source"`
	EventType     string                `json:"event_type,omitempty"`
	State         string                `json:"state"`
	Outcome       string                `json:"outcome"`
	Stages        []StageResultResponse `json:"stages"`
	FailedStage   string                `json:"failed_stage,omitempty"`
	Error         string                `json:"error,omitempty"`
	StartedAt     string                `json:"started_at"`
	FinishedAt    string                `json:"finished_at,omitempty"`
	CreatedAt     string                `json:"created_at"`
}

// DroppedTriggerResponse — отброшенный trigger из API.
type DroppedTriggerResponse struct {
	Pipeline       string `json:"pipeline"`
	SourceLocation string `json:"source_location"`
	EventType      string `json:"event_type"`
	ActiveRunID    string `json:"active_run_id"`
	DroppedAt      string `json:"dropped_at"`
}

// DecisionResponse — решение контроллера из API.
type DecisionResponse struct {
	Pipeline string `json:"pipeline"`
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
	RunID    string `json:"run_id,omitempty"`
}

// EventResponse — решения по одному событию.
type EventResponse struct {
	SourceLocation string             `json:"source_location"`
	EventType      string             `json:"event_type"`
	Decisions      []DecisionResponse `json:"decisions"`
}

type eventsResponse struct {
	Events []EventResponse `json:"events"`
}

// --- Request types ---

// StartRunRequest — ручной запуск run.
type StartRunRequest struct {
	Source string `json:"source,omitempty"`
}

// EventRequest — событие хранилища в плоском виде.
type EventRequest struct {
	Bucket         string `json:"bucket,omitempty"`
	SourceLocation string `json:"source_location"`
	EventType      string `json:"event_type"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Pipeline string
	Outcome  string
	Limit    int
	Offset   int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Skyline API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipelines ---

// ListPipelines возвращает настроенные pipelines.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// GetPipeline возвращает pipeline по имени.
func (c *Client) GetPipeline(name string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/pipelines/"+url.PathEscape(name), &p)
	return &p, err
}

// StartRun запускает run вручную. Если у pipeline уже есть активный run,
// возвращается решение "duplicate" без ошибки.
func (c *Client) StartRun(pipeline string, req StartRunRequest) (*DecisionResponse, error) {
	resp, err := c.do(http.MethodPost, "/api/v1/pipelines/"+url.PathEscape(pipeline)+"/runs", req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		if err := c.checkError(resp); err != nil {
			return nil, err
		}
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var decision DecisionResponse
	if err := json.Unmarshal(dr.Data, &decision); err != nil {
		return nil, err
	}
	return &decision, nil
}

// ListDropped возвращает отброшенные triggers pipeline.
func (c *Client) ListDropped(pipeline string, limit int) ([]DroppedTriggerResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var dropped []DroppedTriggerResponse
	err := c.list("/api/v1/pipelines/"+url.PathEscape(pipeline)+"/dropped", params, &dropped)
	return dropped, err
}

// --- Runs ---

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Pipeline != "" {
		params.Set("pipeline", opts.Pipeline)
	}
	if opts.Outcome != "" {
		params.Set("outcome", opts.Outcome)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", strconv.Itoa(opts.Offset))
	}

	var runs []RunResponse
	err := c.list("/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get("/api/v1/runs/"+id, &run)
	return &run, err
}

// --- Events ---

// SendEvent отправляет событие хранилища в webhook.
func (c *Client) SendEvent(req EventRequest) ([]EventResponse, error) {
	var resp eventsResponse
	err := c.post("/api/v1/events", req, &resp)
	return resp.Events, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
