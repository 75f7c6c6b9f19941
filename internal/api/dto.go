package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/orchestrator"
)

// Pipeline DTOs

// StageResponse — стадия в описании pipeline.
type StageResponse struct {
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	PollInterval string `json:"poll_interval"`
	MaxWait      string `json:"max_wait"`
	Retryable    bool   `json:"retryable"`
	MaxAttempts  int    `json:"max_attempts"`
}

// FilterResponse — политика Trigger Filter.
type FilterResponse struct {
	Bucket          string   `json:"bucket,omitempty"`
	OutputPrefixes  []string `json:"output_prefixes,omitempty"`
	ExcludePrefixes []string `json:"exclude_prefixes,omitempty"`
	IncludePrefixes []string `json:"include_prefixes,omitempty"`
}

// PipelineResponse — ответ с pipeline.
type PipelineResponse struct {
	Name        string          `json:"name"`
	Stages      []StageResponse `json:"stages"`
	Filter      FilterResponse  `json:"filter"`
	ActiveRunID *uuid.UUID      `json:"active_run_id,omitempty"`
	ActiveState string          `json:"active_state,omitempty"`
}

// PipelineFromController конвертирует состояние контроллера в PipelineResponse.
func PipelineFromController(c *orchestrator.Controller) PipelineResponse {
	p := c.Pipeline()

	stages := make([]StageResponse, len(p.Stages))
	for i, s := range p.Stages {
		stages[i] = StageResponse{
			Kind:         string(s.Kind),
			Name:         s.Name,
			PollInterval: s.PollInterval.String(),
			MaxWait:      s.MaxWait.String(),
			Retryable:    s.Retryable,
			MaxAttempts:  s.Attempts(),
		}
	}

	resp := PipelineResponse{
		Name:   p.Name,
		Stages: stages,
		Filter: FilterResponse{
			Bucket:          p.Filter.Bucket,
			OutputPrefixes:  p.Filter.OutputPrefixes,
			ExcludePrefixes: p.Filter.ExcludePrefixes,
			IncludePrefixes: p.Filter.IncludePrefixes,
		},
	}
	if active := c.Active(); active != nil {
		resp.ActiveRunID = &active.ID
		resp.ActiveState = string(active.State)
	}
	return resp
}

// Run DTOs

// StageResultResponse — результат стадии.
type StageResultResponse struct {
	StageName     string    `json:"stage_name"`
	Kind          string    `json:"kind"`
	ExternalRunID string    `json:"external_run_id,omitempty"`
	FinalStatus   string    `json:"final_status,omitempty"`
	Outcome       string    `json:"outcome"`
	NoOp          bool      `json:"no_op,omitempty"`
	Attempts      int       `json:"attempts"`
	Polls         int       `json:"polls"`
	StartedAt     time.Time `json:"started_at"`
	DurationMs    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID            uuid.UUID             `json:"id"`
	Pipeline      string                `json:"pipeline"`
	TriggerSource string                `json:"trigger_source"`
	EventType     string                `json:"event_type,omitempty"`
	State         string                `json:"state"`
	Outcome       string                `json:"outcome"`
	Stages        []StageResultResponse `json:"stages"`
	FailedStage   string                `json:"failed_stage,omitempty"`
	Error         string                `json:"error,omitempty"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    *time.Time            `json:"finished_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	stages := make([]StageResultResponse, len(r.Stages))
	for i, s := range r.Stages {
		stages[i] = StageResultResponse{
			StageName:     s.StageName,
			Kind:          string(s.Kind),
			ExternalRunID: s.ExternalRunID,
			FinalStatus:   s.FinalStatus,
			Outcome:       string(s.Outcome),
			NoOp:          s.NoOp,
			Attempts:      s.Attempts,
			Polls:         s.Polls,
			StartedAt:     s.StartedAt,
			DurationMs:    s.Duration.Milliseconds(),
			Error:         s.Error,
		}
	}

	return RunResponse{
		ID:            r.ID,
		Pipeline:      r.Pipeline,
		TriggerSource: r.TriggerSource,
		EventType:     r.EventType,
		State:         string(r.State),
		Outcome:       string(r.Outcome),
		Stages:        stages,
		FailedStage:   r.FailedStage,
		Error:         r.Error,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		CreatedAt:     r.CreatedAt,
	}
}

// DroppedTriggerResponse — отброшенный trigger.
type DroppedTriggerResponse struct {
	Pipeline       string    `json:"pipeline"`
	SourceLocation string    `json:"source_location"`
	EventType      string    `json:"event_type"`
	ActiveRunID    uuid.UUID `json:"active_run_id"`
	DroppedAt      time.Time `json:"dropped_at"`
}

// DroppedFromDomain конвертирует domain.DroppedTrigger в DroppedTriggerResponse.
func DroppedFromDomain(d domain.DroppedTrigger) DroppedTriggerResponse {
	return DroppedTriggerResponse{
		Pipeline:       d.Pipeline,
		SourceLocation: d.SourceLocation,
		EventType:      d.EventType,
		ActiveRunID:    d.ActiveRunID,
		DroppedAt:      d.DroppedAt,
	}
}

// Trigger DTOs

// StartRunRequest — запрос на ручной запуск. Тело необязательно.
type StartRunRequest struct {
	// Source — метка источника для Run Record (default: "manual").
	Source string `json:"source,omitempty"`
}

// DecisionResponse — решение контроллера по trigger.
type DecisionResponse struct {
	Pipeline string     `json:"pipeline"`
	Decision string     `json:"decision"`
	Reason   string     `json:"reason,omitempty"`
	RunID    *uuid.UUID `json:"run_id,omitempty"`
}

// DecisionFromOrchestrator конвертирует orchestrator.Decision в DecisionResponse.
func DecisionFromOrchestrator(d orchestrator.Decision) DecisionResponse {
	resp := DecisionResponse{
		Pipeline: d.Pipeline,
		Decision: string(d.Kind),
		Reason:   d.Reason,
	}
	if d.RunID != uuid.Nil {
		id := d.RunID
		resp.RunID = &id
	}
	return resp
}

// EventResponse — решения по одному событию хранилища.
type EventResponse struct {
	SourceLocation string             `json:"source_location"`
	EventType      string             `json:"event_type"`
	Decisions      []DecisionResponse `json:"decisions"`
}

// EventsResponse — ответ на POST /api/v1/events.
type EventsResponse struct {
	Events []EventResponse `json:"events"`
}
