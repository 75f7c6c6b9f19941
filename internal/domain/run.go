package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run — запись об одном запуске pipeline (Run Record).
//
// Run создаётся, когда Trigger Filter принял событие и не было другого
// активного run для того же pipeline. Run принадлежит оркестратору
// и меняется только им; после финального Outcome run неизменяем.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Pipeline — идентичность pipeline (ключ для проверки единственного активного run).
	Pipeline string `json:"pipeline"`

	// TriggerSource — источник события: путь объекта, "manual" или "schedule".
	TriggerSource string `json:"trigger_source"`

	// EventType — тип исходного события.
	EventType string `json:"event_type,omitempty"`

	// State — текущее состояние конечного автомата.
	State RunState `json:"state"`

	// Outcome — итог run.
	Outcome RunOutcome `json:"outcome"`

	// Stages — результаты стадий в порядке выполнения.
	Stages []StageResult `json:"stages"`

	// FailedStage — имя стадии, на которой run упал.
	FailedStage string `json:"failed_stage,omitempty"`

	// Error — описание причины отказа.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения. Nil, пока run выполняется.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в состоянии CREATED для принятого события.
func NewRun(pipeline string, ev TriggerEvent) *Run {
	now := time.Now()
	return &Run{
		ID:            uuid.New(),
		Pipeline:      pipeline,
		TriggerSource: ev.Source(),
		EventType:     ev.EventType,
		State:         RunStateCreated,
		Outcome:       RunOutcomeInProgress,
		Stages:        []StageResult{},
		StartedAt:     now,
		CreatedAt:     now,
	}
}

// IsFinished возвращает true, если run завершён.
func (r *Run) IsFinished() bool {
	return r.Outcome.IsTerminal()
}

// Duration возвращает длительность run. 0, если run не завершён.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Enter переводит run в состояние выполнения стадии.
func (r *Run) Enter(state RunState) error {
	if r.IsFinished() {
		return ErrRunFinished
	}
	r.State = state
	return nil
}

// AddStage добавляет финализированный результат стадии.
func (r *Run) AddStage(res StageResult) error {
	if r.IsFinished() {
		return ErrRunFinished
	}
	r.Stages = append(r.Stages, res)
	return nil
}

// MarkSucceeded завершает run успешно.
func (r *Run) MarkSucceeded() error {
	return r.finish(RunStateSucceeded, RunOutcomeSucceeded)
}

// MarkFailed завершает run с ошибкой на стадии stage.
func (r *Run) MarkFailed(stage, reason string) error {
	if err := r.finish(RunStateFailed, RunOutcomeFailed); err != nil {
		return err
	}
	r.FailedStage = stage
	r.Error = reason
	return nil
}

// MarkAborted завершает run без терминального статуса стадии.
func (r *Run) MarkAborted(reason string) error {
	if err := r.finish(RunStateAborted, RunOutcomeAborted); err != nil {
		return err
	}
	r.Error = reason
	return nil
}

func (r *Run) finish(state RunState, outcome RunOutcome) error {
	if r.IsFinished() {
		return fmt.Errorf("%w: %s", ErrRunFinished, r.Outcome)
	}
	now := time.Now()
	r.State = state
	r.Outcome = outcome
	r.FinishedAt = &now
	return nil
}

// Stage возвращает результат стадии по имени.
func (r *Run) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.StageName == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Clone возвращает копию run, безопасную для чтения из других горутин.
func (r *Run) Clone() *Run {
	c := *r
	c.Stages = append([]StageResult(nil), r.Stages...)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// DroppedTrigger — запись о событии, отброшенном из-за активного run.
type DroppedTrigger struct {
	Pipeline       string    `json:"pipeline"`
	SourceLocation string    `json:"source_location"`
	EventType      string    `json:"event_type"`
	ActiveRunID    uuid.UUID `json:"active_run_id,omitempty"`
	DroppedAt      time.Time `json:"dropped_at"`
}
