package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/stages"
	"github.com/shaiso/Skyline/internal/telemetry"
	"github.com/shaiso/Skyline/internal/trigger"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultMaxWait      = time.Hour
	defaultMaxAttempts  = 3
	defaultHeartbeat    = 30 * time.Second
	defaultSaveAttempts = 3
	defaultSaveBackoff  = 200 * time.Millisecond
)

// RunStore — хранилище Run Record.
//
// Begin должен атомарно проверить отсутствие активного run у pipeline
// и вставить новый; при конфликте возвращается ID активного run и ошибка,
// оборачивающая domain.ErrRunActive.
type RunStore interface {
	Begin(ctx context.Context, run *domain.Run) (uuid.UUID, error)
	Save(ctx context.Context, run *domain.Run) error
	RecordDropped(ctx context.Context, d domain.DroppedTrigger) error
}

// Heartbeater — хранилище с lease активного run (например, repo.RunRepo).
//
// Heartbeat продлевает lease; ошибка, оборачивающая domain.ErrRunNotInProgress,
// значит, что запись закрыта извне, и run прерывается.
type Heartbeater interface {
	Heartbeat(ctx context.Context, id uuid.UUID) error
}

// Notifier получает итог каждого завершённого run (например, mq.Publisher).
type Notifier interface {
	PublishRunFinished(ctx context.Context, run *domain.Run) error
}

// Pipeline — статическое описание pipeline.
type Pipeline struct {
	// Name — идентичность pipeline.
	Name string

	// Stages — стадии в порядке выполнения.
	Stages []domain.StageDescriptor

	// Filter — политика Trigger Filter.
	Filter trigger.FilterConfig
}

// Config — конфигурация Controller.
type Config struct {
	Pipeline Pipeline

	// Store — хранилище runs (обязательно).
	Store RunStore

	// Registry — фабрики адаптеров стадий (обязательно).
	Registry *stages.Registry

	// Notifier — получатель run.finished. Nil — без уведомлений.
	Notifier Notifier

	// Heartbeat — интервал продления lease, если Store реализует Heartbeater.
	Heartbeat time.Duration

	// Logger
	Logger *slog.Logger
}

// Controller — Orchestration Controller одного pipeline.
type Controller struct {
	pipeline Pipeline
	filter   *trigger.Filter
	store    RunStore
	registry *stages.Registry
	notifier Notifier
	logger   *slog.Logger

	heartbeat    time.Duration
	saveAttempts int
	saveBackoff  time.Duration

	// unsaved — финализированный run, финальную запись которого не удалось сохранить.
	// Сохраняется повторно перед приёмом следующего trigger.
	unsaved   *domain.Run
	unsavedMu sync.Mutex

	// active — снимок активного run для чтения из других горутин.
	active *domain.Run
	mu     sync.RWMutex

	// Lifecycle
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopped   bool
	stoppedMu sync.RWMutex
}

// New создаёт Controller. Список стадий валидируется; дескрипторы
// дополняются значениями по умолчанию.
func New(cfg Config) (*Controller, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("%w: registry is required", domain.ErrInvalidPipeline)
	}
	if cfg.Pipeline.Name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidPipeline)
	}
	if err := domain.ValidateStages(cfg.Pipeline.Stages); err != nil {
		return nil, fmt.Errorf("pipeline %s: %w", cfg.Pipeline.Name, err)
	}
	for _, s := range cfg.Pipeline.Stages {
		if !cfg.Registry.Has(s.Kind) {
			return nil, fmt.Errorf("pipeline %s: %w: %s", cfg.Pipeline.Name, stages.ErrUnknownStageKind, s.Kind)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := cfg.Pipeline
	p.Stages = withDefaults(p.Stages)

	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Controller{
		pipeline: p,
		filter:   trigger.NewFilter(p.Filter),
		store:    cfg.Store,
		registry: cfg.Registry,
		notifier: cfg.Notifier,
		logger:   telemetry.WithPipeline(logger, p.Name),

		heartbeat:    heartbeat,
		saveAttempts: defaultSaveAttempts,
		saveBackoff:  defaultSaveBackoff,

		runCtx: ctx,
		cancel: cancel,
	}, nil
}

func withDefaults(descs []domain.StageDescriptor) []domain.StageDescriptor {
	out := make([]domain.StageDescriptor, len(descs))
	for i, d := range descs {
		if d.PollInterval <= 0 {
			d.PollInterval = defaultPollInterval
		}
		if d.MaxWait <= 0 {
			d.MaxWait = defaultMaxWait
		}
		if d.Retryable && d.MaxAttempts <= 0 {
			d.MaxAttempts = defaultMaxAttempts
		}
		out[i] = d
	}
	return out
}

// Name возвращает имя pipeline.
func (c *Controller) Name() string {
	return c.pipeline.Name
}

// Pipeline возвращает описание pipeline (с применёнными значениями по умолчанию).
func (c *Controller) Pipeline() Pipeline {
	return c.pipeline
}

// Submit принимает событие и, если оно принято, запускает run в фоне.
// Возвращает сразу: Decision сообщает, принят ли trigger.
func (c *Controller) Submit(ctx context.Context, ev domain.TriggerEvent) (Decision, error) {
	if c.IsStopped() {
		return Decision{}, ErrControllerStopped
	}

	run, decision, err := c.admit(ctx, ev)
	if err != nil || run == nil {
		return decision, err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Execute(c.runCtx, run); err != nil {
			c.logger.Error("run finished with store error", "run_id", run.ID, "error", err)
		}
	}()

	return decision, nil
}

// Run принимает событие и выполняет run синхронно.
// Для отклонённого или дублирующего trigger run == nil.
func (c *Controller) Run(ctx context.Context, ev domain.TriggerEvent) (*domain.Run, Decision, error) {
	if c.IsStopped() {
		return nil, Decision{}, ErrControllerStopped
	}

	run, decision, err := c.admit(ctx, ev)
	if err != nil || run == nil {
		return nil, decision, err
	}

	err = c.Execute(ctx, run)
	return run.Clone(), decision, err
}

// admit применяет фильтр и атомарно создаёт Run Record.
func (c *Controller) admit(ctx context.Context, ev domain.TriggerEvent) (*domain.Run, Decision, error) {
	decision := Decision{Pipeline: c.pipeline.Name}

	// 1. Trigger Filter
	if ok, reason := c.filter.ShouldAccept(ev); !ok {
		decision.Kind = DecisionRejected
		decision.Reason = reason
		telemetry.Triggers.WithLabelValues(c.pipeline.Name, string(DecisionRejected)).Inc()
		c.logger.Debug("trigger rejected",
			"source_location", ev.SourceLocation,
			"event_type", ev.EventType,
			"reason", reason,
		)
		return nil, decision, nil
	}

	// 2. Досохранение финальной записи прошлого run
	c.flushUnsaved(ctx)

	// 3. Check-and-set активного run
	run := domain.NewRun(c.pipeline.Name, ev)
	activeID, err := c.store.Begin(ctx, run)
	if errors.Is(err, domain.ErrRunActive) {
		return nil, c.drop(ctx, ev, activeID), nil
	}
	if err != nil {
		return nil, decision, fmt.Errorf("begin run: %w", err)
	}

	c.setActive(run)
	telemetry.Triggers.WithLabelValues(c.pipeline.Name, string(DecisionAccepted)).Inc()
	telemetry.ActiveRuns.WithLabelValues(c.pipeline.Name).Set(1)

	c.logger.Info("run accepted",
		"run_id", run.ID,
		"trigger_source", run.TriggerSource,
		"event_type", run.EventType,
	)

	decision.Kind = DecisionAccepted
	decision.RunID = run.ID
	return run, decision, nil
}

// flushUnsaved повторяет сохранение финальной записи, не сохранённой в finalize.
// Пока запись не сохранена, хранилище считает прошлый run активным.
func (c *Controller) flushUnsaved(ctx context.Context) {
	c.unsavedMu.Lock()
	defer c.unsavedMu.Unlock()

	run := c.unsaved
	if run == nil {
		return
	}

	err := c.store.Save(ctx, run)
	switch {
	case err == nil:
		c.logger.Info("saved pending final run", "run_id", run.ID, "outcome", run.Outcome)
	case errors.Is(err, domain.ErrRunNotInProgress):
		c.logger.Warn("pending final run already closed", "run_id", run.ID, "error", err)
	default:
		c.logger.Error("failed to save pending final run", "run_id", run.ID, "error", err)
		return
	}
	c.unsaved = nil
}

func (c *Controller) stashUnsaved(run *domain.Run) {
	c.unsavedMu.Lock()
	defer c.unsavedMu.Unlock()
	c.unsaved = run.Clone()
}

// drop записывает отброшенный trigger. Событие не ставится в очередь.
func (c *Controller) drop(ctx context.Context, ev domain.TriggerEvent, activeID uuid.UUID) Decision {
	telemetry.Triggers.WithLabelValues(c.pipeline.Name, string(DecisionDuplicate)).Inc()

	dropped := domain.DroppedTrigger{
		Pipeline:       c.pipeline.Name,
		SourceLocation: ev.Source(),
		EventType:      ev.EventType,
		ActiveRunID:    activeID,
		DroppedAt:      time.Now(),
	}
	if err := c.store.RecordDropped(ctx, dropped); err != nil {
		c.logger.Error("failed to record dropped trigger", "error", err)
	}

	c.logger.Info("trigger dropped, run already active",
		"active_run_id", activeID,
		"source_location", dropped.SourceLocation,
	)

	return Decision{
		Pipeline: c.pipeline.Name,
		Kind:     DecisionDuplicate,
		Reason:   "run already active",
		RunID:    activeID,
	}
}

// Active возвращает снимок активного run или nil.
func (c *Controller) Active() *domain.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return nil
	}
	return c.active.Clone()
}

func (c *Controller) setActive(run *domain.Run) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = run.Clone()
}

func (c *Controller) clearActive(runID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil && c.active.ID == runID {
		c.active = nil
	}
}

// Wait ждёт завершения всех runs, запущенных через Submit.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Stop прекращает приём событий, отменяет активные runs (они завершаются
// как aborted) и ждёт их финализации.
func (c *Controller) Stop() {
	c.stoppedMu.Lock()
	c.stopped = true
	c.stoppedMu.Unlock()

	c.cancel()
	c.wg.Wait()

	c.logger.Info("controller stopped")
}

// IsStopped проверяет, остановлен ли контроллер.
func (c *Controller) IsStopped() bool {
	c.stoppedMu.RLock()
	defer c.stoppedMu.RUnlock()
	return c.stopped
}
