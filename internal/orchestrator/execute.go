package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/poller"
	"github.com/shaiso/Skyline/internal/stages"
	"github.com/shaiso/Skyline/internal/telemetry"
)

// phase — подряд идущие стадии одного типа.
type phase struct {
	kind   domain.StageKind
	stages []domain.StageDescriptor
}

// groupPhases разбивает упорядоченный список стадий на фазы.
func groupPhases(descs []domain.StageDescriptor) []phase {
	var phases []phase
	for _, d := range descs {
		if n := len(phases); n > 0 && phases[n-1].kind == d.Kind {
			phases[n-1].stages = append(phases[n-1].stages, d)
			continue
		}
		phases = append(phases, phase{kind: d.Kind, stages: []domain.StageDescriptor{d}})
	}
	return phases
}

// verdict — итог прохода по стадиям.
type verdict struct {
	// failed — стадия, на которой run остановился. Nil при успехе.
	failed *domain.StageResult

	// aborted — run прерван отменой context.
	aborted error
}

// Execute проводит принятый run по всем стадиям и финализирует его.
//
// Run должен быть создан через RunStore.Begin. Возвращается только ошибка
// сохранения финальной записи: итог run лежит в самом run.
//
// Если Store реализует Heartbeater, на время стадий продлевается lease run.
// Закрытие записи извне прерывает run.
func (c *Controller) Execute(ctx context.Context, run *domain.Run) error {
	if run.IsFinished() {
		return fmt.Errorf("execute run %s: %w", run.ID, domain.ErrRunFinished)
	}

	logger := telemetry.WithRunID(c.logger, run.ID.String())
	start := time.Now()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := func() {}
	if hb, ok := c.store.(Heartbeater); ok {
		stop = c.keepAlive(runCtx, cancel, hb, run.ID, logger)
	}

	v := c.runPhases(runCtx, run, logger)
	stop()

	return c.finalize(ctx, run, v, time.Since(start), logger)
}

// keepAlive продлевает lease run каждые c.heartbeat до вызова stop.
func (c *Controller) keepAlive(ctx context.Context, cancel context.CancelCauseFunc, hb Heartbeater, id uuid.UUID, logger *slog.Logger) (stop func()) {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
			}

			err := hb.Heartbeat(ctx, id)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrRunNotInProgress):
				logger.Warn("run record closed externally, aborting run", "error", err)
				cancel(err)
				return
			case ctx.Err() != nil:
				return
			default:
				logger.Warn("failed to extend run lease", "error", err)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// cause возвращает причину отмены ctx или nil.
func cause(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return context.Cause(ctx)
}

func (c *Controller) runPhases(ctx context.Context, run *domain.Run, logger *slog.Logger) verdict {
	for _, ph := range groupPhases(c.pipeline.Stages) {
		if err := cause(ctx); err != nil {
			return verdict{aborted: err}
		}

		// 1. Переход автомата
		if err := run.Enter(ph.kind.State()); err != nil {
			return verdict{aborted: err}
		}
		if err := c.persist(ctx, run, logger); err != nil {
			return verdict{aborted: err}
		}
		logger.Info("entering state", "state", run.State, "stages", len(ph.stages))

		// 2. Стадии фазы
		var results []domain.StageResult
		var failed int
		if ph.kind == domain.StageKindCatalogCrawler && len(ph.stages) > 1 {
			results, failed = c.runConcurrent(ctx, ph.stages, logger)
		} else {
			results, failed = c.runSequential(ctx, ph.stages, logger)
		}

		for _, res := range results {
			if err := run.AddStage(res); err != nil {
				return verdict{aborted: err}
			}
		}
		if err := c.persist(ctx, run, logger); err != nil {
			return verdict{aborted: err}
		}

		// 3. Короткое замыкание при отказе
		if failed >= 0 {
			if err := cause(ctx); err != nil {
				return verdict{aborted: err}
			}
			res := results[failed]
			return verdict{failed: &res}
		}
	}
	return verdict{}
}

// runSequential выполняет стадии по одной. Следующая стадия стартует только
// после успеха предыдущей. Возвращает индекс неуспешной стадии или -1.
func (c *Controller) runSequential(ctx context.Context, descs []domain.StageDescriptor, logger *slog.Logger) ([]domain.StageResult, int) {
	results := make([]domain.StageResult, 0, len(descs))
	for _, d := range descs {
		res := c.runStage(ctx, d, logger)
		results = append(results, res)
		if !res.Outcome.IsSuccess() {
			return results, len(results) - 1
		}
	}
	return results, -1
}

// runConcurrent запускает стадии параллельно и ждёт все.
// Первая неудача отменяет опрос остальных: они получают outcome cancelled.
func (c *Controller) runConcurrent(ctx context.Context, descs []domain.StageDescriptor, logger *slog.Logger) ([]domain.StageResult, int) {
	results := make([]domain.StageResult, len(descs))
	failed := -1
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, d := range descs {
		g.Go(func() error {
			res := c.runStage(gctx, d, logger)
			results[i] = res
			if res.Outcome.IsSuccess() {
				return nil
			}

			mu.Lock()
			if failed < 0 && res.Outcome != domain.StageOutcomeCancelled {
				failed = i
			}
			mu.Unlock()
			return fmt.Errorf("%w: %s", errStageFailed, d.Name)
		})
	}
	_ = g.Wait()

	if failed < 0 {
		// Все неуспешные стадии отменены родительским context
		for i, res := range results {
			if !res.Outcome.IsSuccess() {
				return results, i
			}
		}
	}
	return results, failed
}

// runStage выполняет одну стадию с учётом политики повторов.
func (c *Controller) runStage(ctx context.Context, desc domain.StageDescriptor, logger *slog.Logger) domain.StageResult {
	logger = telemetry.WithStage(logger, desc.Name, string(desc.Kind))

	res := domain.StageResult{
		StageName: desc.Name,
		Kind:      desc.Kind,
		StartedAt: time.Now(),
	}

	defer func() {
		res.Duration = time.Since(res.StartedAt)
		telemetry.StageDuration.WithLabelValues(c.pipeline.Name, string(desc.Kind), string(res.Outcome)).
			Observe(res.Duration.Seconds())
		telemetry.StageAttempts.WithLabelValues(string(desc.Kind)).Observe(float64(res.Attempts))
	}()

	adapter, err := c.registry.Build(desc)
	if err != nil {
		res.Outcome = domain.StageOutcomeFailure
		res.Error = err.Error()
		logger.Error("failed to build stage adapter", "error", err)
		return res
	}

	attempts := desc.Attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		res.Attempts = attempt
		c.attempt(ctx, adapter, &res, logger)

		if res.Outcome.IsSuccess() || res.Outcome == domain.StageOutcomeCancelled || attempt == attempts {
			break
		}

		logger.Warn("stage attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"outcome", res.Outcome,
			"error", res.Error,
		)

		// Пауза между попытками
		timer := time.NewTimer(desc.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Outcome = domain.StageOutcomeCancelled
			res.Error = ctx.Err().Error()
			return res
		case <-timer.C:
		}
	}

	attrs := []any{
		"outcome", res.Outcome,
		"status", res.FinalStatus,
		"attempts", res.Attempts,
		"polls", res.Polls,
		"duration", time.Since(res.StartedAt),
	}
	switch {
	case res.Outcome.IsSuccess():
		logger.Info("stage succeeded", attrs...)
	case res.Outcome == domain.StageOutcomeCancelled:
		logger.Warn("stage cancelled", attrs...)
	default:
		logger.Error("stage failed", append(attrs, "error", res.Error)...)
	}

	return res
}

// attempt выполняет одну попытку: Start и ожидание терминального статуса.
func (c *Controller) attempt(ctx context.Context, adapter stages.Adapter, res *domain.StageResult, logger *slog.Logger) {
	desc := adapter.Descriptor()

	res.Error = ""
	res.FinalStatus = ""
	res.Polls = 0
	res.NoOp = false

	started, err := adapter.Start(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.Outcome = domain.StageOutcomeCancelled
			res.Error = ctx.Err().Error()
			return
		}
		res.Outcome = domain.StageOutcomeFailure
		res.Error = fmt.Sprintf("start: %v", err)
		return
	}

	res.ExternalRunID = started.ExternalRunID
	logger.Info("stage started", "start", started.Kind, "external_run_id", started.ExternalRunID)

	if !started.NeedsPolling() {
		res.Outcome = domain.StageOutcomeSuccess
		res.NoOp = true
		return
	}

	pr := poller.AwaitTerminal(ctx, adapter.Status, adapter, poller.Options{
		Interval: desc.PollInterval,
		MaxWait:  desc.MaxWait,
		Label:    string(desc.Kind),
		Logger:   logger,
	})

	res.Outcome = pr.Outcome
	res.FinalStatus = pr.RawStatus
	res.Polls = pr.Polls
	res.Error = failureReason(pr, desc)
}

// failureReason описывает неуспешный итог ожидания. Пусто для success.
func failureReason(pr poller.Result, desc domain.StageDescriptor) string {
	switch pr.Outcome {
	case domain.StageOutcomeFailure:
		return "status " + pr.RawStatus
	case domain.StageOutcomeTimeout:
		return fmt.Sprintf("no terminal status within %s, last status %q", desc.MaxWait, pr.RawStatus)
	case domain.StageOutcomePollError:
		return fmt.Sprintf("status query failed: %v", pr.Err)
	case domain.StageOutcomeCancelled:
		if pr.Err != nil {
			return pr.Err.Error()
		}
		return "cancelled"
	default:
		return ""
	}
}

// persist сохраняет промежуточное состояние run. Временная ошибка хранилища
// не прерывает run: финальное сохранение вернёт её вызывающему коду.
// Возвращает ошибку только если запись run закрыта извне.
func (c *Controller) persist(ctx context.Context, run *domain.Run, logger *slog.Logger) error {
	c.setActive(run)
	err := c.store.Save(context.WithoutCancel(ctx), run)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrRunNotInProgress) {
		logger.Warn("run record closed externally, aborting run", "state", run.State, "error", err)
		return err
	}
	logger.Warn("failed to save run", "state", run.State, "error", err)
	return nil
}

// saveFinal сохраняет финальную запись с повторами. Если запись так и не
// сохранена, run откладывается до следующего admit.
func (c *Controller) saveFinal(ctx context.Context, run *domain.Run, logger *slog.Logger) error {
	backoff := c.saveBackoff

	var err error
	for attempt := 1; attempt <= c.saveAttempts; attempt++ {
		err = c.store.Save(ctx, run)
		if err == nil || errors.Is(err, domain.ErrRunNotInProgress) {
			return err
		}
		if attempt == c.saveAttempts {
			break
		}

		logger.Warn("failed to save final run, retrying",
			"attempt", attempt,
			"max_attempts", c.saveAttempts,
			"error", err,
		)
		time.Sleep(backoff)
		backoff *= 2
	}

	c.stashUnsaved(run)
	logger.Error("final run not saved, will retry before next trigger", "error", err)
	return err
}

// finalize выставляет итог, сохраняет run и публикует run.finished.
func (c *Controller) finalize(ctx context.Context, run *domain.Run, v verdict, elapsed time.Duration, logger *slog.Logger) error {
	ctx = context.WithoutCancel(ctx)

	switch {
	case v.aborted != nil:
		_ = run.MarkAborted("aborted: " + v.aborted.Error())
	case v.failed != nil:
		_ = run.MarkFailed(v.failed.StageName,
			fmt.Sprintf("%s %s %s: %s", v.failed.Kind, v.failed.StageName, v.failed.Outcome, v.failed.Error))
	default:
		_ = run.MarkSucceeded()
	}

	saveErr := c.saveFinal(ctx, run, logger)

	c.clearActive(run.ID)
	telemetry.Runs.WithLabelValues(c.pipeline.Name, string(run.Outcome)).Inc()
	telemetry.ActiveRuns.WithLabelValues(c.pipeline.Name).Set(0)

	attrs := []any{
		"outcome", run.Outcome,
		"stages", len(run.Stages),
		"duration", elapsed,
	}
	switch run.Outcome {
	case domain.RunOutcomeSucceeded:
		logger.Info("run succeeded", attrs...)
	case domain.RunOutcomeAborted:
		logger.Warn("run aborted", append(attrs, "error", run.Error)...)
	default:
		logger.Error("run failed", append(attrs, "failed_stage", run.FailedStage, "error", run.Error)...)
	}

	if c.notifier != nil {
		if err := c.notifier.PublishRunFinished(ctx, run); err != nil {
			logger.Error("failed to publish run finished", "error", err)
		}
	}

	if saveErr != nil {
		return fmt.Errorf("save run %s: %w", run.ID, saveErr)
	}
	return nil
}
