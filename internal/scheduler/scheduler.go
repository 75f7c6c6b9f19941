package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/orchestrator"
)

// Trigger запускает run pipeline. orchestrator.Dispatcher удовлетворяет интерфейсу.
type Trigger interface {
	Trigger(ctx context.Context, pipeline string, ev domain.TriggerEvent) (orchestrator.Decision, error)
}

// entry — расписание одного pipeline.
type entry struct {
	pipeline string
	cronExpr string
	nextDue  time.Time
}

// Scheduler — источник trigger'ов по расписанию.
type Scheduler struct {
	trigger  Trigger
	logger   *slog.Logger
	location *time.Location
	interval time.Duration

	entries []*entry
	mu      sync.Mutex
}

// Config — конфигурация Scheduler.
type Config struct {
	// Trigger — получатель запусков (обязательно).
	Trigger Trigger

	// Schedules — имя pipeline → cron-выражение.
	Schedules map[string]string

	// Location — timezone расписаний (default: UTC).
	Location *time.Location

	// Interval — период тика (default: 1s).
	Interval time.Duration

	Logger *slog.Logger
}

// New создаёт Scheduler и вычисляет первое время запуска каждого расписания.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Trigger == nil {
		return nil, errors.New("scheduler: trigger is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}

	s := &Scheduler{
		trigger:  cfg.Trigger,
		logger:   logger,
		location: loc,
		interval: interval,
	}

	now := time.Now()
	for pipeline, expr := range cfg.Schedules {
		next, err := NextDue(expr, now, loc)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", pipeline, err)
		}
		s.entries = append(s.entries, &entry{pipeline: pipeline, cronExpr: expr, nextDue: next})
	}
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].pipeline < s.entries[j].pipeline })

	return s, nil
}

// Len возвращает количество расписаний.
func (s *Scheduler) Len() int {
	return len(s.entries)
}

// NextDue возвращает следующее время запуска pipeline.
func (s *Scheduler) NextDue(pipeline string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.pipeline == pipeline {
			return e.nextDue, true
		}
	}
	return time.Time{}, false
}

// Run вызывает Tick раз в Interval до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		s.logger.Info("no schedules configured")
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "schedules", len(s.entries))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(ctx, now)
		}
	}
}

// Tick запускает pipelines, у которых наступило время.
//
// 1. Находит расписания с nextDue <= now
// 2. Для каждого отправляет trigger с источником "schedule"
// 3. Вычисляет следующее время запуска
//
// Если run pipeline ещё активен, trigger отбрасывается контроллером:
// пропущенный запуск не догоняется.
// Возвращает количество принятых запусков.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	accepted := 0
	for _, e := range s.entries {
		// 1. Время ещё не наступило
		if now.Before(e.nextDue) {
			continue
		}

		// 2. Trigger
		decision, err := s.trigger.Trigger(ctx, e.pipeline, domain.ManualEvent(domain.SourceSchedule))
		switch {
		case err != nil:
			s.logger.Error("scheduled trigger failed", "pipeline", e.pipeline, "error", err)
		case decision.Accepted():
			accepted++
			s.logger.Info("scheduled run started", "pipeline", e.pipeline, "run_id", decision.RunID)
		default:
			s.logger.Info("scheduled run skipped",
				"pipeline", e.pipeline,
				"decision", decision.Kind,
				"active_run_id", decision.RunID,
			)
		}

		// 3. Следующее время
		next, err := NextDue(e.cronExpr, now, s.location)
		if err != nil {
			s.logger.Error("failed to calculate next due", "pipeline", e.pipeline, "error", err)
			continue
		}
		e.nextDue = next
	}

	return accepted
}
