package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Skyline/internal/domain"
	"github.com/shaiso/Skyline/internal/orchestrator"
)

type fakeTrigger struct {
	mu     sync.Mutex
	calls  []string
	events []domain.TriggerEvent
	kind   orchestrator.DecisionKind
	err    error
}

func (f *fakeTrigger) Trigger(_ context.Context, pipeline string, ev domain.TriggerEvent) (orchestrator.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pipeline)
	f.events = append(f.events, ev)
	if f.err != nil {
		return orchestrator.Decision{}, f.err
	}
	kind := f.kind
	if kind == "" {
		kind = orchestrator.DecisionAccepted
	}
	return orchestrator.Decision{Pipeline: pipeline, Kind: kind, RunID: uuid.New()}, nil
}

func TestNextDue(t *testing.T) {
	from := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2024, 1, 15, 10, 45, 0, 0, time.UTC)},
		{"@hourly", time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := NextDue(tt.expr, from, nil)
		if err != nil {
			t.Fatalf("NextDue(%q): %v", tt.expr, err)
		}
		if !got.Equal(tt.want) {
			t.Errorf("NextDue(%q) = %s, want %s", tt.expr, got, tt.want)
		}
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("0 3 * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	for _, expr := range []string{"", "every day", "0 3 * *", "61 * * * *"} {
		if err := ValidateCronExpr(expr); err == nil {
			t.Errorf("expected error for %q", expr)
		}
	}
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New(Config{
		Trigger:   &fakeTrigger{},
		Schedules: map[string]string{"p": "nope"},
	})
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}

	if _, err := New(Config{}); err == nil {
		t.Error("expected error without trigger")
	}
}

func TestTick(t *testing.T) {
	trig := &fakeTrigger{}
	s, err := New(Config{
		Trigger: trig,
		Schedules: map[string]string{
			"airline-operations": "*/5 * * * *",
			"reference-data":     "0 0 1 1 *",
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Не наступило
	if n := s.Tick(context.Background(), time.Now()); n != 0 {
		t.Errorf("expected no runs before due, got %d", n)
	}

	due, _ := s.NextDue("airline-operations")
	if n := s.Tick(context.Background(), due); n != 1 {
		t.Fatalf("expected 1 run, got %d", n)
	}
	if len(trig.calls) != 1 || trig.calls[0] != "airline-operations" {
		t.Errorf("unexpected triggers: %v", trig.calls)
	}

	ev := trig.events[0]
	if !ev.Manual || ev.Source() != domain.SourceSchedule {
		t.Errorf("expected schedule event, got %+v", ev)
	}

	next, _ := s.NextDue("airline-operations")
	if !next.After(due) {
		t.Errorf("next due should advance past %s, got %s", due, next)
	}
}

func TestTick_DuplicateAndErrorsAdvance(t *testing.T) {
	for _, trig := range []*fakeTrigger{
		{kind: orchestrator.DecisionDuplicate},
		{err: errors.New("controller stopped")},
	} {
		s, err := New(Config{Trigger: trig, Schedules: map[string]string{"p": "@hourly"}})
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		due, _ := s.NextDue("p")
		if n := s.Tick(context.Background(), due); n != 0 {
			t.Errorf("expected no accepted runs, got %d", n)
		}
		next, _ := s.NextDue("p")
		if !next.After(due) {
			t.Error("next due should advance even when the trigger is not accepted")
		}
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := New(Config{Trigger: &fakeTrigger{}, Schedules: map[string]string{"p": "@hourly"}, Interval: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
