package domain

import (
	"errors"
	"testing"
)

func TestNewRun(t *testing.T) {
	ev := TriggerEvent{SourceLocation: "raw/flights_2024_01.csv", EventType: "put"}
	run := NewRun("airline-operations", ev)

	if run.State != RunStateCreated {
		t.Errorf("expected CREATED, got %s", run.State)
	}
	if run.Outcome != RunOutcomeInProgress {
		t.Errorf("expected in_progress, got %s", run.Outcome)
	}
	if run.TriggerSource != "raw/flights_2024_01.csv" {
		t.Errorf("unexpected trigger source %q", run.TriggerSource)
	}
	if run.Stages == nil {
		t.Error("stages should be initialized")
	}
}

func TestRun_ImmutableAfterFinish(t *testing.T) {
	run := NewRun("p", ManualEvent(""))

	if err := run.MarkFailed("FinalGlue", "status FAILED"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.FinishedAt == nil {
		t.Fatal("FinishedAt should be set")
	}

	if err := run.AddStage(StageResult{StageName: "late"}); !errors.Is(err, ErrRunFinished) {
		t.Errorf("expected ErrRunFinished, got %v", err)
	}
	if err := run.Enter(RunStateCrawling); !errors.Is(err, ErrRunFinished) {
		t.Errorf("expected ErrRunFinished, got %v", err)
	}
	if err := run.MarkSucceeded(); !errors.Is(err, ErrRunFinished) {
		t.Errorf("expected ErrRunFinished, got %v", err)
	}
	if run.Outcome != RunOutcomeFailed || run.FailedStage != "FinalGlue" {
		t.Errorf("run changed after finish: %s %s", run.Outcome, run.FailedStage)
	}
}

func TestStatusMap_Classify(t *testing.T) {
	m := StatusMap{
		"SUCCEEDED": MappedSuccess,
		"TIMED_OUT": MappedFailure,
	}

	tests := []struct {
		raw  string
		want Mapped
	}{
		{"SUCCEEDED", MappedSuccess},
		{"succeeded", MappedSuccess},
		{"timed-out", MappedFailure},
		{"something-new", MappedInProgress},
		{"", MappedInProgress},
	}

	for _, tt := range tests {
		if got := m.Classify(tt.raw); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestStatusMap_Merge(t *testing.T) {
	base := StatusMap{"FAILED": MappedFailure}
	merged := base.Merge(StatusMap{"expired": MappedFailure, "FAILED": MappedInProgress})

	if merged["EXPIRED"] != MappedFailure {
		t.Error("override key should be normalized")
	}
	if merged["FAILED"] != MappedInProgress {
		t.Error("override should win")
	}
	if base["FAILED"] != MappedFailure {
		t.Error("base map must not change")
	}
}

func TestStageDescriptor_Attempts(t *testing.T) {
	if n := (StageDescriptor{Retryable: false, MaxAttempts: 5}).Attempts(); n != 1 {
		t.Errorf("non-retryable stage should have 1 attempt, got %d", n)
	}
	if n := (StageDescriptor{Retryable: true, MaxAttempts: 3}).Attempts(); n != 3 {
		t.Errorf("expected 3 attempts, got %d", n)
	}
}
