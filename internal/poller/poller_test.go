package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Skyline/internal/domain"
)

var jobMap = domain.StatusMap{
	"RUNNING":   domain.MappedInProgress,
	"SUCCEEDED": domain.MappedSuccess,
	"FAILED":    domain.MappedFailure,
}

// sequence возвращает CheckFunc, выдающий статусы по порядку (последний повторяется).
func sequence(statuses ...string) (CheckFunc, *int32) {
	var calls int32
	return func(_ context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		i := int(n) - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		return statuses[i], nil
	}, &calls
}

func TestAwaitTerminal_FailureAfterThreePolls(t *testing.T) {
	check, calls := sequence("running", "running", "failed")

	res := AwaitTerminal(context.Background(), check, jobMap, Options{
		Interval: time.Millisecond,
		MaxWait:  time.Second,
	})

	if res.Outcome != domain.StageOutcomeFailure {
		t.Fatalf("expected failure, got %s", res.Outcome)
	}
	if res.Polls != 3 || atomic.LoadInt32(calls) != 3 {
		t.Errorf("expected exactly 3 polls, got %d (calls %d)", res.Polls, *calls)
	}
	if res.RawStatus != "failed" {
		t.Errorf("expected raw status failed, got %q", res.RawStatus)
	}
}

func TestAwaitTerminal_SuccessImmediately(t *testing.T) {
	check, _ := sequence("SUCCEEDED")

	res := AwaitTerminal(context.Background(), check, jobMap, Options{Interval: time.Hour})

	if res.Outcome != domain.StageOutcomeSuccess {
		t.Fatalf("expected success, got %s", res.Outcome)
	}
	if res.Polls != 1 {
		t.Errorf("expected 1 poll, got %d", res.Polls)
	}
}

func TestAwaitTerminal_Timeout(t *testing.T) {
	check, _ := sequence("RUNNING")

	res := AwaitTerminal(context.Background(), check, jobMap, Options{
		Interval: 5 * time.Millisecond,
		MaxWait:  30 * time.Millisecond,
	})

	if res.Outcome != domain.StageOutcomeTimeout {
		t.Fatalf("expected timeout, got %s", res.Outcome)
	}
	if res.RawStatus != "RUNNING" {
		t.Errorf("expected last status RUNNING, got %q", res.RawStatus)
	}
}

func TestAwaitTerminal_PollErrorAfterRetries(t *testing.T) {
	var calls int32
	queryErr := errors.New("throttled")
	check := func(_ context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", queryErr
	}

	res := AwaitTerminal(context.Background(), check, jobMap, Options{
		Interval: time.Millisecond,
		MaxWait:  time.Second,
	})

	if res.Outcome != domain.StageOutcomePollError {
		t.Fatalf("expected poll_error, got %s", res.Outcome)
	}
	if calls != MaxQueryErrors {
		t.Errorf("expected %d queries, got %d", MaxQueryErrors, calls)
	}
	if !errors.Is(res.Err, queryErr) {
		t.Errorf("expected query error, got %v", res.Err)
	}
}

func TestAwaitTerminal_TransientErrorRecovers(t *testing.T) {
	var calls int32
	check := func(_ context.Context) (string, error) {
		switch atomic.AddInt32(&calls, 1) {
		case 1, 2:
			return "", errors.New("connection reset")
		default:
			return "SUCCEEDED", nil
		}
	}

	res := AwaitTerminal(context.Background(), check, jobMap, Options{
		Interval: time.Millisecond,
		MaxWait:  time.Second,
	})

	if res.Outcome != domain.StageOutcomeSuccess {
		t.Fatalf("expected success after transient errors, got %s", res.Outcome)
	}
	if res.Err != nil {
		t.Errorf("error should be cleared after successful query, got %v", res.Err)
	}
}

func TestAwaitTerminal_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	check, _ := sequence("RUNNING")

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	res := AwaitTerminal(ctx, check, jobMap, Options{Interval: time.Hour})

	if res.Outcome != domain.StageOutcomeCancelled {
		t.Fatalf("expected cancelled, got %s", res.Outcome)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", res.Err)
	}
}

func TestAwaitTerminal_UnknownStatusKeepsPolling(t *testing.T) {
	check, calls := sequence("STARTING", "WAITING", "SUCCEEDED")

	res := AwaitTerminal(context.Background(), check, jobMap, Options{
		Interval: time.Millisecond,
		MaxWait:  time.Second,
	})

	if res.Outcome != domain.StageOutcomeSuccess {
		t.Fatalf("expected success, got %s", res.Outcome)
	}
	if *calls != 3 {
		t.Errorf("expected 3 polls, got %d", *calls)
	}
}
