package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2.0,
		BreakerEnabled: false,
	}
}

func TestExecutorRetriesRetryableErrors(t *testing.T) {
	executor := NewExecutor(fastPolicy(), nil)

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExecutorStopsOnNonRetryable(t *testing.T) {
	executor := NewExecutor(fastPolicy(), nil)

	calls := 0
	wanted := errors.New("permanent")
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return wanted
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	})
	if !errors.Is(err, wanted) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}

func TestExecutorExhaustsAttempts(t *testing.T) {
	executor := NewExecutor(fastPolicy(), nil)

	calls := 0
	err := executor.Execute(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("still failing")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err == nil {
		t.Fatalf("expected error after exhausted attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestExecutorHonorsContextCancellation(t *testing.T) {
	executor := NewExecutor(fastPolicy(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := executor.Execute(ctx, "op", func(context.Context) error {
		t.Fatalf("callback must not run with canceled context")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
