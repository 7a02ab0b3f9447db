package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clipper/internal/services"
	"clipper/internal/services/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Multiplier:  2,
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	attempts := 0
	err := retry.Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return services.Wrap(services.ErrTransient, "chat", "complete", "rate limited", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	wrapped := services.Wrap(services.ErrValidation, "chat", "complete", "bad request", nil)
	err := retry.Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		attempts++
		return wrapped
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("permanent error should not retry, got %d attempts", attempts)
	}
}

func TestDoExhaustsBudget(t *testing.T) {
	attempts := 0
	err := retry.Do(context.Background(), fastPolicy(), func(ctx context.Context) error {
		attempts++
		return services.Wrap(services.ErrTimeout, "transcriber", "run", "deadline", nil)
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected last timeout error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry.Do(ctx, fastPolicy(), func(ctx context.Context) error {
		t.Fatal("fn should not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
