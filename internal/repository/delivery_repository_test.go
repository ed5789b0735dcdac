package repository_test

import (
	"testing"
	"time"

	"github.com/herogram/herogram/internal/repository"
)

func TestBackoffDoublesPerAttempt(t *testing.T) {
	t.Parallel()

	repo := repository.NewDeliveryRepository(nil, 3, 5*time.Minute)

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 5 * time.Minute},
		{2, 10 * time.Minute},
		{3, 20 * time.Minute},
		{4, 40 * time.Minute},
	}

	for _, tt := range tests {
		if got := repo.Backoff(tt.retryCount); got != tt.want {
			t.Fatalf("Backoff(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestRetryTransitionThreeFailureRun(t *testing.T) {
	t.Parallel()

	repo := repository.NewDeliveryRepository(nil, 3, 5*time.Minute)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	steps := []struct {
		wantCount int
		wantNext  *time.Time
	}{
		{1, timePtr(now.Add(5 * time.Minute))},
		{2, timePtr(now.Add(10 * time.Minute))},
		{3, nil},
	}

	count := 0
	for i, step := range steps {
		var next *time.Time
		count, next = repo.RetryTransition(count, 3, false, now)
		if count != step.wantCount {
			t.Fatalf("failure %d: retry count = %d, want %d", i+1, count, step.wantCount)
		}
		if (next == nil) != (step.wantNext == nil) {
			t.Fatalf("failure %d: next retry = %v, want %v", i+1, next, step.wantNext)
		}
		if next != nil && !next.Equal(*step.wantNext) {
			t.Fatalf("failure %d: next retry = %v, want %v", i+1, *next, *step.wantNext)
		}
	}
}

func TestRetryTransitionTerminalExhaustsBudget(t *testing.T) {
	t.Parallel()

	repo := repository.NewDeliveryRepository(nil, 3, 5*time.Minute)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	count, next := repo.RetryTransition(0, 3, true, now)
	if count != 3 {
		t.Fatalf("terminal failure: retry count = %d, want 3", count)
	}
	if next != nil {
		t.Fatalf("terminal failure must not schedule a retry, got %v", *next)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestBackoffMonotonic(t *testing.T) {
	t.Parallel()

	repo := repository.NewDeliveryRepository(nil, 3, 5*time.Minute)

	prev := time.Duration(0)
	for n := 1; n <= 6; n++ {
		d := repo.Backoff(n)
		if d <= prev {
			t.Fatalf("backoff not increasing at attempt %d: %v <= %v", n, d, prev)
		}
		prev = d
	}
}
