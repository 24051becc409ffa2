package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"tierboard/searchservice/internal/domain"
)

func TestRetryWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_SucceedsOnNthAttempt(t *testing.T) {
	var calls atomic.Int32
	transientErr := fmt.Errorf("connection reset")
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		n := calls.Add(1)
		if n < 3 {
			return transientErr
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error after retries, got %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestRetryWithBackoff_ExhaustsAllAttempts(t *testing.T) {
	transientErr := fmt.Errorf("timeout")
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return transientErr
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}
	// Cancel after first attempt completes.
	err := RetryWithBackoff(ctx, cfg, func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return fmt.Errorf("connection reset")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestRetryWithBackoff_UpstreamStatusNeverRetried(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return &domain.UpstreamError{Backend: "musicbrainz", Status: http.StatusServiceUnavailable}
	})
	if _, ok := domain.IsUpstreamError(err); !ok {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("a completed upstream response must not be retried, got %d calls", calls)
	}
}

func TestRetryWithBackoff_MalformedResponseNeverRetried(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), DefaultRetryConfig(), func() error {
		calls++
		return fmt.Errorf("%w: unexpected token", domain.ErrMalformedResponse)
	})
	if !errors.Is(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_NonTransientErrorFailsImmediately(t *testing.T) {
	nonTransientErr := fmt.Errorf("parse error: invalid payload")
	calls := 0
	cfg := RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}
	err := RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return nonTransientErr
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected 1 call (non-transient should not retry), got %d", calls)
	}
}

func TestExponentialBlockDuration(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{3, 2 * time.Minute},  // 2min × 2^0 = 2min
		{4, 4 * time.Minute},  // 2min × 2^1 = 4min
		{5, 8 * time.Minute},  // 2min × 2^2 = 8min
		{6, 15 * time.Minute}, // 2min × 2^3 = 16min → capped at 15min
		{7, 15 * time.Minute}, // capped
		{10, 15 * time.Minute},
	}
	for _, tt := range tests {
		got := exponentialBlockDuration(tt.failures)
		if got != tt.want {
			t.Errorf("exponentialBlockDuration(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
}

func TestHealthExponentialBlock(t *testing.T) {
	svc := newTestService(t, &fakeAdapter{name: "musicbrainz"})

	baseTime := time.Now()
	testErr := fmt.Errorf("connection timeout")

	// Record failures up to threshold (3).
	for i := 0; i < adapterFailureThreshold; i++ {
		svc.recordAdapterResult("musicbrainz", testErr, 100*time.Millisecond, baseTime)
	}

	blocked, until, _ := svc.isAdapterBlocked("musicbrainz", baseTime)
	if !blocked {
		t.Fatal("expected adapter to be blocked after threshold failures")
	}
	if got := until.Sub(baseTime); got != adapterBlockBase {
		t.Fatalf("first block: expected %v, got %v", adapterBlockBase, got)
	}

	// Block expires with time.
	afterBlock := until.Add(1 * time.Second)
	if blocked, _, _ = svc.isAdapterBlocked("musicbrainz", afterBlock); blocked {
		t.Fatal("adapter should be unblocked after block expires")
	}

	// One more failure doubles the block (consecutive count is threshold+1).
	svc.recordAdapterResult("musicbrainz", testErr, 100*time.Millisecond, afterBlock)
	blocked, until, _ = svc.isAdapterBlocked("musicbrainz", afterBlock)
	if !blocked {
		t.Fatal("expected adapter to be blocked after additional failure")
	}
	if got := until.Sub(afterBlock); got != 4*time.Minute {
		t.Fatalf("second block: expected 4m, got %v", got)
	}

	// Success resets consecutive failures.
	svc.recordAdapterResult("musicbrainz", nil, 50*time.Millisecond, afterBlock.Add(1*time.Second))
	if blocked, _, _ = svc.isAdapterBlocked("musicbrainz", afterBlock.Add(2*time.Second)); blocked {
		t.Fatal("adapter should be unblocked after success")
	}

	// The next failure batch starts from the base duration again.
	resetTime := afterBlock.Add(3 * time.Second)
	for i := 0; i < adapterFailureThreshold; i++ {
		svc.recordAdapterResult("musicbrainz", testErr, 100*time.Millisecond, resetTime)
	}
	blocked, until, _ = svc.isAdapterBlocked("musicbrainz", resetTime)
	if !blocked {
		t.Fatal("expected adapter to be blocked again")
	}
	if got := until.Sub(resetTime); got != adapterBlockBase {
		t.Fatalf("block after reset: expected %v, got %v", adapterBlockBase, got)
	}
}
