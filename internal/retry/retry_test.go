package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	p := NewPolicy(5, time.Second, nil)
	p.initial = time.Millisecond

	calls := 0
	err := p.Do(context.Background(), "insert location", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPolicy_ExhaustsAttempts(t *testing.T) {
	p := NewPolicy(3, time.Second, nil)
	p.initial = time.Millisecond

	calls := 0
	err := p.Do(context.Background(), "query terms", func(ctx context.Context) error {
		calls++
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestPolicy_PermanentErrorNotRetried(t *testing.T) {
	p := NewPolicy(5, time.Second, nil)
	p.initial = time.Millisecond

	sentinel := errors.New("unique constraint violation")
	calls := 0
	err := p.Do(context.Background(), "upsert mapping", func(ctx context.Context) error {
		calls++
		return Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicy_ContextCancellation(t *testing.T) {
	p := NewPolicy(10, time.Second, nil)
	p.initial = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := p.Do(ctx, "scan metadata", func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("interrupted")
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls > 2 {
		t.Errorf("calls = %d, cancellation should stop retries promptly", calls)
	}
}
