package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDo_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Linear(3, time.Millisecond), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	attempts := 0
	err := Do(context.Background(), Linear(3, time.Millisecond), func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDo_PermanentStopsRetrying(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Linear(5, time.Millisecond), func() error {
		attempts++
		return Permanent(errors.New("bad request"))
	})
	if attempts != 1 {
		t.Fatalf("permanent error should stop after 1 attempt, got %d", attempts)
	}
	if !IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, Linear(3, time.Millisecond), func() error {
		t.Fatal("op should not run with canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoWithValue(t *testing.T) {
	attempts := 0
	got, err := DoWithValue(context.Background(), Linear(2, time.Millisecond), func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("expected ok, got %q err=%v", got, err)
	}
}
