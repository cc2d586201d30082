package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/tasktalk/internal/types"
)

func TestRegistryDeliver(t *testing.T) {
	reg := NewRegistry()

	var gotKey types.SessionKey
	var gotMsg string
	reg.Register("test:", func(_ context.Context, key types.SessionKey, message string) error {
		gotKey = key
		gotMsg = message
		return nil
	})

	err := reg.Deliver(context.Background(), "test:123", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "test:123" {
		t.Errorf("expected session key %q, got %q", "test:123", gotKey)
	}
	if gotMsg != "hello" {
		t.Errorf("expected message %q, got %q", "hello", gotMsg)
	}
}

func TestRegistryNoHandler(t *testing.T) {
	reg := NewRegistry()

	err := reg.Deliver(context.Background(), "unknown:123", "hello")
	if !errors.Is(err, ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestRegistryMultiplePrefixes(t *testing.T) {
	reg := NewRegistry()

	var telegramCalls, logCalls int
	reg.Register("telegram:", func(context.Context, types.SessionKey, string) error {
		telegramCalls++
		return nil
	})
	reg.Register("log:", func(context.Context, types.SessionKey, string) error {
		logCalls++
		return nil
	})

	ctx := context.Background()
	if err := reg.Deliver(ctx, "telegram:42:100", "msg1"); err != nil {
		t.Fatalf("telegram deliver error: %v", err)
	}
	if err := reg.Deliver(ctx, "log:routines", "msg2"); err != nil {
		t.Fatalf("log deliver error: %v", err)
	}

	if telegramCalls != 1 || logCalls != 1 {
		t.Errorf("expected 1 call each, got telegram=%d log=%d", telegramCalls, logCalls)
	}
	if got := reg.Prefixes(); len(got) != 2 || got[0] != "log:" {
		t.Errorf("unexpected prefixes %v", got)
	}
}

func TestRegistryLongestPrefixWins(t *testing.T) {
	reg := NewRegistry()
	var got string
	reg.Register("telegram:", func(context.Context, types.SessionKey, string) error { got = "generic"; return nil })
	reg.Register("telegram:42:", func(context.Context, types.SessionKey, string) error { got = "specific"; return nil })

	if err := reg.Deliver(context.Background(), "telegram:42:7", "x"); err != nil {
		t.Fatal(err)
	}
	if got != "specific" {
		t.Errorf("expected specific handler, got %s", got)
	}
}

func TestRegistryRetriesTransientFailures(t *testing.T) {
	reg := NewRegistry()
	reg.SetRetryPolicy(&RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond})

	calls := 0
	reg.Register("flaky:", func(context.Context, types.SessionKey, string) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	if err := reg.Deliver(context.Background(), "flaky:1", "x"); err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}

	calls = 0
	reg.Register("denied:", func(context.Context, types.SessionKey, string) error {
		calls++
		return errors.New("Forbidden: bot was blocked by the user")
	})
	if err := reg.Deliver(context.Background(), "denied:1", "x"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected no retry for permanent error, got %d calls", calls)
	}
}
