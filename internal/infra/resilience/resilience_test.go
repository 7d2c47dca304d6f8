package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/resilience"
)

func TestRetryWithBackoff_SucceedsFirstTry(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_RecoversAfterFailures(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 3, InitialBackoff: 10 * time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: 10 * time.Millisecond}

	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		return errors.New("persistent error")
	})

	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 5, InitialBackoff: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, cfg, func() error {
		return errors.New("error")
	})

	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestGuard_OpenCircuitMapsToDomainError(t *testing.T) {
	g := resilience.NewGuard("twilio", 10)

	// Drive the breaker open with repeated failures.
	for i := 0; i < 10; i++ {
		_ = g.Do(context.Background(), func() error { return errors.New("provider down") })
	}

	err := g.Do(context.Background(), func() error { return nil })
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected circuit-open error, got %v", err)
	}
	if open.Service != "twilio" {
		t.Errorf("expected service 'twilio', got '%s'", open.Service)
	}
}

func TestGuard_PassesThroughCallerError(t *testing.T) {
	g := resilience.NewGuard("groq", 10)

	sentinel := errors.New("bad payload")
	if err := g.Do(context.Background(), func() error { return sentinel }); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestGuard_LimitsConcurrency(t *testing.T) {
	g := resilience.NewGuard("payments", 1)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = g.Do(context.Background(), func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// The single slot is taken, so a second call times out waiting.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := g.Do(ctx, func() error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(release)

	if err := g.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected call after slot freed, got %v", err)
	}
}

func TestGuard_UnlimitedWhenNoCap(t *testing.T) {
	g := resilience.NewGuard("groq", 0)

	if err := g.Do(context.Background(), func() error { return nil }); err != nil {
		t.Fatalf("expected call without cap, got %v", err)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := bh.Acquire(ctx); err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	bh.Release()

	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}
