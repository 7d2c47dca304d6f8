// Package resilience wraps calls to external providers (Twilio, Groq, the
// payments API) with retry, circuit breaking and concurrency limiting.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// Config holds the retry parameters for one provider.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
}

// RetryWithBackoff runs fn up to MaxRetries+1 times with exponential backoff
// plus jitter between attempts. Cancellation of ctx aborts both the loop and
// any in-progress wait.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
			wait := backoff + time.Duration(rand.Int63n(int64(backoff/2)))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

// NewCircuitBreaker returns a breaker tuned for chatty outbound HTTP: it
// trips after a 60% failure ratio over at least 5 calls, probes with 3
// half-open requests and retries the provider after 10 seconds.
func NewCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && ratio >= 0.6
		},
	})
}

// Guard bundles a breaker and a bulkhead with a service name so callers get
// domain errors instead of gobreaker internals.
type Guard struct {
	service string
	breaker *gobreaker.CircuitBreaker
	limiter *Bulkhead
}

// NewGuard creates a Guard for the named service. maxConcurrency caps
// simultaneous calls through the guard; zero or negative disables the cap.
func NewGuard(service string, maxConcurrency int) *Guard {
	g := &Guard{service: service, breaker: NewCircuitBreaker(service)}
	if maxConcurrency > 0 {
		g.limiter = NewBulkhead(maxConcurrency)
	}
	return g
}

// Do runs fn through the bulkhead and the breaker. An open circuit surfaces
// as *domain.ErrCircuitOpen; fn's own error passes through unchanged. Waiting
// for a bulkhead slot respects ctx.
func (g *Guard) Do(ctx context.Context, fn func() error) error {
	if g.limiter != nil {
		if err := g.limiter.Acquire(ctx); err != nil {
			return err
		}
		defer g.limiter.Release()
	}
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &domain.ErrCircuitOpen{Service: g.service}
	}
	return err
}

// Bulkhead caps how many calls run against a provider at once.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead admitting maxConcurrency simultaneous calls.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot frees up or ctx is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}
