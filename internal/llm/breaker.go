package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ziadkadry99/docvault/internal/apperr"
)

// Breaker is a consecutive-failure circuit breaker around AI calls.
// While open, calls fail fast with apperr.ProviderUnavailable.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker opens after failures consecutive errors and stays open for
// timeout before letting a single probe through.
func NewBreaker(name string, failures int, timeout time.Duration, logger *slog.Logger) *Breaker {
	if failures < 1 {
		failures = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	threshold := uint32(failures)
	return &Breaker{
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			},
			IsSuccessful: func(err error) bool {
				// Caller cancellation says nothing about provider health.
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(apperr.ProviderUnavailable, b.cb.Name(), err)
	}
	return err
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	return b.cb.State() == gobreaker.StateOpen
}

// State returns the breaker state as a string (closed, half-open, open).
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// BreakerProvider guards a Provider with a Breaker.
type BreakerProvider struct {
	provider Provider
	breaker  *Breaker
}

// NewBreakerProvider wraps provider so that repeated failures trip breaker.
func NewBreakerProvider(provider Provider, breaker *Breaker) *BreakerProvider {
	return &BreakerProvider{provider: provider, breaker: breaker}
}

func (p *BreakerProvider) Name() string {
	return p.provider.Name()
}

func (p *BreakerProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	var resp *CompletionResponse
	err := p.breaker.Do(func() error {
		var err error
		resp, err = p.provider.Complete(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
