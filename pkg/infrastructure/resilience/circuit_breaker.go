package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/vsinha/vmi/pkg/domain/repositories"
)

// Defaults for collaborator breakers
const (
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 30 * time.Second
	DefaultQueryTimeout     = 10 * time.Second
)

// BreakerConfig holds configuration for a collaborator breaker
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures that open the breaker
	OpenTimeout      time.Duration // how long the breaker stays open before probing
	QueryTimeout     time.Duration // per-call deadline, 0 disables
}

// DefaultBreakerConfig returns the defaults for name
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		FailureThreshold: DefaultFailureThreshold,
		OpenTimeout:      DefaultOpenTimeout,
		QueryTimeout:     DefaultQueryTimeout,
	}
}

// StateListener is told about breaker state changes
type StateListener func(name string, from, to gobreaker.State)

// Breaker guards one collaborator with a circuit breaker and a per-call deadline.
// Failures surface as repositories.ErrSourceUnavailable.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	name    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewBreaker creates a breaker from config
func NewBreaker(config BreakerConfig, logger *zap.Logger, listeners ...StateListener) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := config.FailureThreshold
	if threshold == 0 {
		threshold = DefaultFailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, repositories.ErrNotConfigured)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			for _, l := range listeners {
				l(name, from, to)
			}
		},
	}

	return &Breaker{
		cb:      gobreaker.NewCircuitBreaker(settings),
		name:    config.Name,
		timeout: config.QueryTimeout,
		logger:  logger,
	}
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current breaker state
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Execute runs fn through the breaker under the per-call deadline
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.withDeadline(ctx, fn)
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return nil, fmt.Errorf("circuit breaker open for %s: %w", b.name, repositories.ErrSourceUnavailable)
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("too many requests for %s: %w", b.name, repositories.ErrSourceUnavailable)
	}
	return result, err
}

// withDeadline returns when fn does or when the deadline passes, whichever is first
func (b *Breaker) withDeadline(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if b.timeout <= 0 {
		return fn(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		r, err := fn(ctx)
		done <- outcome{r, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%s timed out after %s: %w", b.name, b.timeout, repositories.ErrSourceUnavailable)
	}
}
