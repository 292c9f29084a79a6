package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/AbhaySingh-33/Job-Portal/pkg/metrics"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	DefaultInitialInterval = time.Second
	DefaultMaxInterval     = 30 * time.Second
)

// Supervisor retries a connect-style operation with exponential backoff.
// MaxAttempts of 0 retries until the context is cancelled.
type Supervisor struct {
	Name            string
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxAttempts     int
	// Jitter is the backoff randomization factor. Zero keeps every wait at
	// or above the previous one.
	Jitter float64
	// OnGiveUp runs once when MaxAttempts is exhausted.
	OnGiveUp func(err error)

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func NewSupervisor(name string, maxAttempts int, logger *zap.Logger, m *metrics.Metrics) *Supervisor {
	s := &Supervisor{
		Name:            name,
		InitialInterval: DefaultInitialInterval,
		MaxInterval:     DefaultMaxInterval,
		MaxAttempts:     maxAttempts,
		Jitter:          backoff.DefaultRandomizationFactor,
		Logger:          logger,
		Metrics:         m,
	}

	s.OnGiveUp = func(err error) {
		logger.Error("ALERT: supervisor gave up",
			zap.String("supervisor", name),
			zap.Int("attempts", maxAttempts),
			zap.Error(err),
		)
	}

	return s
}

// Run calls op until it returns nil, attempts run out or ctx is done.
// It returns ctx.Err() on cancellation and the last op error on give-up.
func (s *Supervisor) Run(ctx context.Context, op func(ctx context.Context) error) error {
	return s.Supervise(ctx, func(ctx context.Context, _ func()) error {
		return op(ctx)
	})
}

// Supervise is Run for long-lived operations. Once op calls healthy, its
// next failure is retried from InitialInterval with a fresh attempt budget.
func (s *Supervisor) Supervise(ctx context.Context, op func(ctx context.Context, healthy func()) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialInterval
	b.MaxInterval = s.MaxInterval
	b.RandomizationFactor = s.Jitter
	b.MaxElapsedTime = 0
	b.Reset()

	var policy backoff.BackOff = b
	if s.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(b, uint64(s.MaxAttempts-1))
	}
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	notify := func(err error, wait time.Duration) {
		s.Metrics.SupervisorRetry(s.Name)
		s.Logger.Warn("attempt failed, retrying",
			zap.String("supervisor", s.Name),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	var recovered atomic.Bool
	healthy := func() { recovered.Store(true) }

	err := backoff.RetryNotify(func() error {
		attempt++
		err := op(ctx, healthy)
		if recovered.Swap(false) {
			policy.Reset()
		}
		return err
	}, policy, notify)
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	s.Metrics.SupervisorGiveUp(s.Name)
	if s.OnGiveUp != nil {
		s.OnGiveUp(err)
	}

	return fmt.Errorf("%s: giving up after %d attempts: %w", s.Name, attempt, err)
}
