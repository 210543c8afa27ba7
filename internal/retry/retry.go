// Package retry provides the single retry/backoff policy applied to every
// legacy-store and target-store call. Long migrations run over intermittent
// tunnels; transient connectivity loss is retried with exponential backoff
// before being escalated to the orchestrator.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds retries for a class of store calls. The zero value is not
// usable; construct with NewPolicy.
type Policy struct {
	maxAttempts    uint64
	attemptTimeout time.Duration
	initial        time.Duration
	logger         *slog.Logger
}

// DefaultMaxAttempts is applied when the configured attempt count is zero.
const DefaultMaxAttempts = 5

// DefaultAttemptTimeout bounds a single store call.
const DefaultAttemptTimeout = 30 * time.Second

// NewPolicy creates a retry policy. maxAttempts counts total attempts, not
// retries; attemptTimeout bounds each individual attempt.
func NewPolicy(maxAttempts int, attemptTimeout time.Duration, logger *slog.Logger) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Policy{
		maxAttempts:    uint64(maxAttempts),
		attemptTimeout: attemptTimeout,
		initial:        500 * time.Millisecond,
		logger:         logger,
	}
}

// Permanent marks an error as not worth retrying (constraint violations,
// schema mismatches). The policy returns it unwrapped after the first
// attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do runs fn with per-attempt timeouts and exponential backoff between
// attempts. On exhaustion the last error is returned wrapped with the
// operation name. Context cancellation stops retrying immediately.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initial
	bo.MaxInterval = 10 * time.Second

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if !isPermanent(err) {
			p.logger.Warn("store call failed, will retry",
				"op", op, "attempt", attempt, "error", err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, p.maxAttempts-1), ctx))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func isPermanent(err error) bool {
	var perm *backoff.PermanentError
	return errors.As(err, &perm)
}
