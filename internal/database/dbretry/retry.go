package dbretry

import (
	"context"
	"fmt"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/bun"
)

// Policy bounds how a single logical database operation is attempted.
type Policy struct {
	// AttemptTimeout caps one attempt, including the wait for a pooled connection.
	AttemptTimeout  time.Duration
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		AttemptTimeout:  5 * time.Second,
		MaxElapsedTime:  30 * time.Second,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxRetries:      3,
	}
}

// IsRetryableError checks if the given error is retryable.
func IsRetryableError(err error) bool {
	return dberr.IsTransient(err)
}

// Operation wraps a database operation with retry logic. The final error is
// translated into the dberr taxonomy.
func Operation[T any](ctx context.Context, policy Policy, operation func(context.Context) (T, error)) (T, error) {
	var result T
	var lastErr error

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(policy.MaxElapsedTime),
		backoff.WithInitialInterval(policy.InitialInterval),
		backoff.WithMaxInterval(policy.MaxInterval),
	), policy.MaxRetries)

	err := backoff.Retry(func() error {
		attemptCtx, cancel := attemptContext(ctx, policy)
		defer cancel()

		var err error

		result, err = operation(attemptCtx)
		if err != nil {
			lastErr = err
			if !IsRetryableError(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			return err
		}

		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if lastErr != nil {
			return result, dberr.Translate(lastErr)
		}

		return result, dberr.Translate(fmt.Errorf("database operation failed: %w", err))
	}

	return result, nil
}

// NoResult wraps a database operation that doesn't return a result.
func NoResult(ctx context.Context, policy Policy, operation func(context.Context) error) error {
	_, err := Operation(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, operation(ctx)
	})

	return err
}

// Transaction runs fn inside a transaction with retry logic. A failed attempt is
// rolled back in full before the next one starts.
func Transaction(ctx context.Context, db *bun.DB, policy Policy, fn func(context.Context, bun.Tx) error) error {
	return NoResult(ctx, policy, func(ctx context.Context) error {
		return db.RunInTx(ctx, nil, fn)
	})
}

// attemptContext derives the per-attempt context.
func attemptContext(ctx context.Context, policy Policy) (context.Context, context.CancelFunc) {
	if policy.AttemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, policy.AttemptTimeout)
}
