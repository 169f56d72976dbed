package utils_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTemporary = errors.New("temporary error")
	errPermanent = errors.New("permanent error")
)

func testRetryOptions(shouldRetry func(error) bool) utils.RetryOptions {
	return utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		MaxRetries:      3,
		ShouldRetry:     shouldRetry,
	}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	onlyTemporary := func(err error) bool {
		return errors.Is(err, errTemporary)
	}

	tests := []struct {
		name          string
		failures      int
		failWith      error
		shouldRetry   func(error) bool
		expectedCalls int
		expectedErr   error
	}{
		{
			name:          "succeeds first try",
			expectedCalls: 1,
		},
		{
			name:          "succeeds after retries",
			failures:      2,
			failWith:      errTemporary,
			expectedCalls: 3,
		},
		{
			name:          "fails all retries",
			failures:      10,
			failWith:      errTemporary,
			expectedCalls: 4, // Initial + 3 retries
			expectedErr:   errTemporary,
		},
		{
			name:          "stops on non-retryable error",
			failures:      10,
			failWith:      errPermanent,
			shouldRetry:   onlyTemporary,
			expectedCalls: 1,
			expectedErr:   errPermanent,
		},
		{
			name:          "retries errors the filter accepts",
			failures:      1,
			failWith:      errTemporary,
			shouldRetry:   onlyTemporary,
			expectedCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			operation := func() (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, tt.failWith
				}

				return calls, nil
			}

			result, err := utils.WithRetry(t.Context(), operation, testRetryOptions(tt.shouldRetry))

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedCalls, result)
			}

			assert.Equal(t, tt.expectedCalls, calls)
		})
	}
}

func TestWithRetryContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	calls := 0

	opts := utils.RetryOptions{
		MaxElapsedTime:  time.Second,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     200 * time.Millisecond,
		MaxRetries:      5,
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := utils.WithRetry(ctx, func() (struct{}, error) {
		calls++
		return struct{}{}, errTemporary
	}, opts)

	require.Error(t, err)
	assert.Less(t, calls, 5)
}
