package dbretry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/akguild/guildkeeper/internal/database/dbretry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSyntax = errors.New("syntax error")

func testPolicy() dbretry.Policy {
	return dbretry.Policy{
		AttemptTimeout:  time.Second,
		MaxElapsedTime:  time.Second,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxRetries:      3,
	}
}

func TestOperation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		failures      int
		failWith      error
		expectedCalls int
		expectedErr   error
	}{
		{
			name:          "succeeds first try",
			expectedCalls: 1,
		},
		{
			name:          "retries transient failures",
			failures:      2,
			failWith:      fmt.Errorf("query: %w", context.DeadlineExceeded),
			expectedCalls: 3,
		},
		{
			name:          "gives up after max retries",
			failures:      10,
			failWith:      errors.New("read: connection reset by peer"),
			expectedCalls: 4,
			expectedErr:   dberr.ErrTransientIO,
		},
		{
			name:          "does not retry permanent errors",
			failures:      10,
			failWith:      errSyntax,
			expectedCalls: 1,
			expectedErr:   errSyntax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			result, err := dbretry.Operation(t.Context(), testPolicy(), func(context.Context) (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, tt.failWith
				}

				return 42, nil
			})

			assert.Equal(t, tt.expectedCalls, calls)

			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 42, result)
		})
	}
}

func TestOperationAppliesAttemptTimeout(t *testing.T) {
	t.Parallel()

	policy := testPolicy()
	policy.AttemptTimeout = 10 * time.Millisecond
	policy.MaxRetries = 0

	err := dbretry.NoResult(t.Context(), policy, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.ErrorIs(t, err, dberr.ErrTransientIO)
}
