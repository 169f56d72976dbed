package dberr_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/akguild/guildkeeper/internal/database/dberr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errPlain = errors.New("syntax error at or near")

func TestTranslate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		wantIs error
	}{
		{
			name:   "deadline becomes transient",
			err:    fmt.Errorf("select: %w", context.DeadlineExceeded),
			wantIs: dberr.ErrTransientIO,
		},
		{
			name:   "connection refused becomes transient",
			err:    errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			wantIs: dberr.ErrTransientIO,
		},
		{
			name:   "taxonomy errors pass through",
			err:    fmt.Errorf("decide: %w", dberr.ErrNotFound),
			wantIs: dberr.ErrNotFound,
		},
		{
			name:   "other errors are unchanged",
			err:    errPlain,
			wantIs: errPlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.ErrorIs(t, dberr.Translate(tt.err), tt.wantIs)
		})
	}
}

func TestTranslateNil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, dberr.Translate(nil))
}

func TestIsTransientIgnoresCancellation(t *testing.T) {
	t.Parallel()

	assert.False(t, dberr.IsTransient(context.Canceled))
	assert.False(t, dberr.IsTransient(errPlain))
	assert.True(t, dberr.IsTransient(fmt.Errorf("wrapped: %w", dberr.ErrTransientIO)))
}
