// Package dbtest opens migrated database clients for package tests. Tests run
// against the embedded backend; building with the integration tag runs the same
// tests against PostgreSQL in a container.
package dbtest

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akguild/guildkeeper/internal/database"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var idCounter atomic.Uint64

// Open returns a migrated client that is closed when the test ends.
func Open(t testing.TB) database.Client {
	t.Helper()

	opts := database.Options{
		Path:           filepath.Join(t.TempDir(), "guildkeeper.db"),
		MaxOpenConns:   10,
		MaxIdleConns:   5,
		AcquireTimeout: 5 * time.Second,
		ConnectTimeout: 10 * time.Second,
	}

	client, err := database.Open(t.Context(), descriptor(t), opts, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	require.NoError(t, client.EnsureSchema(t.Context()))

	return client
}

// NewID returns an identifier unique within the test binary, so tests sharing a
// networked database never touch each other's rows.
func NewID() snowflake.ID {
	return snowflake.New(time.Now()) + snowflake.ID(idCounter.Add(1))
}
