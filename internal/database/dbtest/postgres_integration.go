//go:build integration

package dbtest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// descriptor starts one PostgreSQL container for the whole test binary.
// The container is removed by the testcontainers reaper when the binary exits.
func descriptor(t testing.TB) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	containerOnce.Do(func() {
		ctx := context.Background()

		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("guildkeeper"),
			postgres.WithUsername("guildkeeper"),
			postgres.WithPassword("guildkeeper"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			containerErr = err
			return
		}

		containerDSN, containerErr = container.ConnectionString(ctx, "sslmode=disable")
	})

	require.NoError(t, containerErr)

	return containerDSN
}
