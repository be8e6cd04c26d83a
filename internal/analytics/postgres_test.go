package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPostgresRecorder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("spyfall"),
		postgres.WithUsername("spyfall"),
		postgres.WithPassword("spyfall"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	r, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer r.Close()

	playGame(t, r, "g1")
	assertListed(t, r, "g1")
}
