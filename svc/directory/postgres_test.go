package directory_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kfchess/identity/migrations"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/pg"
	"github.com/kfchess/identity/svc/directory"
)

func TestPostgresDirectory(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString: dsn,
		MaxConns:         4,
		MinConns:         1,
		RetryAttempts:    1,
		RetryInterval:    time.Second,
		MigrationsTable:  "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, migrations.Dir, cfg, logger.Discard()))

	testDirectory(t, func(t *testing.T) directory.Directory {
		_, err := pool.Exec(ctx, `TRUNCATE users RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
		return directory.NewPostgresDirectory(pool)
	})
}
