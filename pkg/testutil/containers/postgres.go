//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

var _ tclog.Logger = nopLogger{}

// PostgresContainer wraps a testcontainers Postgres instance.
type PostgresContainer struct {
	URL string
	DB  *sql.DB
}

// NewPostgresContainer starts Postgres and terminates it when t finishes.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("inmates"),
		postgres.WithUsername("inmates"),
		postgres.WithPassword("inmates"),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(nopLogger{}),
	)
	tc.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		t.Fatalf("failed to open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	return &PostgresContainer{URL: url, DB: db}
}
