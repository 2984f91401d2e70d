// Package integration runs the storage and cache layers against real Postgres
// and Redis containers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/buildkeeb/engine/internal/config"
	"github.com/buildkeeb/engine/internal/storage"
)

// TestContainerSetup represents the test container infrastructure.
type TestContainerSetup struct {
	PostgresConnStr string
	RedisAddr       string
	cleanup         []func()
}

// skipUnlessDocker skips the test in short mode or when Docker is unreachable.
func skipUnlessDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("CI") == "" && !isDockerAvailable() {
		t.Skip("Docker not available")
	}
}

// StartPostgres starts a PostgreSQL container.
func (s *TestContainerSetup) StartPostgres(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("buildkeeb_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	s.cleanup = append(s.cleanup, func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	s.PostgresConnStr = fmt.Sprintf("postgres://test:test@%s:%s/buildkeeb_test?sslmode=disable", host, port.Port())
}

// StartRedis starts a Redis container.
func (s *TestContainerSetup) StartRedis(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	s.cleanup = append(s.cleanup, func() {
		if err := redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	s.RedisAddr = fmt.Sprintf("%s:%s", host, port.Port())
}

// Cleanup terminates all started containers.
func (s *TestContainerSetup) Cleanup() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

// OpenMigrated opens the Postgres database through the storage layer, waits
// for it to accept queries and applies the schema.
func (s *TestContainerSetup) OpenMigrated(t *testing.T) *sql.DB {
	t.Helper()

	db, err := storage.Open(config.DatabaseConfig{
		Driver:   "postgres",
		Postgres: config.PostgresConfig{DSN: s.PostgresConnStr, MaxOpenConns: 5},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for {
		if err := db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatal("Database not ready after 30 seconds")
		case <-time.After(100 * time.Millisecond):
		}
	}

	require.NoError(t, storage.Migrate(ctx, db))
	return db
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}
