package database

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDatabaseURL string

func TestMain(m *testing.M) {
	flag.Parse()

	// Skip container setup in short mode; the tests skip themselves too.
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	testDatabaseURL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
	}
	os.Exit(code)
}

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, testDatabaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestUserRepoUpsertIsStable(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", first.Name)
	assert.NotEqual(t, uuid.Nil, first.ID)

	// Same name resolves to the same identity.
	second, err := repo.Upsert(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Different names get different identities.
	other, err := repo.Upsert(ctx, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestUserRepoGetByID(t *testing.T) {
	pool := setupTestPool(t)
	repo := NewUserRepo(pool)
	ctx := context.Background()

	created, err := repo.Upsert(ctx, "carol")
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "carol", got.Name)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	pool := setupTestPool(t)

	// Running migrations again must not fail.
	require.NoError(t, RunMigrations(context.Background(), pool))
}
