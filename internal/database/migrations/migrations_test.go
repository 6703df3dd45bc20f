package migrations_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-events/internal/database/migrations"
	"ms-events/internal/events/db"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

// startPostgres runs a throwaway postgres container and returns a bun handle.
func startPostgres(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "events",
				"POSTGRES_PASSWORD": "events",
				"POSTGRES_DB":       "events",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("Docker not available: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://events:events@%s:%s/events?sslmode=disable", host, port.Port())
	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, sqldb.PingContext(ctx))

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func TestMigrationsAgainstPostgres(t *testing.T) {
	bunDB := startPostgres(t)
	runner := migrations.NewRunner(bunDB, logger.NewLoggerWithWriter(io.Discard))

	require.NoError(t, runner.RunMigrations())
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, runner.RunMigrations(), "second run is a no-op")

	ctx := context.Background()
	store := db.New(bunDB, utils.SystemClock{})
	price := decimal.RequireFromString("49.90")

	created, err := store.Create(ctx, models.EventFields{
		Name:        models.Some("Postgres Summit"),
		Description: models.Some("Indexes all day"),
		Location:    models.Some("Lisbon"),
		IsOnline:    models.Some(false),
		Capacity:    models.Some(250),
		IsPaid:      models.Some(true),
		Price:       models.Some(price),
		Date:        models.Some(time.Date(2026, 11, 3, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Price)
	assert.True(t, price.Equal(*got.Price))
	assert.True(t, created.Date.Equal(got.Date))

	_, err = store.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, db.ErrNotFound)

	// bypass the store checks so the database constraint fires
	_, err = bunDB.NewUpdate().
		Model((*models.Event)(nil)).
		Set("capacity = ?", -5).
		Where("id = ?", created.ID).
		Exec(ctx)
	require.Error(t, err)

	_, err = store.UpdateByID(ctx, created.ID, models.EventFields{Capacity: models.Some(-5)})
	var cv *db.ConstraintViolation
	require.True(t, errors.As(err, &cv), "got %v", err)

	require.NoError(t, runner.MigrateDown())
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Zero(t, version)
}
