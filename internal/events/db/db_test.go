package db_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-events/internal/events/db"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

var start = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	bunDB, err := db.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err, "open in-memory sqlite")
	t.Cleanup(func() { bunDB.Close() })

	return db.New(bunDB, utils.NewStepClock(start, time.Second)), bunDB
}

func newFields() models.EventFields {
	return models.EventFields{
		Name:        models.Some("Rust vs Go Debate"),
		Description: models.Some("Friendly, mostly"),
		Location:    models.Some("Amsterdam"),
		IsOnline:    models.Some(false),
		Venue:       models.Some("Pakhuis"),
		Capacity:    models.Some(80),
		IsPaid:      models.Some(true),
		Price:       models.Some(decimal.RequireFromString("12.5")),
		Date:        models.Some(time.Date(2026, 11, 20, 19, 0, 0, 0, time.UTC)),
	}
}

func TestCreateAndGetEvent(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)

	_, err = uuid.Parse(created.ID)
	assert.NoError(t, err, "id is a uuid")
	assert.Equal(t, "Rust vs Go Debate", created.Name)
	assert.Equal(t, start, created.CreatedAt)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Nil(t, created.BannerImage)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Amsterdam", got.Location)
	require.NotNil(t, got.Venue)
	assert.Equal(t, "Pakhuis", *got.Venue)
	require.NotNil(t, got.Capacity)
	assert.Equal(t, 80, *got.Capacity)
	require.NotNil(t, got.Price)
	assert.True(t, decimal.RequireFromString("12.5").Equal(*got.Price))
	assert.True(t, created.Date.Equal(got.Date))
	assert.True(t, got.IsPaid)
	assert.False(t, got.IsOnline)
}

func TestCreateIDsAreUnique(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	a, err := store.Create(ctx, newFields())
	require.NoError(t, err)
	b, err := store.Create(ctx, newFields())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestCreateConstraintViolations(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	cases := map[string]func(f *models.EventFields){
		"name":        func(f *models.EventFields) { f.Name = models.Optional[string]{} },
		"description": func(f *models.EventFields) { f.Description = models.Some("") },
		"date":        func(f *models.EventFields) { f.Date = models.Optional[time.Time]{} },
		"location":    func(f *models.EventFields) { f.Location = models.Some("") },
		"venue":       func(f *models.EventFields) { f.Venue = models.Some(strings.Repeat("v", 256)) },
		"price":       func(f *models.EventFields) { f.Price = models.Some(decimal.New(1, 9)) },
		"capacity":    func(f *models.EventFields) { f.Capacity = models.Some(3000000000) },
	}

	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			fields := newFields()
			mutate(&fields)

			_, err := store.Create(ctx, fields)
			var cv *db.ConstraintViolation
			require.True(t, errors.As(err, &cv), "want ConstraintViolation, got %v", err)
			assert.Equal(t, field, cv.Field)
		})
	}

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, events, "nothing was written")
}

func TestCapacityOutOfRange(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)

	for _, bad := range []int{0, -1, math.MaxInt32 + 1} {
		var cv *db.ConstraintViolation
		_, err := store.UpdateByID(ctx, created.ID, models.EventFields{Capacity: models.Some(bad)})
		require.True(t, errors.As(err, &cv), "capacity=%d: got %v", bad, err)
		assert.Equal(t, "capacity", cv.Field)
	}

	updated, err := store.UpdateByID(ctx, created.ID, models.EventFields{Capacity: models.Some(math.MaxInt32)})
	require.NoError(t, err)
	require.NotNil(t, updated.Capacity)
	assert.Equal(t, math.MaxInt32, *updated.Capacity)
}

func TestOnlineEventMayOmitLocation(t *testing.T) {
	store, _ := setupTestDB(t)

	fields := newFields()
	fields.Location = models.Some("")
	fields.IsOnline = models.Some(true)
	fields.MeetingURL = models.Some("https://meet.example.com/abc")

	created, err := store.Create(context.Background(), fields)
	require.NoError(t, err)
	assert.Equal(t, models.ModeOnline, created.Mode())
}

func TestGetNonExistentEvent(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	_, err := store.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = store.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestListAll(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	events, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)

	for i := 0; i < 3; i++ {
		_, err := store.Create(ctx, newFields())
		require.NoError(t, err)
	}

	events, err = store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestUpdateSingleFieldLeavesOthersUntouched(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)
	before, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)

	updated, err := store.UpdateByID(ctx, created.ID, models.EventFields{Name: models.Some("Go vs Rust Debate")})
	require.NoError(t, err)
	assert.Equal(t, "Go vs Rust Debate", updated.Name)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt), "updatedAt strictly increases")

	after, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go vs Rust Debate", after.Name)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))

	after.Name = before.Name
	after.UpdatedAt = before.UpdatedAt
	assert.Equal(t, before, after)
}

func TestUpdateWritesExplicitNull(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)

	updated, err := store.UpdateByID(ctx, created.ID, models.EventFields{
		Venue:    models.Null[string](),
		Capacity: models.Null[int](),
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Venue)
	assert.Nil(t, updated.Capacity)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Venue)
	assert.Nil(t, got.Capacity)
	assert.Equal(t, "Rust vs Go Debate", got.Name)
}

func TestUpdateRefreshesTimestampWithoutFields(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)

	updated, err := store.UpdateByID(ctx, created.ID, models.EventFields{})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestUpdateSameInstantStillAdvances(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	bunDB, err := db.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	defer bunDB.Close()

	store := db.New(bunDB, utils.FixedClock{At: start})
	ctx := context.Background()

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)

	updated, err := store.UpdateByID(ctx, created.ID, models.EventFields{IsCancelled: models.Some(true)})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.True(t, updated.IsCancelled)
}

func TestUpdateNotFoundAndViolations(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	_, err := store.UpdateByID(ctx, uuid.NewString(), models.EventFields{Name: models.Some("x")})
	assert.ErrorIs(t, err, db.ErrNotFound)

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)

	var cv *db.ConstraintViolation
	_, err = store.UpdateByID(ctx, created.ID, models.EventFields{Name: models.Null[string]()})
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, "name", cv.Field)

	_, err = store.UpdateByID(ctx, created.ID, models.EventFields{Location: models.Some("")})
	require.True(t, errors.As(err, &cv))
	assert.Equal(t, "location", cv.Field)

	got, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Amsterdam", got.Location, "rejected update left the row alone")
}

func TestDeleteEvent(t *testing.T) {
	store, _ := setupTestDB(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)

	deleted, err := store.DeleteByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Equal(t, created.Name, deleted.Name)

	_, err = store.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = store.DeleteByID(ctx, created.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestTransportFailure(t *testing.T) {
	store, bunDB := setupTestDB(t)
	require.NoError(t, bunDB.Close())

	_, err := store.ListAll(context.Background())
	var tf *db.TransportFailure
	assert.True(t, errors.As(err, &tf), "got %v", err)
}

func TestTransportFailureInsideTransaction(t *testing.T) {
	store, bunDB := setupTestDB(t)
	ctx := context.Background()

	created, err := store.Create(ctx, newFields())
	require.NoError(t, err)
	require.NoError(t, bunDB.Close())

	var tf *db.TransportFailure
	_, err = store.DeleteByID(ctx, created.ID)
	assert.True(t, errors.As(err, &tf), "got %v", err)

	_, err = store.UpdateByID(ctx, created.ID, models.EventFields{Name: models.Some("x")})
	assert.True(t, errors.As(err, &tf), "got %v", err)
}
