package events_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-events/internal/events/cache"
	"ms-events/internal/events/db"
	"ms-events/internal/events/schema"
	events "ms-events/internal/events/service"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

var now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

var topics = events.Topics{
	Created: "events.event.created",
	Updated: "events.event.updated",
	Deleted: "events.event.deleted",
}

func setupStore(t *testing.T) *db.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	bunDB, err := db.OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	return db.New(bunDB, utils.NewStepClock(now, time.Second))
}

func newService(store events.EventDBLayer, opts ...events.Option) *events.EventService {
	return events.NewEventService(store, utils.FixedClock{At: now}, logger.NewLoggerWithWriter(io.Discard), opts...)
}

func setupService(t *testing.T, opts ...events.Option) *events.EventService {
	t.Helper()
	return newService(setupStore(t), opts...)
}

// pausingStore holds the first ListAll open after it has read the rows.
type pausingStore struct {
	*db.DB
	once    sync.Once
	listed  chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListAll(ctx context.Context) ([]models.Event, error) {
	events, err := p.DB.ListAll(ctx)
	p.once.Do(func() {
		close(p.listed)
		<-p.release
	})
	return events, err
}

func validInput() models.EventInput {
	return models.EventInput{
		Name:        models.Some("GopherCon Meetup"),
		Description: models.Some("Talks and pizza"),
		Location:    models.Some("Berlin"),
		Venue:       models.Some(""),
		Capacity:    models.Some(120.0),
		IsPaid:      models.Some(false),
		Price:       models.Some(15.0),
		Date:        models.Some("2026-11-05T18:30:00Z"),
	}
}

func TestCreateEventNormalizes(t *testing.T) {
	svc := setupService(t)

	created, err := svc.CreateEvent(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "GopherCon Meetup", created.Name)
	assert.Nil(t, created.Venue, "empty venue stored as null")
	assert.Nil(t, created.Price, "free events carry no price")
	require.NotNil(t, created.Capacity)
	assert.Equal(t, 120, *created.Capacity)
	assert.False(t, created.IsOnline)
	assert.False(t, created.IsCancelled)
	assert.True(t, time.Date(2026, 11, 5, 18, 30, 0, 0, time.UTC).Equal(created.Date))
}

func TestCreateEventValidationFailure(t *testing.T) {
	svc := setupService(t)

	in := validInput()
	in.Name = models.Optional[string]{}
	in.Capacity = models.Some(-1.0)

	_, err := svc.CreateEvent(context.Background(), in)
	fe, ok := schema.AsFieldErrors(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "Event name is required", fe["name"])
	assert.Equal(t, "Capacity must be a positive number", fe["capacity"])

	list, err := svc.ListEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPaidEventKeepsPrice(t *testing.T) {
	svc := setupService(t)

	in := validInput()
	in.IsPaid = models.Some(true)
	in.Price = models.Some(19.99)

	created, err := svc.CreateEvent(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, created.Price)
	assert.Equal(t, "19.99", created.Price.String())
}

func TestGetEventNotFound(t *testing.T) {
	svc := setupService(t)

	_, err := svc.GetEvent(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestUpdateEventPartial(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.CreateEvent(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.UpdateEvent(ctx, created.ID, models.EventInput{
		Venue:       models.Some("Kulturbrauerei"),
		IsCancelled: models.Some(true),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Venue)
	assert.Equal(t, "Kulturbrauerei", *updated.Venue)
	assert.True(t, updated.IsCancelled)
	assert.Equal(t, created.Name, updated.Name)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestUpdateEventRejectsBadDate(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.CreateEvent(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.UpdateEvent(ctx, created.ID, models.EventInput{Date: models.Some("next tuesday")})
	fe, ok := schema.AsFieldErrors(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid date", fe["date"])
}

func TestUnpayingClearsPrice(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	in := validInput()
	in.IsPaid = models.Some(true)
	created, err := svc.CreateEvent(ctx, in)
	require.NoError(t, err)
	require.NotNil(t, created.Price)

	updated, err := svc.UpdateEvent(ctx, created.ID, models.EventInput{IsPaid: models.Some(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsPaid)
	assert.Nil(t, updated.Price)
}

func TestDeleteEvent(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, err := svc.CreateEvent(ctx, validInput())
	require.NoError(t, err)

	deleted, err := svc.DeleteEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)

	_, err = svc.DeleteEvent(ctx, created.ID)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestPublishesLifecycleMessages(t *testing.T) {
	pub := new(MockPublisher)
	svc := setupService(t, events.WithPublisher(pub, topics))
	ctx := context.Background()

	pub.On("Publish", topics.Created, mock.AnythingOfType("string"), mock.Anything).Return(nil).Once()
	pub.On("Publish", topics.Updated, mock.AnythingOfType("string"), mock.Anything).Return(nil).Once()
	pub.On("Publish", topics.Deleted, mock.AnythingOfType("string"), mock.Anything).
		Return(errors.New("broker down")).Once()

	created, err := svc.CreateEvent(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.UpdateEvent(ctx, created.ID, models.EventInput{Name: models.Some("Renamed")})
	require.NoError(t, err)
	_, err = svc.DeleteEvent(ctx, created.ID)
	require.NoError(t, err, "publish failures do not fail the write")

	pub.AssertExpectations(t)

	payload := pub.Calls[0].Arguments.Get(2).([]byte)
	msg, err := kafka.DecodeEventMessage(payload)
	require.NoError(t, err)
	assert.Equal(t, kafka.EventCreated, msg.Type)
	assert.Equal(t, created.ID, msg.EventID)
	assert.Equal(t, created.ID, pub.Calls[0].Arguments.String(1))
	assert.True(t, now.Equal(msg.OccurredAt))
}

func TestFailedWriteDoesNotPublish(t *testing.T) {
	pub := new(MockPublisher)
	svc := setupService(t, events.WithPublisher(pub, topics))

	_, err := svc.UpdateEvent(context.Background(), uuid.NewString(), models.EventInput{Name: models.Some("x")})
	assert.ErrorIs(t, err, db.ErrNotFound)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestListEventsUsesCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	listCache := cache.NewRedis(client, time.Minute)
	svc := setupService(t, events.WithCache(listCache))
	ctx := context.Background()

	_, err = svc.CreateEvent(ctx, validInput())
	require.NoError(t, err)
	assert.False(t, mr.Exists(listCache.Key()), "create invalidates")

	list, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.True(t, mr.Exists(listCache.Key()), "list fills the cache")

	cached, err := listCache.GetList(ctx)
	require.NoError(t, err)
	assert.Equal(t, list[0].ID, cached[0].ID)

	_, err = svc.UpdateEvent(ctx, list[0].ID, models.EventInput{Name: models.Some("Changed")})
	require.NoError(t, err)
	assert.False(t, mr.Exists(listCache.Key()), "update invalidates")

	list, err = svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Changed", list[0].Name)
}

func TestListEventsDoesNotCacheListReadBeforeUpdate(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := &pausingStore{
		DB:      setupStore(t),
		listed:  make(chan struct{}),
		release: make(chan struct{}),
	}
	listCache := cache.NewRedis(client, time.Minute)
	svc := newService(store, events.WithCache(listCache))
	ctx := context.Background()

	created, err := svc.CreateEvent(ctx, validInput())
	require.NoError(t, err)

	done := make(chan []models.Event, 1)
	go func() {
		list, err := svc.ListEvents(ctx)
		assert.NoError(t, err)
		done <- list
	}()

	<-store.listed
	_, err = svc.UpdateEvent(ctx, created.ID, models.EventInput{Name: models.Some("Renamed")})
	require.NoError(t, err)
	close(store.release)

	stale := <-done
	require.Len(t, stale, 1)
	assert.Equal(t, "GopherCon Meetup", stale[0].Name)
	assert.False(t, mr.Exists(listCache.Key()), "list read before the update is not cached")

	list, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Renamed", list[0].Name)

	got, err := svc.GetEvent(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Name, list[0].Name)
}

func TestListEventsFallsBackWhenCacheIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	svc := setupService(t, events.WithCache(cache.NewRedis(client, time.Minute)))
	ctx := context.Background()

	_, err = svc.CreateEvent(ctx, validInput())
	require.NoError(t, err)
	mr.Close()

	list, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateEventRejectsHugeCapacity(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	for _, huge := range []float64{1e20, 3000000000} {
		in := validInput()
		in.Capacity = models.Some(huge)
		_, err := svc.CreateEvent(ctx, in)
		fe, ok := schema.AsFieldErrors(err)
		require.True(t, ok, "capacity=%v: got %v", huge, err)
		assert.Equal(t, "Capacity is too large", fe["capacity"])
	}

	list, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNormalizeUpdateOutOfRangeCapacity(t *testing.T) {
	fields, err := events.NormalizeUpdate(models.EventInput{Capacity: models.Some(1e20)})
	require.NoError(t, err)
	v, ok := fields.Capacity.Get()
	require.True(t, ok)
	assert.Equal(t, -1, v)
}

func TestUpdateClearsLocationOfOnlineEvent(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	in := validInput()
	in.IsOnline = models.Some(true)
	in.MeetingURL = models.Some("https://meet.example.com/go")
	online, err := svc.CreateEvent(ctx, in)
	require.NoError(t, err)

	updated, err := svc.UpdateEvent(ctx, online.ID, models.EventInput{Location: models.Some("")})
	require.NoError(t, err)
	assert.Equal(t, "", updated.Location)
	assert.True(t, updated.IsOnline)

	inPerson, err := svc.CreateEvent(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.UpdateEvent(ctx, inPerson.ID, models.EventInput{Location: models.Some("")})
	var cv *db.ConstraintViolation
	require.True(t, errors.As(err, &cv), "got %v", err)
	assert.Equal(t, "location", cv.Field)
}

func TestHealth(t *testing.T) {
	svc := setupService(t)
	assert.NoError(t, svc.Health(context.Background()))
}
