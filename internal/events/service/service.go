package events

import (
	"context"
	"errors"
	"fmt"

	"ms-events/internal/events/cache"
	"ms-events/internal/events/schema"
	"ms-events/internal/kafka"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

type EventDBLayer interface {
	Create(ctx context.Context, fields models.EventFields) (*models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	ListAll(ctx context.Context) ([]models.Event, error)
	UpdateByID(ctx context.Context, id string, fields models.EventFields) (*models.Event, error)
	DeleteByID(ctx context.Context, id string) (*models.Event, error)
	Ping(ctx context.Context) error
}

type ListCache interface {
	GetList(ctx context.Context) ([]models.Event, error)
	Generation(ctx context.Context) (int64, error)
	SetList(ctx context.Context, events []models.Event, gen int64) error
	Invalidate(ctx context.Context) error
}

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type Topics struct {
	Created string
	Updated string
	Deleted string
}

type EventService struct {
	DB        EventDBLayer
	Cache     ListCache
	Publisher Publisher
	Topics    Topics
	Clock     utils.Clock
	Logger    *logger.Logger
}

type Option func(*EventService)

// WithCache serves ListEvents from c and drops it on every write.
func WithCache(c ListCache) Option {
	return func(s *EventService) { s.Cache = c }
}

// WithPublisher emits a lifecycle message per successful write.
func WithPublisher(p Publisher, topics Topics) Option {
	return func(s *EventService) {
		s.Publisher = p
		s.Topics = topics
	}
}

func NewEventService(db EventDBLayer, clock utils.Clock, l *logger.Logger, opts ...Option) *EventService {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	s := &EventService{DB: db, Clock: clock, Logger: l}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EventService) CreateEvent(ctx context.Context, in models.EventInput) (*models.Event, error) {
	if err := schema.ValidateCreate(in); err != nil {
		return nil, err
	}
	fields, err := NormalizeCreate(in)
	if err != nil {
		return nil, err
	}

	event, err := s.DB.Create(ctx, fields)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.Logger.LogEvent("CREATE", event.ID, fmt.Sprintf("created %q", event.Name))
	s.afterWrite(ctx, kafka.EventCreated, s.Topics.Created, event)
	return event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("event %s: %w", id, err)
	}
	return event, nil
}

// ListEvents returns every event, from the cache when one is configured.
func (s *EventService) ListEvents(ctx context.Context) ([]models.Event, error) {
	var gen int64
	fill := false
	if s.Cache != nil {
		events, err := s.Cache.GetList(ctx)
		switch {
		case err == nil:
			s.Logger.LogCache("HIT", "events:all", fmt.Sprintf("%d events", len(events)))
			return events, nil
		case !errors.Is(err, cache.ErrMiss):
			s.Logger.Warn("CACHE", fmt.Sprintf("Reading event list failed, using database: %v", err))
		}

		// The generation must be read before the database.
		if gen, err = s.Cache.Generation(ctx); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Reading cache generation failed: %v", err))
		} else {
			fill = true
		}
	}

	events, err := s.DB.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	if fill {
		err := s.Cache.SetList(ctx, events, gen)
		switch {
		case err == nil:
			s.Logger.LogCache("FILL", "events:all", fmt.Sprintf("%d events", len(events)))
		case errors.Is(err, cache.ErrStale):
			s.Logger.LogCache("SKIP", "events:all", "invalidated during read")
		default:
			s.Logger.Warn("CACHE", fmt.Sprintf("Storing event list failed: %v", err))
		}
	}
	return events, nil
}

func (s *EventService) UpdateEvent(ctx context.Context, id string, in models.EventInput) (*models.Event, error) {
	if err := schema.ValidateUpdate(in); err != nil {
		return nil, err
	}
	fields, err := NormalizeUpdate(in)
	if err != nil {
		return nil, err
	}

	event, err := s.DB.UpdateByID(ctx, id, fields)
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", id, err)
	}

	s.Logger.LogEvent("UPDATE", event.ID, "updated")
	s.afterWrite(ctx, kafka.EventUpdated, s.Topics.Updated, event)
	return event, nil
}

func (s *EventService) DeleteEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.DB.DeleteByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete event %s: %w", id, err)
	}

	s.Logger.LogEvent("DELETE", event.ID, "deleted")
	s.afterWrite(ctx, kafka.EventDeleted, s.Topics.Deleted, event)
	return event, nil
}

// Health pings the database.
func (s *EventService) Health(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

// afterWrite drops the cached list and publishes the change. Neither can fail
// the request that already committed.
func (s *EventService) afterWrite(ctx context.Context, kind kafka.MessageType, topic string, event *models.Event) {
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Invalidating event list failed: %v", err))
		}
	}

	if s.Publisher == nil || topic == "" {
		return
	}
	payload, err := kafka.EncodeEventMessage(kind, event, s.Clock.Now())
	if err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Encoding %s for %s failed: %v", kind, event.ID, err))
		return
	}
	if err := s.Publisher.Publish(ctx, topic, event.ID, payload); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Publishing %s for %s failed: %v", kind, event.ID, err))
	}
}
