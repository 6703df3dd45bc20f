package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-events/internal/models"
)

const (
	listKey = "events:all"
	genKey  = "events:all:gen"
)

var (
	// ErrMiss means the list is not cached.
	ErrMiss = errors.New("cache miss")
	// ErrStale means the list was invalidated after it was read.
	ErrStale = errors.New("cache generation changed")
)

// Redis caches the full event list. Entries expire after TTL and are dropped
// on every write. Every Invalidate bumps a generation counter; a list read
// under an older generation is never stored.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{Client: client, TTL: ttl}
}

// Connect dials addr and checks the connection with PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) GetList(ctx context.Context) ([]models.Event, error) {
	raw, err := r.Client.Get(ctx, listKey).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", listKey, err)
	}

	events := make([]models.Event, 0)
	if err := json.Unmarshal(raw, &events); err != nil {
		return nil, fmt.Errorf("decode cached events: %w", err)
	}
	return events, nil
}

// Generation returns the current invalidation counter. Read it before loading
// the list from the database and pass it to SetList.
func (r *Redis) Generation(ctx context.Context) (int64, error) {
	gen, err := r.Client.Get(ctx, genKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get %s: %w", genKey, err)
	}
	return gen, nil
}

// SetList stores events if the generation still equals gen, and returns
// ErrStale otherwise.
func (r *Redis) SetList(ctx context.Context, events []models.Event, gen int64) error {
	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}

	err = r.Client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if current != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, listKey, raw, r.TTL)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStale), errors.Is(err, redis.TxFailedErr):
		return ErrStale
	default:
		return fmt.Errorf("redis set %s: %w", listKey, err)
	}
}

func (r *Redis) Invalidate(ctx context.Context) error {
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Del(ctx, listKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate %s: %w", listKey, err)
	}
	return nil
}

// Key exposes the cache key for logging.
func (r *Redis) Key() string {
	return listKey
}
