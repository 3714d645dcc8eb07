// Package cache is a Redis read-through cache for the event and booking lists.
// A nil *Cache, or one built without a client, is valid and always misses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/ticket-booking/internal/config"
	"github.com/Shivanand-hulikatti/ticket-booking/internal/model"
)

// NewRedisClient connects to Redis and pings it with a short timeout.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Cache stores JSON-encoded list results under fixed keys.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// New returns a Cache. ttl <= 0 falls back to five seconds.
func New(rdb *redis.Client, ttl time.Duration, prefix string) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if prefix == "" {
		prefix = "tickets"
	}
	return &Cache{rdb: rdb, ttl: ttl, prefix: prefix}
}

// EventsKey is the key holding the cached event list.
func (c *Cache) EventsKey() string { return c.prefix + ":events" }

// BookingsKey is the key holding the cached booking list.
func (c *Cache) BookingsKey() string { return c.prefix + ":bookings" }

// GenerationKey is the counter bumped by every Invalidate.
func (c *Cache) GenerationKey() string { return c.prefix + ":gen" }

// Events returns the cached event list, if present.
func (c *Cache) Events(ctx context.Context) ([]model.Event, bool) {
	if !c.enabled() {
		return nil, false
	}
	var events []model.Event
	if !c.get(ctx, c.EventsKey(), &events) {
		return nil, false
	}
	return events, true
}

// StoreEvents caches the event list read under generation gen. The write is
// skipped when an Invalidate has run since gen was read.
func (c *Cache) StoreEvents(ctx context.Context, gen int64, events []model.Event) {
	if !c.enabled() {
		return
	}
	c.set(ctx, c.EventsKey(), gen, events)
}

// Bookings returns the cached booking list, if present.
func (c *Cache) Bookings(ctx context.Context) ([]model.BookingView, bool) {
	if !c.enabled() {
		return nil, false
	}
	var views []model.BookingView
	if !c.get(ctx, c.BookingsKey(), &views) {
		return nil, false
	}
	return views, true
}

// StoreBookings caches the booking list read under generation gen.
func (c *Cache) StoreBookings(ctx context.Context, gen int64, views []model.BookingView) {
	if !c.enabled() {
		return
	}
	c.set(ctx, c.BookingsKey(), gen, views)
}

// Generation returns the current invalidation generation. Callers read it
// before loading a list from the store and pass it back to StoreEvents or
// StoreBookings. ok is false when the cache is disabled or Redis failed, in
// which case the result must not be stored.
func (c *Cache) Generation(ctx context.Context) (gen int64, ok bool) {
	if !c.enabled() {
		return 0, false
	}
	gen, err := c.rdb.Get(ctx, c.GenerationKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		log.Printf("cache: get %s: %v", c.GenerationKey(), err)
		return 0, false
	}
	return gen, true
}

// Invalidate bumps the generation and drops both lists in one MULTI. Called
// after every committed write.
func (c *Cache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.GenerationKey())
		pipe.Del(ctx, c.EventsKey(), c.BookingsKey())
		return nil
	})
	if err != nil {
		log.Printf("cache: invalidate: %v", err)
	}
}

func (c *Cache) enabled() bool {
	return c != nil && c.rdb != nil
}

func (c *Cache) get(ctx context.Context, key string, dst any) bool {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: get %s: %v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		log.Printf("cache: decode %s: %v", key, err)
		return false
	}
	return true
}

var errStaleGeneration = errors.New("generation changed")

// set writes v under key only if the generation still equals gen. WATCH on
// the generation key aborts the SET if an Invalidate lands between the check
// and EXEC.
func (c *Cache) set(ctx context.Context, key string, gen int64, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		log.Printf("cache: encode %s: %v", key, err)
		return
	}

	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, c.GenerationKey()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}, c.GenerationKey())

	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
	default:
		log.Printf("cache: set %s: %v", key, err)
	}
}
