// Package ratelimit implements a fixed window request limiter.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/academia/core"
)

var nowFunc = time.Now // mockable

// Result of a hit.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type (
	// Store counts the hits of a key in its current window.
	Store interface {
		Incr(ctx context.Context, key string, window time.Duration, now time.Time) (count int, resetAt time.Time, err error)
	}

	Limiter struct {
		store  Store
		window time.Duration
		max    int
	}
)

func NewLimiter(store Store, window time.Duration, max int) *Limiter {
	return &Limiter{store: store, window: window, max: max}
}

// NewStore uses Redis when conf.RedisURL is set, the memory store otherwise.
func NewStore(conf *core.Config, logger core.Logger) Store {
	if conf.RedisURL == "" {
		return NewMemoryStore()
	}
	store, err := NewRedisStore(conf.RedisURL)
	if err != nil {
		logger.Warn(fmt.Sprintf("using the memory rate limit store: %v", err), err)
		return NewMemoryStore()
	}
	return store
}

func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, resetAt, err := l.store.Incr(ctx, key, l.window, nowFunc())
	if err != nil {
		return Result{}, err
	}
	remaining := l.max - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: count <= l.max, Remaining: remaining, ResetAt: resetAt}, nil
}

func (l *Limiter) Max() int { return l.max }

func windowStart(now time.Time, window time.Duration) time.Time {
	return now.Truncate(window)
}

type entry struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps the counters of this process only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*entry)}
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{resetAt: windowStart(now, window).Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, e.resetAt, nil
}

// Sweep drops the expired windows and returns how many were dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for key, e := range s.entries {
		if !now.Before(e.resetAt) {
			delete(s.entries, key)
			n++
		}
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RedisStore shares the counters between every instance: one key per window, INCR then EXPIRE.
type RedisStore struct {
	client redis.Cmdable
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis URL")
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time, error) {
	start := windowStart(now, window)
	resetAt := start.Add(window)
	rkey := fmt.Sprintf("rl:%s:%d", key, start.Unix())

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, rkey)
	pipe.Expire(ctx, rkey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, errors.Wrap(err, "incrementing rate limit counter")
	}
	return int(incr.Val()), resetAt, nil
}
