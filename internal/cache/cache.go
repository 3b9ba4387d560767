// Package cache holds rendered views keyed by store revision.
package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	// Purge drops every key starting with prefix.
	Purge(ctx context.Context, prefix string) error
}

type memory struct {
	mu  sync.Mutex
	m   map[string]entry
	now func() time.Time
}

type entry struct {
	b   []byte
	exp time.Time
}

// New returns an in-process cache.
func New() Cache { return &memory{m: make(map[string]entry), now: time.Now} }

func (c *memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = c.now().Add(ttl)
	}
	c.m[key] = e
}

func (c *memory) Purge(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.m {
		if strings.HasPrefix(k, prefix) {
			delete(c.m, k)
		}
	}
	return nil
}

// Redis adapter. Keys are namespaced so several data directories can share
// one server.
type redisCache struct {
	r         *redis.Client
	namespace string
	timeout   time.Duration
}

// NewRedis wraps a client; every key is prefixed with namespace.
func NewRedis(client *redis.Client, namespace string) Cache {
	return &redisCache{r: client, namespace: namespace, timeout: 500 * time.Millisecond}
}

// NewAuto returns a Redis cache when addr is set and an in-process one
// otherwise.
func NewAuto(addr, namespace string) Cache {
	if addr != "" {
		return NewRedis(redis.NewClient(&redis.Options{Addr: addr}), namespace)
	}
	return New()
}

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	v, err := r.r.Get(ctx, r.namespace+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		return nil, false
	}
	return v, true
}

func (r *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.r.Set(ctx, r.namespace+key, val, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

func (r *redisCache) Purge(ctx context.Context, prefix string) error {
	ctx, cancel := context.WithTimeout(ctx, 4*r.timeout)
	defer cancel()
	var cursor uint64
	for {
		keys, next, err := r.r.Scan(ctx, cursor, r.namespace+prefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := r.r.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
