// Package cache stores fetched funding history so repeated runs over the
// same span do not hit the exchange again. Values are JSON-encoded
// observation slices keyed by coin and time range.
package cache

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cache is the funding-history cache contract. A miss is (nil, false, nil);
// errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// FundingKey builds the cache key for one coin's history over a time range.
func FundingKey(coin string, start, end time.Time) string {
	return fmt.Sprintf("funding:%s:%d:%d", coin, start.UnixMilli(), end.UnixMilli())
}

// NewFromEnv picks the Redis backend when FUNDRUN_REDIS_ADDR is set and
// reachable, otherwise the in-process map.
func NewFromEnv() Cache {
	addr := os.Getenv("FUNDRUN_REDIS_ADDR")
	if addr == "" {
		return NewMemory()
	}

	c, err := NewRedis(addr, os.Getenv("FUNDRUN_REDIS_PASSWORD"), 0)
	if err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis unavailable, falling back to memory cache")
		return NewMemory()
	}
	return c
}

const sweepInterval = time.Minute

type entry struct {
	value []byte
	exp   time.Time
}

// Memory is a process-local cache with TTL expiry. Expired entries are
// dropped lazily on read and swept periodically in the background.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]entry
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory creates an in-process cache and starts its sweep loop.
func NewMemory() *Memory {
	c := &Memory{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *Memory) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.entries {
				if !e.exp.IsZero() && now.After(e.exp) {
					delete(c.entries, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Close stops the sweep loop. Safe to call more than once.
func (c *Memory) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
