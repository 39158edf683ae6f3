// Package resultcache implements the resolver's result cache: a sharded
// concurrent map from (name, type) to a positive answer list, plus a
// second sharded map from name to a negative-cache expiry. Both are
// lazily expired — a read past expiry reports a miss without removing the
// entry, which is instead overwritten by the next add to that key.
//
// There is deliberately no stampede protection: two concurrent misses on
// the same key independently drive the query engine and both write their
// result. Documented, not repaired, per the cache's concurrency contract.
package resultcache

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dchest/siphash"
	"github.com/dnsscience/resolve/internal/eventbus"
)

const defaultShardCount = 64

type positiveKey struct {
	name  string
	qtype uint16
}

type positiveEntry struct {
	payload   any
	expiresAt time.Time
}

type shard struct {
	mu       sync.RWMutex
	positive map[positiveKey]positiveEntry
	negative map[string]time.Time
}

// Cache is the sharded result cache. The zero value is not usable; use New.
type Cache struct {
	shards []*shard
	mask   uint64
	key    [16]byte

	hits   atomic.Uint64
	misses atomic.Uint64

	bus *eventbus.Bus
}

// StoreEvent is published on eventbus.TopicCache whenever an entry is
// written, so a metrics collector or trace hook can observe cache writes
// without being threaded through every call site.
type StoreEvent struct {
	Name      string
	Type      uint16
	Negative  bool
	ExpiresAt time.Time
}

// New creates an empty Cache with defaultShardCount shards and a random
// siphash key, so shard assignment isn't predictable to a caller choosing
// adversarial names to force collisions onto one shard.
func New() *Cache {
	c := &Cache{
		shards: make([]*shard, defaultShardCount),
		mask:   uint64(defaultShardCount - 1),
		bus:    eventbus.New(16),
	}
	if _, err := rand.Read(c.key[:]); err != nil {
		panic("resultcache: crypto/rand failed: " + err.Error())
	}
	for i := range c.shards {
		c.shards[i] = &shard{
			positive: make(map[positiveKey]positiveEntry),
			negative: make(map[string]time.Time),
		}
	}
	return c
}

// Events returns a subscription to cache store events.
func (c *Cache) Events(ctx context.Context) *eventbus.Subscriber {
	return c.bus.Subscribe(ctx, eventbus.TopicCache)
}

func (c *Cache) shardFor(name string) *shard {
	h := siphash.Hash(binary.LittleEndian.Uint64(c.key[0:8]), binary.LittleEndian.Uint64(c.key[8:16]), []byte(name))
	return c.shards[h&c.mask]
}

// TryGetPositive looks up (name, qtype). It first consults the negative
// cache: if name is currently marked non-existent, it reports a hit with
// an empty list, matching the read path of a record set that provably
// doesn't exist. Otherwise it looks up the positive entry; an expired
// entry is reported as a miss but is not evicted.
func TryGetPositive[T any](c *Cache, name string, qtype uint16) ([]T, bool) {
	s := c.shardFor(name)
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()

	if negExpiry, ok := s.negative[name]; ok && now.Before(negExpiry) {
		c.hits.Add(1)
		return []T{}, true
	}

	entry, ok := s.positive[positiveKey{name: name, qtype: qtype}]
	if !ok || !now.Before(entry.expiresAt) {
		c.misses.Add(1)
		return nil, false
	}

	payload, ok := entry.payload.([]T)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return payload, true
}

// TryAdd stores result under (name, qtype), unconditionally overwriting
// any existing entry. It always returns true.
func TryAdd[T any](c *Cache, name string, qtype uint16, expiresAt time.Time, result []T) bool {
	s := c.shardFor(name)
	s.mu.Lock()
	s.positive[positiveKey{name: name, qtype: qtype}] = positiveEntry{payload: result, expiresAt: expiresAt}
	s.mu.Unlock()

	c.bus.Publish(context.Background(), eventbus.TopicCache, StoreEvent{Name: name, Type: qtype, ExpiresAt: expiresAt})
	return true
}

// TryAddNonexistent marks name as non-existent in the negative cache until
// expiresAt, unconditionally overwriting any prior entry.
func (c *Cache) TryAddNonexistent(name string, expiresAt time.Time) bool {
	s := c.shardFor(name)
	s.mu.Lock()
	s.negative[name] = expiresAt
	s.mu.Unlock()

	c.bus.Publish(context.Background(), eventbus.TopicCache, StoreEvent{Name: name, Negative: true, ExpiresAt: expiresAt})
	return true
}

// Stats reports cumulative hit/miss counts across both the positive and
// negative lookup paths.
type Stats struct {
	Hits   uint64
	Misses uint64
}

// GetStats returns a snapshot of the cache's hit/miss counters.
func (c *Cache) GetStats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Flush removes every entry from the cache.
func (c *Cache) Flush() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.positive = make(map[positiveKey]positiveEntry)
		s.negative = make(map[string]time.Time)
		s.mu.Unlock()
	}
}
