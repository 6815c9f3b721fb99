// Package audiocache provides an in-memory, content-addressed cache for
// synthesised audio. Answers repeat often (the same question yields the same
// text), so caching the expensive TTS call by answer text saves both latency
// and provider spend.
//
// Keys are the SHA-256 of the trimmed answer text. Entries expire after a TTL
// and the cache is bounded; when full, the oldest fifth of entries is evicted
// to make room. A background janitor sweeps expired entries periodically.
//
// All methods are safe for concurrent use. The cache is scoped to process
// lifetime and does not persist across restarts.
package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultMaxEntries bounds the cache size.
	DefaultMaxEntries = 1000

	// DefaultTTL is how long an entry stays valid after insertion.
	DefaultTTL = 24 * time.Hour

	// DefaultSweepInterval is how often the janitor removes expired entries.
	DefaultSweepInterval = time.Hour

	// evictDivisor controls how much room an eviction makes: the oldest
	// 1/evictDivisor of capacity is removed when the cache is full.
	evictDivisor = 5
)

// entry is a cached audio clip.
type entry struct {
	audio      []byte
	insertedAt time.Time
	// seq orders entries by insertion for eviction; wall-clock timestamps
	// can collide within a single millisecond.
	seq uint64
}

// Stats is a point-in-time snapshot of cache state.
type Stats struct {
	Entries    int   `json:"entries"`
	MaxEntries int   `json:"maxEntries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
}

// Option is a functional option for Cache.
type Option func(*Cache)

// WithMaxEntries overrides the default entry bound.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithTTL overrides the default entry lifetime.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithSweepInterval overrides the default janitor period.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// Cache is a bounded, TTL-based audio cache keyed by answer text.
type Cache struct {
	maxEntries    int
	ttl           time.Duration
	sweepInterval time.Duration

	mu        sync.Mutex
	entries   map[string]entry
	nextSeq   uint64
	hits      int64
	misses    int64
	evictions int64

	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new Cache. Call [Cache.Start] to run the expiry janitor.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxEntries:    DefaultMaxEntries,
		ttl:           DefaultTTL,
		sweepInterval: DefaultSweepInterval,
		entries:       make(map[string]entry),
		now:           time.Now,
		done:          make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Key returns the cache key for text: the hex SHA-256 of its trimmed form.
func Key(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached audio for text, if present and unexpired. A lookup
// that finds an expired entry deletes it and reports a miss.
func (c *Cache) Get(text string) ([]byte, bool) {
	key := Key(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.audio, true
}

// Put stores audio under the key for text. When the cache is full, the oldest
// fifth of capacity is evicted first.
func (c *Cache) Put(text string, audio []byte) {
	key := Key(text)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldestLocked()
	}

	c.entries[key] = entry{
		audio:      audio,
		insertedAt: c.now(),
		seq:        c.nextSeq,
	}
	c.nextSeq++
}

// evictOldestLocked removes the oldest 1/evictDivisor of capacity by
// insertion order. Caller must hold c.mu.
func (c *Cache) evictOldestLocked() {
	n := c.maxEntries / evictDivisor
	if n < 1 {
		n = 1
	}

	type keyed struct {
		key string
		seq uint64
	}
	ordered := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		ordered = append(ordered, keyed{key: k, seq: e.seq})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].seq < ordered[j].seq })

	if n > len(ordered) {
		n = len(ordered)
	}
	for _, k := range ordered[:n] {
		delete(c.entries, k.key)
	}
	c.evictions += int64(n)

	slog.Debug("audio cache eviction", "evicted", n, "remaining", len(c.entries))
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:    len(c.entries),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
	}
}

// Clear removes all entries. Counters are preserved.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Start begins the periodic expiry sweep in a background goroutine. The
// goroutine runs until [Cache.Stop] is called or ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	go c.loop(ctx)
}

// Stop halts the janitor. Safe to call multiple times.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// loop runs the sweep ticker until stopped.
func (c *Cache) loop(ctx context.Context) {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := c.sweep(); removed > 0 {
				slog.Debug("audio cache sweep", "removed", removed)
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweep removes all expired entries and returns how many were removed.
func (c *Cache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) > c.ttl {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
