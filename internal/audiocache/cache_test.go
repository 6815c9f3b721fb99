package audiocache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestGetPut(t *testing.T) {
	c := New()

	if _, ok := c.Get("答え"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("答え", []byte("mp3"))
	audio, ok := c.Get("答え")
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if string(audio) != "mp3" {
		t.Errorf("audio = %q, want mp3", string(audio))
	}
}

// Keys are derived from trimmed text, so surrounding whitespace does not
// fragment the cache.
func TestKeyTrimsWhitespace(t *testing.T) {
	c := New()
	c.Put("  答えです。  ", []byte("mp3"))

	if _, ok := c.Get("答えです。"); !ok {
		t.Error("trimmed lookup should hit")
	}
	if Key("  答えです。\n") != Key("答えです。") {
		t.Error("keys for trimmed-equal texts should match")
	}
	if Key("a") == Key("b") {
		t.Error("distinct texts should have distinct keys")
	}
}

func TestExpiry(t *testing.T) {
	c := New(WithTTL(time.Minute))
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Put("答え", []byte("mp3"))

	// Still valid just inside the TTL.
	c.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := c.Get("答え"); !ok {
		t.Fatal("expected hit inside TTL")
	}

	// Expired: lookup misses and removes the entry.
	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := c.Get("答え"); ok {
		t.Fatal("expected miss after TTL")
	}
	if got := c.Stats().Entries; got != 0 {
		t.Errorf("entries = %d, want 0 after expired lookup", got)
	}
}

func TestEvictionAtCapacity(t *testing.T) {
	c := New(WithMaxEntries(10))

	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("text-%d", i), []byte("a"))
	}
	if got := c.Stats().Entries; got != 10 {
		t.Fatalf("entries = %d, want 10", got)
	}

	// The next insert evicts the oldest fifth (2 entries).
	c.Put("text-10", []byte("a"))

	stats := c.Stats()
	if stats.Entries != 9 {
		t.Errorf("entries = %d, want 9 after eviction", stats.Entries)
	}
	if stats.Evictions != 2 {
		t.Errorf("evictions = %d, want 2", stats.Evictions)
	}
	if _, ok := c.Get("text-0"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := c.Get("text-1"); ok {
		t.Error("second-oldest entry should have been evicted")
	}
	if _, ok := c.Get("text-10"); !ok {
		t.Error("newest entry should be present")
	}
}

// Overwriting an existing key does not trigger eviction.
func TestPutExistingKeyNoEviction(t *testing.T) {
	c := New(WithMaxEntries(5))
	for i := 0; i < 5; i++ {
		c.Put(fmt.Sprintf("text-%d", i), []byte("a"))
	}

	c.Put("text-0", []byte("b"))

	stats := c.Stats()
	if stats.Entries != 5 {
		t.Errorf("entries = %d, want 5", stats.Entries)
	}
	if stats.Evictions != 0 {
		t.Errorf("evictions = %d, want 0", stats.Evictions)
	}
	audio, _ := c.Get("text-0")
	if string(audio) != "b" {
		t.Errorf("audio = %q, want overwritten value b", string(audio))
	}
}

func TestStatsCounters(t *testing.T) {
	c := New()
	c.Put("答え", []byte("mp3"))

	c.Get("答え")
	c.Get("答え")
	c.Get("unknown")

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 1 {
		t.Errorf("misses = %d, want 1", stats.Misses)
	}
	if stats.MaxEntries != DefaultMaxEntries {
		t.Errorf("maxEntries = %d, want %d", stats.MaxEntries, DefaultMaxEntries)
	}
}

func TestClear(t *testing.T) {
	c := New()
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))

	c.Clear()

	if got := c.Stats().Entries; got != 0 {
		t.Errorf("entries = %d, want 0 after Clear", got)
	}
	if _, ok := c.Get("a"); ok {
		t.Error("expected miss after Clear")
	}
}

func TestSweepRemovesExpired(t *testing.T) {
	c := New(WithTTL(time.Minute))
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return base }

	c.Put("old", []byte("1"))

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	c.Put("fresh", []byte("2"))

	c.now = func() time.Time { return base.Add(70 * time.Second) }
	if removed := c.sweep(); removed != 1 {
		t.Errorf("sweep removed %d, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("unexpired entry should survive the sweep")
	}
}

func TestStartStop(t *testing.T) {
	c := New(WithSweepInterval(10 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.Start(ctx)
	c.Stop()
	// Stop is idempotent.
	c.Stop()
}
