// Package admission guards the public endpoints. Three independent checks
// are combined per endpoint: a per-IP fixed-window rate limit, an API key
// check, and an origin check, plus the CORS preflight handling browsers need
// to reach the answer endpoint at all.
//
// Each check degrades safely outside production so local development works
// without credentials.
package admission

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultWindow is the rate-limit window length.
	DefaultWindow = 60 * time.Second

	// DefaultAnswerLimit is the per-IP request cap for the answer endpoint.
	DefaultAnswerLimit = 10

	// DefaultHealthLimit is the per-IP request cap for health endpoints.
	DefaultHealthLimit = 30

	// sweepInterval is how often stale rate records are discarded.
	sweepInterval = 5 * time.Minute

	// staleAge is how old a record must be before the sweep discards it.
	staleAge = 5 * time.Minute
)

// Decision is the outcome of a rate-limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// RetryAfter is the number of seconds until the window resets. Only
	// meaningful when Allowed is false; it feeds the Retry-After header.
	RetryAfter int
}

// windowRecord tracks one client's requests within the current window.
type windowRecord struct {
	windowStart time.Time
	count       int
}

// RateLimiter is a per-client fixed-window rate limiter. The store is
// in-memory and process-scoped; a background sweep discards stale records.
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	window time.Duration
	max    int

	mu      sync.Mutex
	records map[string]*windowRecord

	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter allowing max requests per client per
// window. Call [RateLimiter.Start] to run the sweep.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultAnswerLimit
	}
	return &RateLimiter{
		window:  window,
		max:     max,
		records: make(map[string]*windowRecord),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Allow records a request from clientIP and decides whether it may proceed.
// The first request of a window starts it; requests beyond the cap are denied
// until the window ends.
func (l *RateLimiter) Allow(clientIP string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[clientIP]
	if !ok || now.Sub(rec.windowStart) >= l.window {
		l.records[clientIP] = &windowRecord{windowStart: now, count: 1}
		return Decision{Allowed: true}
	}

	rec.count++
	if rec.count <= l.max {
		return Decision{Allowed: true}
	}

	remaining := l.window - now.Sub(rec.windowStart)
	retryAfter := int(remaining / time.Second)
	if remaining%time.Second != 0 {
		retryAfter++
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}
}

// Start begins the periodic sweep in a background goroutine. The goroutine
// runs until [RateLimiter.Stop] is called or ctx is cancelled.
func (l *RateLimiter) Start(ctx context.Context) {
	go l.loop(ctx)
}

// Stop halts the sweep. Safe to call multiple times.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.done)
	})
}

// loop runs the sweep ticker until stopped.
func (l *RateLimiter) loop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := l.sweep(); removed > 0 {
				slog.Debug("rate limiter sweep", "removed", removed)
			}
		case <-l.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// sweep removes records whose window started longer than staleAge ago and
// returns how many were removed.
func (l *RateLimiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for ip, rec := range l.records {
		if now.Sub(rec.windowStart) > staleAge {
			delete(l.records, ip)
			removed++
		}
	}
	return removed
}
