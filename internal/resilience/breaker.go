// Package resilience keeps outbound provider calls healthy: bounded retry
// with backoff, a shared outbound permit pool, and failover chains that move
// answering traffic off a misbehaving LLM or speech backend.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// errBackendBenched reports that a backend is sitting out its cooldown and
// was not called. The failover chain treats it as a skip, not a failure.
var errBackendBenched = errors.New("backend benched after repeated failures")

// errBackendSkipped marks an outcome that carries no verdict on backend
// health, e.g. a speech backend that is registered but not configured.
var errBackendSkipped = errors.New("backend skipped")

// breaker tracks the health of one backend in a failover chain. A backend
// that fails tripAfter times in a row is benched for the cooldown period;
// once the cooldown elapses a single trial call is let through. A successful
// trial restores the backend, a failed one benches it again.
type breaker struct {
	name      string
	tripAfter int
	cooldown  time.Duration

	mu        sync.Mutex
	fails     int // consecutive failures; >= tripAfter means benched
	benchedAt time.Time
	inTrial   bool
}

func newBreaker(name string, cfg FallbackConfig) *breaker {
	return &breaker{
		name:      name,
		tripAfter: cfg.TripAfter,
		cooldown:  cfg.Cooldown,
	}
}

// call runs fn unless the backend is benched. Only one trial call runs at a
// time; concurrent callers see errBackendBenched until it settles.
func (b *breaker) call(fn func() error) error {
	b.mu.Lock()
	if b.fails >= b.tripAfter {
		if time.Since(b.benchedAt) < b.cooldown || b.inTrial {
			b.mu.Unlock()
			return errBackendBenched
		}
		b.inTrial = true
	}
	trial := b.inTrial
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if errors.Is(err, errBackendSkipped) {
		if trial {
			b.inTrial = false
		}
		return err
	}
	if trial {
		b.inTrial = false
		if err != nil {
			b.benchedAt = time.Now()
			return err
		}
		b.fails = 0
		slog.Info("backend restored after trial call", "backend", b.name)
		return nil
	}
	if err != nil {
		b.fails++
		if b.fails == b.tripAfter {
			b.benchedAt = time.Now()
			slog.Warn("benching backend",
				"backend", b.name,
				"consecutive_failures", b.fails,
				"cooldown", b.cooldown)
		}
		return err
	}
	b.fails = 0
	return nil
}

// benched reports whether calls would currently be rejected.
func (b *breaker) benched() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fails >= b.tripAfter && (time.Since(b.benchedAt) < b.cooldown || b.inTrial)
}
