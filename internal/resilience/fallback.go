package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrAllFailed is returned by a failover chain when no backend produced a
// result. It wraps the last real backend error when there was one.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig tunes per-backend failure handling for [LLMFallback] and
// [TTSFallback]. The zero value gives production defaults.
type FallbackConfig struct {
	// TripAfter is the number of consecutive failures after which a backend
	// is benched. Default: 5.
	TripAfter int

	// Cooldown is how long a benched backend sits out before a trial call is
	// allowed. Default: 30s.
	Cooldown time.Duration
}

func (cfg FallbackConfig) withDefaults() FallbackConfig {
	if cfg.TripAfter <= 0 {
		cfg.TripAfter = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return cfg
}

// chainEntry is one backend in priority order with its health tracker.
type chainEntry[T any] struct {
	name    string
	backend T
	brk     *breaker
}

// chain walks backends in priority order, skipping benched ones. It backs
// the exported LLM and TTS fallback wrappers, which fix T to the provider
// interface they guard.
type chain[T any] struct {
	entries []chainEntry[T]
	cfg     FallbackConfig
}

func newChain[T any](primary T, name string, cfg FallbackConfig) *chain[T] {
	c := &chain[T]{cfg: cfg.withDefaults()}
	c.add(name, primary)
	return c
}

func (c *chain[T]) add(name string, backend T) {
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		backend: backend,
		brk:     newBreaker(name, c.cfg),
	})
}

// run tries each backend in order until one answers. A package-level function
// because Go does not support method-level type parameters.
func run[T any, R any](c *chain[T], fn func(T) (R, error)) (R, error) {
	var result R
	var lastErr error

	for i := range c.entries {
		e := &c.entries[i]
		err := e.brk.call(func() error {
			var callErr error
			result, callErr = fn(e.backend)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, errBackendBenched) || errors.Is(err, errBackendSkipped) {
			slog.Debug("skipping backend", "backend", e.name, "reason", err)
			continue
		}
		lastErr = err
		slog.Warn("backend failed, trying next", "backend", e.name, "error", err)
	}

	var zero R
	if lastErr == nil {
		return zero, fmt.Errorf("%w: no backend available", ErrAllFailed)
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
