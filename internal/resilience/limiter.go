package resilience

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultOutboundPermits caps concurrent outbound provider calls process-wide.
const DefaultOutboundPermits = 8

// OutboundLimiter bounds the number of concurrent calls to external providers
// (embedding, LLM, TTS, vector index). It is a thin wrapper around a weighted
// semaphore so the bound is shared across all provider kinds.
//
// OutboundLimiter is safe for concurrent use.
type OutboundLimiter struct {
	sem *semaphore.Weighted
}

// NewOutboundLimiter creates a limiter with the given number of permits.
// A non-positive value selects DefaultOutboundPermits.
func NewOutboundLimiter(permits int64) *OutboundLimiter {
	if permits <= 0 {
		permits = DefaultOutboundPermits
	}
	return &OutboundLimiter{sem: semaphore.NewWeighted(permits)}
}

// Do acquires one permit, runs fn, and releases the permit. Acquisition blocks
// until a permit is free or ctx is done.
func (l *OutboundLimiter) Do(ctx context.Context, fn func() error) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("outbound limiter: %w", err)
	}
	defer l.sem.Release(1)
	return fn()
}
