// Package ratelimit provides fixed-window request limiting for the
// public API. Limits are enforced per user with an in-memory limiter
// by default, optionally backed by Redis so counters survive restarts
// and are shared between instances.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of a limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	RetryIn   time.Duration
}

// Limiter enforces a fixed-window request limit per key.
type Limiter interface {
	// Allow consumes one request for key if the window budget permits.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}
