// Package ratelimit implements a fixed-cooldown limiter keyed by user
// identity. A user is allowed once per window; staff flows typically bypass
// the limiter entirely.
package ratelimit

import (
	"context"
	"time"
)

// Store persists last-seen timestamps per key.
type Store interface {
	LastSeen(ctx context.Context, key string) (time.Time, bool, error)
	Touch(ctx context.Context, key string, at time.Time, window time.Duration) error
	Reset(ctx context.Context, key string) error
}

// Limiter enforces a per-key cooldown window.
type Limiter struct {
	store  Store
	window time.Duration
	now    func() time.Time
}

// NewLimiter constructs a limiter over the given store.
func NewLimiter(store Store, window time.Duration) *Limiter {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Limiter{store: store, window: window, now: time.Now}
}

// Allow reports whether the key may act now, recording the attempt when it
// may. Store errors fail open: a broken limiter backend must not block the
// support flow.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	now := l.now()
	last, ok, err := l.store.LastSeen(ctx, key)
	if err != nil {
		return true
	}
	if ok && now.Sub(last) < l.window {
		return false
	}
	_ = l.store.Touch(ctx, key, now, l.window)
	return true
}

// Reset clears the cooldown for a key.
func (l *Limiter) Reset(ctx context.Context, key string) {
	_ = l.store.Reset(ctx, key)
}
