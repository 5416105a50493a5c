// Package ratelimit implements bounded sliding-window request counters.
package ratelimit

import "time"

// Option applies a configuration option to the Limiter.
type Option func(*Limiter)

// WithLimit sets the maximum number of requests per window per key.
func WithLimit(limit int) Option {
	return func(l *Limiter) {
		if limit > 0 {
			l.limit = limit
		}
	}
}

// WithWindow sets the sliding window width.
func WithWindow(window time.Duration) Option {
	return func(l *Limiter) {
		if window > 0 {
			l.window = window
		}
	}
}

// WithCapacity bounds the number of keys tracked at once.
func WithCapacity(capacity int) Option {
	return func(l *Limiter) {
		if capacity > 0 {
			l.capacity = capacity
		}
	}
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}
