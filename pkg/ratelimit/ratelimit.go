// Package ratelimit implements a bounded table of sliding-window request
// counters keyed by requester. Stale keys are evicted by TTL so the table
// never grows past its configured capacity.
package ratelimit

import (
	"sync"
	"time"
)

// Default limiter configuration constants.
const (
	defaultLimit    = 60
	defaultWindow   = time.Minute
	defaultCapacity = 10000
)

// counter tracks request counts across the current and previous window.
type counter struct {
	windowStart time.Time
	current     int
	previous    int
	lastSeen    time.Time
}

// Limiter is a fixed-capacity table of per-key sliding-window counters.
type Limiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	capacity int
	entries  map[string]*counter
	now      func() time.Time
}

// New creates a Limiter with configuration options.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		limit:    defaultLimit,
		window:   defaultWindow,
		capacity: defaultCapacity,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.entries = make(map[string]*counter, l.capacity)
	return l
}

// Allow reports whether a request by key is within the configured rate.
// It records the request when allowed.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.entries[key]
	if !ok {
		if len(l.entries) >= l.capacity {
			l.evict(now)
		}
		c = &counter{windowStart: now}
		l.entries[key] = c
	}

	l.roll(c, now)

	// Weighted sliding window: the previous window counts proportionally
	// to how much of it still overlaps the trailing window.
	elapsed := now.Sub(c.windowStart)
	weight := 1 - float64(elapsed)/float64(l.window)
	if weight < 0 {
		weight = 0
	}
	estimated := float64(c.current) + float64(c.previous)*weight
	if estimated >= float64(l.limit) {
		c.lastSeen = now
		return false
	}

	c.current++
	c.lastSeen = now
	return true
}

// Size returns the number of keys currently tracked.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// roll advances the counter's window to contain now.
// Must be called with l.mu held.
func (l *Limiter) roll(c *counter, now time.Time) {
	elapsed := now.Sub(c.windowStart)
	switch {
	case elapsed < l.window:
		// Still inside the current window.
	case elapsed < 2*l.window:
		c.previous = c.current
		c.current = 0
		c.windowStart = c.windowStart.Add(l.window)
	default:
		c.previous = 0
		c.current = 0
		c.windowStart = now
	}
}

// evict removes keys idle for at least two windows; if none qualify it
// removes the least recently seen key so the table stays bounded.
// Must be called with l.mu held.
func (l *Limiter) evict(now time.Time) {
	ttl := 2 * l.window
	var oldestKey string
	var oldestSeen time.Time
	removed := false
	for key, c := range l.entries {
		if now.Sub(c.lastSeen) >= ttl {
			delete(l.entries, key)
			removed = true
			continue
		}
		if oldestKey == "" || c.lastSeen.Before(oldestSeen) {
			oldestKey = key
			oldestSeen = c.lastSeen
		}
	}
	if !removed && oldestKey != "" {
		delete(l.entries, oldestKey)
	}
}
