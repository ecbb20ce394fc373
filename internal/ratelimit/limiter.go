// Package ratelimit implements token bucket limiters used to throttle
// WebSocket frames per connection and chat messages per user.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a token bucket holding up to capacity tokens that refills
// completely over interval.
type Limiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	rate      float64
	lastCheck time.Time
	now       func() time.Time
}

// New returns a full bucket. Non-positive arguments fall back to a capacity
// of one and an interval of one second.
func New(capacity int, interval time.Duration) *Limiter {
	return newWithClock(capacity, interval, time.Now)
}

func newWithClock(capacity int, interval time.Duration, now func() time.Time) *Limiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	rate := float64(capacity) / interval.Seconds()
	if rate <= 0 {
		rate = float64(capacity)
	}

	return &Limiter{
		tokens:    float64(capacity),
		capacity:  float64(capacity),
		rate:      rate,
		lastCheck: now(),
		now:       now,
	}
}

// Allow takes a token if one is available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastCheck).Seconds()
	l.lastCheck = now

	if elapsed > 0 {
		l.tokens += elapsed * l.rate
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
	}

	if l.tokens < 1 {
		return false
	}

	l.tokens--
	return true
}

// full reports whether the bucket has refilled completely.
func (l *Limiter) full() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	elapsed := l.now().Sub(l.lastCheck).Seconds()
	return l.tokens+elapsed*l.rate >= l.capacity
}

// Keyed hands out one Limiter per key, e.g. per user id.
type Keyed struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	capacity int
	interval time.Duration
	now      func() time.Time
}

// NewKeyed creates a keyed limiter whose buckets share one configuration.
func NewKeyed(capacity int, interval time.Duration) *Keyed {
	return NewKeyedWithClock(capacity, interval, time.Now)
}

// NewKeyedWithClock is NewKeyed with an injectable clock.
func NewKeyedWithClock(capacity int, interval time.Duration, now func() time.Time) *Keyed {
	if now == nil {
		now = time.Now
	}
	return &Keyed{
		limiters: make(map[string]*Limiter),
		capacity: capacity,
		interval: interval,
		now:      now,
	}
}

// Allow takes a token from key's bucket.
func (k *Keyed) Allow(key string) bool {
	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = newWithClock(k.capacity, k.interval, k.now)
		k.limiters[key] = l
	}
	k.mu.Unlock()
	return l.Allow()
}

// Prune forgets buckets that have refilled completely, returning how many
// were dropped. A dropped key starts again from a full bucket.
func (k *Keyed) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for key, l := range k.limiters {
		if l.full() {
			delete(k.limiters, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
