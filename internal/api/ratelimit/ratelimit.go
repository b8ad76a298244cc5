// Package ratelimit limits how often a client may force a rebuild, using an
// in-memory token bucket per client key.
package ratelimit

import (
	"sync"
	"time"
)

// entry tracks the token-bucket state for a single key.
type entry struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter gives each key limit tokens per window, refilled continuously.
// A limit of zero or less disables limiting.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a limiter and starts its janitor goroutine; call Stop to end it.
func New(limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.cleanup(window)
	return l
}

// Allow consumes a token for key. When none is left it returns false and
// the time until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l.limit <= 0 {
		return true, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rate := float64(l.limit) / l.window.Seconds()
	e, exists := l.entries[key]
	if !exists {
		l.entries[key] = &entry{tokens: float64(l.limit - 1), lastCheck: now}
		return true, 0
	}

	e.tokens += now.Sub(e.lastCheck).Seconds() * rate
	e.lastCheck = now
	if e.tokens > float64(l.limit) {
		e.tokens = float64(l.limit)
	}
	if e.tokens < 1 {
		wait := time.Duration((1 - e.tokens) / rate * float64(time.Second))
		return false, wait
	}
	e.tokens--
	return true, 0
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stop ends the janitor goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

func (l *Limiter) cleanup(every time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

// sweep drops keys idle for two windows; by then their bucket is full.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, e := range l.entries {
		if e.lastCheck.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
