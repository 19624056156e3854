package admission

import "time"

// RateLimiter keeps a sliding-window log of request timestamps per identity.
// Checking and recording are separate steps: the engine checks early in the
// pipeline and records only once a booking fully succeeds.
//
// Not safe for concurrent use on its own; the engine's critical section
// serializes all access.
type RateLimiter struct {
	window  time.Duration
	limit   int
	history map[string][]time.Time
}

// NewRateLimiter builds a limiter allowing limit requests per window.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		limit:   limit,
		history: make(map[string][]time.Time),
	}
}

// Allow prunes timestamps older than now-window and reports whether the
// identity is still under the per-window maximum. It does not record.
func (l *RateLimiter) Allow(identity string, now time.Time) bool {
	return l.prune(identity, now) < l.limit
}

// Record appends a request timestamp for the identity. Timestamps are
// appended in call order, so the log stays oldest-first and pruning is a
// prefix trim.
func (l *RateLimiter) Record(identity string, now time.Time) {
	l.history[identity] = append(l.history[identity], now)
}

// Recent reports how many requests the identity has in the current window.
func (l *RateLimiter) Recent(identity string, now time.Time) int {
	return l.prune(identity, now)
}

func (l *RateLimiter) prune(identity string, now time.Time) int {
	log, ok := l.history[identity]
	if !ok {
		return 0
	}
	cutoff := now.Add(-l.window)
	drop := 0
	for drop < len(log) && log[drop].Before(cutoff) {
		drop++
	}
	if drop > 0 {
		log = append(log[:0], log[drop:]...)
		l.history[identity] = log
	}
	return len(log)
}
