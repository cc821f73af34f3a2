package security

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a (scope, client) pair has exceeded its
// configured window quota.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrTooFrequent is returned when a call arrives before the configured
// minimum interval since the same (scope, client) pair's last call.
var ErrTooFrequent = errors.New("request arrived before minimum interval")

type limiterEntry struct {
	rl       *rate.Limiter
	max      int
	window   time.Duration
	lastCall time.Time
}

// Limiter enforces a sliding-window request quota per (scope, client),
// modeled as a token-bucket refilling at max/window — the same construction
// the source's message-pipeline rate limiter uses — plus a minimum-interval
// debounce layered on top, which a bare token bucket cannot express.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

func NewLimiter() *Limiter {
	return &Limiter{limiters: make(map[string]*limiterEntry)}
}

// Allow checks and, if permitted, records a call for (scope, client) against
// the given quota. minInterval of zero disables the debounce check.
func (l *Limiter) Allow(scope, client string, max int, window, minInterval time.Duration) error {
	if max <= 0 || window <= 0 {
		return nil
	}
	key := scope + "|" + client

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.limiters[key]
	refillRate := rate.Limit(float64(max) / window.Seconds())
	if !ok {
		entry = &limiterEntry{
			rl:     rate.NewLimiter(refillRate, max),
			max:    max,
			window: window,
		}
		l.limiters[key] = entry
	} else if entry.max != max || entry.window != window {
		entry.rl.SetLimit(refillRate)
		entry.rl.SetBurst(max)
		entry.max = max
		entry.window = window
	}

	now := time.Now()
	if minInterval > 0 && !entry.lastCall.IsZero() && now.Sub(entry.lastCall) < minInterval {
		return ErrTooFrequent
	}
	if !entry.rl.Allow() {
		return ErrRateLimited
	}
	entry.lastCall = now
	return nil
}
