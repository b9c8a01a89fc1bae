package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles outbound requests per upstream host. Every host gets
// its own token bucket so a slow mirror cannot starve the primary.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New creates a per-host limiter with the given steady rate and burst.
func New(rps float64, burst int) *Limiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Wait blocks until a token is available for host or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.limiterFor(host).Wait(ctx)
}

// Allow reports whether a token is available for host right now.
func (l *Limiter) Allow(host string) bool {
	return l.limiterFor(host).Allow()
}

// Backoff honors an upstream Retry-After by suspending the host's bucket
// for the given duration, then restoring the configured rate.
func (l *Limiter) Backoff(host string, d time.Duration) {
	if d <= 0 {
		return
	}

	lim := l.limiterFor(host)
	lim.SetLimit(rate.Every(d))

	rps := l.rps
	time.AfterFunc(d, func() {
		lim.SetLimit(rps)
	})
}

func (l *Limiter) limiterFor(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = lim
	}
	return lim
}
