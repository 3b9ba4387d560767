package remote

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter provides per-host rate limiting using token bucket algorithm
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter creates a new rate limiter with the specified RPS and burst capacity.
// A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) get(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[host]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[host]; ok {
		return limiter
	}
	limit := rate.Limit(l.rps)
	if l.rps <= 0 {
		limit = rate.Inf
	}
	limiter = rate.NewLimiter(limit, l.burst)
	l.limiters[host] = limiter
	return limiter
}

// Allow returns true if a request for the specified host is allowed now
func (l *Limiter) Allow(host string) bool {
	return l.get(host).Allow()
}

// Wait blocks until a request for the specified host is allowed or context is cancelled
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.get(host).Wait(ctx)
}
