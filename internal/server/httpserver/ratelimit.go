package httpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterRegistry keeps one token bucket per client key.
// Entries idle for longer than idleTTL are dropped on the next cleanup.
type limiterRegistry struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterRegistry(requestsPerSecond int, idleTTL time.Duration) *limiterRegistry {
	return &limiterRegistry{
		limiters:  make(map[string]*limiterEntry),
		limit:     rate.Limit(requestsPerSecond),
		burst:     requestsPerSecond,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow reports whether a request from key may proceed now.
func (r *limiterRegistry) Allow(key string) bool {
	return r.getOrCreate(key).Allow()
}

func (r *limiterRegistry) getOrCreate(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) > r.idleTTL {
		for k, e := range r.limiters {
			if now.Sub(e.lastSeen) > r.idleTTL {
				delete(r.limiters, k)
			}
		}
		r.lastSweep = now
	}

	e, ok := r.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// Len returns the number of tracked clients.
func (r *limiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}
