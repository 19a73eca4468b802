package api

import (
	"sync"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/time/rate"
)

// limiter applies a token bucket per caller and evicts idle entries every
// few hundred hits.
type limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	clock   quartz.Clock

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLimiter returns nil (allow everything) unless rps and burst are
// positive.
func newLimiter(rps float64, burst int, clock quartz.Clock) *limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &limiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		clock:   clock,
		byKey:   make(map[string]*limiterEntry),
	}
}

// allow consumes one token for key.
func (l *limiter) allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.clock.Now("api", "limiter")

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}
	return allowed
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}
