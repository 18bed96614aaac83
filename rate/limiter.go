// Package rate throttles callers identified by an arbitrary key, typically
// the user id of an authenticated request.
package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per caller. Buckets idle for longer than
// Expiry minutes are dropped by a background sweep.
type Limiter struct {
	Burst    int
	Expiry   int
	LimitRPS float64

	mu      sync.Mutex
	callers map[string]*caller
}

type caller struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewLimiter(burst int, expiry int, limitRPS float64) *Limiter {
	l := &Limiter{
		Burst:    burst,
		Expiry:   expiry,
		LimitRPS: limitRPS,
		callers:  make(map[string]*caller),
	}
	go l.sweep()
	return l
}

// Check reports whether the caller identified by id may proceed, consuming
// one token when it may.
func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.callers[id]
	if !ok {
		c = &caller{limiter: rate.NewLimiter(rate.Limit(l.LimitRPS), l.Burst)}
		l.callers[id] = c
	}

	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

func (l *Limiter) sweep() {
	for {
		time.Sleep(time.Minute)

		l.mu.Lock()
		for id, c := range l.callers {
			if time.Since(c.lastSeen) > time.Duration(l.Expiry)*time.Minute {
				delete(l.callers, id)
			}
		}
		l.mu.Unlock()
	}
}

// Every converts a per-event interval into the rate NewLimiter expects.
func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}
