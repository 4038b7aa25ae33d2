package signal

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dkeye/Howdy/internal/domain"
)

// IdentityRateLimiter keeps one token bucket per sender.
type IdentityRateLimiter struct {
	mu      sync.Mutex
	buckets map[domain.Identity]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func NewIdentityRateLimiter(perSecond float64, burst int) *IdentityRateLimiter {
	return &IdentityRateLimiter{
		buckets: make(map[domain.Identity]*rate.Limiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
	}
}

func (rl *IdentityRateLimiter) Allow(id domain.Identity) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[id]
	if !ok {
		b = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[id] = b
	}
	rl.mu.Unlock()
	return b.Allow()
}

func (rl *IdentityRateLimiter) Forget(id domain.Identity) {
	rl.mu.Lock()
	delete(rl.buckets, id)
	rl.mu.Unlock()
}

func (rl *IdentityRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
