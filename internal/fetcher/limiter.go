package fetcher

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostRateLimiter paces requests per host.
type HostRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewHostRateLimiter allows rps requests per second to each host.
// rps <= 0 disables limiting.
func NewHostRateLimiter(rps float64) *HostRateLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &HostRateLimiter{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (h *HostRateLimiter) Wait(ctx context.Context, host string) error {
	if h == nil || h.limit == rate.Inf {
		return nil
	}
	return h.limiter(strings.ToLower(host)).Wait(ctx)
}

func (h *HostRateLimiter) limiter(host string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[host]
	if !ok {
		l = rate.NewLimiter(h.limit, h.burst)
		h.limiters[host] = l
	}
	return l
}
