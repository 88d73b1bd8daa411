// internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	urlutil "github.com/law-makers/catalog/internal/utils/url"
)

// RateLimiter paces page loads per host so repeated refreshes don't hammer
// the vendor's storefront.
type RateLimiter interface {
	// Wait blocks until a navigation to urlStr can proceed or ctx ends.
	Wait(ctx context.Context, urlStr string) error

	// Allow reports whether a navigation to urlStr could proceed right now.
	Allow(urlStr string) bool
}

// DomainLimiter keeps one token bucket per host
type DomainLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	perHost  rate.Limit // navigations per second per host
	burst    int
}

// NewDomainLimiter creates a limiter. A non-positive rate disables limiting.
func NewDomainLimiter(requestsPerSecond float64, burst int) *DomainLimiter {
	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}

	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		perHost:  limit,
		burst:    burst,
	}
}

// Wait blocks until a navigation to urlStr is allowed
func (dl *DomainLimiter) Wait(ctx context.Context, urlStr string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	host := urlutil.Host(urlStr)
	if host == "" {
		// unparseable URLs fail later at navigation
		return nil
	}

	return dl.getLimiter(host).Wait(ctx)
}

// Allow checks if a navigation can proceed immediately
func (dl *DomainLimiter) Allow(urlStr string) bool {
	host := urlutil.Host(urlStr)
	if host == "" {
		return true
	}

	return dl.getLimiter(host).Allow()
}

// Hosts returns how many hosts have a bucket
func (dl *DomainLimiter) Hosts() int {
	dl.mu.RLock()
	defer dl.mu.RUnlock()
	return len(dl.limiters)
}

func (dl *DomainLimiter) getLimiter(host string) *rate.Limiter {
	dl.mu.RLock()
	limiter, exists := dl.limiters[host]
	dl.mu.RUnlock()

	if exists {
		return limiter
	}

	dl.mu.Lock()
	defer dl.mu.Unlock()

	if limiter, exists := dl.limiters[host]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(dl.perHost, dl.burst)
	dl.limiters[host] = limiter

	return limiter
}
