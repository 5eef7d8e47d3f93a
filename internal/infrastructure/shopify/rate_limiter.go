package shopify

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// defaultBucketSize is assumed when a shop's budget has never been
	// observed or the cached observation has expired.
	defaultBucketSize = 40

	// observationTTL bounds how long an observed budget is trusted.
	// Shopify's leaky bucket refills at 2/s, so a 2s-old reading is stale.
	observationTTL = 2 * time.Second
)

type bucketState struct {
	remaining  int
	observedAt time.Time
}

// RateLimiter tracks the remaining Shopify API call budget per shop domain
// from the X-Shopify-Shop-Api-Call-Limit response header and pauses callers
// when the budget is exhausted. It is safe for concurrent use and never
// returns an error from Observe.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]bucketState
	logger  zerolog.Logger
}

// NewRateLimiter creates a rate limiter with no prior observations.
func NewRateLimiter(logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]bucketState),
		logger:  logger,
	}
}

// Acquire blocks until the shop has remaining budget or the cached
// observation expires, whichever comes first. It returns early with the
// context's error when the context is cancelled.
func (rl *RateLimiter) Acquire(ctx context.Context, shopDomain string) error {
	for {
		wait := rl.waitFor(shopDomain)
		if wait <= 0 {
			return nil
		}
		rl.logger.Debug().
			Str("shop", shopDomain).
			Dur("wait", wait).
			Msg("api call budget exhausted, pausing")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// waitFor returns how long the caller should pause before issuing a request,
// or zero when budget is available.
func (rl *RateLimiter) waitFor(shopDomain string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.buckets[shopDomain]
	if !ok {
		return 0
	}
	age := time.Since(state.observedAt)
	if age >= observationTTL {
		delete(rl.buckets, shopDomain)
		return 0
	}
	if state.remaining > 0 {
		return 0
	}
	return observationTTL - age
}

// Remaining reports the last observed remaining budget for a shop, or the
// default bucket size when nothing fresh has been observed.
func (rl *RateLimiter) Remaining(shopDomain string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.buckets[shopDomain]
	if !ok || time.Since(state.observedAt) >= observationTTL {
		return defaultBucketSize
	}
	return state.remaining
}

// Observe records the remaining budget for a shop from the call-limit header
// value, formatted "used/total" (e.g. "39/40"). Malformed values are ignored.
func (rl *RateLimiter) Observe(shopDomain, callLimitHeader string) {
	used, total, ok := parseCallLimit(callLimitHeader)
	if !ok {
		return
	}
	rl.mu.Lock()
	rl.buckets[shopDomain] = bucketState{
		remaining:  total - used,
		observedAt: time.Now(),
	}
	rl.mu.Unlock()
}

func parseCallLimit(header string) (used, total int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(header), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	used, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	total, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || total <= 0 {
		return 0, 0, false
	}
	return used, total, true
}
