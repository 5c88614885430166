package ratelimiting

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// RateLimiter answers whether the caller identified by key may proceed.
type RateLimiter interface {
	Consume(key string) bool
}

type tokenBucketRateLimiter struct {
	limiterByKey    *ttlcache.Cache[string, *rate.Limiter]
	refillPerSecond int
	burstSize       int
}

func (rl *tokenBucketRateLimiter) Consume(key string) bool {
	limiter, _ := rl.limiterByKey.GetOrSet(key, rate.NewLimiter(rate.Limit(rl.refillPerSecond), rl.burstSize))
	return limiter.Value().Allow()
}

type RefillPerSecond int
type BurstSize int

// NewTokenBucketRateLimiter keeps one token bucket per key. Buckets for idle
// keys are evicted after 30 minutes. The returned func stops the eviction
// goroutine.
func NewTokenBucketRateLimiter(refillPerSecond RefillPerSecond, burstSize BurstSize) (RateLimiter, func()) {
	buckets := ttlcache.New[string, *rate.Limiter](
		ttlcache.WithTTL[string, *rate.Limiter](30 * time.Minute),
	)
	go buckets.Start()

	return &tokenBucketRateLimiter{
		limiterByKey:    buckets,
		refillPerSecond: int(refillPerSecond),
		burstSize:       int(burstSize),
	}, buckets.Stop
}

// RequestRateLimiter rate limits HTTP requests by some per-request key.
type RequestRateLimiter interface {
	Consume(r *http.Request) bool
	KeyFor(r *http.Request) string
}

type requestBasedRateLimiter struct {
	limiter RateLimiter
	keyFunc func(r *http.Request) string
}

func (rl *requestBasedRateLimiter) Consume(r *http.Request) bool {
	return rl.limiter.Consume(rl.keyFunc(r))
}

func (rl *requestBasedRateLimiter) KeyFor(r *http.Request) string {
	return rl.keyFunc(r)
}

func NewRequestBasedRateLimiter(limiter RateLimiter, keyFunc func(r *http.Request) string) RequestRateLimiter {
	return &requestBasedRateLimiter{
		limiter: limiter,
		keyFunc: keyFunc,
	}
}

func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return fmt.Sprintf("ip: %s", host)
}
