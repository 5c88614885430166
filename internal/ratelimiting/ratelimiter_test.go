package ratelimiting

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenBucketRateLimiter(t *testing.T) {
	t.Parallel()

	t.Run("burst is consumed per key", func(t *testing.T) {
		t.Parallel()

		limiter, stop := NewTokenBucketRateLimiter(RefillPerSecond(0), BurstSize(2))
		defer stop()

		require.True(t, limiter.Consume("ip: 1.2.3.4"))
		require.True(t, limiter.Consume("ip: 1.2.3.4"))
		require.False(t, limiter.Consume("ip: 1.2.3.4"))

		// A different key has its own bucket.
		require.True(t, limiter.Consume("ip: 5.6.7.8"))
	})
}

func TestRequestBasedRateLimiter(t *testing.T) {
	t.Parallel()

	limiter, stop := NewTokenBucketRateLimiter(RefillPerSecond(0), BurstSize(1))
	defer stop()
	requestLimiter := NewRequestBasedRateLimiter(limiter, IPKeyFunc)

	req, err := http.NewRequest("GET", "http://example.com/v1/object?url=http://origin/a", nil)
	require.NoError(t, err)
	req.RemoteAddr = "10.0.0.1:43210"

	require.Equal(t, "ip: 10.0.0.1", requestLimiter.KeyFor(req))
	require.True(t, requestLimiter.Consume(req))
	require.False(t, requestLimiter.Consume(req))

	other, err := http.NewRequest("GET", "http://example.com/v1/object?url=http://origin/a", nil)
	require.NoError(t, err)
	other.RemoteAddr = "10.0.0.2:43210"
	require.True(t, requestLimiter.Consume(other))
}

func TestIPKeyFunc(t *testing.T) {
	t.Parallel()

	req := &http.Request{RemoteAddr: "192.0.2.7:9999"}
	require.Equal(t, "ip: 192.0.2.7", IPKeyFunc(req))

	req = &http.Request{RemoteAddr: "[2001:db8::1]:9999"}
	require.Equal(t, "ip: 2001:db8::1", IPKeyFunc(req))

	req = &http.Request{RemoteAddr: "no-port-here"}
	require.Equal(t, "ip: no-port-here", IPKeyFunc(req))
}
