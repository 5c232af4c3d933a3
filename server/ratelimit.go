package server

import (
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// IPRateLimiter enforces a per-IP token-bucket limit on new connections, so a
// single misbehaving or compromised client address cannot exhaust accept()
// capacity for everyone else. Limiters are cached per IP with a TTL so an
// address that stops connecting eventually stops costing memory. Grounded on
// the teacher's IPRateLimiter, repurposed here to gate raw TCP accepts
// instead of a specific auth handshake.
type IPRateLimiter struct {
	cache *cache.Cache
	rate  rate.Limit
	burst int
}

// NewIPRateLimiter builds a limiter allowing perMinute connections per
// minute per IP, with bursts up to burst. Idle entries expire after ttl.
func NewIPRateLimiter(perMinute float64, burst int, ttl time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		cache: cache.New(ttl, 2*ttl),
		rate:  rate.Limit(perMinute / 60),
		burst: burst,
	}
}

// Allow reports whether a new connection from ip should be accepted.
func (l *IPRateLimiter) Allow(ip string) bool {
	v, found := l.cache.Get(ip)
	if !found {
		limiter := rate.NewLimiter(l.rate, l.burst)
		l.cache.Set(ip, limiter, cache.DefaultExpiration)
		return limiter.Allow()
	}
	return v.(*rate.Limiter).Allow()
}
