package ratelimiter

import (
	"sync"
	"time"

	"github.com/xsukax/securechat/common"
	"golang.org/x/time/rate"
)

var rateLimiters = common.NewGoCache(10*time.Minute, 5*time.Minute)
var lock sync.Mutex

// GetLimiter returns the token-bucket limiter for key, creating it if needed.
// Limiters for idle keys expire from the cache.
func GetLimiter(key string, limit float64, burst int) *rate.Limiter {
	lock.Lock()
	defer lock.Unlock()

	if limiter, ok := rateLimiters.Get(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(rate.Limit(limit), burst)
	rateLimiters.Set(key, limiter)

	return limiter
}
