package ratelimit

import (
	"permflow/bizerror"
	"permflow/session"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const DefaultRatePerMinute = 30

// Limiter keeps one token bucket per key, idle buckets are evicted
type Limiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters *cache.Cache
}

func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultRatePerMinute
	}
	return &Limiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		limiters: cache.New(10*time.Minute, time.Minute),
	}
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	var limiter *rate.Limiter
	if v, found := l.limiters.Get(key); found {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(l.limit, l.burst)
	}
	l.limiters.SetDefault(key, limiter)
	l.mu.Unlock()
	return limiter.Allow()
}

// PerUser limits requests of the authenticated user
func (l *Limiter) PerUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		sec := session.ExtractSessionFromGinContext(c)
		if !l.Allow(sec.Identity.ID.String()) {
			panic(bizerror.ErrTooManyRequests)
		}
		c.Next()
	}
}
