// Package ratelimit はクライアントIPごとのリクエスト数制限。
package ratelimit

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"library-backend/internal/platform/apierr"
)

// 保持するIP数の上限。溢れたら古いものから捨てる。
const DefaultMaxClients = 10000

type Limiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

func New(rps float64, burst, maxClients int) (*Limiter, error) {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	cache, err := lru.New[string, *rate.Limiter](maxClients)
	if err != nil {
		return nil, err
	}
	return &Limiter{limiters: cache, rps: rate.Limit(rps), burst: burst}, nil
}

func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters.Add(key, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware は超過したリクエストを 429 で返す。
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierr.Body(apierr.CodeRateLimited, "too many requests"))
			return
		}
		c.Next()
	}
}
