package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiters hands out one token bucket per client IP.
type Limiters struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiters creates a per-IP limiter set allowing rps requests per second
// with the given burst.
func NewLimiters(rps float64, burst int) *Limiters {
	return &Limiters{limit: rate.Limit(rps), burst: burst, buckets: make(map[string]*bucket)}
}

func (l *Limiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.lim
}

// Prune drops buckets idle since before cutoff and returns how many remain.
func (l *Limiters) Prune(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, ip)
		}
	}
	return len(l.buckets)
}

// RateLimit rejects requests over the caller's budget with 429 and a
// Retry-After hint.
func RateLimit(l *Limiters) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		r := l.get(c.ClientIP(), now).ReserveN(now, 1)
		if !r.OK() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		if d := r.DelayFrom(now); d > 0 {
			r.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
