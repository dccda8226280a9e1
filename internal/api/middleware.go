package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/huangsam/busfactor/internal/logger"
	"github.com/huangsam/busfactor/internal/metrics"
	"golang.org/x/time/rate"
)

// CORS returns a CORS middleware for browser dashboards polling the API.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", "X-Requested-With"},
		ExposeHeaders:   []string{"Content-Length", "Location"},
		MaxAge:          12 * time.Hour,
	})
}

// RequestLogger logs every request and counts it when a collector is given.
func RequestLogger(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		if collector != nil {
			collector.RequestServed(c.Request.Method, route, status)
		}

		evt := logger.Debug()
		if status >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// ipLimiter holds a rate limiter and last-seen time per IP.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds the state for IP-based rate limiting.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	rps       rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

// staleAfter is how long an idle IP keeps its limiter.
const staleAfter = 5 * time.Minute

// NewRateLimiter creates a new RateLimiter.
// rps is the allowed requests per second; burst is the max burst size.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters:  make(map[string]*ipLimiter),
		rps:       rate.Limit(rps),
		burst:     max(burst, 1),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (rl *RateLimiter) getLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > staleAfter {
		for k, v := range rl.limiters {
			if now.Sub(v.lastSeen) > staleAfter {
				delete(rl.limiters, k)
			}
		}
		rl.lastSweep = now
	}

	v, exists := rl.limiters[ip]
	if !exists {
		v = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Middleware returns a Gin middleware that enforces IP-based rate limiting.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getLimiter(c.ClientIP()).Allow() {
			abortWith(c, http.StatusTooManyRequests, "too many requests, please try again later")
			return
		}
		c.Next()
	}
}
