// Package ratelimit throttles expensive API triggers per client IP.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerWindow = 10
	DefaultWindow            = time.Minute
)

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter is a token bucket per IP: a full bucket holds limit requests and
// refills over one window.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*entry
	rate     rate.Limit
	burst    int
	window   time.Duration
	now      func() time.Time
}

// New creates a Limiter. Non-positive values fall back to the defaults.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = DefaultRequestsPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		limiters: make(map[string]*entry),
		rate:     rate.Every(window / time.Duration(limit)),
		burst:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Middleware rejects requests over the limit with 429.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}

// Allow records a request from ip and reports whether it is within the
// limit.
func (l *Limiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.limiters[ip]
	if !ok {
		l.prune(now)
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = e
	}
	e.lastAccess = now
	return e.limiter.AllowN(now, 1)
}

// prune drops limiters idle for longer than a window; they would be full
// again anyway.
func (l *Limiter) prune(now time.Time) {
	for ip, e := range l.limiters {
		if now.Sub(e.lastAccess) > l.window {
			delete(l.limiters, ip)
		}
	}
}
