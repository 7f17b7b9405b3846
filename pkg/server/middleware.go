//
//  Copyright © Manetu Inc. All rights reserved.
//

package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/manetu/ocpihub/pkg/common"
	"golang.org/x/time/rate"
)

// requestIDs echoes X-Request-ID and X-Correlation-ID, generating whichever
// the caller did not send.  The correlation id defaults to the request id.
func requestIDs(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		correlation := r.Header.Get(HeaderCorrelationID)
		if correlation == "" {
			correlation = id
		}

		h := c.Response().Header()
		h.Set(HeaderRequestID, id)
		h.Set(HeaderCorrelationID, correlation)
		return next(c)
	}
}

// idleTTL is how long an unused bucket is kept.
const idleTTL = 5 * time.Minute

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiter is a token bucket per caller.
type limiter struct {
	mu      sync.Mutex
	rps     rate.Limit
	burst   int
	buckets map[string]*bucket
	swept   time.Time
}

// newLimiter returns nil when rps disables rate limiting.
func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &limiter{rps: rate.Limit(rps), burst: burst, buckets: make(map[string]*bucket)}
}

func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) > idleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > idleTTL {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.rps, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// rateLimit keys buckets by the presented credential, or by client address
// for anonymous callers.
func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.limiter == nil {
			return next(c)
		}

		key := "ip:" + c.RealIP()
		if cred := credential(c.Request()); cred != "" {
			key = "token:" + cred
		}
		if !s.limiter.allow(key, time.Now()) {
			logger.Debugf(agent, "rateLimit", "rate limit exceeded for %s", c.RealIP())
			return s.reject(c, http.StatusTooManyRequests, common.StatusClientError, "rate limit exceeded")
		}
		return next(c)
	}
}
