package routes

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mediaforge/metrics"
)

const maxTrackedClients = 10000

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client address. Buckets idle long
// enough to have refilled are dropped when the table is full; if every
// tracked client is still active, new clients are refused until one idles.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	rps      rate.Limit
	burst    int
	idle     time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewIPRateLimiter allows rps requests per second per client with the given
// burst. A non-positive rps disables limiting.
func NewIPRateLimiter(rps float64, burst int, m *metrics.Metrics) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	idle := time.Minute
	if rps > 0 {
		// a bucket idle this long is full again, same as a fresh one
		if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &IPRateLimiter{
		limiters: make(map[string]*clientLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     idle,
		metrics:  m,
		now:      time.Now,
	}
}

// Allow reports whether client may make a request now.
func (l *IPRateLimiter) Allow(client string) bool {
	if l.rps <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[client]
	if !ok {
		if len(l.limiters) >= maxTrackedClients {
			l.evictIdle(now)
			if len(l.limiters) >= maxTrackedClients {
				return false
			}
		}
		entry = &clientLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[client] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// evictIdle drops clients not seen within the idle window. Callers hold mu.
func (l *IPRateLimiter) evictIdle(now time.Time) {
	for client, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.idle {
			delete(l.limiters, client)
		}
	}
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			l.metrics.IncrementRateLimitHit()
			w.Header().Set("Retry-After", "1")
			respondJSON(w, http.StatusTooManyRequests, errorBody{
				Detail: "Too many requests. Please slow down.",
				Kind:   "rate_limited",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port; RealIP has already resolved proxies.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
