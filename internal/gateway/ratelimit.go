package gateway

import (
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterTTL is how long per-IP limiters live before the table is reset.
const limiterTTL = 5 * time.Minute

// ipLimiter hands out one token bucket per client IP.
type ipLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	byIP    map[string]*rate.Limiter
	resetAt time.Time
	now     func() time.Time
}

func newIPLimiter(perSec float64, burst int) *ipLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limit: rate.Limit(perSec),
		burst: burst,
		byIP:  make(map[string]*rate.Limiter),
		now:   time.Now,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	now := l.now()
	if now.After(l.resetAt) {
		l.byIP = make(map[string]*rate.Limiter)
		l.resetAt = now.Add(limiterTTL)
	}
	lim, ok := l.byIP[ip]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.byIP[ip] = lim
	}
	l.mu.Unlock()
	return lim.AllowN(now, 1)
}

// wrap rejects requests over the per-IP rate with 429.
func (l *ipLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	if l == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.allow(ip) {
			log.Printf("[gateway] rate limit exceeded for %s", ip)
			SetCORS(w)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
