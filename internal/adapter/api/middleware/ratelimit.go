package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter decides whether a request from identifier may proceed.
type Limiter interface {
	Allow(identifier string) bool
}

// NewInMemoryRateLimiter creates a limiter that keeps one token bucket per
// identifier with the given rate and burst size.
func NewInMemoryRateLimiter(r rate.Limit, b int) Limiter {
	return &inMemoryRateLimiter{
		rate:    r,
		burst:   b,
		clients: make(map[string]*rate.Limiter),
	}
}

type inMemoryRateLimiter struct {
	rate    rate.Limit
	burst   int
	clients map[string]*rate.Limiter
	mu      sync.Mutex
}

func (l *inMemoryRateLimiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.clients[identifier]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.clients[identifier] = limiter
	}

	return limiter.Allow()
}

// RateLimit rejects requests with 429 once the client IP exceeds l.
func RateLimit(l Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !l.Allow(ip) {
				logger.Warn("Rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				writeMessage(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
