package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

type limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	per     time.Duration
}

func (l *limiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		// Opportunistically drop stale windows to bound memory.
		if len(l.windows) > 4096 {
			for k, win := range l.windows {
				if now.After(win.resetAt) {
					delete(l.windows, k)
				}
			}
		}
		w = &window{resetAt: now.Add(l.per)}
		l.windows[key] = w
	}
	if w.count >= l.limit {
		return false
	}
	w.count++
	return true
}

// RateLimit caps requests per client IP in fixed windows. Batch runs
// are expensive upstream, so the cap applies before any work starts.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := &limiter{windows: make(map[string]*window), limit: limit, per: per}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r), time.Now()) {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		for _, part := range strings.Split(xf, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}
