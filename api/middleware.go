package api

import (
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/grade-engine/generic"
)

// =============================================================================
// ADMIN GATE
// =============================================================================

// AdminGate decides whether a request may use the admin routes.
type AdminGate func(r *http.Request) bool

// APIKeyGate admits requests whose header carries key. An empty key admits
// nobody.
func APIKeyGate(header, key string) AdminGate {
	return func(r *http.Request) bool {
		if key == "" {
			return false
		}
		got := r.Header.Get(header)
		return subtle.ConstantTimeCompare([]byte(got), []byte(key)) == 1
	}
}

// RequireAdmin rejects requests the gate refuses.
func RequireAdmin(gate AdminGate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate == nil || !gate(r) {
				writeCodedError(w, http.StatusUnauthorized, "unauthorized", "Admin access required", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// =============================================================================
// RATE LIMIT - Sliding window per client IP
// =============================================================================

// RateLimiter allows limit requests per window per key.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	calls  int
	window time.Duration
	limit  int
	clock  generic.Clock
}

func NewRateLimiter(window time.Duration, limit int, clock generic.Clock) *RateLimiter {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &RateLimiter{hits: make(map[string][]time.Time), window: window, limit: limit, clock: clock}
}

// Allow records a hit for key and reports whether it is within the limit.
// Refused hits are not recorded.
func (l *RateLimiter) Allow(key string) bool {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.calls++; l.calls%sweepEvery == 0 {
		l.sweep(now)
	}
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if now.Sub(t) <= l.window {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.limit {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// sweepEvery is how many Allow calls pass between sweeps of idle keys.
const sweepEvery = 1024

// Sweep drops keys with no hit inside the window.
func (l *RateLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(l.clock.Now())
}

func (l *RateLimiter) sweep(now time.Time) {
	for k, ts := range l.hits {
		if len(ts) == 0 || now.Sub(ts[len(ts)-1]) > l.window {
			delete(l.hits, k)
		}
	}
}

// Middleware limits by the request's remote IP.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			writeCodedError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, try again later", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the host part of RemoteAddr. Run behind middleware.RealIP to
// honour proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// =============================================================================
// REQUEST LOGGING
// =============================================================================

// RequestLogger logs method, path, status, duration and request id.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			// Skip noisy probes unless they fail.
			if (r.URL.Path == "/health" || r.URL.Path == "/metrics") && status < http.StatusInternalServerError {
				return
			}
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
