package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

// clientLimiter tracks a per-client rate limiter and when it was last seen.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-client token bucket on the JSON API.
type rateLimiter struct {
	rps   float64
	burst int

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &rateLimiter{rps: rps, burst: burst, clients: make(map[string]*clientLimiter)}
}

func (rl *rateLimiter) get(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if cl, ok := rl.clients[ip]; ok {
		cl.lastSeen = now
		return cl.limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
	rl.clients[ip] = &clientLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

// sweep drops clients idle for longer than ttl.
func (rl *rateLimiter) sweep(now time.Time, ttl time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > ttl {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// Run removes stale clients until ctx is done.
func (rl *rateLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			rl.sweep(now, limiterIdleTTL)
		}
	}
}

// Middleware rejects requests over the limit with 429 and sets the
// X-RateLimit headers on accepted ones. A non-positive rate disables limiting.
func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	if rl.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := rl.get(clientIP(r), time.Now())

		reservation := limiter.Reserve()
		if !reservation.OK() {
			writeTooManyRequests(w, 0)
			return
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			writeTooManyRequests(w, int(delay.Seconds())+1)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}

// clientIP uses RemoteAddr only; forwarded headers are spoofable.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
