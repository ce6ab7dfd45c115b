package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/squad-scheduler/internal/application"
)

// Headers forwarded by the chat platform bridge.
const (
	HeaderParticipantID = "X-Participant-ID"
	HeaderGroupID       = "X-Group-ID"
	HeaderGroupAdmin    = "X-Group-Admin"
)

// RequireParticipant builds the principal from the bridge headers and rejects
// requests that do not name a participant.
func RequireParticipant(logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			participant := strings.TrimSpace(r.Header.Get(HeaderParticipantID))
			if participant == "" {
				responder.writeError(r.Context(), w, http.StatusUnauthorized, errMissingParticipant)
				return
			}

			isAdmin, _ := strconv.ParseBool(strings.TrimSpace(r.Header.Get(HeaderGroupAdmin)))
			principal := application.Principal{
				UserID:  participant,
				GroupID: strings.TrimSpace(r.Header.Get(HeaderGroupID)),
				IsAdmin: isAdmin,
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(recorder, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", recorder.status, "duration", time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// ParticipantRateLimiter hands out one token bucket per participant. Idle
// buckets are dropped after ttl.
type ParticipantRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
	pruned   time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewParticipantRateLimiter allows perMinute requests per participant with the
// given burst. A non-positive perMinute disables limiting.
func NewParticipantRateLimiter(perMinute, burst int, ttl time.Duration) *ParticipantRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60.0)
	}
	return &ParticipantRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow reports whether participant may issue another request now.
func (l *ParticipantRateLimiter) Allow(participant string) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}
	now := l.now()
	return l.limiterFor(participant, now).AllowN(now, 1)
}

func (l *ParticipantRateLimiter) limiterFor(participant string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.pruned) > l.ttl {
		for id, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.ttl {
				delete(l.visitors, id)
			}
		}
		l.pruned = now
	}

	if v, ok := l.visitors[participant]; ok {
		v.lastSeen = now
		return v.limiter
	}
	limiter := rate.NewLimiter(l.limit, l.burst)
	l.visitors[participant] = &visitor{limiter: limiter, lastSeen: now}
	return limiter
}

// RateLimitParticipant rejects requests from participants over their budget.
// It must run after RequireParticipant.
func RateLimitParticipant(limiter *ParticipantRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, _ := PrincipalFromContext(r.Context())
			if !limiter.Allow(principal.UserID) {
				w.Header().Set("Retry-After", "60")
				responder.writeJSON(r.Context(), w, http.StatusTooManyRequests, errorResponse{
					ErrorCode: "RATE_LIMITED",
					Message:   errRateLimited.Error(),
					Hint:      "wait a moment before clicking again",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
