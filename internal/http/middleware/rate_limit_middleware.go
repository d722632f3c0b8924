package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/http/response"
	"github.com/globetrotter/globetrotter-api/internal/observability"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
	ResetAt    time.Time
}

// RateLimitPolicy allows Limit hits per caller in any trailing Window.
type RateLimitPolicy struct {
	Limit  int
	Window time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, policy RateLimitPolicy) (Decision, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

const defaultRateLimitMessage = "Too many requests, please try again later"

type RateLimiter struct {
	limiter Limiter
	policy  RateLimitPolicy
	mode    FailureMode
	scope   string
	message string
	keyFunc func(r *http.Request) string
	now     func() time.Time
}

// NewRateLimiter is an in-process fail-closed limiter.
func NewRateLimiter(scope string, limit int, window time.Duration) *RateLimiter {
	return NewDistributedRateLimiter(NewLocalSlidingWindowLimiter(), scope, limit, window, FailClosed)
}

func NewDistributedRateLimiter(limiter Limiter, scope string, limit int, window time.Duration, mode FailureMode) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	if mode == "" {
		mode = FailClosed
	}
	return &RateLimiter{
		limiter: limiter,
		policy:  normalizePolicy(RateLimitPolicy{Limit: limit, Window: window}),
		mode:    mode,
		scope:   scope,
		message: defaultRateLimitMessage,
		keyFunc: clientIPKey,
		now:     time.Now,
	}
}

// WithMessage sets the error text returned on 429.
func (rl *RateLimiter) WithMessage(message string) *RateLimiter {
	if message != "" {
		rl.message = message
	}
	return rl
}

func (rl *RateLimiter) WithKeyFunc(keyFunc func(r *http.Request) string) *RateLimiter {
	if keyFunc != nil {
		rl.keyFunc = keyFunc
	}
	return rl
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.keyFunc(r)
			if key == "" {
				key = clientIPKey(r)
			}
			decision, err := rl.limiter.Allow(r.Context(), rl.scope+":"+key, rl.policy)
			if err != nil {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error", string(rl.mode))
				if rl.mode == FailOpen {
					slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"error", err,
					)
					next.ServeHTTP(w, r)
					return
				}
				slog.ErrorContext(r.Context(), "rate limiter backend unavailable, rejecting request",
					"scope", rl.scope,
					"error", err,
				)
				rl.reject(w, r, rl.policy.Window, rl.now().Add(rl.policy.Window))
				return
			}
			writeRateLimitHeaders(w.Header(), rl.policy.Limit, decision.Remaining, decision.ResetAt)
			if !decision.Allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "deny", string(rl.mode))
				rl.reject(w, r, decision.RetryAfter, decision.ResetAt)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allow", string(rl.mode))
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) reject(w http.ResponseWriter, r *http.Request, retryAfter time.Duration, resetAt time.Time) {
	if w.Header().Get("X-RateLimit-Limit") == "" {
		writeRateLimitHeaders(w.Header(), rl.policy.Limit, 0, resetAt)
	}
	w.Header().Set("Retry-After", retryAfterHeader(retryAfter))
	observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, retryAfter)
	response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", rl.message, nil)
}

// localSlidingWindowLimiter keeps a timestamp log per key.
type localSlidingWindowLimiter struct {
	mu      sync.Mutex
	store   map[string][]time.Time
	cleanup time.Time
	now     func() time.Time
}

func NewLocalSlidingWindowLimiter() Limiter {
	return newLocalSlidingWindowLimiter(time.Now)
}

func newLocalSlidingWindowLimiter(now func() time.Time) *localSlidingWindowLimiter {
	return &localSlidingWindowLimiter{
		store:   make(map[string][]time.Time),
		cleanup: now().Add(time.Minute),
		now:     now,
	}
}

func (l *localSlidingWindowLimiter) Allow(_ context.Context, key string, policy RateLimitPolicy) (Decision, error) {
	policy = normalizePolicy(policy)
	now := l.now()
	cutoff := now.Add(-policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, hits := range l.store {
			if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
				delete(l.store, k)
			}
		}
		l.cleanup = now.Add(policy.Window)
	}

	hits := l.store[key]
	pruned := hits[:0]
	for _, hit := range hits {
		if hit.After(cutoff) {
			pruned = append(pruned, hit)
		}
	}

	if len(pruned) >= policy.Limit {
		l.store[key] = pruned
		resetAt := pruned[0].Add(policy.Window)
		return Decision{
			Allowed:    false,
			RetryAfter: max(resetAt.Sub(now), time.Second),
			Remaining:  0,
			ResetAt:    resetAt,
		}, nil
	}

	pruned = append(pruned, now)
	l.store[key] = pruned
	return Decision{
		Allowed:   true,
		Remaining: policy.Limit - len(pruned),
		ResetAt:   pruned[0].Add(policy.Window),
	}, nil
}

func clientIPKey(r *http.Request) string {
	return security.ClientIP(r)
}

func retryAfterHeader(d time.Duration) string {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func writeRateLimitHeaders(h http.Header, limit int, remaining int, resetAt time.Time) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	if resetAt.IsZero() {
		resetAt = time.Now().Add(time.Second)
	}
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

func normalizePolicy(policy RateLimitPolicy) RateLimitPolicy {
	if policy.Limit <= 0 {
		policy.Limit = 1
	}
	if policy.Window <= 0 {
		policy.Window = time.Minute
	}
	return policy
}
