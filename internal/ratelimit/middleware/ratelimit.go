// Package middleware throttles submissions per client address.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"eventreg/internal/ratelimit/models"
	"eventreg/internal/ratelimit/store/bucket"
	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/platform/httputil"
	"eventreg/pkg/platform/middleware/metadata"
	"eventreg/pkg/requestcontext"
)

const (
	defaultWindow           = time.Minute
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 3
)

// BucketStore admits or rejects one request for a key.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Middleware limits requests per client IP over a sliding window.
//
// After failureThreshold consecutive primary store errors it runs degraded on
// the in-memory fallback until successThreshold consecutive primary
// successes. Below the threshold a store error lets the request through.
type Middleware struct {
	store    BucketStore
	fallback BucketStore
	proxies  metadata.Proxies
	logger   *slog.Logger
	limit    int
	window   time.Duration
	disabled bool

	mu               sync.Mutex
	degraded         bool
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
}

type Option func(*Middleware)

// WithWindow sets the sliding window length.
func WithWindow(d time.Duration) Option {
	return func(m *Middleware) {
		if d > 0 {
			m.window = d
		}
	}
}

// WithDisabled turns the limiter into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the store used while the primary store is failing.
func WithFallback(store BucketStore) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

// WithTrustedProxies lets requests arriving through these proxies be keyed
// on their forwarded client address. Everyone else is keyed on the peer.
func WithTrustedProxies(p metadata.Proxies) Option {
	return func(m *Middleware) {
		m.proxies = p
	}
}

// New builds a limiter admitting limit requests per window. A limit of zero
// or less disables it.
func New(store BucketStore, limit int, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		fallback: bucket.New(),
		logger:   logger,
		limit:    limit,
		window:   defaultWindow,
		disabled: limit <= 0,

		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit returns middleware that throttles requests in scope per client IP.
func (m *Middleware) RateLimit(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := m.proxies.ClientIP(r)
			result, degraded, err := m.check(ctx, models.NewIPKey(scope, ip))
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if degraded {
				w.Header().Set("X-RateLimit-Status", "degraded")
			}
			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"scope", scope,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// check consults the primary store and answers from the fallback while
// degraded.
func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	wasDegraded := m.isDegraded()
	result, err := m.store.Allow(ctx, key, m.limit, m.window)
	degraded := m.observe(err)

	switch {
	case !degraded && err == nil:
		if wasDegraded {
			m.logger.InfoContext(ctx, "rate limit store recovered")
		}
		return result, false, nil
	case !degraded:
		return nil, false, err
	}

	if !wasDegraded {
		m.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback", "error", err)
	}
	fb, fbErr := m.fallback.Allow(ctx, key, m.limit, m.window)
	return fb, true, fbErr
}

func (m *Middleware) isDegraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// observe records one primary store outcome and reports whether the limiter
// is degraded afterwards.
func (m *Middleware) observe(err error) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.successes = 0
		m.failures++
		if m.failures >= m.failureThreshold {
			m.degraded = true
		}
		return m.degraded
	}

	m.failures = 0
	if m.degraded {
		m.successes++
		if m.successes >= m.successThreshold {
			m.degraded = false
			m.successes = 0
		}
	}
	return m.degraded
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(max(result.RetryAfter, 1)))
	httputil.WriteError(w, dErrors.New(dErrors.CodeTooManyRequests, "too many requests"))
}
