// Package ratelimit implements fixed-window abuse counters keyed by hashed
// client identity.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Counter is the persisted state of one window. ResetAt is unix milliseconds.
type Counter struct {
	Count   int   `json:"count"`
	ResetAt int64 `json:"resetAt"`
}

// Store applies one fixed-window step to key atomically and returns the
// post-increment counter. Implementations expire the key after window.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Counter, error)
}

// NextWindow is the fixed-window step shared by all stores: start a fresh
// window when none exists or the current one has elapsed, then count the hit.
func NextWindow(current Counter, found bool, now time.Time, window time.Duration) Counter {
	nowMs := now.UnixMilli()
	if !found || nowMs >= current.ResetAt {
		current = Counter{Count: 0, ResetAt: nowMs + window.Milliseconds()}
	}
	current.Count++
	return current
}

type Result struct {
	Allowed bool
	// RetryAfter is the number of seconds until the window resets; zero when allowed.
	RetryAfter int
}

type Policy struct {
	Scope  string
	Limit  int
	Window time.Duration
}

// Key is the store key for a hashed identity under this policy.
func (p Policy) Key(hashedIdentity string) string {
	return "rl:" + p.Scope + ":" + hashedIdentity
}

type Limiter struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func NewLimiter(store Store, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{store: store, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndConsume counts one hit against key. When the store is unavailable
// the request is allowed and the failure is logged.
func (l *Limiter) CheckAndConsume(ctx context.Context, key string, limit int, window time.Duration) Result {
	now := l.now()
	counter, err := l.store.Increment(ctx, key, window, now)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limit store unavailable, allowing request", "key", key, "error", err)
		return Result{Allowed: true}
	}
	if counter.Count <= limit {
		return Result{Allowed: true}
	}

	remainingMs := counter.ResetAt - now.UnixMilli()
	retryAfter := int((remainingMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return Result{Allowed: false, RetryAfter: retryAfter}
}

// Allow applies policy p to an already hashed identity.
func (l *Limiter) Allow(ctx context.Context, p Policy, hashedIdentity string) Result {
	return l.CheckAndConsume(ctx, p.Key(hashedIdentity), p.Limit, p.Window)
}
