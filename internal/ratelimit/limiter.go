package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrLimitExceeded = errors.New("rate limit exceeded")

// LimitError reports which limiter refused a request and when the origin may
// try again. It matches ErrLimitExceeded with errors.Is.
type LimitError struct {
	Limiter    string
	Limit      int
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s rate limit of %d exceeded, retry after %s", e.Limiter, e.Limit, e.RetryAfter.Round(time.Second))
}

func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per origin in fixed windows. State is in memory
// only and resets on restart.
type Limiter struct {
	name   string
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window
	timeNow func() time.Time
}

// New creates a limiter admitting limit requests per origin every period. A
// limit below one disables it.
func New(name string, limit int, period time.Duration) *Limiter {
	return &Limiter{
		name:    name,
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		timeNow: time.Now,
	}
}

func (l *Limiter) Name() string { return l.name }

func (l *Limiter) Limit() int { return l.limit }

func (l *Limiter) Period() time.Duration { return l.period }

// Allow counts one request from origin. Refused requests are not counted.
func (l *Limiter) Allow(origin string) Decision {
	if l.limit < 1 || l.period <= 0 {
		return Decision{Allowed: true, Limit: l.limit}
	}

	now := l.timeNow()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[origin]
	if !ok || !now.Before(w.start.Add(l.period)) {
		w = &window{start: now}
		l.windows[origin] = w
	}
	resetAt := w.start.Add(l.period)

	if w.count >= l.limit {
		return Decision{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: resetAt.Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - w.count,
		ResetAt:   resetAt,
	}
}

// Admit is Allow reduced to an error, for callers that only need a verdict.
func (l *Limiter) Admit(origin string) error {
	d := l.Allow(origin)
	if d.Allowed {
		return nil
	}
	slog.Warn("Rate limit exceeded", "limiter", l.name, "origin", origin, "retry_after", d.RetryAfter.Round(time.Second))
	return &LimitError{Limiter: l.name, Limit: d.Limit, RetryAfter: d.RetryAfter}
}

// StartCleanup drops expired windows every interval until ctx is done.
func (l *Limiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	now := l.timeNow()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for origin, w := range l.windows {
		if !now.Before(w.start.Add(l.period)) {
			delete(l.windows, origin)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Cleaned up rate limit windows", "limiter", l.name, "removed", removed, "tracked", len(l.windows))
	}
}

func (l *Limiter) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
