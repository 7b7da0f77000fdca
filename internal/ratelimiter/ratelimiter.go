package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Limiter spaces requests that share a key (a model name) by a minimum
// interval. A nil Limiter or a non-positive interval never waits.
type Limiter struct {
	interval time.Duration
	lastSent map[string]time.Time
	mu       sync.Mutex
	log      *slog.Logger
}

func New(interval time.Duration, log *slog.Logger) *Limiter {
	return &Limiter{
		interval: interval,
		lastSent: make(map[string]time.Time),
		log:      log,
	}
}

// Wait blocks until a request for key may be sent. The slot is reserved
// before sleeping, so concurrent callers queue up behind each other.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil || l.interval <= 0 {
		return nil
	}

	l.mu.Lock()
	var delay time.Duration
	if lastSent, exists := l.lastSent[key]; exists {
		delay = getDelay(l.interval, lastSent)
	}
	l.lastSent[key] = time.Now().Add(delay)
	l.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	l.log.DebugContext(ctx, "Rate limiting request",
		"key", key,
		"delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func getDelay(
	interval time.Duration,
	lastSent time.Time,
) time.Duration {
	elapsed := time.Since(lastSent)

	return max(interval-elapsed, 0)
}
