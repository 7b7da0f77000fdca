package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestGetDelay(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		interval time.Duration
		lastSent time.Time
		wantZero bool
	}{
		{
			"Interval elapsed - no delay needed",
			time.Second,
			now.Add(-2 * time.Second),
			true,
		},
		{
			"Interval not elapsed - delay needed",
			time.Second,
			now.Add(-500 * time.Millisecond),
			false,
		},
		{
			"Reserved slot in future - delay needed",
			time.Second,
			now.Add(time.Second),
			false,
		},
		{
			"Zero interval - no delay needed",
			0,
			now,
			true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := getDelay(test.interval, test.lastSent)

			if test.wantZero && got > 0 {
				t.Errorf("Expected zero delay, got %v", got)
			}

			if !test.wantZero && got <= 0 {
				t.Errorf("Expected positive delay, got %v", got)
			}
		})
	}
}

func TestWaitDisabled(t *testing.T) {
	var nilLimiter *Limiter
	if err := nilLimiter.Wait(context.Background(), "m"); err != nil {
		t.Fatalf("expected nil limiter to pass, got %v", err)
	}

	l := New(0, slog.Default())
	for range 3 {
		if err := l.Wait(context.Background(), "m"); err != nil {
			t.Fatalf("expected disabled limiter to pass, got %v", err)
		}
	}
}

func TestWaitSpacesRequestsPerKey(t *testing.T) {
	l := New(50*time.Millisecond, slog.Default())
	ctx := context.Background()

	start := time.Now()
	if err := l.Wait(ctx, "a"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := l.Wait(ctx, "b"); err != nil {
		t.Fatalf("other key wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 50*time.Millisecond {
		t.Fatalf("expected first requests per key to pass immediately, took %v", elapsed)
	}

	if err := l.Wait(ctx, "a"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected second request to be delayed, took %v", elapsed)
	}
}

func TestWaitHonoursContext(t *testing.T) {
	l := New(time.Hour, slog.Default())
	if err := l.Wait(context.Background(), "a"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
