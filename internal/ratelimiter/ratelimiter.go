package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var ErrDeadlineTooSoon = errors.New("host slot is after context deadline")

// RateLimiter spaces out requests to the same host. Requests to different hosts
// never wait on each other.
type RateLimiter struct {
	interval time.Duration
	nextSlot map[string]time.Time
	mu       sync.Mutex
	now      func() time.Time
	log      *slog.Logger
}

func New(interval time.Duration, log *slog.Logger) *RateLimiter {
	if interval < 0 {
		interval = defaultHostInterval
	}

	return &RateLimiter{
		interval: interval,
		nextSlot: make(map[string]time.Time),
		now:      time.Now,
		log:      log,
	}
}

// Wait blocks until a request to host may be sent or ctx is done. A slot that
// cannot be reached before the ctx deadline is not booked and Wait returns
// ErrDeadlineTooSoon at once. An abandoned wait gives its slot back.
func (rl *RateLimiter) Wait(ctx context.Context, host string) error {
	if rl == nil || rl.interval == 0 || host == "" {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline, hasDeadline := ctx.Deadline()

	slot, delay, ok := rl.reserve(host, deadline, hasDeadline)
	if !ok {
		return ErrDeadlineTooSoon
	}
	if delay <= 0 {
		return nil
	}

	rl.log.DebugContext(ctx, "Rate limiting request",
		"host", host,
		"delay", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		rl.release(host, slot)

		return ctx.Err()
	}
}

// reserve books the next free slot for host and returns it with the delay until
// it starts. Nothing is booked when the slot starts after deadline.
func (rl *RateLimiter) reserve(
	host string,
	deadline time.Time,
	hasDeadline bool,
) (time.Time, time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	slot := rl.nextSlot[host]
	if slot.Before(now) {
		slot = now
	}

	if hasDeadline && slot.After(deadline) {
		return time.Time{}, 0, false
	}

	rl.nextSlot[host] = slot.Add(rl.interval)

	return slot, slot.Sub(now), true
}

// release returns slot to host when no later slot was booked after it.
func (rl *RateLimiter) release(host string, slot time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rl.nextSlot[host].Equal(slot.Add(rl.interval)) {
		rl.nextSlot[host] = slot
	}
}
