package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// Clock sleeps on the wall clock.
type Clock struct{}

// Sleep waits for d using a timer.
func (Clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MinInterval enforces a minimum time between successive Wait calls.
// The first call never waits.
type MinInterval struct {
	Interval time.Duration
	Sleeper  Sleeper
	Now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewMinInterval builds a wall-clock gate.
func NewMinInterval(interval time.Duration) *MinInterval {
	return &MinInterval{Interval: interval}
}

// Wait blocks until Interval has elapsed since the previous Wait returned.
func (m *MinInterval) Wait(ctx context.Context) error {
	now := m.now()
	if m.Interval > 0 {
		m.mu.Lock()
		var wait time.Duration
		if !m.last.IsZero() {
			wait = m.last.Add(m.Interval).Sub(now)
		}
		m.mu.Unlock()
		if wait > 0 {
			if err := m.sleeper().Sleep(ctx, wait); err != nil {
				return err
			}
			now = m.now()
		}
	}
	m.mu.Lock()
	m.last = now
	m.mu.Unlock()
	return nil
}

func (m *MinInterval) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *MinInterval) sleeper() Sleeper {
	if m.Sleeper != nil {
		return m.Sleeper
	}
	return Clock{}
}

// Recorder is a Sleeper that records requested waits without blocking.
type Recorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

// Sleep records d.
func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

// Waits returns a copy of the recorded durations.
func (r *Recorder) Waits() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.waits))
	copy(out, r.waits)
	return out
}
