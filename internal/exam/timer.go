package exam

import (
	"context"
	"sync"
	"time"
)

// CountdownTimer is the exam countdown, decoupled from wall-clock scheduling
// so it can be unit-tested by calling Tick directly. In production Run drives
// Tick from a one-second ticker.
//
// The timer never submits on its own: it fires the expire callback exactly
// once when the count reaches zero, and the owner decides what expiry means
// (auto-submit when the test enables it, otherwise the timer simply stops
// while input stays open).
type CountdownTimer struct {
	mu        sync.Mutex
	remaining int
	running   bool
	expired   bool
	cancelled bool

	onTick   func(remaining int)
	onExpire func()
}

// NewCountdownTimer creates a timer holding the given number of seconds.
// Callbacks may be nil.
func NewCountdownTimer(seconds int, onTick func(remaining int), onExpire func()) *CountdownTimer {
	if seconds < 0 {
		seconds = 0
	}
	return &CountdownTimer{
		remaining: seconds,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Start resumes counting. No-op once expired or cancelled.
func (t *CountdownTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.expired || t.cancelled {
		return
	}
	t.running = true
}

// Pause stops counting without discarding remaining time.
func (t *CountdownTimer) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// Cancel permanently stops the timer. Used on teardown so no tick can fire
// after the exam view is gone.
func (t *CountdownTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	t.running = false
}

// Remaining returns the seconds left.
func (t *CountdownTimer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Expired reports whether the countdown has reached zero.
func (t *CountdownTimer) Expired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expired
}

// Tick advances the countdown by one second. Fires the tick callback with
// the new remaining value, and the expire callback exactly once when the
// count first reaches zero. Safe to call from any goroutine; callbacks run
// outside the lock.
func (t *CountdownTimer) Tick() {
	t.mu.Lock()
	if !t.running || t.expired || t.cancelled {
		t.mu.Unlock()
		return
	}

	t.remaining--
	if t.remaining < 0 {
		t.remaining = 0
	}

	fireTick := t.onTick
	remaining := t.remaining

	var fireExpire func()
	if t.remaining == 0 {
		t.expired = true
		t.running = false
		fireExpire = t.onExpire
	}
	t.mu.Unlock()

	if fireTick != nil {
		fireTick(remaining)
	}
	if fireExpire != nil {
		fireExpire()
	}
}

// Run drives the timer from a real one-second ticker until the context is
// done, the timer expires, or Cancel is called. Call in a goroutine.
func (t *CountdownTimer) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Cancel()
			return
		case <-ticker.C:
			t.Tick()

			t.mu.Lock()
			stop := t.expired || t.cancelled
			t.mu.Unlock()
			if stop {
				return
			}
		}
	}
}
