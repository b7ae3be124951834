// Package timeutil provides a testable abstraction over time operations.
package timeutil

import (
	"sync"
	"time"
)

// Clock is the time surface the daemon depends on: stamping records,
// deriving ages from birthdates, and waiting between cycles. Production
// code uses RealClock; tests drive a MockClock by hand.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// After returns a channel that delivers the clock's time once the
	// duration has elapsed.
	After(d time.Duration) <-chan time.Time
}

// RealClock implements Clock with the standard time package.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) Since(t time.Time) time.Duration        { return time.Since(t) }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// MockClock is a manually advanced Clock for tests. After-channels fire
// when Advance or Set moves the clock past their deadline.
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []waiter
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewMockClock returns a MockClock starting at the given instant.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now returns the mock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Since returns the duration between the mock's current time and t.
func (m *MockClock) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// After registers a waiter that fires once the clock reaches now+d.
// A zero or negative duration fires immediately.
func (m *MockClock) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := m.now.Add(d)
	if !deadline.After(m.now) {
		ch <- m.now
		return ch
	}
	m.waiters = append(m.waiters, waiter{deadline: deadline, ch: ch})
	return ch
}

// Advance moves the clock forward by d, firing any waiters whose deadline
// has been reached.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(m.now.Add(d))
}

// Set jumps the clock to the given instant. Moving backwards does not
// un-fire waiters.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(t)
}

// Waiters reports how many After-channels are still pending. Tests use it
// to synchronize with code that is about to block on the clock.
func (m *MockClock) Waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

func (m *MockClock) setLocked(t time.Time) {
	m.now = t

	remaining := m.waiters[:0]
	for _, w := range m.waiters {
		if !w.deadline.After(t) {
			w.ch <- t
		} else {
			remaining = append(remaining, w)
		}
	}
	m.waiters = remaining
}
