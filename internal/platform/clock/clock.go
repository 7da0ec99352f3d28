// Package clock abstracts time so request timing can be tested
// deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	// Now returns the current time. Successive calls must not go backwards.
	Now() time.Time
}

// System is a Clock backed by time.Now, which carries a monotonic reading.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Mock is a manually driven Clock. It is safe for concurrent use.
type Mock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewMock returns a Mock at t. A zero t starts at a fixed instant away from
// the zero time.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &Mock{current: t}
}

// Now returns the current mock time, then advances it by the auto-step.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.current
	m.current = m.current.Add(m.step)
	return now
}

// Advance moves the clock forward by d. Panics if d is negative.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock.Mock.Advance: duration must be non-negative")
	}
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}

// SetStep makes every Now call advance the clock by d afterwards.
func (m *Mock) SetStep(d time.Duration) {
	if d < 0 {
		panic("clock.Mock.SetStep: step must be non-negative")
	}
	m.mu.Lock()
	m.step = d
	m.mu.Unlock()
}
