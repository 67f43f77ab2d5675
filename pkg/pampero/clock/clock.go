// Package clock abstracts wall time so tests can drive the pipeline with
// a controllable clock.
package clock

import "time"

// Clock is the time source the pipeline reads.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock reads the system clock; Now reports UTC.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually driven clock for tests. Not safe for concurrent
// mutation.
type MockClock struct {
	now time.Time
}

// NewMockClock pins the clock at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (m *MockClock) Now() time.Time {
	return m.now
}

func (m *MockClock) Since(t time.Time) time.Duration {
	return m.now.Sub(t)
}

// Set jumps the clock to t.
func (m *MockClock) Set(t time.Time) {
	m.now = t
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}
