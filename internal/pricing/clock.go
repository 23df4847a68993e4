package pricing

import "time"

// Clock abstracts wall-clock time so recency weighting is deterministic in
// tests.
type Clock interface {
	Now() time.Time
}

// RealClock is backed by the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
