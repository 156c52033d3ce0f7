// internal/pkg/clock/clock.go
package clock

import "time"

// Clock abstracts wall-clock reads so time-dependent logic (guard conditions,
// lock TTLs, "ending soon" offsets) can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by time.Now, always in UTC.
func System() Clock {
	return systemClock{}
}

// Fixed returns a Clock frozen at t (UTC). Intended for tests.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time {
	return f.T.UTC()
}

// Advance moves the fixed clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.T = f.T.Add(d)
}
