package clock

import "time"

// FakeClock pins Now to a fixed instant so bucket boundaries, overdue-day
// math and cache TTLs are deterministic in tests. Times are normalized to
// UTC, matching how the engines derive civil dates.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{now: t.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward, e.g. past a snapshot cache TTL.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}
