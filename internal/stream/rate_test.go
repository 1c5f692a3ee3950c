package stream

import (
	"math"
	"testing"
	"time"
)

// fakeClock steps a RateMonitor's clock by a fixed interval per tick.
type fakeClock struct {
	now  time.Time
	step time.Duration
}

func (c *fakeClock) next() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func TestRateMonitor_Rate(t *testing.T) {
	t.Run("zero before two samples", func(t *testing.T) {
		m := NewRateMonitor(30)

		if got := m.Rate(); got != 0 {
			t.Errorf("Rate() with no ticks = %f, want 0", got)
		}

		m.Tick()
		if got := m.Rate(); got != 0 {
			t.Errorf("Rate() after one tick = %f, want 0", got)
		}
	})

	t.Run("ticks every 100ms give roughly 10 fps", func(t *testing.T) {
		m := NewRateMonitor(30)
		clock := &fakeClock{now: time.Unix(1700000000, 0), step: 100 * time.Millisecond}
		m.now = clock.next

		for i := 0; i < 30; i++ {
			m.Tick()
		}

		if got := m.Rate(); math.Abs(got-10.0) > 0.5 {
			t.Errorf("Rate() = %f, want 10.0 +/- 0.5", got)
		}
	})

	t.Run("window evicts the oldest samples", func(t *testing.T) {
		m := NewRateMonitor(5)
		clock := &fakeClock{now: time.Unix(1700000000, 0), step: time.Second}
		m.now = clock.next

		// Slow start, then ten times faster. With a window of 5, only the
		// fast samples should remain.
		for i := 0; i < 5; i++ {
			m.Tick()
		}
		clock.step = 100 * time.Millisecond
		for i := 0; i < 5; i++ {
			m.Tick()
		}

		if got := m.Rate(); math.Abs(got-10.0) > 0.5 {
			t.Errorf("Rate() after eviction = %f, want 10.0 +/- 0.5", got)
		}
	})

	t.Run("identical timestamps do not divide by zero", func(t *testing.T) {
		m := NewRateMonitor(5)
		fixed := time.Unix(1700000000, 0)
		m.now = func() time.Time { return fixed }

		m.Tick()
		m.Tick()

		if got := m.Rate(); got != 0 {
			t.Errorf("Rate() with zero span = %f, want 0", got)
		}
	})
}

func TestRateMonitor_LatencyMs(t *testing.T) {
	t.Run("zero when rate is zero", func(t *testing.T) {
		m := NewRateMonitor(30)
		if got := m.LatencyMs(); got != 0 {
			t.Errorf("LatencyMs() = %f, want 0", got)
		}
	})

	t.Run("inverse of the frame rate", func(t *testing.T) {
		m := NewRateMonitor(30)
		clock := &fakeClock{now: time.Unix(1700000000, 0), step: 100 * time.Millisecond}
		m.now = clock.next

		for i := 0; i < 10; i++ {
			m.Tick()
		}

		if got := m.LatencyMs(); math.Abs(got-100.0) > 5.0 {
			t.Errorf("LatencyMs() = %f, want 100 +/- 5", got)
		}
	})
}
