package stream

import (
	"sync"
	"time"
)

// DefaultRateWindow is the number of arrival timestamps kept for rate
// estimation.
const DefaultRateWindow = 30

// RateMonitor derives instantaneous frame rate and per-frame latency from a
// bounded history of arrival timestamps. The window is a fixed-size FIFO;
// Tick is O(1).
type RateMonitor struct {
	mu    sync.Mutex
	times []time.Time
	head  int
	count int

	now func() time.Time
}

// NewRateMonitor creates a RateMonitor averaging over windowSize samples.
// Sizes less than 2 fall back to the default window.
func NewRateMonitor(windowSize int) *RateMonitor {
	if windowSize < 2 {
		windowSize = DefaultRateWindow
	}
	return &RateMonitor{
		times: make([]time.Time, windowSize),
		now:   time.Now,
	}
}

// Tick records a frame arrival, evicting the oldest timestamp once the
// window is full.
func (m *RateMonitor) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()

	tail := (m.head + m.count) % len(m.times)
	m.times[tail] = m.now()

	if m.count < len(m.times) {
		m.count++
	} else {
		m.head = (m.head + 1) % len(m.times)
	}
}

// Rate returns the frames per second averaged over the current window, or 0
// when fewer than two samples exist.
func (m *RateMonitor) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.count < 2 {
		return 0
	}

	oldest := m.times[m.head]
	newest := m.times[(m.head+m.count-1)%len(m.times)]

	span := newest.Sub(oldest).Seconds()
	if span == 0 {
		return 0
	}

	return float64(m.count-1) / span
}

// LatencyMs returns the average milliseconds per frame, or 0 when the rate
// is 0.
func (m *RateMonitor) LatencyMs() float64 {
	rate := m.Rate()
	if rate == 0 {
		return 0
	}
	return 1000.0 / rate
}
