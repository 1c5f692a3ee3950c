package app

import (
	"sync"

	"github.com/mtodor/verdant/internal/detect"
	"gocv.io/x/gocv"
)

// Result is the per-cycle tuple forwarded to the presentation layer.
// The frame is borrowed for the duration of the Publish call only; sinks
// must not retain it. Detections are immutable once published.
type Result struct {
	Frame      *gocv.Mat
	Detections []detect.Detection
	Rate       float64
	LatencyMs  float64
}

// Sink consumes per-frame results. Implementations decide how the result is
// displayed: a web dashboard, a file writer, or nothing at all.
type Sink interface {
	Publish(Result)
}

// CollectSink records published results for testing.
type CollectSink struct {
	mu      sync.Mutex
	results []Result
	onEach  func(n int)
}

// NewCollectSink creates a CollectSink. The optional callback fires after
// each publish with the running result count.
func NewCollectSink(onEach func(n int)) *CollectSink {
	return &CollectSink{onEach: onEach}
}

// Publish records the detections and metrics. The borrowed frame is not
// retained.
func (s *CollectSink) Publish(r Result) {
	s.mu.Lock()
	r.Frame = nil
	s.results = append(s.results, r)
	n := len(s.results)
	cb := s.onEach
	s.mu.Unlock()

	if cb != nil {
		cb(n)
	}
}

// Results returns a snapshot of everything published so far.
func (s *CollectSink) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.results))
	copy(out, s.results)
	return out
}
