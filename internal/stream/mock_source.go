package stream

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource replays a scripted sequence of read outcomes for testing.
// A nil entry in the script yields a read failure; a non-nil entry yields a
// clone of that frame. When the script is exhausted the source either loops
// or keeps failing.
type MockSource struct {
	mu       sync.Mutex
	script   []*gocv.Mat
	index    int
	loop     bool
	open     bool
	failOpen bool

	opens  int
	closes int
}

// NewMockSource creates a MockSource over the given outcome script.
func NewMockSource(script []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{script: script, loop: loop}
}

// FailOpen makes subsequent Open calls fail when set.
func (s *MockSource) FailOpen(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOpen = fail
}

// Opens returns how many times Open succeeded.
func (s *MockSource) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// Closes returns how many times Close was called.
func (s *MockSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failOpen {
		return fmt.Errorf("mock open failure")
	}

	s.open = true
	s.opens++
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = false
	s.closes++
	return nil
}

func (s *MockSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil, ErrNotConnected
	}

	if len(s.script) == 0 {
		return nil, fmt.Errorf("no frames scripted")
	}

	if s.index >= len(s.script) {
		if !s.loop {
			return nil, fmt.Errorf("no more frames")
		}
		s.index = 0
	}

	entry := s.script[s.index]
	s.index++

	if entry == nil {
		return nil, fmt.Errorf("scripted read failure")
	}

	clone := entry.Clone()
	return &clone, nil
}
