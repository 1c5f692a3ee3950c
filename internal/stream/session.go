package stream

import (
	"log"
	"sync"
	"time"
)

// Default session settings.
const (
	// DefaultFrameTimeout is how long a session tolerates read failures
	// before classifying them as a stream timeout.
	DefaultFrameTimeout = 5 * time.Second
	// DefaultMaxAttempts is the reconnect attempt budget per outage.
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is the initial reconnect backoff delay.
	DefaultBaseDelay = time.Second
)

// State is the connection state of a Session. The session's own transitions
// are the only writer.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Exhausted
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Stats holds per-session counters. Counters only increase; they reset when
// a new Session is constructed.
type Stats struct {
	Frames            uint64
	DetectionFrames   uint64
	ReconnectAttempts uint64
}

// SessionConfig holds tunables for a Session.
type SessionConfig struct {
	FrameTimeout time.Duration
	MaxAttempts  int
	BaseDelay    time.Duration
}

// DefaultSessionConfig returns the documented default session settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		FrameTimeout: DefaultFrameTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		BaseDelay:    DefaultBaseDelay,
	}
}

// Session owns a FrameSource and maintains a live decodable connection to
// one stream endpoint. It exposes a blocking read with automatic recovery
// driven by the caller through Reconnect.
//
// Reconnection blocks the calling goroutine for the backoff delay; exactly
// one goroutine may drive a session at a time.
type Session struct {
	url    string
	source FrameSource
	config SessionConfig

	mu        sync.Mutex
	state     State
	attempts  int
	lastFrame time.Time
	stats     Stats

	// Injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewSession creates a Session over the transport for the given URL.
func NewSession(url string, config SessionConfig) *Session {
	return NewSessionWithSource(url, NewSource(url), config)
}

// NewSessionWithSource creates a Session over an explicit FrameSource.
func NewSessionWithSource(url string, source FrameSource, config SessionConfig) *Session {
	if config.FrameTimeout <= 0 {
		config.FrameTimeout = DefaultFrameTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultBaseDelay
	}

	return &Session{
		url:    url,
		source: source,
		config: config,
		state:  Disconnected,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// URL returns the stream endpoint address. Immutable once the session starts.
func (s *Session) URL() string {
	return s.url
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// MarkDetection increments the detection-frame counter. Called by the
// orchestrator for each frame that produced at least one detection.
func (s *Session) MarkDetection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.DetectionFrames++
}

// Connect opens the transport and performs one test read to confirm the
// stream actually delivers frames. An endpoint that opens but never yields
// data is rejected. On failure no state persists: the session returns to
// Disconnected and ErrConnectFailed is returned.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

func (s *Session) connectLocked() error {
	if s.state == Exhausted {
		return ErrExhausted
	}

	s.state = Connecting

	if err := s.source.Open(); err != nil {
		s.state = Disconnected
		log.Printf("stream: open %s failed: %v", s.url, err)
		return ErrConnectFailed
	}

	// Test read: reject endpoints that open but deliver nothing.
	mat, err := s.source.ReadFrame()
	if err != nil {
		s.source.Close()
		s.state = Disconnected
		log.Printf("stream: test read from %s failed: %v", s.url, err)
		return ErrConnectFailed
	}
	mat.Close()

	s.state = Connected
	s.attempts = 0
	s.lastFrame = s.now()
	log.Printf("stream: connected to %s", s.url)
	return nil
}

// Read returns the next frame or a normalized failure: ErrNotConnected,
// ErrTimeout or ErrTransport. A failure moves the session to Reconnecting;
// it never panics past this boundary.
func (s *Session) Read() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Connected {
		return Frame{}, ErrNotConnected
	}

	mat, err := s.source.ReadFrame()
	if err != nil {
		s.state = Reconnecting
		if s.now().Sub(s.lastFrame) > s.config.FrameTimeout {
			return Frame{}, ErrTimeout
		}
		return Frame{}, ErrTransport
	}

	now := s.now()
	s.lastFrame = now
	s.stats.Frames++
	return Frame{Mat: mat, ReceivedAt: now}, nil
}

// Reconnect drives the backoff retry loop after a failed read. Each attempt
// sleeps BaseDelay * 2^(attempt-1) before retrying Connect. Success re-enters
// Connected and resets the attempt counter; spending the whole budget enters
// the terminal Exhausted state without a further sleep and returns
// ErrExhausted.
//
// The mutex is released around each sleep so State and Stats snapshots stay
// responsive while an outage is being ridden out.
func (s *Session) Reconnect() error {
	for {
		s.mu.Lock()

		if s.state == Exhausted {
			s.mu.Unlock()
			return ErrExhausted
		}

		if s.attempts >= s.config.MaxAttempts {
			s.state = Exhausted
			s.source.Close()
			s.mu.Unlock()
			log.Printf("stream: max reconnect attempts (%d) reached for %s", s.config.MaxAttempts, s.url)
			return ErrExhausted
		}

		s.attempts++
		s.stats.ReconnectAttempts++
		s.state = Reconnecting
		s.source.Close()

		attempt := s.attempts
		delay := s.config.BaseDelay * time.Duration(1<<uint(attempt-1))
		s.mu.Unlock()

		log.Printf("stream: reconnect attempt %d/%d in %s", attempt, s.config.MaxAttempts, delay)
		s.sleep(delay)

		s.mu.Lock()
		err := s.connectLocked()
		s.mu.Unlock()
		if err == nil {
			return nil
		}
	}
}

// Disconnect releases the transport and forces the session to Disconnected.
// Callable from any state, idempotent. The attempt budget is not refunded:
// a session that exhausted its attempts will not reconnect again.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.source.Close()
	s.state = Disconnected
}
