package stream

import "errors"

// Error taxonomy for stream ingestion. All lower-level transport faults are
// normalized to one of these before crossing the Session boundary.
var (
	// ErrNotConnected is returned when reading from a session that has no
	// live connection.
	ErrNotConnected = errors.New("stream: not connected")

	// ErrTimeout is returned when no frame arrives within the frame timeout
	// window. Recoverable via the reconnect policy.
	ErrTimeout = errors.New("stream: frame timeout")

	// ErrTransport is returned on a mid-stream read failure. Recoverable via
	// the reconnect policy.
	ErrTransport = errors.New("stream: transport error")

	// ErrConnectFailed is returned when the endpoint is unreachable or opens
	// but delivers no frames.
	ErrConnectFailed = errors.New("stream: connect failed")

	// ErrExhausted is returned once the reconnect attempt budget is spent.
	// The session is terminal; callers must construct a new one.
	ErrExhausted = errors.New("stream: reconnect attempts exhausted")
)
