// Package tuner models playback state for interactive parameter tuning over
// a recorded clip. The cursor is a plain value object; rendering and frame
// seeking belong to the caller.
package tuner

// PlaybackState represents whether the clip is advancing.
type PlaybackState int

const (
	Paused PlaybackState = iota
	Playing
)

// String returns the playback state name.
func (s PlaybackState) String() string {
	switch s {
	case Paused:
		return "paused"
	case Playing:
		return "playing"
	default:
		return "unknown"
	}
}

// Cursor tracks the current position within a clip of a known length.
// Positions are clamped to [0, total-1]; automatic playback wraps to the
// start when it runs off the end.
type Cursor struct {
	pos   int
	total int
	state PlaybackState
}

// NewCursor creates a paused cursor at frame 0 of a clip with total frames.
func NewCursor(total int) *Cursor {
	if total < 1 {
		total = 1
	}
	return &Cursor{total: total}
}

// Pos returns the current frame index.
func (c *Cursor) Pos() int {
	return c.pos
}

// Total returns the clip length in frames.
func (c *Cursor) Total() int {
	return c.total
}

// State returns the current playback state.
func (c *Cursor) State() PlaybackState {
	return c.state
}

// Toggle flips between playing and paused.
func (c *Cursor) Toggle() PlaybackState {
	if c.state == Playing {
		c.state = Paused
	} else {
		c.state = Playing
	}
	return c.state
}

// Seek moves to the given frame, clamped to the clip bounds. Seeking pauses
// playback.
func (c *Cursor) Seek(frame int) int {
	if frame < 0 {
		frame = 0
	}
	if frame > c.total-1 {
		frame = c.total - 1
	}
	c.pos = frame
	c.state = Paused
	return c.pos
}

// Step moves by delta frames, clamped. Manual navigation pauses playback.
func (c *Cursor) Step(delta int) int {
	return c.Seek(c.pos + delta)
}

// Advance moves to the next frame when playing, wrapping to the start at the
// end of the clip. Paused cursors stay put.
func (c *Cursor) Advance() int {
	if c.state != Playing {
		return c.pos
	}

	c.pos++
	if c.pos >= c.total {
		c.pos = 0
	}
	return c.pos
}
