package tuner

import "testing"

func TestCursor_Seek(t *testing.T) {
	tests := []struct {
		name  string
		total int
		seek  int
		want  int
	}{
		{"within bounds", 100, 42, 42},
		{"clamps below zero", 100, -5, 0},
		{"clamps past end", 100, 150, 99},
		{"last frame", 100, 99, 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.total)
			if got := c.Seek(tt.seek); got != tt.want {
				t.Errorf("Seek(%d) = %d, want %d", tt.seek, got, tt.want)
			}
			if c.Pos() != tt.want {
				t.Errorf("Pos() = %d, want %d", c.Pos(), tt.want)
			}
		})
	}
}

func TestCursor_SeekPausesPlayback(t *testing.T) {
	c := NewCursor(100)
	c.Toggle()

	c.Seek(10)

	if c.State() != Paused {
		t.Errorf("State() = %v after seek, want %v", c.State(), Paused)
	}
}

func TestCursor_Step(t *testing.T) {
	c := NewCursor(100)
	c.Seek(50)

	if got := c.Step(10); got != 60 {
		t.Errorf("Step(10) = %d, want 60", got)
	}
	if got := c.Step(-70); got != 0 {
		t.Errorf("Step(-70) = %d, want 0", got)
	}
	if got := c.Step(200); got != 99 {
		t.Errorf("Step(200) = %d, want 99", got)
	}
}

func TestCursor_Toggle(t *testing.T) {
	c := NewCursor(10)

	if c.State() != Paused {
		t.Fatalf("new cursor State() = %v, want %v", c.State(), Paused)
	}
	if got := c.Toggle(); got != Playing {
		t.Errorf("Toggle() = %v, want %v", got, Playing)
	}
	if got := c.Toggle(); got != Paused {
		t.Errorf("Toggle() = %v, want %v", got, Paused)
	}
}

func TestCursor_Advance(t *testing.T) {
	t.Run("paused cursor stays put", func(t *testing.T) {
		c := NewCursor(10)
		c.Seek(5)

		if got := c.Advance(); got != 5 {
			t.Errorf("Advance() = %d, want 5", got)
		}
	})

	t.Run("playing cursor moves forward", func(t *testing.T) {
		c := NewCursor(10)
		c.Toggle()

		if got := c.Advance(); got != 1 {
			t.Errorf("Advance() = %d, want 1", got)
		}
		if got := c.Advance(); got != 2 {
			t.Errorf("Advance() = %d, want 2", got)
		}
	})

	t.Run("wraps at the end of the clip", func(t *testing.T) {
		c := NewCursor(3)
		c.Seek(2)
		c.Toggle()

		if got := c.Advance(); got != 0 {
			t.Errorf("Advance() = %d, want 0", got)
		}
	})
}

func TestPlaybackState_String(t *testing.T) {
	if Paused.String() != "paused" || Playing.String() != "playing" {
		t.Errorf("unexpected state names: %v, %v", Paused, Playing)
	}
}

func TestNewCursor_MinimumLength(t *testing.T) {
	c := NewCursor(0)

	if c.Total() != 1 {
		t.Errorf("Total() = %d, want 1", c.Total())
	}
	if got := c.Seek(5); got != 0 {
		t.Errorf("Seek(5) = %d, want 0", got)
	}
}
