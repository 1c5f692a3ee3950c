package app

import (
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/mtodor/verdant/internal/detect"
	"github.com/mtodor/verdant/internal/store"
	"github.com/mtodor/verdant/internal/stream"
	"gocv.io/x/gocv"
)

// fastConfig keeps reconnect backoff in the millisecond range for tests.
func fastConfig() stream.SessionConfig {
	return stream.SessionConfig{
		FrameTimeout: stream.DefaultFrameTimeout,
		MaxAttempts:  stream.DefaultMaxAttempts,
		BaseDelay:    time.Millisecond,
	}
}

// greenFrame returns a black 100x100 frame with a green 20x20 square.
func greenFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	mat := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { mat.Close() })

	region := mat.Region(image.Rect(40, 40, 60, 60))
	region.SetTo(gocv.NewScalar(0, 255, 0, 0))
	region.Close()

	return &mat
}

func TestApp_Run_DetectsAndPublishes(t *testing.T) {
	f := greenFrame(t)
	source := stream.NewMockSource([]*gocv.Mat{f}, true)
	session := stream.NewSessionWithSource("http://192.168.1.50:8080/video", source, fastConfig())

	stop := make(chan struct{})
	sink := NewCollectSink(func(n int) {
		if n == 3 {
			close(stop)
		}
	})

	a := New(Config{
		Session: session,
		Engine:  detect.NewEngine(detect.DefaultConfig()),
		Sink:    sink,
	})

	if err := a.Run(stop); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	results := sink.Results()
	if len(results) < 3 {
		t.Fatalf("got %d results, want at least 3", len(results))
	}
	for i, r := range results[:3] {
		if len(r.Detections) != 1 {
			t.Fatalf("result %d has %d detections, want 1", i, len(r.Detections))
		}
		if r.Detections[0].Area != 400 {
			t.Errorf("result %d area = %f, want 400", i, r.Detections[0].Area)
		}
	}

	stats := session.Stats()
	if stats.Frames < 3 {
		t.Errorf("Frames = %d, want at least 3", stats.Frames)
	}
	if stats.DetectionFrames < 3 {
		t.Errorf("DetectionFrames = %d, want at least 3", stats.DetectionFrames)
	}
	if got := session.State(); got != stream.Disconnected {
		t.Errorf("state after Run = %v, want Disconnected", got)
	}
}

func TestApp_Run_RecoversFromOutage(t *testing.T) {
	f := greenFrame(t)
	// Connect test read, one good frame, one outage, reconnect test read,
	// then two more good frames.
	source := stream.NewMockSource([]*gocv.Mat{f, f, nil, f, f, f}, false)
	session := stream.NewSessionWithSource("http://192.168.1.50:8080/video", source, fastConfig())

	stop := make(chan struct{})
	sink := NewCollectSink(func(n int) {
		if n == 3 {
			close(stop)
		}
	})

	a := New(Config{
		Session: session,
		Engine:  detect.NewEngine(detect.DefaultConfig()),
		Sink:    sink,
	})

	if err := a.Run(stop); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := session.Stats().ReconnectAttempts; got != 1 {
		t.Errorf("ReconnectAttempts = %d, want 1", got)
	}
	if got := len(sink.Results()); got < 3 {
		t.Errorf("got %d results, want at least 3", got)
	}
}

func TestApp_Run_ExhaustionIsFatal(t *testing.T) {
	source := stream.NewMockSource(nil, false)
	source.FailOpen(true)
	session := stream.NewSessionWithSource("http://192.168.1.50:8080/video", source, fastConfig())

	a := New(Config{
		Session: session,
		Engine:  detect.NewEngine(detect.DefaultConfig()),
	})

	err := a.Run(make(chan struct{}))
	if !errors.Is(err, stream.ErrExhausted) {
		t.Fatalf("Run() error = %v, want ErrExhausted", err)
	}
	if got := session.State(); got != stream.Disconnected {
		t.Errorf("state after fatal exit = %v, want Disconnected", got)
	}
}

func TestApp_Run_DecodeFailureIsFatal(t *testing.T) {
	gray := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC1)
	defer gray.Close()

	source := stream.NewMockSource([]*gocv.Mat{&gray}, true)
	session := stream.NewSessionWithSource("http://192.168.1.50:8080/video", source, fastConfig())

	a := New(Config{
		Session: session,
		Engine:  detect.NewEngine(detect.DefaultConfig()),
	})

	err := a.Run(make(chan struct{}))
	if !errors.Is(err, detect.ErrFrameDecode) {
		t.Fatalf("Run() error = %v, want ErrFrameDecode", err)
	}
}

func TestApp_Run_DisabledSkipsDetection(t *testing.T) {
	f := greenFrame(t)
	source := stream.NewMockSource([]*gocv.Mat{f}, true)
	session := stream.NewSessionWithSource("http://192.168.1.50:8080/video", source, fastConfig())

	sink := NewCollectSink(nil)
	a := New(Config{
		Session: session,
		Engine:  detect.NewEngine(detect.DefaultConfig()),
		Sink:    sink,
	})
	a.SetEnabled(false)

	stop := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(stop)
	}()

	if err := a.Run(stop); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := len(sink.Results()); got != 0 {
		t.Errorf("paused app published %d results, want 0", got)
	}
	if got := session.Stats().Frames; got == 0 {
		t.Error("paused app should still read frames")
	}
	if got := session.Stats().DetectionFrames; got != 0 {
		t.Errorf("DetectionFrames = %d, want 0 while paused", got)
	}
}

func TestApp_Run_PersistsSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	st, err := store.New(filepath.Join(t.TempDir(), "verdant.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer st.Close()

	f := greenFrame(t)
	source := stream.NewMockSource([]*gocv.Mat{f}, true)
	session := stream.NewSessionWithSource("http://192.168.1.50:8080/video", source, fastConfig())

	stop := make(chan struct{})
	sink := NewCollectSink(func(n int) {
		if n == 2 {
			close(stop)
		}
	})

	a := New(Config{
		Session: session,
		Engine:  detect.NewEngine(detect.DefaultConfig()),
		Sink:    sink,
		Store:   st,
	})

	if err := a.Run(stop); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	sessions, err := st.Sessions().List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d persisted sessions, want 1", len(sessions))
	}

	persisted := sessions[0]
	if persisted.EndedAt == nil {
		t.Error("session end was not recorded")
	}
	if persisted.Frames == 0 {
		t.Error("frame counter was not recorded")
	}

	count, err := st.Detections().CountBySession(persisted.ID)
	if err != nil {
		t.Fatalf("CountBySession() error = %v", err)
	}
	if count == 0 {
		t.Error("no detections were persisted")
	}
}
