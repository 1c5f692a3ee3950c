package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRepository(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{
		ID:       uuid.NewString(),
		Endpoint: "http://192.168.1.50:8080/video",
	}

	t.Run("create and get", func(t *testing.T) {
		if err := s.Sessions().Create(sess); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		got, err := s.Sessions().GetByID(sess.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Endpoint != sess.Endpoint {
			t.Errorf("Endpoint = %s, want %s", got.Endpoint, sess.Endpoint)
		}
		if got.EndedAt != nil {
			t.Error("new session should not have an end time")
		}
	})

	t.Run("finish records counters", func(t *testing.T) {
		if err := s.Sessions().Finish(sess.ID, 1000, 120, 3, 14.7); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}

		got, err := s.Sessions().GetByID(sess.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.Frames != 1000 || got.DetectionFrames != 120 || got.Reconnects != 3 {
			t.Errorf("counters = %d/%d/%d, want 1000/120/3",
				got.Frames, got.DetectionFrames, got.Reconnects)
		}
		if got.AvgFPS != 14.7 {
			t.Errorf("AvgFPS = %f, want 14.7", got.AvgFPS)
		}
		if got.EndedAt == nil {
			t.Error("finished session should have an end time")
		}
	})

	t.Run("finish unknown session", func(t *testing.T) {
		err := s.Sessions().Finish("missing", 0, 0, 0, 0)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Finish() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("get unknown session", func(t *testing.T) {
		_, err := s.Sessions().GetByID("missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("list returns most recent first", func(t *testing.T) {
		newer := &Session{
			ID:        uuid.NewString(),
			Endpoint:  "rtsp://192.168.1.51:554/stream",
			StartedAt: time.Now().Add(time.Hour),
		}
		if err := s.Sessions().Create(newer); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		sessions, err := s.Sessions().List()
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("got %d sessions, want 2", len(sessions))
		}
		if sessions[0].ID != newer.ID {
			t.Errorf("first session = %s, want %s", sessions[0].ID, newer.ID)
		}
	})
}

func TestDetectionRepository(t *testing.T) {
	s := newTestStore(t)

	sess := &Session{ID: uuid.NewString(), Endpoint: "http://192.168.1.50:8080/video"}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("insert batch and list", func(t *testing.T) {
		batch := []*Detection{
			{SessionID: sess.ID, CX: 50, CY: 50, X: 40, Y: 40, W: 20, H: 20,
				Area: 400, Circularity: 0.78, AspectRatio: 1.0},
			{SessionID: sess.ID, CX: 120, CY: 80, X: 100, Y: 60, W: 40, H: 40,
				Area: 1600, Circularity: 0.81, AspectRatio: 1.0},
		}

		if err := s.Detections().InsertBatch(batch); err != nil {
			t.Fatalf("InsertBatch() error = %v", err)
		}

		for _, d := range batch {
			if d.ID == "" {
				t.Error("InsertBatch did not assign an ID")
			}
		}

		got, err := s.Detections().ListBySession(sess.ID)
		if err != nil {
			t.Fatalf("ListBySession() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d detections, want 2", len(got))
		}
		if got[0].Area != 400 {
			t.Errorf("Area = %f, want 400", got[0].Area)
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		if err := s.Detections().InsertBatch(nil); err != nil {
			t.Errorf("InsertBatch(nil) error = %v", err)
		}
	})

	t.Run("count by session", func(t *testing.T) {
		count, err := s.Detections().CountBySession(sess.ID)
		if err != nil {
			t.Fatalf("CountBySession() error = %v", err)
		}
		if count != 2 {
			t.Errorf("count = %d, want 2", count)
		}
	})

	t.Run("cascade delete with session", func(t *testing.T) {
		if _, err := s.DB().Exec(`DELETE FROM sessions WHERE id = ?`, sess.ID); err != nil {
			t.Fatalf("delete session error = %v", err)
		}

		count, err := s.Detections().CountBySession(sess.ID)
		if err != nil {
			t.Fatalf("CountBySession() error = %v", err)
		}
		if count != 0 {
			t.Errorf("count after cascade = %d, want 0", count)
		}
	})
}
