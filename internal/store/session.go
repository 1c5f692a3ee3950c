package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session summarizes one stream ingestion session.
type Session struct {
	ID              string
	Endpoint        string
	StartedAt       time.Time
	EndedAt         *time.Time
	Frames          uint64
	DetectionFrames uint64
	Reconnects      uint64
	AvgFPS          float64
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session record.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, endpoint, started_at, frames, detection_frames, reconnects, avg_fps)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Endpoint, sess.StartedAt, sess.Frames, sess.DetectionFrames, sess.Reconnects, sess.AvgFPS,
	)
	return err
}

// Finish records the final counters for a terminated session.
func (r *SessionRepository) Finish(id string, frames, detectionFrames, reconnects uint64, avgFPS float64) error {
	now := time.Now()
	res, err := r.db.Exec(
		`UPDATE sessions
		 SET ended_at = ?, frames = ?, detection_frames = ?, reconnects = ?, avg_fps = ?
		 WHERE id = ?`,
		now, frames, detectionFrames, reconnects, avgFPS, id,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	sess := &Session{}
	var endedAt sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, endpoint, started_at, ended_at, frames, detection_frames, reconnects, avg_fps
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&sess.ID, &sess.Endpoint, &sess.StartedAt, &endedAt,
		&sess.Frames, &sess.DetectionFrames, &sess.Reconnects, &sess.AvgFPS)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}
	return sess, nil
}

// List returns all sessions, most recent first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, endpoint, started_at, ended_at, frames, detection_frames, reconnects, avg_fps
		 FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess := &Session{}
		var endedAt sql.NullTime

		if err := rows.Scan(&sess.ID, &sess.Endpoint, &sess.StartedAt, &endedAt,
			&sess.Frames, &sess.DetectionFrames, &sess.Reconnects, &sess.AvgFPS); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			sess.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, sess)
	}

	return sessions, rows.Err()
}
