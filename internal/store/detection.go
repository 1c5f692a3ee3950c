package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Detection is one flagged region persisted for a session.
type Detection struct {
	ID          string
	SessionID   string
	CX          int
	CY          int
	X           int
	Y           int
	W           int
	H           int
	Area        float64
	Circularity float64
	AspectRatio float64
	DetectedAt  time.Time
}

// DetectionRepository provides persistence for flagged regions.
type DetectionRepository struct {
	db *sql.DB
}

// Detections returns the detection repository for this store.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{db: s.db}
}

// InsertBatch stores all regions flagged in one frame inside a single
// transaction. IDs and timestamps are filled in when absent.
func (r *DetectionRepository) InsertBatch(detections []*Detection) error {
	if len(detections) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO detections (id, session_id, cx, cy, x, y, w, h, area, circularity, aspect_ratio, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, d := range detections {
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if d.DetectedAt.IsZero() {
			d.DetectedAt = now
		}

		if _, err := stmt.Exec(d.ID, d.SessionID, d.CX, d.CY, d.X, d.Y, d.W, d.H,
			d.Area, d.Circularity, d.AspectRatio, d.DetectedAt); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// ListBySession returns the flagged regions of a session in insertion order.
func (r *DetectionRepository) ListBySession(sessionID string) ([]*Detection, error) {
	rows, err := r.db.Query(
		`SELECT id, session_id, cx, cy, x, y, w, h, area, circularity, aspect_ratio, detected_at
		 FROM detections WHERE session_id = ? ORDER BY detected_at, id`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []*Detection
	for rows.Next() {
		d := &Detection{}
		if err := rows.Scan(&d.ID, &d.SessionID, &d.CX, &d.CY, &d.X, &d.Y, &d.W, &d.H,
			&d.Area, &d.Circularity, &d.AspectRatio, &d.DetectedAt); err != nil {
			return nil, err
		}
		detections = append(detections, d)
	}

	return detections, rows.Err()
}

// CountBySession returns how many regions were flagged during a session.
func (r *DetectionRepository) CountBySession(sessionID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM detections WHERE session_id = ?`,
		sessionID,
	).Scan(&count)
	return count, err
}
