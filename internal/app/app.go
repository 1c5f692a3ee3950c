// Package app sequences stream ingestion, detection and rate accounting
// into the per-frame pipeline.
package app

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/mtodor/verdant/internal/detect"
	"github.com/mtodor/verdant/internal/store"
	"github.com/mtodor/verdant/internal/stream"
)

// Config holds the collaborators of the orchestrator.
type Config struct {
	Session    *stream.Session
	Engine     *detect.Engine
	Sink       Sink
	Store      *store.Store
	RateWindow int
}

// App drives one stream session through the detection engine and forwards
// results to the presentation sink. A single goroutine runs the loop; read,
// detect and publish are strictly sequential per frame.
type App struct {
	session *stream.Session
	engine  *detect.Engine
	monitor *stream.RateMonitor
	sink    Sink
	store   *store.Store

	mu      sync.RWMutex
	enabled bool
}

// New creates an App with the given collaborators.
func New(config Config) *App {
	return &App{
		session: config.Session,
		engine:  config.Engine,
		monitor: stream.NewRateMonitor(config.RateWindow),
		sink:    config.Sink,
		store:   config.Store,
		enabled: true,
	}
}

// SetEnabled pauses or resumes detection. The stream keeps being read while
// paused so the connection stays warm.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Engine returns the detection engine, for config hot-swapping.
func (a *App) Engine() *detect.Engine {
	return a.engine
}

// Monitor returns the rate monitor.
func (a *App) Monitor() *stream.RateMonitor {
	return a.monitor
}

// Session returns the stream session.
func (a *App) Session() *stream.Session {
	return a.session
}

// recordSessionStart persists a new session row when a store is configured
// and returns its ID.
func (a *App) recordSessionStart() string {
	if a.store == nil {
		return ""
	}

	id := uuid.NewString()
	err := a.store.Sessions().Create(&store.Session{
		ID:       id,
		Endpoint: a.session.URL(),
	})
	if err != nil {
		log.Printf("app: failed to record session start: %v", err)
		return ""
	}
	return id
}

// recordSessionEnd persists the final counters for a terminated session.
func (a *App) recordSessionEnd(id string) {
	if a.store == nil || id == "" {
		return
	}

	stats := a.session.Stats()
	err := a.store.Sessions().Finish(id, stats.Frames, stats.DetectionFrames,
		stats.ReconnectAttempts, a.monitor.Rate())
	if err != nil {
		log.Printf("app: failed to record session end: %v", err)
	}
}

// recordDetections persists the regions flagged in one frame.
func (a *App) recordDetections(sessionID string, detections []detect.Detection) {
	if a.store == nil || sessionID == "" || len(detections) == 0 {
		return
	}

	batch := make([]*store.Detection, len(detections))
	for i, d := range detections {
		batch[i] = &store.Detection{
			SessionID:   sessionID,
			CX:          d.Centroid.X,
			CY:          d.Centroid.Y,
			X:           d.Bounds.Min.X,
			Y:           d.Bounds.Min.Y,
			W:           d.Bounds.Dx(),
			H:           d.Bounds.Dy(),
			Area:        d.Area,
			Circularity: d.Circularity,
			AspectRatio: d.AspectRatio,
		}
	}

	if err := a.store.Detections().InsertBatch(batch); err != nil {
		log.Printf("app: failed to record detections: %v", err)
	}
}
