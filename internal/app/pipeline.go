package app

import (
	"errors"
	"fmt"
	"log"

	"github.com/mtodor/verdant/internal/detect"
	"github.com/mtodor/verdant/internal/stream"
)

// Run executes the ingestion loop until the stop channel closes, the session
// exhausts its reconnect budget, or an unrecoverable frame decode failure
// surfaces. The session is disconnected on every exit path and a summary of
// the session is logged (and persisted when a store is configured).
//
// Cancellation is cooperative: the stop channel is checked once per
// iteration, never mid-read.
func (a *App) Run(stop <-chan struct{}) error {
	var sessionID string
	defer func() {
		a.session.Disconnect()
		a.recordSessionEnd(sessionID)
		a.logSummary()
	}()

	if err := a.session.Connect(); err != nil {
		// An unreachable endpoint at startup goes through the same backoff
		// policy as a mid-stream outage.
		log.Printf("app: initial connect failed, entering reconnect: %v", err)
		if err := a.session.Reconnect(); err != nil {
			return fmt.Errorf("app: session never connected: %w", err)
		}
	}

	sessionID = a.recordSessionStart()

	for {
		select {
		case <-stop:
			return nil
		default:
		}

		frame, err := a.session.Read()
		if err != nil {
			switch {
			case errors.Is(err, stream.ErrTimeout), errors.Is(err, stream.ErrTransport):
				log.Printf("app: lost stream (%v), reconnecting", err)
				if rerr := a.session.Reconnect(); rerr != nil {
					return fmt.Errorf("app: reconnect failed: %w", rerr)
				}
				continue
			default:
				return fmt.Errorf("app: read failed: %w", err)
			}
		}

		a.monitor.Tick()

		if !a.IsEnabled() {
			frame.Close()
			continue
		}

		detections, err := a.engine.Run(frame.Mat)
		if err != nil {
			frame.Close()
			if errors.Is(err, detect.ErrFrameDecode) {
				return fmt.Errorf("app: unrecoverable frame: %w", err)
			}
			return fmt.Errorf("app: detection failed: %w", err)
		}

		if len(detections) > 0 {
			a.session.MarkDetection()
			a.recordDetections(sessionID, detections)
		}

		if a.sink != nil {
			annotated := detect.Annotate(frame.Mat, detections)
			a.sink.Publish(Result{
				Frame:      &annotated,
				Detections: detections,
				Rate:       a.monitor.Rate(),
				LatencyMs:  a.monitor.LatencyMs(),
			})
			annotated.Close()
		}

		frame.Close()
	}
}

// logSummary reports what the session processed before exiting.
func (a *App) logSummary() {
	stats := a.session.Stats()
	log.Printf("app: session summary: frames=%d detection_frames=%d reconnects=%d avg_fps=%.1f",
		stats.Frames, stats.DetectionFrames, stats.ReconnectAttempts, a.monitor.Rate())
}
