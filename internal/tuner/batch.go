package tuner

import (
	"github.com/mtodor/verdant/internal/detect"
	"gocv.io/x/gocv"
)

// FrameReport describes the regions flagged in one processed frame.
type FrameReport struct {
	Frame        int
	TimestampSec float64
	Detections   []detect.Detection
}

// Summary aggregates one batch run over a clip.
type Summary struct {
	FramesProcessed      int
	FramesWithDetections int
	TotalDetections      int
	MaxPerFrame          int
	PeakFrame            int
}

// Batch walks a recorded clip through the detection engine, sampling every
// Nth frame. Navigation goes through a Cursor so stepping and end-of-clip
// clamping follow the same rules as interactive tuning.
type Batch struct {
	clip   ClipSource
	engine *detect.Engine
	cursor *Cursor
	sample int
}

// NewBatch creates a Batch over the clip. Sample rates below 1 process every
// frame.
func NewBatch(clip ClipSource, engine *detect.Engine, sample int) *Batch {
	if sample < 1 {
		sample = 1
	}
	return &Batch{
		clip:   clip,
		engine: engine,
		cursor: NewCursor(clip.Total()),
		sample: sample,
	}
}

// Cursor exposes the batch position, for progress reporting.
func (b *Batch) Cursor() *Cursor {
	return b.cursor
}

// Run processes the sampled frames in order. The callback receives each
// report together with the raw frame, borrowed for the duration of the call.
// Run stops after the last frame of the clip or on the first error.
func (b *Batch) Run(emit func(FrameReport, *gocv.Mat) error) (Summary, error) {
	var summary Summary

	fps := b.clip.FPS()
	b.cursor.Seek(0)

	for {
		frame := b.cursor.Pos()

		mat, err := b.clip.ReadAt(frame)
		if err != nil {
			return summary, err
		}

		detections, err := b.engine.Run(mat)
		if err != nil {
			mat.Close()
			return summary, err
		}

		report := FrameReport{Frame: frame, Detections: detections}
		if fps > 0 {
			report.TimestampSec = float64(frame) / fps
		}

		summary.FramesProcessed++
		if n := len(detections); n > 0 {
			summary.FramesWithDetections++
			summary.TotalDetections += n
			if n > summary.MaxPerFrame {
				summary.MaxPerFrame = n
				summary.PeakFrame = frame
			}
		}

		if emit != nil {
			if err := emit(report, mat); err != nil {
				mat.Close()
				return summary, err
			}
		}
		mat.Close()

		// Step clamps at the final frame; no movement means the clip is done.
		if b.cursor.Step(b.sample) == frame {
			return summary, nil
		}
	}
}
