package tuner

import (
	"fmt"

	"gocv.io/x/gocv"
)

// ClipSource provides random access to the frames of a recorded clip.
// ReadAt returns a fresh Mat the caller must close.
type ClipSource interface {
	Total() int
	FPS() float64
	ReadAt(frame int) (*gocv.Mat, error)
	Close() error
}

// videoClip reads a video file through gocv with positional seeking.
type videoClip struct {
	capture *gocv.VideoCapture
	total   int
	fps     float64
}

// OpenClip opens a recorded video file as a seekable clip.
func OpenClip(path string) (ClipSource, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("tuner: open clip %s: %w", path, err)
	}

	total := int(capture.Get(gocv.VideoCaptureFrameCount))
	if total < 1 {
		capture.Close()
		return nil, fmt.Errorf("tuner: clip %s has no frames", path)
	}

	return &videoClip{
		capture: capture,
		total:   total,
		fps:     capture.Get(gocv.VideoCaptureFPS),
	}, nil
}

func (c *videoClip) Total() int {
	return c.total
}

func (c *videoClip) FPS() float64 {
	return c.fps
}

// ReadAt seeks to the given frame and decodes it.
func (c *videoClip) ReadAt(frame int) (*gocv.Mat, error) {
	c.capture.Set(gocv.VideoCapturePosFrames, float64(frame))

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("tuner: failed to read frame %d", frame)
	}
	return &mat, nil
}

func (c *videoClip) Close() error {
	return c.capture.Close()
}
