// Package stream provides video stream ingestion with automatic reconnection.
// It abstracts the underlying transport (HTTP/MJPEG or RTSP) behind a
// FrameSource and drives the connect/read/timeout/reconnect state machine.
package stream

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Frame is a captured video frame plus its arrival timestamp.
// The receiver owns the Mat and must close it after one processing cycle.
type Frame struct {
	Mat        *gocv.Mat
	ReceivedAt time.Time
}

// Close releases the underlying pixel buffer.
func (f *Frame) Close() {
	if f.Mat != nil {
		f.Mat.Close()
		f.Mat = nil
	}
}

// FrameSource defines the interface for raw stream transports.
// Both pollable HTTP/MJPEG byte streams and session-based RTSP transports
// are driven through the same three operations.
type FrameSource interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
}

// captureSource reads frames from a network stream using GoCV.
// OpenCV's capture backend handles both http(s):// and rtsp:// URLs.
type captureSource struct {
	url     string
	capture *gocv.VideoCapture
	mu      sync.Mutex
}

// NewSource creates a FrameSource for the given stream URL.
func NewSource(url string) FrameSource {
	return &captureSource{url: url}
}

// Open opens the stream endpoint. It sets the capture buffer to a single
// frame to minimize latency on live streams.
func (s *captureSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture != nil {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(s.url)
	if err != nil {
		return err
	}

	if !capture.IsOpened() {
		capture.Close()
		return errors.New("failed to open stream")
	}

	capture.Set(gocv.VideoCaptureBufferSize, 1)

	s.capture = capture
	return nil
}

// Close releases the transport.
func (s *captureSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	return err
}

// ReadFrame reads a single frame from the stream.
// The caller is responsible for closing the returned Mat.
func (s *captureSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capture == nil {
		return nil, ErrNotConnected
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from stream")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("received empty frame")
	}

	return &mat, nil
}
