package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mtodor/verdant/internal/app"
	"gocv.io/x/gocv"
)

// frameBuffer keeps the JPEG encoding of the most recent annotated frame.
// Frames are borrowed from the pipeline for the duration of the update only.
type frameBuffer struct {
	mu   sync.RWMutex
	jpeg []byte
}

func newFrameBuffer() *frameBuffer {
	return &frameBuffer{}
}

func (b *frameBuffer) update(r app.Result) {
	if r.Frame == nil || r.Frame.Empty() {
		return
	}

	buf, err := gocv.IMEncode(".jpg", *r.Frame)
	if err != nil {
		return
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	b.mu.Lock()
	b.jpeg = data
	b.mu.Unlock()
}

func (b *frameBuffer) latest() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.jpeg
}

// streamHandler serves the latest annotated frame as an MJPEG stream.
type streamHandler struct {
	frames *frameBuffer
}

func newStreamHandler(frames *frameBuffer) *streamHandler {
	return &streamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *streamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		data := h.frames.latest()
		if data == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data))
		w.Write(data)
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		time.Sleep(66 * time.Millisecond) // ~15 FPS
	}
}
