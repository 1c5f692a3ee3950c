package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/mtodor/verdant/internal/app"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// liveMessage is the per-frame payload broadcast to WebSocket clients.
type liveMessage struct {
	Detections []liveDetection `json:"detections"`
	Count      int             `json:"count"`
	RateFPS    float64         `json:"rate_fps"`
	LatencyMs  float64         `json:"latency_ms"`
}

type liveDetection struct {
	CX          int     `json:"cx"`
	CY          int     `json:"cy"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	W           int     `json:"w"`
	H           int     `json:"h"`
	Area        float64 `json:"area"`
	Circularity float64 `json:"circularity"`
	AspectRatio float64 `json:"aspect_ratio"`
}

// liveHub broadcasts per-frame detection results to WebSocket clients.
type liveHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newLiveHub() *liveHub {
	return &liveHub{clients: make(map[*websocket.Conn]bool)}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *liveHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends one result to all connected clients. Clients that fail to
// receive are dropped.
func (h *liveHub) broadcast(r app.Result) {
	msg := liveMessage{
		Detections: make([]liveDetection, len(r.Detections)),
		Count:      len(r.Detections),
		RateFPS:    r.Rate,
		LatencyMs:  r.LatencyMs,
	}
	for i, d := range r.Detections {
		msg.Detections[i] = liveDetection{
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

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(msg); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
