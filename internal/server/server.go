// Package server provides the HTTP dashboard for the Verdant detection
// system. It consumes pipeline results as the presentation sink and exposes
// detection settings for live tuning.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mtodor/verdant/internal/app"
	"github.com/mtodor/verdant/internal/detect"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	App       *app.App
	// ConfigPath is where detection settings are persisted on PUT.
	ConfigPath string
}

// Server represents the HTTP server for the Verdant dashboard.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time

	mu  sync.RWMutex
	app *app.App

	frames *frameBuffer
	live   *liveHub
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
		app:    config.App,
		frames: newFrameBuffer(),
		live:   newLiveHub(),
	}
	s.setupRoutes()
	return s
}

// Attach binds the orchestrator after construction. The server is usually
// built first because it doubles as the pipeline sink.
func (s *Server) Attach(a *app.App) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.app = a
}

func (s *Server) attached() *app.App {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.app
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.Handle("/api/stream", newStreamHandler(s.frames))
	s.mux.Handle("/api/detections", s.live)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/stats", s.handleStats)

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Publish implements app.Sink: the latest annotated frame feeds the MJPEG
// stream and the detection list is broadcast to WebSocket clients.
func (s *Server) Publish(r app.Result) {
	s.frames.update(r)
	s.live.broadcast(r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	writeJSON(w, http.StatusOK, response)
}

// handleConfig serves the current detection settings and accepts updates.
// A PUT hot-swaps the engine configuration and persists it.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	a := s.attached()
	if a == nil {
		http.Error(w, "No active pipeline", http.StatusServiceUnavailable)
		return
	}
	engine := a.Engine()

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, engine.Config())

	case http.MethodPut:
		var cfg detect.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}

		if err := engine.SetConfig(cfg); err != nil {
			if errors.Is(err, detect.ErrConfig) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			http.Error(w, "Failed to apply config", http.StatusInternalServerError)
			return
		}

		if s.config.ConfigPath != "" {
			if err := detect.SaveConfig(s.config.ConfigPath, cfg); err != nil {
				http.Error(w, "Failed to save config", http.StatusInternalServerError)
				return
			}
		}

		writeJSON(w, http.StatusOK, cfg)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleStats reports the session counters and current throughput.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a := s.attached()
	if a == nil {
		http.Error(w, "No active pipeline", http.StatusServiceUnavailable)
		return
	}
	stats := a.Session().Stats()

	response := map[string]interface{}{
		"state":            a.Session().State().String(),
		"enabled":          a.IsEnabled(),
		"frames":           stats.Frames,
		"detection_frames": stats.DetectionFrames,
		"reconnects":       stats.ReconnectAttempts,
		"rate_fps":         a.Monitor().Rate(),
		"latency_ms":       a.Monitor().LatencyMs(),
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
