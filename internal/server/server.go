// Package server provides the HTTP control surface: calibration and
// profile management, tuning, live command streaming and the rendered
// canvas.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/madhubani/internal/app"
	"github.com/ayusman/madhubani/internal/config"
	"github.com/ayusman/madhubani/internal/logger"
	"github.com/ayusman/madhubani/internal/server/api"
	"github.com/ayusman/madhubani/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
	// LogFile is the JSON log served by /api/logs.
	LogFile string
	Log     *zap.Logger
}

// Server represents the HTTP server of the application.
type Server struct {
	config Config
	log    *zap.Logger
	mux    *http.ServeMux
	start  time.Time
	http   *http.Server
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	log := config.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		config: config,
		log:    log.Named("server"),
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	a := s.config.App

	if s.config.Store != nil {
		var activator api.Activator
		current := config.DefaultTuning
		if a != nil {
			activator = a
			current = a.Session().Tuning
		}
		profiles := api.NewProfileHandler(s.config.Store, activator)
		s.mux.Handle("/api/profiles", profiles)
		s.mux.Handle("/api/profiles/", profiles)
		s.mux.Handle("/api/tuning", api.NewTuningHandler(s.config.Store, current))
	}

	if a != nil {
		calib := api.NewCalibrationHandler(a)
		s.mux.Handle("/api/calibration", calib)
		s.mux.Handle("/api/calibration/", calib)
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/detection", s.handleDetection)
		s.mux.Handle("/api/commands", NewCommandStream(a.Dispatcher(), s.log))
		s.mux.Handle("/api/canvas.png", NewCanvasSnapshot(a.Canvas()))
		s.mux.Handle("/api/canvas/stream", NewCanvasStream(a.Canvas(), s.log))
	}

	if s.config.LogFile != "" {
		s.mux.HandleFunc("/api/logs", s.handleLogs)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

// handleStatus handles GET /api/status: the session snapshot plus
// pipeline counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	a := s.config.App
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  a.IsEnabled(),
		"running":  a.Running(),
		"session":  a.Session().Snapshot(),
		"pipeline": a.Stats(),
		"canvas":   a.Canvas().State(),
	})
}

type detectionRequest struct {
	Enabled bool `json:"enabled"`
}

// handleDetection handles GET and PUT /api/detection, the detection
// on/off switch.
func (s *Server) handleDetection(w http.ResponseWriter, r *http.Request) {
	a := s.config.App
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req detectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
			return
		}
		a.SetEnabled(req.Enabled)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, detectionRequest{Enabled: a.IsEnabled()})
}

// handleLogs handles GET /api/logs?level=WARN&limit=100.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	entries, err := logger.Recent(s.config.LogFile, r.URL.Query().Get("level"), limit)
	if err != nil {
		s.log.Warn("read log file", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read logs"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ListenAndServe starts the HTTP server on the given address. It returns
// http.ErrServerClosed after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("listening", zap.String("addr", addr))
	return s.http.ListenAndServe()
}

// Shutdown stops the server started by ListenAndServe.
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.http.Shutdown(ctx)
}
