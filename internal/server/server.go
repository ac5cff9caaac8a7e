// Package server provides the HTTP server for the asana pose coach.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/asana/internal/app"
	"github.com/ayusman/asana/internal/capture"
	"github.com/ayusman/asana/internal/metrics"
	"github.com/ayusman/asana/internal/rules"
	"github.com/ayusman/asana/internal/server/api"
	"github.com/ayusman/asana/internal/store"
)

// Config holds the server configuration. Every field is optional; routes
// whose dependencies are missing are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	Registry  *rules.Registry
	Publisher api.RulePublisher
	App       *app.App
	Camera    capture.Camera
	Metrics   *metrics.Metrics
	Logger    *logrus.Logger
}

// Server represents the HTTP server for the asana application.
type Server struct {
	config      Config
	log         *logrus.Logger
	mux         *http.ServeMux
	http        *http.Server
	hub         *StatusHub
	unsubscribe func()
	start       time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	s := &Server{
		config: config,
		log:    config.Logger,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Registry != nil {
		poses := api.NewPoseHandler(s.config.Registry, s.config.Store, s.config.Publisher, s.log)
		s.mux.Handle("/api/poses", poses)
		s.mux.Handle("/api/poses/", poses)
	}

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.App != nil {
		exercise := api.NewExerciseHandler(s.config.App)
		s.mux.Handle("/api/exercise", exercise)
		s.mux.Handle("/api/exercise/", exercise)

		s.hub = NewStatusHub(s.log)
		s.hub.Broadcast(s.config.App.Current())
		s.unsubscribe = s.config.App.Subscribe(s.hub.Broadcast)
		s.mux.Handle("/api/status", s.hub)
	}

	if s.config.Camera != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Camera))
	}

	if s.config.Metrics != nil {
		s.mux.Handle(metrics.DefaultPath, s.config.Metrics.Handler())
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		ex := s.config.App.Current()
		response["pose"] = ex.Pose
		response["running"] = ex.Running
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until Shutdown is called.
func (s *Server) ListenAndServe(addr string) error {
	s.http.Addr = addr
	s.log.WithField("addr", addr).Info("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, closes status clients and waits for
// in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	return s.http.Shutdown(ctx)
}
