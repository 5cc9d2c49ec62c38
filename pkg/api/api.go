// pkg/api/api.go

// Package api serves a read-only HTTP view of the running browser
// sessions: which tabs each session manages, which tasks are scheduled,
// plus health and Prometheus metrics endpoints.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/inquilabee/browsertabs/internal/monitoring"
	"github.com/inquilabee/browsertabs/internal/utils"
	"github.com/inquilabee/browsertabs/pkg/scheduler"
)

// Server exposes the status API over HTTP.
type Server struct {
	sources Sources
	logger  utils.Logger
	health  *monitoring.HealthManager
	metrics *monitoring.MetricsManager
}

// Option configures a Server.
type Option func(*Server)

// WithLogger routes request logs to logger.
func WithLogger(logger utils.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHealthManager mounts the health manager's checks at /health.
// Without one, /health reports a bare ok.
func WithHealthManager(hm *monitoring.HealthManager) Option {
	return func(s *Server) { s.health = hm }
}

// WithMetricsManager mounts the Prometheus handler at /metrics.
func WithMetricsManager(mm *monitoring.MetricsManager) Option {
	return func(s *Server) { s.metrics = mm }
}

// NewServer creates a status server reporting the given sources.
func NewServer(sources Sources, opts ...Option) *Server {
	s := &Server{sources: sources}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = utils.NewLogger()
	}
	if s.metrics == nil {
		s.metrics = monitoring.Default()
	}
	s.logger = s.logger.WithField("component", "api")
	return s
}

// Handler returns the routed handler for the status API.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	if s.health != nil {
		r.HandleFunc("/health", s.health.HealthHandler()).Methods("GET")
	} else {
		r.HandleFunc("/health", s.handleHealthFallback).Methods("GET")
	}
	r.Handle("/metrics", s.metrics.MetricsHandler()).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sessions", s.handleSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleSession).Methods("GET")
	api.HandleFunc("/sessions/{id}/tabs", s.handleSessionTabs).Methods("GET")
	api.HandleFunc("/tasks", s.handleTasks).Methods("GET")

	return r
}

// ListenAndServe serves the status API on address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.WithField("address", address).Info("status api listening")
	err := server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) sessions() []SessionSummary {
	if s.sources.Sessions == nil {
		return []SessionSummary{}
	}
	return s.sources.Sessions()
}

func (s *Server) tasks() []scheduler.TaskSnapshot {
	if s.sources.Tasks == nil {
		return []scheduler.TaskSnapshot{}
	}
	return s.sources.Tasks()
}

// logRequests logs each request at debug level with its timing.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("request served")
	})
}

func (s *Server) handleHealthFallback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, session := range s.sessions() {
		if session.ID == id {
			writeJSON(w, http.StatusOK, session)
			return
		}
	}
	writeError(w, http.StatusNotFound, "no such session: "+id)
}

func (s *Server) handleSessionTabs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, session := range s.sessions() {
		if session.ID == id {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"tabs":  session.Tabs,
				"total": len(session.Tabs),
			})
			return
		}
	}
	writeError(w, http.StatusNotFound, "no such session: "+id)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.tasks()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
