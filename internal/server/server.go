// Package server provides read-only HTTP access to the build artifacts.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/vvo-tools/vvograph/internal/config"
	"github.com/vvo-tools/vvograph/internal/logging"
	"github.com/vvo-tools/vvograph/internal/metrics"
	"github.com/vvo-tools/vvograph/internal/network"
	"github.com/vvo-tools/vvograph/internal/storage"
)

// DefaultFailureLimit caps /api/failures when no limit is given.
const DefaultFailureLimit = 100

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Server serves the files of one data directory.
type Server struct {
	dataDir        string
	db             *storage.DB
	metrics        *metrics.Metrics
	logger         *slog.Logger
	allowedOrigins []string
}

// Option configures a Server.
type Option func(*Server)

// WithDB enables the diagnostics endpoints.
func WithDB(db *storage.DB) Option {
	return func(s *Server) {
		s.db = db
	}
}

// WithMetrics sets the metrics served on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithAllowedOrigins sets the CORS origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// New creates a server for dataDir.
func New(dataDir string, opts ...Option) *Server {
	s := &Server{
		dataDir:        dataDir,
		logger:         slog.Default(),
		allowedOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	return s
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoveryMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/graph", s.handleFile(config.GraphPath(s.dataDir), "application/json"))
		r.Get("/geojson", s.handleFile(config.GeoJSONPath(s.dataDir), "application/geo+json"))
		r.Get("/networks", s.handleFile(config.NetworksPath(s.dataDir), "application/json"))
		r.Get("/stats", s.handleStats)
		r.Get("/path", s.handlePath)
		r.Get("/stops/{stopId}/neighbors", s.handleNeighbors)
		r.Get("/failures", s.handleFailures)
		r.Get("/builds", s.handleBuilds)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, err := os.Stat(config.GraphPath(s.dataDir))
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"graph":     err == nil,
		"database":  s.db != nil,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleFile(path, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				writeError(w, http.StatusNotFound, "artifact not built", err)
				return
			}
			serverError(w, r, "reading artifact", err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func (s *Server) loadNetwork(w http.ResponseWriter, r *http.Request) (*network.Network, bool) {
	g, err := storage.ReadGraph(config.GraphPath(s.dataDir))
	if err != nil {
		if errors.Is(err, storage.ErrGraphNotBuilt) {
			writeError(w, http.StatusNotFound, "graph not built", err)
			return nil, false
		}
		serverError(w, r, "reading graph", err)
		return nil, false
	}
	return network.New(g), true
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	n, ok := s.loadNetwork(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, n.Stats())
}

func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "from and to are required", nil)
		return
	}
	n, ok := s.loadNetwork(w, r)
	if !ok {
		return
	}
	p, err := n.FastestPath(from, to)
	if err != nil {
		writeError(w, http.StatusNotFound, "no path", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopId")
	n, ok := s.loadNetwork(w, r)
	if !ok {
		return
	}
	neighbors, err := n.Neighbors(stopID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown stop", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stop": stopID, "neighbors": neighbors})
}

func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "diagnostics database not available", nil)
		return
	}
	limit, err := queryInt(r, "limit", DefaultFailureLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	failures, err := s.db.ListFailures(r.Context(), storage.FailureFilter{
		TripID: r.URL.Query().Get("trip"),
		Kind:   r.URL.Query().Get("kind"),
		Limit:  limit,
	})
	if err != nil {
		serverError(w, r, "listing failures", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"failures": failures, "count": len(failures)})
}

func (s *Server) handleBuilds(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(w, http.StatusServiceUnavailable, "diagnostics database not available", nil)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit", err)
		return
	}
	runs, err := s.db.ListBuilds(r.Context(), limit)
	if err != nil {
		serverError(w, r, "listing builds", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"builds": runs, "count": len(runs)})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// serverError logs err with the request logger and writes a 500 response.
func serverError(w http.ResponseWriter, r *http.Request, message string, err error) {
	logging.LogError(logging.FromContext(r.Context()), message, err)
	writeError(w, http.StatusInternalServerError, message, err)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
