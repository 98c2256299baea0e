// Package web serves the analysis HTTP API.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chanlens/internal/analyzer"
	"chanlens/internal/config"
	"chanlens/internal/logger"
	"chanlens/internal/provider"
	"chanlens/internal/snapshot"
)

const maxUploadBytes = 10 << 20

// SnapshotStore is the subset of the snapshot store the API uses
type SnapshotStore interface {
	Save(ctx context.Context, snap snapshot.Snapshot) (snapshot.Snapshot, error)
	Get(ctx context.Context, id string) (snapshot.Snapshot, error)
	List(ctx context.Context) ([]snapshot.Meta, error)
	Delete(ctx context.Context, id string) error
}

// Server represents the web server
type Server struct {
	providers *provider.Registry
	store     SnapshotStore
	defaults  config.AnalysisConfig
	mode      analyzer.Classification
	log       logger.Logger
	srv       *http.Server
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, providers *provider.Registry, store SnapshotStore, log logger.Logger) (*Server, error) {
	mode, err := analyzer.ParseClassification(cfg.Analysis.Classification)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Server{
		providers: providers,
		store:     store,
		defaults:  cfg.Analysis,
		mode:      mode,
		log:       log,
	}, nil
}

// Handler builds the routed, CORS-wrapped handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/structure", s.handleStructure)
	mux.HandleFunc("/api/breakout", s.handleBreakout)
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/api/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/snapshots/", s.handleSnapshot)
	mux.HandleFunc("/api/providers", s.handleProviders)

	return corsMiddleware(mux)
}

// Start starts the web server on the specified port
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info(context.Background(), "starting chanlens API", map[string]interface{}{"addr": fmt.Sprintf("http://localhost:%d", port)})
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers for local development
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
