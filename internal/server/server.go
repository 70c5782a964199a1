// Package server exposes upload, analysis, status and download endpoints
// plus websocket progress updates.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"agency-insights/internal/analysis"
	"agency-insights/internal/config"
	"agency-insights/internal/dataset"
	"agency-insights/internal/jobs"
	"agency-insights/internal/llm"
)

const (
	defaultHeartbeat = 30 * time.Second
	shutdownTimeout  = 30 * time.Second
)

// APIResponse is the JSON envelope of every API answer
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Server serves the analysis API
type Server struct {
	cfg       *config.AppConfig
	router    *mux.Router
	jobs      *jobs.Manager
	hub       *Hub
	data      *datasetCache
	limiter   *clientLimiter
	logger    zerolog.Logger
	baseDir   string
	heartbeat time.Duration
	lookPath  func(name, prefix string) (string, error)
}

// New creates a server. Uploaded and analysed CSV files live in
// cfg.Server.UploadDir; the hub must be the publisher of manager.
func New(cfg *config.AppConfig, manager *jobs.Manager, hub *Hub, logger zerolog.Logger) *Server {
	baseDir := cfg.Server.UploadDir
	if baseDir == "" {
		baseDir = "."
	}
	s := &Server{
		cfg:       cfg,
		router:    mux.NewRouter(),
		jobs:      manager,
		hub:       hub,
		logger:    logger.With().Str("component", "server").Logger(),
		baseDir:   baseDir,
		heartbeat: defaultHeartbeat,
		lookPath:  llm.LookPath,
	}
	s.data = &datasetCache{path: cfg.Dataset.Path, opts: cfg.DatasetOptions(), logger: logger}
	if cfg.Server.RateLimit > 0 {
		s.limiter = newClientLimiter(float64(cfg.Server.RateLimit), cfg.Server.RateLimit*2)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(s.loggingMiddleware)
	r.Use(s.rateLimitMiddleware)

	r.HandleFunc("/", s.handleIndex).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	r.HandleFunc("/analyze", s.handleAnalyzeDefault).Methods("POST")
	r.HandleFunc("/analyze/{filename}", s.handleAnalyzeFile).Methods("POST")
	r.HandleFunc("/upload", s.handleUpload).Methods("POST")
	r.HandleFunc("/analyses", s.handleListAnalyses).Methods("GET")
	r.HandleFunc("/status/{id}", s.handleStatus).Methods("GET")
	r.HandleFunc("/results/{id}", s.handleResults).Methods("GET")
	r.HandleFunc("/results/{id}/markdown", s.handleResultsMarkdown).Methods("GET")

	r.HandleFunc("/download/{filename}", s.handleDownload).Methods("GET")
	r.HandleFunc("/download-markdown", s.handleDownloadMarkdown).Methods("GET")
	r.HandleFunc("/list-files", s.handleListFiles).Methods("GET")

	r.HandleFunc("/ws/{id}", s.handleWebSocket)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/dataset/{kind}", s.handleDataset).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	return s.gzipMiddleware(s.corsMiddleware(s.router))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Address,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", srv.Addr).Msg("starting analysis server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info().Msg("server stopped")
	return nil
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeData(w http.ResponseWriter, status int, data interface{}) {
	s.writeJSONResponse(w, status, APIResponse{Success: true, Data: data})
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, status int, message string) {
	s.writeJSONResponse(w, status, APIResponse{Success: false, Error: message})
}

// datasetCache holds the analyses of the configured dataset until the file changes
type datasetCache struct {
	mu      sync.Mutex
	path    string
	opts    dataset.Options
	modTime time.Time
	results *analysis.Results
	logger  zerolog.Logger
}

func (c *datasetCache) get(ctx context.Context) (*analysis.Results, error) {
	info, err := os.Stat(c.path)
	if err != nil {
		return nil, fmt.Errorf("dataset unavailable: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results != nil && info.ModTime().Equal(c.modTime) {
		return c.results, nil
	}

	f, err := dataset.Load(ctx, c.path, c.opts)
	if err != nil {
		return nil, err
	}
	results, err := analysis.NewSuite("", "", c.logger).Analyze(f, c.path)
	if err != nil {
		return nil, err
	}
	c.results, c.modTime = results, info.ModTime()
	return results, nil
}
