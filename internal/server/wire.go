package server

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"agency-insights/internal/agents"
	"agency-insights/internal/config"
	"agency-insights/internal/jobs"
)

// unavailable answers every analysis with the reason the CLI could not be set up
type unavailable struct{ err error }

func (u unavailable) Run(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
	return agents.ResearchResult{CSVFile: csvFile, OutputDir: outDir, Error: u.err.Error()}
}

// NewFromConfig wires the investigator, job manager and hub into a server.
// A missing CLI key is logged and reported per analysis rather than failing startup.
func NewFromConfig(cfg *config.AppConfig, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	baseDir := cfg.Server.UploadDir
	if baseDir == "" {
		baseDir = "."
	}

	var runner jobs.Runner
	inv, err := agents.NewInvestigatorFromConfig(cfg, baseDir, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("investigative analysis unavailable")
		runner = unavailable{err: err}
	} else {
		runner = inv
	}

	hub := NewHub(logger)
	manager := jobs.NewManager(runner, hub, jobs.Options{
		OutputRoot: cfg.Output.Dir,
		WatchDir:   baseDir,
		WatchFiles: cfg.Server.WatchFiles,
	}, logger)
	return New(cfg, manager, hub, logger), nil
}

// Close cancels running analyses and disconnects websocket clients
func (s *Server) Close() {
	s.jobs.Close()
	s.hub.Close()
}
