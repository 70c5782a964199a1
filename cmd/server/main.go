package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"agency-insights/internal/config"
	"agency-insights/internal/logging"
	"agency-insights/internal/server"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		os.Stderr.WriteString("failed to load .env: " + err.Error() + "\n")
		os.Exit(1)
	}

	configFile := os.Getenv("AGENCY_CONFIG")
	var cfg *config.AppConfig
	var err error
	if configFile != "" {
		cfg, err = config.LoadConfigFromFile(configFile)
	} else {
		cfg = config.DefaultConfig()
		cfg.ApplyEnv(os.Getenv)
		err = cfg.Validate()
	}
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: true, Output: os.Stderr})
	if err != nil {
		os.Stderr.WriteString("failed to set up logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	srv, err := server.NewFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create server")
	}
	defer srv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info().Str("address", cfg.Server.Address).Str("config", configFile).Msg("starting agency insights server")
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error().Err(err).Msg("server failed")
		return
	}
	logger.Info().Msg("server stopped")
}
