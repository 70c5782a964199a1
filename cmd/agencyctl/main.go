package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"agency-insights/internal/config"
	"agency-insights/internal/logging"
)

var (
	configFile string
	verbose    bool

	now = time.Now
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "agencyctl",
		Short: "Insurance agency performance analysis",
		Long: `Analyses insurance agency CSV data: data quality, business performance,
financial segmentation and market opportunities, LLM driven research reports,
and an HTTP server for uploads and live investigative analyses.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newQualityCmd(),
		newSegmentCmd(),
		newOpportunitiesCmd(),
		newExportCmd(),
		newResearchCmd(),
		newResearchSQLCmd(),
		newInvestigateCmd(),
		newServeCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

// loadConfig reads the configuration file given by --config, AGENCY_CONFIG or
// a well-known name in the working directory, falling back to defaults
func loadConfig() (*config.AppConfig, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := configFile
	if path == "" {
		path = os.Getenv("AGENCY_CONFIG")
	}
	if path == "" {
		for _, file := range []string{"agency-config.json", "agency-config.yaml", "config.json", "config.yaml"} {
			if _, err := os.Stat(file); err == nil {
				path = file
				break
			}
		}
	}
	if path != "" {
		return config.LoadConfigFromFile(path)
	}

	cfg := config.DefaultConfig()
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid default configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.AppConfig, out io.Writer) (zerolog.Logger, io.Closer, error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, File: cfg.LogFile, Console: true, Output: out})
}

// setup loads the configuration and builds the logger for a command
func setup(cmd *cobra.Command) (*config.AppConfig, zerolog.Logger, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	if verbose {
		logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	}
	return cfg, logger, func() { closer.Close() }, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
