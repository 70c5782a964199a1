package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agency-insights/internal/server"
)

func newServeCmd() *cobra.Command {
	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis HTTP server",
		Long: `Serve uploads, investigative analyses with live websocket progress,
result downloads and JSON views of the configured dataset.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	serveCmd.Flags().StringP("addr", "a", "", "listen address (overrides config)")
	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, done, err := setup(cmd)
	if err != nil {
		return err
	}
	defer done()
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Address = addr
	}

	srv, err := server.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return srv.ListenAndServe(ctx)
}
