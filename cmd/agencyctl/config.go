package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agency-insights/internal/config"
)

func newConfigCmd() *cobra.Command {
	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var configInitCmd = &cobra.Command{
		Use:   "init [filename]",
		Short: "Create a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runConfigInit,
	}

	var configValidateCmd = &cobra.Command{
		Use:   "validate [filename]",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE:  runConfigValidate,
	}

	configCmd.AddCommand(configInitCmd, configValidateCmd)
	return configCmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	filename := "agency-config.json"
	if len(args) > 0 {
		filename = args[0]
	}

	cfg := config.DefaultConfig()
	if err := cfg.SaveToFile(filename); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Default configuration saved to: %s\n", filename)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	filename := args[0]

	cfg, err := config.LoadConfigFromFile(filename)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Configuration file '%s' is valid!\n", filename)
	if verbose {
		fmt.Fprintf(w, "\nConfiguration details:\n%s\n", cfg.String())
	}
	return nil
}
