package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/ferry/internal/cli"
	"github.com/aretw0/ferry/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ferry",
	Short: "Ferry drives page-protocol applications from the terminal",
	Long: `Ferry performs page visits against a server-driven application, keeps a
history of the pages it committed and restores them without a request.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("base-url", "", "Base URL of the Page Source (overrides base_url)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides log_level)")
	rootCmd.PersistentFlags().StringP("output", "o", cli.FormatAuto, "Output format: auto, json, yaml, markdown")
	rootCmd.PersistentFlags().String("scope", "", "History scope to reattach to (overrides history.scope)")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	if v, _ := cmd.Flags().GetString("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("scope"); v != "" {
		cfg.History.Scope = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := cli.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newPrinter(cmd *cobra.Command) (*cli.Printer, error) {
	format, _ := cmd.Flags().GetString("output")
	return cli.NewPrinter(os.Stdout, os.Stderr, format)
}
