// Package cmd implements the multiverse command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/multiverse/config"
)

// Global flags
var (
	configPath string
	envFile    string
	logFormat  string
	logLevel   string

	// cfg is loaded and validated before any subcommand runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "multiverse",
		Short: "A procedurally generated universe that is reborn from its own entropy",
		Long: `multiverse simulates a universe from the Big Bang to heat death and
collapse, generating galaxies, stars, planets and life on demand around an
observer, and carries the experience of surviving lineages into the next cycle.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logFormat, logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := loaded.ApplyEnv(envFile); err != nil {
				return fmt.Errorf("applying environment: %w", err)
			}
			cfg = loaded
			return nil
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	flags.StringVar(&envFile, "env-file", ".env", "Environment file with MULTIVERSE_* overrides")
	flags.StringVar(&logFormat, "log-format", "json", "Log format: json or text")
	flags.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(runCmd, surveyCmd, inspectCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		return err
	}
	return nil
}

// newLogger builds the process logger. Logs go to stderr so that command
// output on stdout stays clean.
func newLogger(format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", format)
}
