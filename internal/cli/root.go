// Package cli defines the spyfall command line.
package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/analytics"
	"github.com/tatianab/spyfall-agents/internal/config"
	"github.com/tatianab/spyfall-agents/internal/locations"
	"github.com/tatianab/spyfall-agents/internal/logging"
)

// app is the state shared by every command once the root pre-run has loaded it.
type app struct {
	configPath string
	verbose    bool
	logFile    string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "spyfall",
		Short: "Spyfall played by language models, with room for one human",
		Long: `spyfall runs games of Spyfall where the players are language models from
different providers. One seat may be taken by a human, either in the terminal
or through the web server.

API keys are read from OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY and
GROQ_API_KEY, from a .env file, or from the providers section of --config.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(a.playCmd())
	rootCmd.AddCommand(a.serveCmd())
	rootCmd.AddCommand(a.locationsCmd())
	rootCmd.AddCommand(a.historyCmd())
	return rootCmd
}

// Execute runs the command line with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	file := a.logFile
	if file == "" && cmd.Name() == "play" && !usesPlainOutput(cmd) {
		// The console UI owns the terminal.
		file = filepath.Join(cfg.DataDir, "spyfall.log")
	}
	a.logger, err = logging.New(logging.Options{Level: level, Format: cfg.LogFormat, File: file})
	return err
}

func (a *app) catalog() (*locations.Catalog, error) {
	return locations.New(a.logger, a.cfg.LocationsDir)
}

func (a *app) recorder(ctx context.Context) (analytics.Recorder, func() error, error) {
	r, closeFn, err := analytics.Open(ctx, analytics.Options{
		Kind:        analytics.Kind(a.cfg.Analytics),
		DataDir:     a.cfg.DataDir,
		SQLitePath:  filepath.Join(a.cfg.DataDir, "spyfall.db"),
		DatabaseURL: a.cfg.DatabaseURL,
	})
	if err != nil {
		return nil, closeFn, fmt.Errorf("open analytics: %w", err)
	}
	return r, closeFn, nil
}
