// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/muse-tui/internal/config"
	"github.com/jeranaias/muse-tui/internal/logging"
	"github.com/jeranaias/muse-tui/internal/modes"
	"github.com/jeranaias/muse-tui/internal/ollama"
)

// Version is set at build time.
var Version = "dev"

// =============================================================================
// APP
// =============================================================================

// App holds the global flags and what every command resolves from them.
type App struct {
	// Global flags
	ConfigPath string
	Model      string
	Endpoint   string
	Incognito  bool
	Research   bool
	Source     string
	LogLevel   string
	LogFile    string
	NoColor    bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	cfg      *config.Config
	cfgPath  string
	logger   *log.Logger
	logClose io.Closer
}

// NewApp creates an App bound to the process's standard streams.
func NewApp() *App {
	return &App{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Execute runs the muse command line and returns the exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp()
	defer app.teardown()
	if err := app.CreateRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(app.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		return 1
	}
	return 0
}

// CreateRootCommand creates and configures the root command.
func (app *App) CreateRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "muse",
		Short: "A fast local AI chat for the terminal",
		Long: `muse is a streaming chat client for models served by Ollama.

Run without arguments for the interactive chat, or use "muse ask" for a
single answer on stdout.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTUI(cmd.Context())
		},
	}
	rootCmd.SetIn(app.Stdin)
	rootCmd.SetOut(app.Stdout)
	rootCmd.SetErr(app.Stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.ConfigPath, "config", "", "config file (default ~/.muse/config.toml)")
	flags.StringVarP(&app.Model, "model", "m", "", "model name")
	flags.StringVar(&app.Endpoint, "endpoint", "", "Ollama endpoint URL")
	flags.BoolVar(&app.Incognito, "incognito", false, "start in incognito mode")
	flags.BoolVar(&app.Research, "research", false, "start in research mode")
	flags.StringVar(&app.Source, "source", "", "research source: scholar, arxiv, wiki")
	flags.StringVar(&app.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&app.LogFile, "log-file", "", "write logs to this file")
	flags.BoolVar(&app.NoColor, "no-color", false, "disable colors")

	rootCmd.AddCommand(
		app.newAskCommand(),
		app.newModelsCommand(),
		app.newConfigCommand(),
		app.newHistoryCommand(),
	)
	return rootCmd
}

// =============================================================================
// SETUP
// =============================================================================

// setup resolves configuration, colors, and logging for a command.
func (app *App) setup(cmd *cobra.Command) error {
	lipgloss.SetColorProfile(colorProfile(app.Stdout, app.NoColor))

	path := app.ConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	app.cfgPath = path

	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		if !isConfigCommand(cmd) {
			return err
		}
		// config commands must work on a broken file so it can be fixed.
		cfg = config.Default()
	}
	app.applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	app.cfg = cfg

	return app.setupLogging(cmd)
}

func (app *App) setupLogging(cmd *cobra.Command) error {
	opts := logging.Options{Level: app.cfg.Log.Level, File: app.cfg.Log.File}
	// The TUI owns the screen; headless commands may log to stderr.
	if cmd.Parent() != nil {
		opts.Fallback = app.Stderr
	}
	logger, closer, err := logging.New(opts)
	if err != nil {
		return err
	}
	app.logger = logger
	app.logClose = closer
	return nil
}

func (app *App) teardown() {
	if app.logClose != nil {
		_ = app.logClose.Close()
		app.logClose = nil
	}
}

// applyFlags overlays explicitly set flags on cfg.
func (app *App) applyFlags(cfg *config.Config) {
	if app.Model != "" {
		cfg.Model.Name = app.Model
	}
	if app.Endpoint != "" {
		cfg.Model.Endpoint = app.Endpoint
	}
	if app.LogLevel != "" {
		cfg.Log.Level = app.LogLevel
	}
	if app.LogFile != "" {
		cfg.Log.File = app.LogFile
	}
}

// initialModes turns the mode flags into starting modes.
func (app *App) initialModes() (modes.Modes, error) {
	src, err := modes.ParseSource(app.Source)
	if err != nil {
		return modes.Modes{}, err
	}
	m := modes.Modes{
		Incognito: app.Incognito,
		Research:  app.Research || src != modes.SourceNone,
		Source:    src,
	}
	if !m.Valid() {
		return modes.Modes{}, errors.New("--incognito cannot be combined with --research or --source")
	}
	return m, nil
}

// newClient creates an Ollama client from the resolved settings.
func (app *App) newClient() *ollama.Client {
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      app.cfg.Model.Endpoint,
		Timeout:      app.cfg.Model.Timeout(),
		DefaultModel: app.cfg.Model.Name,
	})
}

func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" {
			return true
		}
	}
	return false
}
