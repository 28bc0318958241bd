// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the lokalchat command line.
//
// The root command opens the deck UI. Subcommands cover the console chat,
// one-shot questions, model management, the exchange journal, saved
// sessions, export and configuration.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lokalchat/internal/bot"
	"github.com/jeranaias/lokalchat/internal/config"
	"github.com/jeranaias/lokalchat/internal/journal"
	"github.com/jeranaias/lokalchat/internal/logging"
	"github.com/jeranaias/lokalchat/internal/ollama"
	"github.com/jeranaias/lokalchat/internal/storage"
)

// Version info, set at build time with -ldflags.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APP
// =============================================================================

// App holds the global flags and the dependencies built from them.
type App struct {
	ConfigPath string
	Model      string
	Test       bool
	Verbose    bool

	In  io.Reader
	Out io.Writer
	Err io.Writer

	cfg      *config.Config
	closeLog func() error
}

// NewApp returns an App wired to the process stdio.
func NewApp() *App {
	return &App{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Config returns the loaded configuration. It is nil before a command runs.
func (a *App) Config() *config.Config {
	return a.cfg
}

// setup loads the configuration, applies the global flags and installs the
// logger. It runs before every command.
func (a *App) setup() error {
	var (
		cfg *config.Config
		err error
	)
	if a.ConfigPath != "" {
		cfg, err = config.LoadFromPath(a.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.Model != "" {
		cfg.Ollama.Model = a.Model
	}
	if a.Test {
		cfg.Chat.TestMode = true
	}
	if a.Verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg

	closeLog, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Path:   cfg.LogPath(),
	})
	if err != nil {
		return err
	}
	a.closeLog = closeLog

	slog.Debug("config loaded", "path", cfg.Path(), "model", cfg.Ollama.Model, "test_mode", cfg.Chat.TestMode)
	return nil
}

func (a *App) teardown() error {
	if a.closeLog == nil {
		return nil
	}
	err := a.closeLog()
	a.closeLog = nil
	return err
}

// client builds an Ollama client from the [ollama] section.
func (a *App) client() *ollama.Client {
	oc := a.cfg.Ollama
	return ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:           oc.URL,
		Timeout:           time.Duration(oc.TimeoutSecs) * time.Second,
		DefaultModel:      oc.Model,
		MaxRetries:        oc.MaxRetries,
		RetryDelay:        time.Second,
		RequestsPerSecond: oc.RequestsPerSecond,
	})
}

// responder builds the chatbot used for conversations: the test bot in test
// mode, the Ollama bot otherwise, journaled when the journal opens. The
// returned function releases the journal.
func (a *App) responder() (bot.Responder, func()) {
	var r bot.Responder
	if a.cfg.Chat.TestMode {
		r = bot.NewTestBot()
	} else {
		r = bot.NewOllamaBot(a.client(), a.cfg.Ollama.Model)
	}

	j, err := journal.Open(a.cfg.JournalPath())
	if err != nil {
		slog.Warn("journal unavailable, exchanges will not be recorded", "error", err)
		return r, func() {}
	}
	return bot.Journaled(r, j), func() {
		if err := j.Close(); err != nil {
			slog.Warn("failed to close journal", "error", err)
		}
	}
}

// workspace opens the prompt memory and row variant files.
func (a *App) workspace() *storage.Workspace {
	return storage.NewWorkspace(a.cfg.MemoryPath(), a.cfg.RowsPath())
}

func (a *App) sessions() (*storage.SessionStore, error) {
	return storage.NewSessionStore(a.cfg.SessionsPath())
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the command tree around app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "lokalchat",
		Short: "Chat with a local Ollama model",
		Long: `lokalchat is a front end for a model served by a local Ollama runtime.

Without a subcommand it opens the deck: a list of prompt rows, each with
alternative variants. Submitting a row sends the active rows above it to the
model and files the reply into the next row.

Examples:
  lokalchat                      Open the deck
  lokalchat chat                 Plain console chat
  lokalchat ask "What is Go?"    Ask one question
  echo "Hi" | lokalchat ask      Ask from stdin
  lokalchat pull mistral         Download a model
  lokalchat --test               Use canned test replies`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.teardown()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runDeck(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&app.ConfigPath, "config", "c", "", "config file (default ~/.lokalchat/config.toml)")
	flags.StringVarP(&app.Model, "model", "m", "", "model to use, overrides the config")
	flags.BoolVar(&app.Test, "test", false, "answer with test replies instead of calling Ollama")
	flags.BoolVarP(&app.Verbose, "verbose", "v", false, "log at debug level")

	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	root.AddCommand(
		newChatCmd(app),
		newAskCmd(app),
		newModelsCmd(app),
		newPullCmd(app),
		newServeCmd(app),
		newHistoryCmd(app),
		newSessionsCmd(app),
		newExportCmd(app),
		newConfigCmd(app),
		newDoctorCmd(app),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line and reports a failure on stderr. Interrupts
// cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := NewApp()
	err := NewRootCmd(app).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(app.Err, ErrorStyle.Render("Error: "+err.Error()))
	}
	_ = app.teardown()
	return err
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lokalchat %s\n", Version)
			fmt.Fprintf(out, "  commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  built:  %s\n", BuildDate)
			return nil
		},
	}
}
