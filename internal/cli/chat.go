// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/lokalchat/internal/bot"
	"github.com/jeranaias/lokalchat/internal/console"
	"github.com/jeranaias/lokalchat/internal/ollama"
)

// =============================================================================
// CHAT
// =============================================================================

func newChatCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start a console chat",
		Long: `Chat with the model line by line in the terminal.

The last context_window messages are sent with each question. Type exit,
quit or bye to leave; /help lists the slash commands. The transcript is
saved as a session on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			responder, release := app.responder()
			defer release()

			sessions, err := app.sessions()
			if err != nil {
				slog.Warn("sessions unavailable, transcript will not be saved", "error", err)
				sessions = nil
			}

			c := console.New(console.Options{
				Responder:     responder,
				ContextWindow: app.cfg.Chat.ContextWindow,
				WrapWidth:     app.cfg.Chat.WrapWidth,
				Markdown:      app.cfg.Chat.Markdown && isTerminal(app.Out),
				Sessions:      sessions,
			})

			reader, closeReader := app.lineReader()
			defer func() {
				if err := closeReader(); err != nil {
					slog.Warn("failed to save line history", "error", err)
				}
			}()
			return c.Run(cmd.Context(), reader, cmd.OutOrStdout())
		},
	}
}

// lineReader edits lines with history on an interactive stdin and scans
// plain lines from anything else.
func (a *App) lineReader() (console.LineReader, func() error) {
	if f, ok := a.In.(*os.File); ok && f == os.Stdin {
		return console.NewReader(a.cfg.HistoryPath())
	}
	return console.NewScanReader(a.In, nil), func() error { return nil }
}

// =============================================================================
// ASK
// =============================================================================

func newAskCmd(app *App) *cobra.Command {
	var raw, stream bool
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Ask a single question",
		Long: `Send one prompt to the model and print the reply.

The prompt is taken from the argument or, when none is given, from stdin.
With --stream the reply is printed as it is generated, without markdown
rendering.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := readPrompt(app.In, args)
			if err != nil {
				return err
			}

			responder, release := app.responder()
			defer release()

			msgs := []ollama.Message{ollama.NewUserMessage(prompt)}
			out := cmd.OutOrStdout()

			if stream {
				reply, err := bot.Stream(cmd.Context(), responder, msgs, func(chunk string) {
					fmt.Fprint(out, chunk)
				})
				if reply != "" && !strings.HasSuffix(reply, "\n") {
					fmt.Fprintln(out)
				}
				if err != nil {
					return fmt.Errorf("ask %s: %w", bot.ModelName(responder), err)
				}
				return nil
			}

			reply, err := responder.Respond(cmd.Context(), msgs)
			if err != nil {
				return fmt.Errorf("ask %s: %w", bot.ModelName(responder), err)
			}

			if !raw && app.cfg.Chat.Markdown && isTerminal(app.Out) {
				reply = renderMarkdown(reply, GetTerminalWidth())
			}
			fmt.Fprintln(out, strings.TrimRight(reply, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the reply without markdown rendering")
	cmd.Flags().BoolVar(&stream, "stream", false, "print the reply as it is generated")
	return cmd
}

// errNoPrompt is returned by ask without an argument or piped input.
var errNoPrompt = errors.New("no prompt given: pass it as an argument or pipe it on stdin")

// readPrompt returns the first argument, or stdin when it is not a terminal.
func readPrompt(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		if p := strings.TrimSpace(args[0]); p != "" {
			return p, nil
		}
		return "", errNoPrompt
	}
	if !hasPipedInput(in) {
		return "", errNoPrompt
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	p := strings.TrimSpace(string(data))
	if p == "" {
		return "", errNoPrompt
	}
	return p, nil
}

// hasPipedInput reports whether in carries data rather than a terminal.
func hasPipedInput(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return in != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice == 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderMarkdown renders text with glamour, falling back to the raw text.
func renderMarkdown(text string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}
