// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package console is the line-oriented chat loop behind "lokalchat chat".
//
// Every line typed is sent together with the most recent messages of the
// conversation; the reply is printed word-wrapped (or rendered as Markdown)
// and kept for the next turn. Typing exit, quit or bye ends the loop.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jeranaias/lokalchat/internal/bot"
	"github.com/jeranaias/lokalchat/internal/ollama"
	"github.com/jeranaias/lokalchat/internal/storage"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	bannerStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	botLabelStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)
)

// =============================================================================
// CONSOLE
// =============================================================================

const (
	// DefaultContextWindow is how many trailing messages are sent per turn.
	DefaultContextWindow = 10
	// DefaultWrapWidth is the column replies are wrapped at.
	DefaultWrapWidth = 80

	// Prompt is shown before every input line.
	Prompt = "You: "
	// Goodbye is printed when the user leaves.
	Goodbye = "See you soon!"
)

// exitWords end the loop when typed on their own, in any case.
var exitWords = map[string]bool{"exit": true, "quit": true, "bye": true}

// LineReader supplies input lines. Prompt returns io.EOF when input ends or
// the user aborts.
type LineReader interface {
	Prompt(prompt string) (string, error)
}

// Options configure a Console.
type Options struct {
	Responder     bot.Responder
	ContextWindow int
	WrapWidth     int
	Markdown      bool

	// Sessions receives the transcript on exit and on /save. Nil disables saving.
	Sessions *storage.SessionStore
}

// Console holds one chat conversation.
type Console struct {
	opts     Options
	session  *storage.Session
	renderer *glamour.TermRenderer
	out      io.Writer
}

// New creates a console. Zero values in opts fall back to the defaults.
func New(opts Options) *Console {
	if opts.ContextWindow < 1 {
		opts.ContextWindow = DefaultContextWindow
	}
	if opts.WrapWidth < 1 {
		opts.WrapWidth = DefaultWrapWidth
	}
	c := &Console{
		opts:    opts,
		session: &storage.Session{Model: bot.ModelName(opts.Responder)},
	}
	if opts.Markdown {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(opts.WrapWidth),
		)
		if err != nil {
			slog.Warn("markdown renderer unavailable, using plain output", "error", err)
		} else {
			c.renderer = r
		}
	}
	return c
}

// Session returns the transcript so far.
func (c *Console) Session() *storage.Session {
	return c.session
}

// Run reads lines from r until an exit word, end of input or ctx ends, and
// writes everything to w. The transcript is saved before returning.
func (c *Console) Run(ctx context.Context, r LineReader, w io.Writer) error {
	c.out = w
	c.printBanner()
	defer c.saveSession(false)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		input, err := r.Prompt(Prompt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(w)
				fmt.Fprintln(w, Goodbye)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if exitWords[strings.ToLower(input)] {
			fmt.Fprintln(w, Goodbye)
			return nil
		}
		if strings.HasPrefix(input, "/") {
			c.handleCommand(input)
			continue
		}

		c.turn(ctx, input)
	}
}

// turn sends one user line and prints the reply.
func (c *Console) turn(ctx context.Context, input string) {
	c.session.Add(ollama.RoleUser, input)

	reply, err := c.opts.Responder.Respond(ctx, c.window())
	if err != nil {
		slog.Error("error communicating with ollama", "error", err)
		fmt.Fprintln(c.out, errorStyle.Render("Error communicating with Ollama: "+err.Error()))
		return
	}

	fmt.Fprintf(c.out, "%s %s\n", botLabelStyle.Render("Bot:"), c.format(reply))
	c.session.Add(ollama.RoleAssistant, reply)
}

// window returns the trailing messages sent with each turn.
func (c *Console) window() []ollama.Message {
	msgs := c.session.ChatMessages()
	if len(msgs) > c.opts.ContextWindow {
		msgs = msgs[len(msgs)-c.opts.ContextWindow:]
	}
	return msgs
}

// format renders reply as Markdown when enabled, otherwise wraps it.
func (c *Console) format(reply string) string {
	if c.renderer != nil {
		if out, err := c.renderer.Render(reply); err == nil {
			return "\n" + strings.TrimRight(out, "\n")
		}
	}
	return wordwrap.String(reply, c.opts.WrapWidth)
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (c *Console) handleCommand(input string) {
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])

	switch cmd {
	case "/help", "/h":
		c.printHelp()

	case "/clear", "/c":
		c.session.Messages = nil
		fmt.Fprintln(c.out, infoStyle.Render("Conversation cleared."))

	case "/model", "/m":
		if len(parts) < 2 {
			fmt.Fprintf(c.out, "Current model: %s\n", commandStyle.Render(bot.ModelName(c.opts.Responder)))
			return
		}
		if !bot.SwitchModel(c.opts.Responder, parts[1]) {
			fmt.Fprintln(c.out, errorStyle.Render("This responder cannot switch models."))
			return
		}
		c.session.Model = parts[1]
		fmt.Fprintf(c.out, "Switched to model: %s\n", commandStyle.Render(parts[1]))

	case "/save":
		if id := c.saveSession(true); id != "" {
			fmt.Fprintf(c.out, "Session saved: %s\n", commandStyle.Render(id))
		}

	default:
		fmt.Fprintln(c.out, errorStyle.Render("Unknown command: "+cmd))
		fmt.Fprintln(c.out, infoStyle.Render("Type /help for available commands."))
	}
}

// saveSession stores the transcript and returns its ID. Empty transcripts
// are only saved when forced.
func (c *Console) saveSession(force bool) string {
	if c.opts.Sessions == nil {
		if force {
			fmt.Fprintln(c.out, errorStyle.Render("Session saving is disabled."))
		}
		return ""
	}
	if len(c.session.Messages) == 0 && !force {
		return ""
	}
	id, err := c.opts.Sessions.Save(c.session)
	if err != nil {
		slog.Warn("failed to save session", "error", err)
		fmt.Fprintln(c.out, errorStyle.Render("Could not save session: "+err.Error()))
		return ""
	}
	slog.Info("session saved", "id", id, "messages", len(c.session.Messages))
	return id
}

// =============================================================================
// OUTPUT
// =============================================================================

func (c *Console) printBanner() {
	model := bot.ModelName(c.opts.Responder)
	fmt.Fprintln(c.out, bannerStyle.Render("lokalchat"))
	if model != "" {
		fmt.Fprintln(c.out, infoStyle.Render("You are talking to the chatbot: "+model))
	}
	fmt.Fprintln(c.out, infoStyle.Render("Type exit, quit or bye to leave. /help lists commands."))
	fmt.Fprintln(c.out)
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, bannerStyle.Render("Commands"))
	help := []struct{ cmd, desc string }{
		{"/help, /h", "Show this help"},
		{"/clear, /c", "Forget the conversation so far"},
		{"/model [name]", "Show or switch the model"},
		{"/save", "Save the transcript now"},
		{"exit, quit, bye", "Leave the chat"},
	}
	for _, h := range help {
		fmt.Fprintf(c.out, "  %s  %s\n", commandStyle.Render(fmt.Sprintf("%-16s", h.cmd)), infoStyle.Render(h.desc))
	}
}
