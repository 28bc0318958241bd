// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lokalchat/internal/bot"
	"github.com/jeranaias/lokalchat/internal/deck"
)

// =============================================================================
// MESSAGES
// =============================================================================

// ReplyMsg carries the answer to a submitted row.
type ReplyMsg struct {
	Pos   int
	Reply string
	Err   error
}

// ModelChangedMsg switches the model shown in the header and used for
// later requests. The config watcher sends it.
type ModelChangedMsg struct {
	Model string
}

// StatusMsg shows a line in the status bar.
type StatusMsg struct {
	Text  string
	Error bool
}

// clearStatusMsg hides the status line set at the given time.
type clearStatusMsg struct {
	set time.Time
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// AskCmd sends prompt for the row at pos and reports the answer as a ReplyMsg.
func AskCmd(ctx context.Context, responder bot.Responder, pos int, prompt []deck.Variant) tea.Cmd {
	return func() tea.Msg {
		reply, err := deck.Ask(ctx, responder, pos, prompt)
		return ReplyMsg{Pos: pos, Reply: reply, Err: err}
	}
}

// statusTimeout hides status lines after a few seconds.
const statusTimeout = 4 * time.Second

func clearStatusAfter(set time.Time) tea.Cmd {
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{set: set}
	})
}
