// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lokalchat/internal/bot"
	"github.com/jeranaias/lokalchat/internal/deck"
	"github.com/jeranaias/lokalchat/internal/ollama"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.handleResize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ReplyMsg:
		return m.handleReply(msg)

	case ModelChangedMsg:
		return m.handleModelChanged(msg)

	case StatusMsg:
		return m, m.setStatus(msg.Text, msg.Error)

	case clearStatusMsg:
		if msg.set.Equal(m.statusAt) {
			m.status = ""
		}
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelMgr.stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.pending {
			m.cancelMgr.stop()
			return m, m.setStatus("Cancelling request...", false)
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		// hidden, short, full, hidden
		switch {
		case !m.showHelp:
			m.showHelp, m.help.ShowAll = true, false
		case !m.help.ShowAll:
			m.help.ShowAll = true
		default:
			m.showHelp, m.help.ShowAll = false, false
		}
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Up) && (msg.Type != tea.KeyUp || m.editor.Line() == 0):
		m.moveFocus(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down) && (msg.Type != tea.KeyDown || m.editor.Line() >= m.editor.LineCount()-1):
		m.moveFocus(1)
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.commitEditor()
		moved, _ := m.deck.Back(m.focus)
		m.loadEditor()
		m.refresh()
		if !moved {
			return m, m.setStatus("Already at the first variant", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Forward):
		m.commitEditor()
		created, _ := m.deck.Forward(m.focus)
		m.loadEditor()
		m.refresh()
		if created {
			return m, m.setStatus("New variant", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Clear):
		_ = m.deck.Clear(m.focus)
		m.loadEditor()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		m.commitEditor()
		active, _ := m.deck.ToggleActive(m.focus)
		m.refresh()
		if active {
			return m, m.setStatus(fmt.Sprintf("Row %d included", m.focus), false)
		}
		return m, m.setStatus(fmt.Sprintf("Row %d excluded", m.focus), false)

	case key.Matches(msg, m.keys.Role):
		m.commitEditor()
		role, _ := m.deck.CycleRole(m.focus)
		m.refresh()
		return m, m.setStatus("Role: "+deck.RoleLabel(role), false)

	case key.Matches(msg, m.keys.Copy):
		if err := m.copyText(m.editor.Value()); err != nil {
			slog.Warn("clipboard write failed", "error", err)
			return m, m.setStatus("Copy failed: "+err.Error(), true)
		}
		return m, m.setStatus("Copied to clipboard", false)

	case key.Matches(msg, m.keys.NewRow):
		m.commitEditor()
		m.focus = m.deck.Append(ollama.RoleUser, "")
		m.loadEditor()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	m.resizeEditor()
	m.refresh()
	return m, cmd
}

// moveFocus shifts the focused row by delta, staying inside the deck.
func (m *Model) moveFocus(delta int) {
	next := max(0, min(m.deck.Len()-1, m.focus+delta))
	if next == m.focus {
		return
	}
	m.commitEditor()
	m.focus = next
	m.loadEditor()
	m.refresh()
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.pending {
		return m, m.setStatus("Waiting for the previous reply", false)
	}
	if m.responder == nil {
		return m, m.setStatus("No chatbot configured", true)
	}

	m.commitEditor()
	prompt, err := m.deck.Prepare(m.focus, m.store)
	if err != nil {
		return m, m.setStatus(err.Error(), true)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelMgr.set(cancel)
	m.pending = true
	m.pendingPos = m.focus
	m.started = time.Now()
	m.refresh()

	slog.Debug("submitting row", "row", m.focus, "messages", len(prompt))
	return m, tea.Batch(AskCmd(ctx, m.responder, m.focus, prompt), m.spinner.Tick)
}

func (m Model) handleReply(msg ReplyMsg) (tea.Model, tea.Cmd) {
	m.pending = false
	m.cancelMgr.stop()

	if msg.Err != nil && (errors.Is(msg.Err, context.Canceled) || ollama.IsCanceled(msg.Err)) {
		m.refresh()
		return m, m.setStatus("Request cancelled", false)
	}

	m.commitEditor()
	if err := m.deck.ApplyReply(msg.Pos, msg.Reply); err != nil {
		return m, m.setStatus(err.Error(), true)
	}
	m.focus = min(msg.Pos+1, m.deck.Len()-1)
	m.loadEditor()
	m.refresh()

	if msg.Err != nil {
		return m, m.setStatus("Request failed: "+msg.Err.Error(), true)
	}
	return m, m.setStatus(fmt.Sprintf("Reply received in %s", time.Since(m.started).Round(100*time.Millisecond)), false)
}

func (m Model) handleModelChanged(msg ModelChangedMsg) (tea.Model, tea.Cmd) {
	if msg.Model == "" || msg.Model == m.modelName {
		return m, nil
	}
	if !bot.SwitchModel(m.responder, msg.Model) {
		return m, nil
	}
	m.modelName = msg.Model
	slog.Info("model changed", "model", msg.Model)
	return m, m.setStatus("Model switched to "+msg.Model, false)
}

// =============================================================================
// LAYOUT AND STATUS
// =============================================================================

func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.status = text
	m.statusErr = isErr
	m.statusAt = time.Now()
	return clearStatusAfter(m.statusAt)
}

func (m *Model) handleResize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)
	m.editor.SetWidth(m.theme.RowWidth())
	m.help.Width = width
	m.ready = true
	m.layout()
}

// layout sizes the viewport to what the header, status bar and help leave.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = max(m.height-m.chromeHeight(), 1)
	m.refresh()
}

// refresh re-renders the rows into the viewport and keeps the focused row
// in sight.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	content, top, bottom := m.renderRows()
	m.viewport.SetContent(content)

	switch {
	case top < m.viewport.YOffset:
		m.viewport.SetYOffset(top)
	case bottom >= m.viewport.YOffset+m.viewport.Height:
		m.viewport.SetYOffset(bottom - m.viewport.Height + 1)
	}
}
