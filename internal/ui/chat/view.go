// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lokalchat/internal/deck"
	"github.com/jeranaias/lokalchat/internal/util"
)

// HeaderPrefix starts the header line; the model name follows it.
const HeaderPrefix = "You are talking to the chatbot: "

// =============================================================================
// MAIN RENDER
// =============================================================================

// View implements tea.Model.
// Layout: header + rows (viewport) + status bar + help.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	parts := []string{m.renderHeader(), m.viewport.View(), m.renderStatusBar()}
	if m.showHelp {
		parts = append(parts, m.renderHelp())
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// chromeHeight is the number of lines outside the viewport.
func (m Model) chromeHeight() int {
	h := lipgloss.Height(m.renderHeader()) + 1 // status bar
	if m.showHelp {
		h += lipgloss.Height(m.renderHelp())
	}
	return h
}

func (m Model) renderHeader() string {
	model := m.modelName
	if model == "" {
		model = "none"
	}
	line := m.theme.HeaderBrand.Render("lokalchat") + "  " +
		HeaderPrefix + m.theme.HeaderModel.Render(model)
	return m.theme.Header.Width(max(m.width-m.theme.Header.GetHorizontalBorderSize(), 0)).Render(line)
}

func (m Model) renderStatusBar() string {
	var left string
	switch {
	case m.pending:
		elapsed := time.Since(m.started).Round(time.Second)
		left = m.spinner.View() + " " + m.theme.ThinkingText.Render(fmt.Sprintf("Waiting for row %d (%s)", m.pendingPos, elapsed))
	case m.status != "" && m.statusErr:
		left = m.theme.StatusError.Render(m.status)
	case m.status != "":
		left = m.theme.StatusInfo.Render(m.status)
	}

	right := m.theme.ShortcutDesc.Render(fmt.Sprintf("row %d/%d", m.focus, m.deck.Len()-1))
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderHelp() string {
	if m.help.ShowAll {
		return m.help.FullHelpView(m.keys.FullHelp())
	}
	return m.help.ShortHelpView(m.keys.ShortHelp())
}

// =============================================================================
// ROWS
// =============================================================================

// renderRows draws every row and returns the first and last line of the
// focused row within the result.
func (m Model) renderRows() (content string, top, bottom int) {
	var sb strings.Builder
	line := 0
	for i, row := range m.deck.Rows {
		block := m.renderRow(i, row)
		h := lipgloss.Height(block)
		if i == m.focus {
			top, bottom = line, line+h-1
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(block)
		line += h
	}
	return sb.String(), top, bottom
}

func (m Model) renderRow(pos int, row *deck.Row) string {
	mark := "[ ]"
	if row.Active {
		mark = m.theme.ActiveMark.Render("[x]")
	}
	caption := strings.Join([]string{
		mark,
		m.theme.RowPosition.Render(fmt.Sprintf("%d", pos)),
		m.theme.RowVariant.Render(fmt.Sprintf("%d/%d", row.Current+1, len(row.Variants))),
		m.theme.RoleLabel(row.Role()).Render(deck.RoleLabel(row.Role())),
	}, " ")

	width := m.theme.RowWidth()
	var body string
	if pos == m.focus {
		body = m.editor.View()
	} else {
		text := row.Content()
		lines := strings.Split(text, "\n")
		if len(lines) > m.maxTextLines {
			text = strings.Join(lines[:m.maxTextLines], "\n") + "\n..."
		}
		body = m.theme.RowText.Width(width).Render(util.TruncateWidth(text, width*m.maxTextLines))
	}

	style := m.theme.Row
	switch {
	case pos == m.focus:
		style = m.theme.RowFocused
	case !row.Active:
		style = m.theme.RowInactive
	}
	return style.Width(width + style.GetHorizontalPadding()).Render(caption + "\n" + body)
}
