// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings of the deck view.
// Each binding supports multiple keys and includes help text for documentation.
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Submit  key.Binding
	Back    key.Binding
	Forward key.Binding
	Clear   key.Binding
	Toggle  key.Binding
	Role    key.Binding
	Copy    key.Binding
	NewRow  key.Binding
	Help    key.Binding
	Cancel  key.Binding
	Quit    key.Binding
}

// DefaultKeyMap returns the default key bindings.
//
// Up and Down only move between rows when the cursor is on the first or last
// line of the editor; otherwise they move the cursor inside the text.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "shift+tab"),
			key.WithHelp("up/S-tab", "previous row"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "tab"),
			key.WithHelp("down/tab", "next row"),
		),
		Submit: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("C-s", "submit"),
		),
		Back: key.NewBinding(
			key.WithKeys("alt+left", "ctrl+b"),
			key.WithHelp("A-left/C-b", "previous variant"),
		),
		Forward: key.NewBinding(
			key.WithKeys("alt+right", "ctrl+f"),
			key.WithHelp("A-right/C-f", "next variant"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "clear text"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("ctrl+a"),
			key.WithHelp("C-a", "toggle active"),
		),
		Role: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "cycle role"),
		),
		Copy: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("C-y", "copy row"),
		),
		NewRow: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new row"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "more help"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "cancel request / quit"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Back, k.Forward, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		// Rows
		{k.Up, k.Down, k.NewRow, k.Toggle},
		// Variants
		{k.Back, k.Forward, k.Clear, k.Role},
		// Actions
		{k.Submit, k.Copy, k.Cancel, k.Help, k.Quit},
	}
}
