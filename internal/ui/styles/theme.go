// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components of the deck UI.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderModel lipgloss.Style
	HeaderBrand lipgloss.Style

	// ==========================================================================
	// ROWS
	// ==========================================================================

	Row         lipgloss.Style
	RowFocused  lipgloss.Style
	RowInactive lipgloss.Style
	RowPosition lipgloss.Style
	RowVariant  lipgloss.Style
	RowText     lipgloss.Style
	ActiveMark  lipgloss.Style

	// ==========================================================================
	// STATUS AND HELP
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusError  lipgloss.Style
	StatusInfo   lipgloss.Style
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
}

// NewTheme creates a theme for the current terminal.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

// ApplyThemeName forces the palette for "light" or "dark"; any other name
// (including "auto") keeps the detected background.
func (t *Theme) ApplyThemeName(name string) {
	switch strings.ToLower(name) {
	case "dark":
		t.IsDark = true
	case "light":
		t.IsDark = false
	default:
		return
	}
	lipgloss.SetHasDarkBackground(t.IsDark)
	t.initStyles()
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Padding(0, 1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(Overlay)

	t.HeaderBrand = lipgloss.NewStyle().
		Foreground(Purple).
		Bold(true)

	t.HeaderModel = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Row = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OverlayDim).
		Padding(0, 1)

	t.RowFocused = t.Row.
		BorderForeground(Purple)

	t.RowInactive = t.Row.
		Foreground(TextMuted).
		BorderForeground(Overlay)

	t.RowPosition = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.RowVariant = lipgloss.NewStyle().
		Foreground(Cyan)

	t.RowText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.ActiveMark = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.StatusInfo = lipgloss.NewStyle().
		Foreground(Emerald)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// RoleLabel returns the style for a row's role caption.
func (t *Theme) RoleLabel(role string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(RoleColor(role)).
		Bold(true)
}

// SetSize records the terminal dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// RowWidth is the inner width available to row text.
func (t *Theme) RowWidth() int {
	// border (2) + padding (2)
	return max(t.Width-t.Row.GetHorizontalFrameSize(), 10)
}
