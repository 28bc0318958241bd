// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and Lip Gloss styles shared by the deck
UI, the console chat and the CLI output.

# Colors (colors.go)

All colors are lipgloss.AdaptiveColor values, so they follow the terminal
background:

  - Purple - headers and the focused row border
  - Cyan - commands, key hints and the model name
  - Emerald - success and the Bot label
  - Amber - warnings and inactive rows
  - Rose - errors

Role colors (RoleColor) tell system, user and assistant rows apart.

# Theme (theme.go)

NewTheme detects the terminal's color profile and background with termenv
and builds every style the deck UI renders. ApplyThemeName forces a light
or dark palette when the configuration asks for one.

# Progress (progress.go)

RenderProgressBar draws the ASCII bar used by "lokalchat pull", and
ThinkingSpinner is the spinner shown while a reply is pending.
*/
package styles
