// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNER
// =============================================================================

// ThinkingSpinner is an ASCII spinner for pending replies.
var ThinkingSpinner = spinner.Spinner{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    time.Second / 10,
}

// =============================================================================
// PROGRESS BAR
// =============================================================================

var (
	ProgressFull    = "#"
	ProgressEmpty   = "-"
	ProgressPartial = []string{".", ":", "+"}
)

// RenderProgressBar draws a bar width characters wide for percent (0-100).
// Values outside that range are clamped; a non-positive width gives "".
func RenderProgressBar(width int, percent float64) string {
	if width <= 0 {
		return ""
	}
	percent = max(0, min(100, percent))

	filled := float64(width) * percent / 100
	full := int(filled)
	partial := int((filled - float64(full)) * float64(len(ProgressPartial)+1))

	var sb strings.Builder
	sb.Grow(width)
	sb.WriteString(strings.Repeat(ProgressFull, full))
	if full < width && partial > 0 {
		sb.WriteString(ProgressPartial[partial-1])
		full++
	}
	sb.WriteString(strings.Repeat(ProgressEmpty, width-full))
	return sb.String()
}
