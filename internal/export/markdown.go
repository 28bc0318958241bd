// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/lokalchat/internal/deck"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports documents to Markdown with YAML front matter.
type MarkdownExporter struct {
	options *Options
	now     func() time.Time
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts, now: time.Now}
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(doc *Document) ([]byte, error) {
	if doc == nil || len(doc.Messages) == 0 {
		return nil, ErrEmpty
	}
	exported := e.now()

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(doc.Title))
		fmt.Fprintf(&sb, "model: %s\n", escapeYAML(doc.Model))
		fmt.Fprintf(&sb, "source: %s\n", doc.Source)
		fmt.Fprintf(&sb, "rows: %d\n", doc.Rows)
		fmt.Fprintf(&sb, "messages: %d\n", len(doc.Messages))
		if !doc.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "date: %s\n", doc.CreatedAt.Format(time.RFC3339))
		}
		fmt.Fprintf(&sb, "exported: %s\n", exported.Format(time.RFC3339))
		sb.WriteString("generator: lokalchat\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(doc.Title))

	for i, msg := range doc.Messages {
		label := deck.RoleLabel(msg.Role)
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, msg.Timestamp.Format("15:04:05"))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
		if i < len(doc.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	fmt.Fprintf(&sb, "*Exported from lokalchat on %s*\n", exported.Format("January 2, 2006 at 3:04 PM"))
	return []byte(sb.String()), nil
}

// FileExtension implements Exporter.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	).Replace(s)
}

// yamlKeywords are plain scalars a YAML parser reads as booleans or null.
var yamlKeywords = map[string]bool{
	"true": true, "false": true, "yes": true, "no": true, "y": true, "n": true,
	"on": true, "off": true, "null": true, "~": true,
}

// escapeYAML quotes a scalar unless it would read back as the same string.
func escapeYAML(s string) string {
	if s == "" {
		return `""`
	}
	if !needsYAMLQuotes(s) {
		return s
	}
	s = strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	).Replace(s)
	return `"` + s + `"`
}

func needsYAMLQuotes(s string) bool {
	if strings.ContainsAny(s, ":#|>@`\"'[]{}!%&*,\n\r\t\\") {
		return true
	}
	if strings.HasPrefix(s, " ") || strings.HasSuffix(s, " ") {
		return true
	}
	// indicators and anything that may parse as a number
	if strings.ContainsRune("-?~+.0123456789", rune(s[0])) {
		return true
	}
	return yamlKeywords[strings.ToLower(s)]
}
