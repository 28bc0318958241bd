// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/lokalchat/internal/deck"
	"github.com/jeranaias/lokalchat/internal/storage"
	"github.com/jeranaias/lokalchat/internal/util"
)

// =============================================================================
// DOCUMENT
// =============================================================================

// Source names where a document came from.
const (
	SourceDeck    = "deck"
	SourceSession = "session"
)

// Entry is one message of an exported document.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Document is a conversation ready for export.
type Document struct {
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Source    string    `json:"source"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Entry   `json:"messages"`
}

// ErrEmpty is returned when a document has no messages to export.
var ErrEmpty = errors.New("nothing to export")

// FromDeck builds a document from the prompt composed at pos.
func FromDeck(d *deck.Deck, pos int, model string) (*Document, error) {
	prompt, err := d.Compose(pos)
	if err != nil {
		return nil, err
	}
	doc := &Document{
		Model:     model,
		Source:    SourceDeck,
		Rows:      d.Len(),
		CreatedAt: time.Now(),
	}
	for _, v := range prompt {
		doc.Messages = append(doc.Messages, Entry{Role: v.Role, Content: v.Content})
	}
	doc.Title = titleFrom(doc.Messages, "Deck")
	return doc, nil
}

// FromSession builds a document from a saved console session.
func FromSession(s *storage.Session) *Document {
	doc := &Document{
		Title:     s.Summary,
		Model:     s.Model,
		Source:    SourceSession,
		Rows:      len(s.Messages),
		CreatedAt: s.CreatedAt,
	}
	for _, m := range s.Messages {
		doc.Messages = append(doc.Messages, Entry{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp})
	}
	if doc.Title == "" {
		doc.Title = titleFrom(doc.Messages, "Session")
	}
	return doc
}

func titleFrom(entries []Entry, fallback string) string {
	for _, e := range entries {
		if e.Role == "user" && strings.TrimSpace(e.Content) != "" {
			return util.TruncateRunes(util.SingleLine(e.Content), 50)
		}
	}
	return fallback
}

// =============================================================================
// EXPORTERS
// =============================================================================

// Exporter turns a document into bytes of one format.
type Exporter interface {
	Export(doc *Document) ([]byte, error)

	// FileExtension returns the file extension including the dot.
	FileExtension() string
}

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds front matter and a session information block.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times where known.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{IncludeMetadata: true, IncludeTimestamps: true}
}

// Formats lists the accepted format names.
var Formats = []string{"md", "json"}

// ForFormat returns the exporter for a format name ("md", "markdown" or "json").
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(format) {
	case "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (use %s)", format, strings.Join(Formats, " or "))
	}
}

// ToFile exports doc into dir under a generated name and returns the path.
func ToFile(doc *Document, exp Exporter, dir string) (string, error) {
	content, err := exp.Export(doc)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s%s",
		doc.Source,
		sanitizeFilename(doc.Title),
		time.Now().Format("20060102_150405"),
		exp.FileExtension(),
	)
	path := filepath.Join(dir, name)
	if err := util.AtomicWriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in file names.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(s, 50)
	var sb strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			sb.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			sb.WriteRune('_')
		case r < 32 || r == 127:
			sb.WriteRune('-')
		default:
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "conversation"
	}
	return sb.String()
}
