// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package deck holds the editable stack of prompt rows behind the chat UI.
//
// Each row keeps one or more alternative texts (variants) and shows one of
// them at a time. Submitting a row sends the active rows up to and including
// it to the model and files the reply into the row below, so a conversation
// can be rewound and branched at any point.
//
// A Deck is not safe for concurrent use; the UI owns it on a single goroutine.
package deck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jeranaias/lokalchat/internal/bot"
	"github.com/jeranaias/lokalchat/internal/ollama"
)

// =============================================================================
// TYPES
// =============================================================================

// Variant is one alternative text of a row. It has the shape of a chat message.
type Variant = ollama.Message

const (
	// NewVariantText fills a variant created by stepping past the last one.
	NewVariantText = "New"
	// PlaceholderText fills the user row appended after a reply.
	PlaceholderText = "Def:"
	// ReplyErrorPrefix starts the reply text shown when the model call fails.
	ReplyErrorPrefix = "There was a problem connecting to the bot. Error: "
)

var (
	// ErrRowOutOfRange is returned for a position outside the deck.
	ErrRowOutOfRange = errors.New("row position out of range")
	// ErrEmptyDeck is returned when a deck would have no rows.
	ErrEmptyDeck = errors.New("deck has no rows")
)

// Row is one prompt field with its variants.
type Row struct {
	ID       string
	Variants []Variant
	Current  int
	Active   bool
}

// NewRow creates an active row holding a single variant.
func NewRow(role, content string) *Row {
	return &Row{
		ID:       uuid.NewString(),
		Variants: []Variant{{Role: role, Content: content}},
		Active:   true,
	}
}

// Prompt returns the selected variant.
func (r *Row) Prompt() Variant {
	return r.Variants[r.Current]
}

// Role returns the role of the selected variant.
func (r *Row) Role() string {
	return r.Variants[r.Current].Role
}

// Content returns the text of the selected variant.
func (r *Row) Content() string {
	return r.Variants[r.Current].Content
}

// Deck is the ordered list of rows; a row's position is its index.
type Deck struct {
	Rows []*Row
}

// Store persists what a submit saves: every row's variants and the prompt
// that was sent. PruneRows drops saved rows at position n and beyond.
type Store interface {
	SaveRow(pos int, variants []Variant) error
	PruneRows(n int) error
	SavePrompt(prompt []Variant) error
}

// RowSource loads previously saved row variants. A missing row is reported
// with an error matching fs.ErrNotExist.
type RowSource interface {
	LoadRow(pos int) ([]Variant, error)
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

// FromMessages builds one active single-variant row per message. An empty
// list yields a single empty user row.
func FromMessages(msgs []ollama.Message) *Deck {
	d := &Deck{}
	for _, m := range msgs {
		d.Rows = append(d.Rows, NewRow(m.Role, m.Content))
	}
	if len(d.Rows) == 0 {
		d.Rows = append(d.Rows, NewRow(ollama.RoleUser, ""))
	}
	return d
}

// Len returns the number of rows.
func (d *Deck) Len() int {
	return len(d.Rows)
}

// Row returns the row at pos.
func (d *Deck) Row(pos int) (*Row, error) {
	if pos < 0 || pos >= len(d.Rows) {
		return nil, fmt.Errorf("%w: %d (deck has %d rows)", ErrRowOutOfRange, pos, len(d.Rows))
	}
	return d.Rows[pos], nil
}

// Append adds a new active row at the end and returns its position.
func (d *Deck) Append(role, content string) int {
	d.Rows = append(d.Rows, NewRow(role, content))
	return len(d.Rows) - 1
}

// Validate checks the structural invariants.
func (d *Deck) Validate() error {
	if len(d.Rows) == 0 {
		return ErrEmptyDeck
	}
	for i, r := range d.Rows {
		if len(r.Variants) == 0 {
			return fmt.Errorf("row %d has no variants", i)
		}
		if r.Current < 0 || r.Current >= len(r.Variants) {
			return fmt.Errorf("row %d selects variant %d of %d", i, r.Current, len(r.Variants))
		}
	}
	return nil
}

// =============================================================================
// ROW OPERATIONS
// =============================================================================

// Compose returns the selected variant of every active row up to and
// including pos, in order.
func (d *Deck) Compose(pos int) ([]Variant, error) {
	if _, err := d.Row(pos); err != nil {
		return nil, err
	}
	prompt := make([]Variant, 0, pos+1)
	for _, r := range d.Rows[:pos+1] {
		if r.Active {
			prompt = append(prompt, r.Prompt())
		}
	}
	return prompt, nil
}

// SetContent replaces the text of the selected variant.
func (d *Deck) SetContent(pos int, text string) error {
	r, err := d.Row(pos)
	if err != nil {
		return err
	}
	r.Variants[r.Current].Content = text
	return nil
}

// Clear empties the text of the selected variant.
func (d *Deck) Clear(pos int) error {
	return d.SetContent(pos, "")
}

// Back selects the previous variant. It reports false when the first
// variant is already selected.
func (d *Deck) Back(pos int) (bool, error) {
	r, err := d.Row(pos)
	if err != nil {
		return false, err
	}
	if r.Current == 0 {
		slog.Debug("already at first variant", "row", pos)
		return false, nil
	}
	r.Current--
	return true, nil
}

// Forward selects the next variant, creating one with the same role and the
// text "New" when the last variant is selected. It reports whether a
// variant was created.
func (d *Deck) Forward(pos int) (bool, error) {
	r, err := d.Row(pos)
	if err != nil {
		return false, err
	}
	created := false
	if r.Current == len(r.Variants)-1 {
		r.Variants = append(r.Variants, Variant{Role: r.Role(), Content: NewVariantText})
		created = true
	}
	r.Current++
	return created, nil
}

// ToggleActive flips whether the row takes part in composed prompts and
// returns the new state.
func (d *Deck) ToggleActive(pos int) (bool, error) {
	r, err := d.Row(pos)
	if err != nil {
		return false, err
	}
	r.Active = !r.Active
	return r.Active, nil
}

// CycleRole moves the selected variant's role through system, user and
// assistant, returning the new role.
func (d *Deck) CycleRole(pos int) (string, error) {
	r, err := d.Row(pos)
	if err != nil {
		return "", err
	}
	next := map[string]string{
		ollama.RoleSystem:    ollama.RoleUser,
		ollama.RoleUser:      ollama.RoleAssistant,
		ollama.RoleAssistant: ollama.RoleSystem,
	}[r.Role()]
	if next == "" {
		next = ollama.RoleUser
	}
	r.Variants[r.Current].Role = next
	return next, nil
}

// ApplyReply files a reply below pos. An existing next row gains the reply
// as a new selected variant; otherwise an assistant row with the reply and a
// user placeholder row are appended.
func (d *Deck) ApplyReply(pos int, reply string) error {
	if _, err := d.Row(pos); err != nil {
		return err
	}
	v := ollama.NewAssistantMessage(reply)

	if pos < len(d.Rows)-1 {
		next := d.Rows[pos+1]
		next.Variants = append(next.Variants, v)
		next.Current = len(next.Variants) - 1
		return nil
	}

	d.Rows = append(d.Rows,
		NewRow(v.Role, v.Content),
		NewRow(ollama.RoleUser, PlaceholderText),
	)
	return nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// Prepare composes the prompt for pos and, when store is non-nil, saves every
// row's variants and the prompt first. Save failures are logged; they do not
// stop the request.
func (d *Deck) Prepare(pos int, store Store) ([]Variant, error) {
	prompt, err := d.Compose(pos)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return prompt, nil
	}
	for i, r := range d.Rows {
		if err := store.SaveRow(i, r.Variants); err != nil {
			slog.Warn("failed to save row variants", "row", i, "error", err)
		}
	}
	if err := store.PruneRows(len(d.Rows)); err != nil {
		slog.Warn("failed to prune row variants", "error", err)
	}
	if err := store.SavePrompt(prompt); err != nil {
		slog.Warn("failed to save prompt", "error", err)
	}
	return prompt, nil
}

// Ask sends prompt for the row at pos and returns the text to show. When the
// responder fails the text describes the error, which is returned as well.
func Ask(ctx context.Context, responder bot.Responder, pos int, prompt []Variant) (string, error) {
	reply, err := responder.Respond(bot.WithRow(ctx, pos), prompt)
	if err != nil {
		slog.Error("error communicating with ollama", "row", pos, "error", err)
		return ReplyErrorPrefix + err.Error(), err
	}
	slog.Info("reply received", "row", pos, "model", bot.ModelName(responder), "chars", len(reply))
	return reply, nil
}

// =============================================================================
// RESTORE
// =============================================================================

// Restore replaces each row's variants with the saved list and selects the
// saved variant equal to the row's current prompt; with duplicates the last
// one wins. When nothing matches, the current prompt is kept as an extra
// selected variant. Rows without a saved list are left alone. It returns how
// many rows were restored.
func (d *Deck) Restore(src RowSource) int {
	restored := 0
	for i, r := range d.Rows {
		saved, err := src.LoadRow(i)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				slog.Warn("failed to load row variants", "row", i, "error", err)
			}
			continue
		}
		if len(saved) == 0 {
			continue
		}

		current := r.Prompt()
		match := -1
		for j, v := range saved {
			if v == current {
				match = j
			}
		}
		if match < 0 {
			saved = append(saved, current)
			match = len(saved) - 1
		}
		r.Variants = saved
		r.Current = match
		restored++
	}
	return restored
}

// =============================================================================
// PRESENTATION HELPERS
// =============================================================================

// TextHeight returns how many lines an editor for content should show: the
// number of lines as typed plus the number of lines after re-wrapping at
// wordsPerLine words, capped at maxLines.
func TextHeight(content string, wordsPerLine, maxLines int) int {
	if wordsPerLine < 1 {
		wordsPerLine = 1
	}
	if maxLines < 1 {
		maxLines = 1
	}
	typed := strings.Count(content, "\n") + 1
	wrapped := strings.Count(WrapWords(content, wordsPerLine), "\n") + 1
	return min(typed+wrapped, maxLines)
}

// WrapWords joins the words of text into lines of at most n words.
func WrapWords(text string, n int) string {
	words := strings.Fields(text)
	if n < 1 {
		n = 1
	}
	lines := make([]string, 0, len(words)/n+1)
	for i := 0; i < len(words); i += n {
		lines = append(lines, strings.Join(words[i:min(i+n, len(words))], " "))
	}
	return strings.Join(lines, "\n")
}

// RoleLabel returns the display caption for a role, e.g. "Assistant".
func RoleLabel(role string) string {
	if role == "" {
		return "None"
	}
	return cases.Title(language.English).String(role)
}
