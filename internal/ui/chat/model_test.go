// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lokalchat/internal/bot"
	"github.com/jeranaias/lokalchat/internal/deck"
	"github.com/jeranaias/lokalchat/internal/ollama"
)

// =============================================================================
// HELPERS
// =============================================================================

type fixedBot struct {
	model string
	reply string
	err   error
	seen  [][]ollama.Message
}

func (b *fixedBot) Respond(_ context.Context, msgs []ollama.Message) (string, error) {
	b.seen = append(b.seen, msgs)
	return b.reply, b.err
}

func (b *fixedBot) ModelName() string  { return b.model }
func (b *fixedBot) SetModel(m string) { b.model = m }

type memStore struct {
	rows    map[int][]deck.Variant
	prompts [][]deck.Variant
}

func (s *memStore) SaveRow(pos int, v []deck.Variant) error {
	if s.rows == nil {
		s.rows = map[int][]deck.Variant{}
	}
	s.rows[pos] = append([]deck.Variant(nil), v...)
	return nil
}

func (s *memStore) PruneRows(n int) error {
	for pos := range s.rows {
		if pos >= n {
			delete(s.rows, pos)
		}
	}
	return nil
}

func (s *memStore) SavePrompt(p []deck.Variant) error {
	s.prompts = append(s.prompts, p)
	return nil
}

func newTestModel(t *testing.T, b bot.Responder, msgs ...ollama.Message) Model {
	t.Helper()
	m := New(Options{
		Deck:      deck.FromMessages(msgs),
		Responder: b,
		Clipboard: func(string) error { return nil },
	})
	return update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func updateCmd(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyMsg(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// findReply runs cmd (expanding batches) until it yields a ReplyMsg.
func findReply(t *testing.T, cmd tea.Cmd) ReplyMsg {
	t.Helper()
	require.NotNil(t, cmd)
	switch msg := cmd().(type) {
	case ReplyMsg:
		return msg
	case tea.BatchMsg:
		for _, c := range msg {
			if c == nil {
				continue
			}
			if r, ok := c().(ReplyMsg); ok {
				return r
			}
		}
	}
	t.Fatal("command produced no ReplyMsg")
	return ReplyMsg{}
}

// =============================================================================
// TESTS
// =============================================================================

func TestView_Header(t *testing.T) {
	m := newTestModel(t, &fixedBot{model: "mistral"})
	view := m.View()
	assert.Contains(t, view, HeaderPrefix+"mistral")
	assert.Contains(t, view, "[x]")
	assert.Contains(t, view, "1/1")
	assert.Contains(t, view, "User")
}

func TestView_BeforeResize(t *testing.T) {
	m := New(Options{Responder: bot.NewTestBot()})
	assert.Equal(t, "Loading...", m.View())
}

func TestSubmit_AppendsReplyRows(t *testing.T) {
	b := &fixedBot{model: "mistral", reply: "Hi there"}
	store := &memStore{}
	m := New(Options{
		Deck:      deck.FromMessages(nil),
		Responder: b,
		Store:     store,
		Clipboard: func(string) error { return nil },
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m = typeText(t, m, "Hello")

	m, cmd := updateCmd(t, m, keyMsg(tea.KeyCtrlS))
	assert.True(t, m.Pending())
	reply := findReply(t, cmd)
	assert.Equal(t, 0, reply.Pos)
	assert.Equal(t, "Hi there", reply.Reply)

	m = update(t, m, reply)
	assert.False(t, m.Pending())

	d := m.Deck()
	require.Equal(t, 3, d.Len())
	assert.Equal(t, "Hello", d.Rows[0].Content())
	assert.Equal(t, "assistant", d.Rows[1].Role())
	assert.Equal(t, "Hi there", d.Rows[1].Content())
	assert.Equal(t, deck.PlaceholderText, d.Rows[2].Content())
	assert.Equal(t, 1, m.Focus())

	require.Len(t, b.seen, 1)
	assert.Equal(t, []ollama.Message{{Role: "user", Content: "Hello"}}, b.seen[0])
	require.Len(t, store.prompts, 1)
	assert.Equal(t, "Hello", store.rows[0][0].Content)
}

func TestSubmit_IgnoredWhilePending(t *testing.T) {
	m := newTestModel(t, &fixedBot{reply: "x"})
	m, cmd := updateCmd(t, m, keyMsg(tea.KeyCtrlS))
	require.NotNil(t, cmd)

	m, _ = updateCmd(t, m, keyMsg(tea.KeyCtrlS))
	assert.True(t, m.Pending())
	assert.Equal(t, "Waiting for the previous reply", m.Status())
}

func TestSubmit_ErrorFilesErrorText(t *testing.T) {
	b := &fixedBot{err: errors.New("connection refused")}
	m := newTestModel(t, b, ollama.NewUserMessage("q"))

	m, cmd := updateCmd(t, m, keyMsg(tea.KeyCtrlS))
	reply := findReply(t, cmd)
	require.Error(t, reply.Err)

	m = update(t, m, reply)
	assert.Equal(t, deck.ReplyErrorPrefix+"connection refused", m.Deck().Rows[1].Content())
	assert.Contains(t, m.Status(), "Request failed")
}

func TestReply_CancelledIsDropped(t *testing.T) {
	m := newTestModel(t, &fixedBot{}, ollama.NewUserMessage("q"))
	m, _ = updateCmd(t, m, keyMsg(tea.KeyCtrlS))

	m = update(t, m, keyMsg(tea.KeyEsc))
	assert.Equal(t, "Cancelling request...", m.Status())

	m = update(t, m, ReplyMsg{Pos: 0, Err: context.Canceled})
	assert.False(t, m.Pending())
	assert.Equal(t, 1, m.Deck().Len())
	assert.Equal(t, "Request cancelled", m.Status())
}

func TestReply_IntoExistingRowAddsVariant(t *testing.T) {
	m := newTestModel(t, &fixedBot{},
		ollama.NewUserMessage("q"),
		ollama.NewAssistantMessage("old answer"),
	)
	m = update(t, m, ReplyMsg{Pos: 0, Reply: "new answer"})

	row := m.Deck().Rows[1]
	assert.Len(t, row.Variants, 2)
	assert.Equal(t, "new answer", row.Content())
	assert.Equal(t, 2, m.Deck().Len())
}

func TestFocusMovesBetweenRows(t *testing.T) {
	m := newTestModel(t, &fixedBot{},
		ollama.Message{Role: ollama.RoleSystem, Content: "be nice"},
		ollama.NewUserMessage("hi"),
	)
	assert.Equal(t, 0, m.Focus())

	m = update(t, m, keyMsg(tea.KeyDown))
	assert.Equal(t, 1, m.Focus())
	m = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, 1, m.Focus(), "focus stays on the last row")

	m = update(t, m, keyMsg(tea.KeyShiftTab))
	assert.Equal(t, 0, m.Focus())
	m = update(t, m, keyMsg(tea.KeyUp))
	assert.Equal(t, 0, m.Focus())
}

func TestEditsSurviveFocusChange(t *testing.T) {
	m := newTestModel(t, &fixedBot{},
		ollama.NewUserMessage(""),
		ollama.NewUserMessage("second"),
	)
	m = typeText(t, m, "typed")
	m = update(t, m, keyMsg(tea.KeyTab))
	assert.Equal(t, "typed", m.Deck().Rows[0].Content())
}

func TestVariantNavigation(t *testing.T) {
	m := newTestModel(t, &fixedBot{}, ollama.NewUserMessage("first"))

	m = update(t, m, keyMsg(tea.KeyCtrlB))
	assert.Equal(t, "Already at the first variant", m.Status())

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight, Alt: true})
	row := m.Deck().Rows[0]
	assert.Len(t, row.Variants, 2)
	assert.Equal(t, deck.NewVariantText, row.Content())

	m = update(t, m, keyMsg(tea.KeyCtrlB))
	assert.Equal(t, "first", m.Deck().Rows[0].Content())
	assert.Contains(t, m.View(), "1/2")
}

func TestClearToggleRole(t *testing.T) {
	m := newTestModel(t, &fixedBot{}, ollama.NewUserMessage("text"))

	m = update(t, m, keyMsg(tea.KeyCtrlD))
	assert.Equal(t, "", m.Deck().Rows[0].Content())

	m = update(t, m, keyMsg(tea.KeyCtrlA))
	assert.False(t, m.Deck().Rows[0].Active)
	assert.Equal(t, "Row 0 excluded", m.Status())

	m = update(t, m, keyMsg(tea.KeyCtrlR))
	assert.Equal(t, "assistant", m.Deck().Rows[0].Role())
	assert.Equal(t, "Role: Assistant", m.Status())
}

func TestNewRowAndCopy(t *testing.T) {
	var copied string
	m := New(Options{
		Deck:      deck.FromMessages([]ollama.Message{ollama.NewUserMessage("copy me")}),
		Responder: &fixedBot{},
		Clipboard: func(s string) error { copied = s; return nil },
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	m = update(t, m, keyMsg(tea.KeyCtrlY))
	assert.Equal(t, "copy me", copied)
	assert.Equal(t, "Copied to clipboard", m.Status())

	m = update(t, m, keyMsg(tea.KeyCtrlN))
	assert.Equal(t, 2, m.Deck().Len())
	assert.Equal(t, 1, m.Focus())
	assert.Equal(t, "user", m.Deck().Rows[1].Role())
}

func TestCopyFailure(t *testing.T) {
	m := New(Options{
		Responder: &fixedBot{},
		Clipboard: func(string) error { return errors.New("no clipboard") },
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m = update(t, m, keyMsg(tea.KeyCtrlY))
	assert.Equal(t, "Copy failed: no clipboard", m.Status())
}

func TestModelChanged(t *testing.T) {
	b := &fixedBot{model: "mistral"}
	m := newTestModel(t, b)

	m = update(t, m, ModelChangedMsg{Model: "llama3"})
	assert.Equal(t, "llama3", m.ModelName())
	assert.Equal(t, "llama3", b.model)
	assert.Contains(t, m.View(), HeaderPrefix+"llama3")

	tb := newTestModel(t, bot.NewTestBot())
	tb = update(t, tb, ModelChangedMsg{Model: "llama3"})
	assert.Equal(t, "test", tb.ModelName())
}

func TestQuitKeys(t *testing.T) {
	m := newTestModel(t, &fixedBot{})

	_, cmd := updateCmd(t, m, keyMsg(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	_, cmd = updateCmd(t, m, keyMsg(tea.KeyEsc))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHelpCycle(t *testing.T) {
	m := newTestModel(t, &fixedBot{})
	assert.NotContains(t, m.View(), "submit")

	m = update(t, m, keyMsg(tea.KeyF1))
	assert.Contains(t, m.View(), "submit")
	assert.NotContains(t, m.View(), "new row")

	m = update(t, m, keyMsg(tea.KeyF1))
	assert.Contains(t, m.View(), "new row")
	assert.Contains(t, m.View(), "toggle active")

	m = update(t, m, keyMsg(tea.KeyF1))
	assert.NotContains(t, m.View(), "submit")
	assert.NotContains(t, m.View(), "new row")
}

func TestLongDeckKeepsFocusVisible(t *testing.T) {
	var msgs []ollama.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, ollama.NewUserMessage(strings.Repeat("line ", 3)))
	}
	m := newTestModel(t, &fixedBot{}, msgs...)
	for i := 0; i < 19; i++ {
		m = update(t, m, keyMsg(tea.KeyTab))
	}
	assert.Equal(t, 19, m.Focus())
	assert.Greater(t, m.viewport.YOffset, 0)
}
