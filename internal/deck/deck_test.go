// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package deck

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lokalchat/internal/ollama"
)

// =============================================================================
// FAKES
// =============================================================================

type memStore struct {
	rows   map[int][]Variant
	prompt []Variant
	fail   bool
}

func (s *memStore) PruneRows(n int) error {
	if s.fail {
		return errors.New("read-only")
	}
	for pos := range s.rows {
		if pos >= n {
			delete(s.rows, pos)
		}
	}
	return nil
}

func newMemStore() *memStore {
	return &memStore{rows: map[int][]Variant{}}
}

func (s *memStore) SaveRow(pos int, variants []Variant) error {
	if s.fail {
		return errors.New("read-only")
	}
	s.rows[pos] = append([]Variant(nil), variants...)
	return nil
}

func (s *memStore) SavePrompt(prompt []Variant) error {
	if s.fail {
		return errors.New("read-only")
	}
	s.prompt = prompt
	return nil
}

func (s *memStore) LoadRow(pos int) ([]Variant, error) {
	v, ok := s.rows[pos]
	if !ok {
		return nil, fmt.Errorf("row %d: %w", pos, fs.ErrNotExist)
	}
	return append([]Variant(nil), v...), nil
}

type echoResponder struct {
	got []ollama.Message
	err error
}

func (e *echoResponder) Respond(_ context.Context, msgs []ollama.Message) (string, error) {
	e.got = msgs
	if e.err != nil {
		return "", e.err
	}
	return fmt.Sprintf("reply to %d messages", len(msgs)), nil
}

func sample() *Deck {
	return FromMessages([]ollama.Message{
		{Role: ollama.RoleSystem, Content: "Your name is Jana."},
		ollama.NewUserMessage("Hello"),
		ollama.NewAssistantMessage("Hi, I am Jana."),
	})
}

// =============================================================================
// CONSTRUCTION
// =============================================================================

func TestFromMessages(t *testing.T) {
	d := sample()
	require.Equal(t, 3, d.Len())
	for _, r := range d.Rows {
		assert.Len(t, r.Variants, 1)
		assert.Zero(t, r.Current)
		assert.True(t, r.Active)
		assert.NotEmpty(t, r.ID)
	}
	assert.Equal(t, "system", d.Rows[0].Role())
	assert.Equal(t, "Hello", d.Rows[1].Content())
	assert.NoError(t, d.Validate())
}

func TestFromMessages_Empty(t *testing.T) {
	d := FromMessages(nil)
	require.Equal(t, 1, d.Len())
	assert.Equal(t, Variant{Role: "user", Content: ""}, d.Rows[0].Prompt())
	assert.ErrorIs(t, (&Deck{}).Validate(), ErrEmptyDeck)
}

// =============================================================================
// ROW OPERATIONS
// =============================================================================

func TestCompose(t *testing.T) {
	d := sample()

	prompt, err := d.Compose(1)
	require.NoError(t, err)
	assert.Equal(t, []Variant{
		{Role: "system", Content: "Your name is Jana."},
		{Role: "user", Content: "Hello"},
	}, prompt)

	_, err = d.ToggleActive(0)
	require.NoError(t, err)
	prompt, err = d.Compose(2)
	require.NoError(t, err)
	require.Len(t, prompt, 2)
	assert.Equal(t, "user", prompt[0].Role)

	_, err = d.Compose(3)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	_, err = d.Compose(-1)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}

func TestCompose_AllInactive(t *testing.T) {
	d := sample()
	for i := range d.Rows {
		_, err := d.ToggleActive(i)
		require.NoError(t, err)
	}
	prompt, err := d.Compose(2)
	require.NoError(t, err)
	assert.Empty(t, prompt)
}

func TestSetContentAndClear(t *testing.T) {
	d := sample()
	require.NoError(t, d.SetContent(1, "Hallo"))
	assert.Equal(t, "Hallo", d.Rows[1].Content())

	require.NoError(t, d.Clear(1))
	assert.Equal(t, "", d.Rows[1].Content())
	assert.Equal(t, "user", d.Rows[1].Role())

	assert.ErrorIs(t, d.SetContent(9, "x"), ErrRowOutOfRange)
}

func TestBackForward(t *testing.T) {
	d := sample()

	moved, err := d.Back(1)
	require.NoError(t, err)
	assert.False(t, moved, "back at the first variant stays put")
	assert.Zero(t, d.Rows[1].Current)

	created, err := d.Forward(1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, d.Rows[1].Current)
	assert.Equal(t, Variant{Role: "user", Content: "New"}, d.Rows[1].Prompt())

	moved, err = d.Back(1)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, "Hello", d.Rows[1].Content())

	created, err = d.Forward(1)
	require.NoError(t, err)
	assert.False(t, created, "stepping onto an existing variant creates nothing")
	assert.Len(t, d.Rows[1].Variants, 2)
}

func TestForward_KeepsEdits(t *testing.T) {
	d := sample()
	require.NoError(t, d.SetContent(1, "edited"))
	_, err := d.Forward(1)
	require.NoError(t, err)
	_, err = d.Back(1)
	require.NoError(t, err)
	assert.Equal(t, "edited", d.Rows[1].Content())
}

func TestCycleRole(t *testing.T) {
	d := sample()
	want := []string{"user", "assistant", "system", "user"}
	for _, w := range want {
		got, err := d.CycleRole(0)
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}

	d.Rows[0].Variants[0].Role = "tool"
	got, err := d.CycleRole(0)
	require.NoError(t, err)
	assert.Equal(t, "user", got)
}

func TestApplyReply_AppendsRows(t *testing.T) {
	d := sample()
	require.NoError(t, d.ApplyReply(2, "answer"))

	require.Equal(t, 5, d.Len())
	assert.Equal(t, Variant{Role: "assistant", Content: "answer"}, d.Rows[3].Prompt())
	assert.Equal(t, Variant{Role: "user", Content: "Def:"}, d.Rows[4].Prompt())
	assert.True(t, d.Rows[3].Active)
	assert.True(t, d.Rows[4].Active)
}

func TestApplyReply_AddsVariantToNextRow(t *testing.T) {
	d := sample()
	require.NoError(t, d.ApplyReply(1, "second opinion"))

	require.Equal(t, 3, d.Len())
	next := d.Rows[2]
	require.Len(t, next.Variants, 2)
	assert.Equal(t, 1, next.Current)
	assert.Equal(t, "second opinion", next.Content())
	assert.Equal(t, "Hi, I am Jana.", next.Variants[0].Content)

	assert.ErrorIs(t, d.ApplyReply(7, "x"), ErrRowOutOfRange)
}

func TestAppend(t *testing.T) {
	d := sample()
	pos := d.Append("user", "")
	assert.Equal(t, 3, pos)
	assert.Equal(t, 4, d.Len())
}

// =============================================================================
// SUBMIT
// =============================================================================

// submit runs a row through the same steps as the UI: Prepare, Ask and
// ApplyReply.
func submit(d *Deck, pos int, r *echoResponder, store Store) (string, error) {
	prompt, err := d.Prepare(pos, store)
	if err != nil {
		return "", err
	}
	reply, askErr := Ask(context.Background(), r, pos, prompt)
	if err := d.ApplyReply(pos, reply); err != nil {
		return reply, err
	}
	return reply, askErr
}

func TestSubmit(t *testing.T) {
	d := sample()
	store := newMemStore()
	r := &echoResponder{}

	reply, err := submit(d, 1, r, store)
	require.NoError(t, err)
	assert.Equal(t, "reply to 2 messages", reply)
	assert.Len(t, r.got, 2)

	// every row saved, plus the composed prompt
	assert.Len(t, store.rows, 3)
	assert.Equal(t, r.got, store.prompt)

	assert.Equal(t, "reply to 2 messages", d.Rows[2].Content())
	assert.Equal(t, 3, d.Len())
}

func TestSubmit_LastRowGrowsDeck(t *testing.T) {
	d := FromMessages(nil)
	require.NoError(t, d.SetContent(0, "Hello"))

	_, err := submit(d, 0, &echoResponder{}, nil)
	require.NoError(t, err)
	require.Equal(t, 3, d.Len())
	assert.Equal(t, "assistant", d.Rows[1].Role())
	assert.Equal(t, "Def:", d.Rows[2].Content())
}

func TestSubmit_ResponderErrorBecomesReply(t *testing.T) {
	d := sample()
	store := newMemStore()
	r := &echoResponder{err: ollama.ErrNotRunning}

	reply, err := submit(d, 2, r, store)
	require.Error(t, err)
	assert.True(t, ollama.IsNotRunning(err))
	assert.Equal(t, "There was a problem connecting to the bot. Error: Ollama is not running", reply)

	// rows were saved before the call
	assert.Len(t, store.rows, 3)
	require.Equal(t, 5, d.Len())
	assert.True(t, strings.HasPrefix(d.Rows[3].Content(), ReplyErrorPrefix))
}

func TestSubmit_SaveFailureDoesNotBlock(t *testing.T) {
	d := sample()
	store := newMemStore()
	store.fail = true

	reply, err := submit(d, 0, &echoResponder{}, store)
	require.NoError(t, err)
	assert.Equal(t, "reply to 1 messages", reply)
}

func TestPrepare_PrunesRowsBeyondDeck(t *testing.T) {
	d := sample()
	store := newMemStore()
	store.rows[3] = []Variant{{Role: "user", Content: "from a longer deck"}}
	store.rows[7] = []Variant{{Role: "assistant", Content: "stale"}}

	_, err := d.Prepare(1, store)
	require.NoError(t, err)
	assert.Len(t, store.rows, 3)
	assert.NotContains(t, store.rows, 3)
	assert.NotContains(t, store.rows, 7)
}

func TestSubmit_OutOfRange(t *testing.T) {
	d := sample()
	r := &echoResponder{}
	_, err := submit(d, 5, r, nil)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
	assert.Nil(t, r.got, "nothing is sent for a bad position")
}

// =============================================================================
// RESTORE
// =============================================================================

func TestRestore(t *testing.T) {
	store := newMemStore()
	store.rows[0] = []Variant{
		{Role: "system", Content: "Your name is Max."},
		{Role: "system", Content: "Your name is Jana."},
	}
	store.rows[1] = []Variant{
		{Role: "user", Content: "Hello"},
		{Role: "user", Content: "other"},
		{Role: "user", Content: "Hello"},
	}
	store.rows[2] = []Variant{{Role: "assistant", Content: "unrelated"}}

	d := sample()
	n := d.Restore(store)
	assert.Equal(t, 3, n)

	assert.Equal(t, 1, d.Rows[0].Current)
	assert.Len(t, d.Rows[0].Variants, 2)

	// duplicates: the last match wins
	assert.Equal(t, 2, d.Rows[1].Current)

	// no match: the current prompt is kept as an extra variant
	require.Len(t, d.Rows[2].Variants, 2)
	assert.Equal(t, 1, d.Rows[2].Current)
	assert.Equal(t, "Hi, I am Jana.", d.Rows[2].Content())
	assert.NoError(t, d.Validate())
}

func TestRestore_MissingRowsUntouched(t *testing.T) {
	d := sample()
	assert.Zero(t, d.Restore(newMemStore()))
	for _, r := range d.Rows {
		assert.Len(t, r.Variants, 1)
	}
}

func TestSubmitThenRestoreRoundTrip(t *testing.T) {
	store := newMemStore()
	d := sample()
	_, err := d.Forward(1)
	require.NoError(t, err)
	require.NoError(t, d.SetContent(1, "Hello again"))

	_, err = submit(d, 1, &echoResponder{}, store)
	require.NoError(t, err)

	// a fresh session starts from the saved prompt and restores the variants
	fresh := FromMessages(store.prompt)
	fresh.Restore(store)
	assert.Equal(t, 1, fresh.Rows[1].Current)
	assert.Equal(t, []Variant{
		{Role: "user", Content: "Hello"},
		{Role: "user", Content: "Hello again"},
	}, fresh.Rows[1].Variants)
}

// =============================================================================
// PRESENTATION HELPERS
// =============================================================================

func TestTextHeight(t *testing.T) {
	long := strings.Repeat("word ", 60)
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"empty", "", 2},
		{"one line", "hello world", 2},
		{"two typed lines", "a\nb", 3},
		{"long line wraps", long, 1 + 3},
		{"capped", strings.Repeat("line\n", 40), 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TextHeight(tt.content, 26, 20))
		})
	}
	assert.Equal(t, 1, TextHeight("anything", 0, 0))
}

func TestWrapWords(t *testing.T) {
	assert.Equal(t, "a b\nc d\ne", WrapWords("a b  c\nd e", 2))
	assert.Equal(t, "", WrapWords("   ", 3))
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "Assistant", RoleLabel("assistant"))
	assert.Equal(t, "System", RoleLabel("system"))
	assert.Equal(t, "None", RoleLabel(""))
}
