// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lokalchat/internal/ollama"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

func TestMemoryStore_MissingFileIsEmpty(t *testing.T) {
	s := NewMemoryStore(filepath.Join(t.TempDir(), "chat_memory.json"))
	msgs, err := s.Load()
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_memory.json")
	s := NewMemoryStore(path)

	want := []ollama.Message{
		{Role: ollama.RoleSystem, Content: "Your name is Jana."},
		ollama.NewUserMessage("Hallo"),
	}
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n  {\n    \"role\": \"system\""), string(data))
}

func TestMemoryStore_ReadsLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_memory.json")
	legacy := `[{"position": 0, "role": "system", "content": "Dein Name ist Jana."}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0644))

	got, err := NewMemoryStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []ollama.Message{{Role: "system", Content: "Dein Name ist Jana."}}, got)
}

func TestMemoryStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_memory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := NewMemoryStore(path).Load()
	assert.Error(t, err)
}

// =============================================================================
// ROW STORE
// =============================================================================

func TestRowStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Data")
	s := NewRowStore(dir)

	variants := []ollama.Message{{Role: "user", Content: "a"}, {Role: "user", Content: "b"}}
	require.NoError(t, s.SaveRow(2, variants))
	assert.FileExists(t, filepath.Join(dir, "text_field2.json"))

	got, err := s.LoadRow(2)
	require.NoError(t, err)
	assert.Equal(t, variants, got)

	_, err = s.LoadRow(0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	assert.Error(t, s.SaveRow(-1, variants))
}

func TestRowStore_Prune(t *testing.T) {
	dir := t.TempDir()
	s := NewRowStore(dir)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveRow(i, []ollama.Message{{Role: "user", Content: "x"}}))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))

	removed, err := s.Prune(3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	pos, err := s.positions()
	require.NoError(t, err)
	sort.Ints(pos)
	assert.Equal(t, []int{0, 1, 2}, pos)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestRowStore_MissingDir(t *testing.T) {
	s := NewRowStore(filepath.Join(t.TempDir(), "absent"))
	pos, err := s.positions()
	require.NoError(t, err)
	assert.Empty(t, pos)
	n, err := s.Prune(0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestWorkspace(t *testing.T) {
	dir := t.TempDir()
	w := NewWorkspace(filepath.Join(dir, "chat_memory.json"), filepath.Join(dir, "Data"))

	prompt := []ollama.Message{ollama.NewUserMessage("hi")}
	require.NoError(t, w.SavePrompt(prompt))
	require.NoError(t, w.SaveRow(0, prompt))

	got, err := w.Memory.Load()
	require.NoError(t, err)
	assert.Equal(t, prompt, got)

	row, err := w.LoadRow(0)
	require.NoError(t, err)
	assert.Equal(t, prompt, row)

	require.NoError(t, w.SaveRow(1, prompt))
	require.NoError(t, w.SaveRow(2, prompt))
	require.NoError(t, w.PruneRows(1))
	_, err = w.LoadRow(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = w.LoadRow(2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = w.LoadRow(0)
	assert.NoError(t, err)
}

// =============================================================================
// SESSION STORE
// =============================================================================

func newSessionStore(t *testing.T) *SessionStore {
	t.Helper()
	s, err := NewSessionStore(filepath.Join(t.TempDir(), "sessions"))
	require.NoError(t, err)
	return s
}

func TestSessionStore_SaveLoad(t *testing.T) {
	s := newSessionStore(t)

	sess := &Session{Model: "mistral"}
	sess.Add("user", "What is the capital\nof France?")
	sess.Add("assistant", "Paris.")

	id, err := s.Save(sess)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "What is the capital of France?", sess.Summary)
	assert.False(t, sess.CreatedAt.IsZero())

	loaded, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "mistral", loaded.Model)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, []ollama.Message{
		{Role: "user", Content: "What is the capital\nof France?"},
		{Role: "assistant", Content: "Paris."},
	}, loaded.ChatMessages())
}

func TestSessionStore_SummaryDefaults(t *testing.T) {
	s := newSessionStore(t)

	empty := &Session{}
	_, err := s.Save(empty)
	require.NoError(t, err)
	assert.Equal(t, "New session", empty.Summary)

	long := &Session{}
	long.Add("user", strings.Repeat("ä", 80))
	_, err = s.Save(long)
	require.NoError(t, err)
	assert.Equal(t, 50, len([]rune(long.Summary)))
	assert.True(t, strings.HasSuffix(long.Summary, "..."))
}

func TestSessionStore_ListAndLimit(t *testing.T) {
	s := newSessionStore(t)
	s.MaxSessions = 2

	var ids []string
	for i := 0; i < 3; i++ {
		sess := &Session{}
		sess.Add("user", string(rune('a'+i)))
		id, err := s.Save(sess)
		require.NoError(t, err)
		ids = append(ids, id)
		time.Sleep(5 * time.Millisecond)
	}

	metas, err := s.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, ids[2], metas[0].ID)
	assert.Equal(t, ids[1], metas[1].ID)
	assert.Equal(t, "c", metas[0].Preview)
	assert.Equal(t, 1, metas[0].MessageCount)

	_, err = s.Load(ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionStore_FindAndDelete(t *testing.T) {
	s := newSessionStore(t)
	for _, id := range []string{"abc123", "abd456"} {
		_, err := s.Save(&Session{ID: id})
		require.NoError(t, err)
	}

	sess, err := s.Find("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", sess.ID)

	_, err = s.Find("ab")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))

	_, err = s.Find("zzz")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Delete("abc123"))
	assert.ErrorIs(t, s.Delete("abc123"), ErrNotFound)
}

func TestSessionStore_RejectsPathIDs(t *testing.T) {
	s := newSessionStore(t)
	for _, id := range []string{"../escape", `a\b`, ".."} {
		_, err := s.Load(id)
		assert.ErrorIs(t, err, ErrInvalidID, id)
	}
	_, err := s.Save(&Session{ID: "../x"})
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestSessionStore_SkipsCorruptFiles(t *testing.T) {
	s := newSessionStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.BaseDir, "broken.json"), []byte("{"), 0644))
	_, err := s.Save(&Session{ID: "ok"})
	require.NoError(t, err)

	metas, err := s.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "ok", metas[0].ID)
}
