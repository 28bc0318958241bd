// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/lokalchat/internal/ollama"
	"github.com/jeranaias/lokalchat/internal/util"
)

// =============================================================================
// SESSION TYPES
// =============================================================================

// Session is a saved console chat transcript.
type Session struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []SessionMessage `json:"messages"`
}

// SessionMessage is one line of a transcript.
type SessionMessage struct {
	Role      string    `json:"role"` // "user", "assistant", "system"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionMeta contains metadata for listing sessions.
type SessionMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // First user message truncated
}

// Add appends a message stamped with the current time.
func (s *Session) Add(role, content string) {
	s.Messages = append(s.Messages, SessionMessage{Role: role, Content: content, Timestamp: time.Now()})
}

// ChatMessages returns the transcript as chat messages.
func (s *Session) ChatMessages() []ollama.Message {
	out := make([]ollama.Message, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Preview returns the first user message, truncated.
func (s *Session) Preview() string {
	for _, msg := range s.Messages {
		if msg.Role == ollama.RoleUser && msg.Content != "" {
			return util.TruncateRunes(util.SingleLine(msg.Content), 80)
		}
	}
	return ""
}

// =============================================================================
// SESSION STORE
// =============================================================================

// SessionStore keeps one JSON file per session in BaseDir.
type SessionStore struct {
	BaseDir string

	// MaxSessions limits stored sessions (0 = unlimited)
	MaxSessions int
}

// NewSessionStore creates a store in baseDir, creating the directory.
func NewSessionStore(baseDir string) (*SessionStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &SessionStore{
		BaseDir:     baseDir,
		MaxSessions: 100,
	}, nil
}

// Save persists a session and returns its ID.
func (s *SessionStore) Save(sess *Session) (string, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	path, err := s.filePath(sess.ID)
	if err != nil {
		return "", err
	}
	if sess.Summary == "" {
		sess.Summary = generateSummary(sess)
	}

	sess.UpdatedAt = time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = sess.UpdatedAt
	}

	if err := util.WriteJSONFile(path, sess, 0644); err != nil {
		return "", err
	}

	if s.MaxSessions > 0 {
		s.enforceLimit()
	}
	return sess.ID, nil
}

// generateSummary creates a summary from the first user message.
func generateSummary(sess *Session) string {
	for _, msg := range sess.Messages {
		if msg.Role == ollama.RoleUser && strings.TrimSpace(msg.Content) != "" {
			return util.TruncateRunes(util.SingleLine(msg.Content), 50)
		}
	}
	return "New session"
}

// enforceLimit removes the oldest sessions beyond MaxSessions.
func (s *SessionStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxSessions {
		return
	}
	// List is newest first
	for _, m := range metas[s.MaxSessions:] {
		s.Delete(m.ID)
	}
}

// Load retrieves a session by ID.
func (s *SessionStore) Load(id string) (*Session, error) {
	path, err := s.filePath(id)
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := util.ReadJSONFile(path, &sess); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, err
	}
	return &sess, nil
}

// Find loads the session whose ID equals or uniquely starts with prefix.
func (s *SessionStore) Find(prefix string) (*Session, error) {
	if prefix == "" {
		return nil, ErrInvalidID
	}
	if sess, err := s.Load(prefix); err == nil {
		return sess, nil
	}

	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	var match string
	for _, m := range metas {
		if strings.HasPrefix(m.ID, prefix) {
			if match != "" {
				return nil, fmt.Errorf("session prefix %q is ambiguous", prefix)
			}
			match = m.ID
		}
	}
	if match == "" {
		return nil, notFound(prefix)
	}
	return s.Load(match)
}

// List returns all saved sessions, most recent first. Unreadable files are skipped.
func (s *SessionStore) List() ([]SessionMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []SessionMeta{}, nil
		}
		return nil, err
	}

	metas := []SessionMeta{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		metas = append(metas, SessionMeta{
			ID:           sess.ID,
			Summary:      sess.Summary,
			Model:        sess.Model,
			CreatedAt:    sess.CreatedAt,
			UpdatedAt:    sess.UpdatedAt,
			MessageCount: len(sess.Messages),
			Preview:      sess.Preview(),
		})
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(id string) error {
	path, err := s.filePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(id)
		}
		return err
	}
	return nil
}

// filePath returns the file for a session ID, rejecting IDs that would
// escape BaseDir.
func (s *SessionStore) filePath(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", &StoreError{Message: ErrInvalidID.Message, Item: id}
	}
	return filepath.Join(s.BaseDir, id+".json"), nil
}
