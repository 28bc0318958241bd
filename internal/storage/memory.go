// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"io/fs"

	"github.com/jeranaias/lokalchat/internal/ollama"
	"github.com/jeranaias/lokalchat/internal/util"
)

// MemoryStore keeps the last prompt that was sent, as a JSON array of
// {"role", "content"} objects. The next session starts from it.
type MemoryStore struct {
	Path string
}

// NewMemoryStore creates a store for the file at path.
func NewMemoryStore(path string) *MemoryStore {
	return &MemoryStore{Path: path}
}

// Load returns the stored messages. A missing file yields an empty list.
func (s *MemoryStore) Load() ([]ollama.Message, error) {
	var msgs []ollama.Message
	if err := util.ReadJSONFile(s.Path, &msgs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []ollama.Message{}, nil
		}
		return nil, err
	}
	if msgs == nil {
		msgs = []ollama.Message{}
	}
	return msgs, nil
}

// Save replaces the stored messages.
func (s *MemoryStore) Save(msgs []ollama.Message) error {
	if msgs == nil {
		msgs = []ollama.Message{}
	}
	return util.WriteJSONFile(s.Path, msgs, 0644)
}
