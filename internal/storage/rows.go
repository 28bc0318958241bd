// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeranaias/lokalchat/internal/ollama"
	"github.com/jeranaias/lokalchat/internal/util"
)

const rowFilePrefix = "text_field"

// RowStore keeps the variant list of each deck row in its own file,
// <Dir>/text_field<N>.json, where N is the row position.
type RowStore struct {
	Dir string
}

// NewRowStore creates a store rooted at dir.
func NewRowStore(dir string) *RowStore {
	return &RowStore{Dir: dir}
}

func (s *RowStore) filePath(pos int) string {
	return filepath.Join(s.Dir, rowFilePrefix+strconv.Itoa(pos)+".json")
}

// SaveRow replaces the variants stored for pos.
func (s *RowStore) SaveRow(pos int, variants []ollama.Message) error {
	if pos < 0 {
		return fmt.Errorf("invalid row position %d", pos)
	}
	return util.WriteJSONFile(s.filePath(pos), variants, 0644)
}

// LoadRow returns the variants stored for pos, or ErrNotFound.
func (s *RowStore) LoadRow(pos int) ([]ollama.Message, error) {
	path := s.filePath(pos)
	var variants []ollama.Message
	if err := util.ReadJSONFile(path, &variants); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path)
		}
		return nil, err
	}
	return variants, nil
}

// positions returns the row positions that have a file, unordered.
func (s *RowStore) positions() ([]int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, rowFilePrefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, rowFilePrefix), ".json"))
		if err != nil || n < 0 {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// Prune removes the files of rows at position n and beyond and returns how
// many were removed.
func (s *RowStore) Prune(n int) (int, error) {
	positions, err := s.positions()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, p := range positions {
		if p < n {
			continue
		}
		if err := os.Remove(s.filePath(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
