// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"log/slog"

	"github.com/jeranaias/lokalchat/internal/ollama"
)

// Workspace bundles the prompt memory and the row variants that the deck
// saves on submit and restores on start.
type Workspace struct {
	Memory *MemoryStore
	Rows   *RowStore
}

// NewWorkspace creates a workspace over the given memory file and rows directory.
func NewWorkspace(memoryPath, rowsDir string) *Workspace {
	return &Workspace{
		Memory: NewMemoryStore(memoryPath),
		Rows:   NewRowStore(rowsDir),
	}
}

// SaveRow stores the variants of the row at pos.
func (w *Workspace) SaveRow(pos int, variants []ollama.Message) error {
	return w.Rows.SaveRow(pos, variants)
}

// LoadRow loads the variants of the row at pos.
func (w *Workspace) LoadRow(pos int) ([]ollama.Message, error) {
	return w.Rows.LoadRow(pos)
}

// PruneRows removes the saved variants of rows at position n and beyond,
// left over from a longer earlier deck.
func (w *Workspace) PruneRows(n int) error {
	removed, err := w.Rows.Prune(n)
	if removed > 0 {
		slog.Debug("pruned stale row files", "from", n, "removed", removed)
	}
	return err
}

// SavePrompt stores the prompt that was sent.
func (w *Workspace) SavePrompt(prompt []ollama.Message) error {
	return w.Memory.Save(prompt)
}
