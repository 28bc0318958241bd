// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides JSON persistence for lokalchat.
//
// # Key Types
//
//   - MemoryStore: The last prompt sent, reloaded as the next deck
//   - RowStore: Variant lists of deck rows, one text_field<N>.json per row
//   - Workspace: MemoryStore and RowStore together, as the deck uses them
//   - SessionStore: Console chat transcripts, one file per session
//
// All writes go through util.AtomicWriteFile. Missing items are reported
// with ErrNotFound, which also matches fs.ErrNotExist.
package storage
