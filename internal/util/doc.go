// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across lokalchat.
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync and rename
//   - WriteJSONFile, ReadJSONFile: indented JSON documents on disk
//   - ExpandHome: "~/" expansion for configured paths
//
// String Utilities:
//   - TruncateRunes, TruncateWidth: UTF-8 and display-width safe truncation
//   - PadRight, StringWidth: column layout for CLI listings
//   - SingleLine: one-line previews of multi-line prompts
package util
