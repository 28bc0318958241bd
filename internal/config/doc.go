// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for lokalchat.
//
// Supports TOML and JSON configuration files, the flat config.json layout
// used by earlier releases, environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - OllamaConfig: Server URL, model and request pacing
//   - StorageConfig: Where prompts, row variants and the journal live
//   - Watcher: Reloads the file when it changes on disk
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (LOKALCHAT_*)
//   - --config <path>
//   - ~/.lokalchat/config.toml
//   - ~/.lokalchat/config.json
//   - ./config.json (legacy OLLAMA_URL / MODEL / FILE_NAME / TEST keys)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	model := cfg.Ollama.Model
package config
