// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with the Ollama API.
//
// # Key Types
//
//   - Client: HTTP client with request pacing and connection retries
//   - Message: Chat message with role and content
//   - ChatResponse: Non-streaming reply with timing metrics
//   - StreamReader: NDJSON reader for streaming chat
//   - PullProgress: One status line of a model download
//
// # Usage
//
//	client := ollama.NewClientWithConfig(&ollama.ClientConfig{
//	    BaseURL:      "http://localhost:11434",
//	    DefaultModel: "mistral",
//	})
//	resp, err := client.Chat(ctx, "", []ollama.Message{
//	    ollama.NewUserMessage("Hello"),
//	})
//	if ollama.IsNotRunning(err) {
//	    // start it with client.EnsureRunning(ctx)
//	}
//	fmt.Println(resp.Message.Content)
package ollama
