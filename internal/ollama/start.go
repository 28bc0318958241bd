// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// StartupTimeout bounds how long EnsureRunning waits for a freshly started server.
const StartupTimeout = 15 * time.Second

// findOllamaExecutable looks in PATH first, then in the platform's usual
// install locations.
func findOllamaExecutable() (string, error) {
	for _, name := range executableNames {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	for _, p := range installPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("ollama not found in PATH or common installation directories; install it from https://ollama.com")
}

// startOllamaProcess launches `ollama serve` detached from this process and
// waits until the API answers.
func (c *Client) startOllamaProcess(ctx context.Context) error {
	ollamaPath, err := findOllamaExecutable()
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to find Ollama executable", Cause: err}
	}

	cmd := exec.Command(ollamaPath, "serve")
	// GPU selection variables such as OLLAMA_VULKAN must reach the server.
	cmd.Env = os.Environ()
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: fmt.Sprintf("failed to start Ollama (path: %s)", ollamaPath),
			Cause:   err,
		}
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	started := time.Now()
	slog.Info("starting ollama", "path", ollamaPath)

	if err := c.waitUntilReady(ctx, StartupTimeout); err != nil {
		return &ClientError{
			Type:    ErrTypeConnection,
			Message: fmt.Sprintf("Ollama started but not responding after %s (path: %s)", StartupTimeout, ollamaPath),
			Cause:   err,
		}
	}
	slog.Info("ollama ready", "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}
