// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lokalchat/internal/ollama"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
)

// =============================================================================
// CHECK RESULTS
// =============================================================================

// Check outcomes.
const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "fail"
)

// CheckResult is the outcome of one doctor check.
type CheckResult struct {
	Name    string
	Status  string
	Message string
	Fix     string
}

// minFreeDisk is the space a typical 7B model download needs.
const minFreeDisk = 5 << 30

var errDoctorFailed = errors.New("some checks failed")

func newDoctorCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that lokalchat can talk to Ollama",
		Long: `Run the setup checks: operating system, config file, the ollama
executable, the Ollama server, the configured model and free disk space.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := app.runChecks(cmd.Context())

			rows := make([][]string, 0, len(results))
			failed := false
			for _, r := range results {
				rows = append(rows, []string{statusMark(r.Status), r.Name, r.Message, r.Fix})
				failed = failed || r.Status == checkFail
			}
			out := cmd.OutOrStdout()
			renderTable(out, []string{"", "Check", "Result", "Fix"}, rows)
			if failed {
				return errDoctorFailed
			}
			fmt.Fprintln(out, styles.RenderSuccess("Ready to chat"))
			return nil
		},
	}
}

func statusMark(status string) string {
	switch status {
	case checkPass:
		return styles.StatusIndicators.Success
	case checkWarn:
		return styles.StatusIndicators.Warning
	default:
		return styles.StatusIndicators.Error
	}
}

// runChecks runs every check in order. A server that does not answer skips
// the model check.
func (a *App) runChecks(ctx context.Context) []CheckResult {
	client := a.client()
	results := []CheckResult{
		checkOS(),
		a.checkConfig(),
		checkOllamaExecutable(),
	}

	server := checkServer(ctx, client)
	results = append(results, server)
	if server.Status == checkPass {
		results = append(results, checkModel(ctx, client, a.cfg.Ollama.Model))
	}
	return append(results, checkDisk(a.cfg.DataDir()))
}

func checkOS() CheckResult {
	return CheckResult{
		Name:    "Operating system",
		Status:  checkPass,
		Message: runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (a *App) checkConfig() CheckResult {
	if a.cfg.Path() == "" {
		return CheckResult{
			Name:    "Config file",
			Status:  checkWarn,
			Message: "none found, using defaults",
			Fix:     "lokalchat config set ollama.model " + a.cfg.Ollama.Model,
		}
	}
	return CheckResult{Name: "Config file", Status: checkPass, Message: a.cfg.Path()}
}

func checkOllamaExecutable() CheckResult {
	path, err := exec.LookPath("ollama")
	if err != nil {
		return CheckResult{
			Name:    "Ollama executable",
			Status:  checkWarn,
			Message: "ollama not found on PATH",
			Fix:     "Install from https://ollama.com",
		}
	}
	return CheckResult{Name: "Ollama executable", Status: checkPass, Message: path}
}

func checkServer(ctx context.Context, client *ollama.Client) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.CheckRunning(ctx); err != nil {
		return CheckResult{
			Name:    "Ollama server",
			Status:  checkFail,
			Message: "not reachable at " + client.BaseURL(),
			Fix:     "lokalchat serve",
		}
	}
	return CheckResult{Name: "Ollama server", Status: checkPass, Message: "running at " + client.BaseURL()}
}

func checkModel(ctx context.Context, client *ollama.Client, model string) CheckResult {
	if !client.ModelExists(ctx, model) {
		return CheckResult{
			Name:    "Model",
			Status:  checkFail,
			Message: model + " is not installed",
			Fix:     "lokalchat pull " + model,
		}
	}
	return CheckResult{Name: "Model", Status: checkPass, Message: model}
}

func checkDisk(dir string) CheckResult {
	free, err := freeDiskSpace(existingParent(dir))
	if err != nil {
		return CheckResult{Name: "Disk space", Status: checkWarn, Message: "unknown: " + err.Error()}
	}
	msg := fmt.Sprintf("%.1f GB free", float64(free)/(1<<30))
	if free < minFreeDisk {
		return CheckResult{Name: "Disk space", Status: checkWarn, Message: msg, Fix: "models need several GB"}
	}
	return CheckResult{Name: "Disk space", Status: checkPass, Message: msg}
}

// existingParent walks up from dir to the first directory that exists.
func existingParent(dir string) string {
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
