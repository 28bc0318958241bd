// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lokalchat/internal/ollama"
	"github.com/jeranaias/lokalchat/internal/util"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
)

// =============================================================================
// MODELS
// =============================================================================

func newModelsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "models",
		Aliases: []string{"list"},
		Short:   "List the models installed in Ollama",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := app.client().ListModels(cmd.Context())
			if err != nil {
				return fmt.Errorf("list models: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(models) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No models installed. Try: lokalchat pull "+app.cfg.Ollama.Model))
				return nil
			}

			sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
			rows := make([][]string, 0, len(models))
			for _, m := range models {
				mark := ""
				if m.Name == app.cfg.Ollama.Model || strings.TrimSuffix(m.Name, ":latest") == app.cfg.Ollama.Model {
					mark = "*"
				}
				rows = append(rows, []string{
					mark,
					m.Name,
					m.Details.ParameterSize,
					m.Details.QuantizationLevel,
					m.FormatSize(),
					m.ModifiedAt.Format("2006-01-02"),
				})
			}
			renderTable(out, []string{"", "Name", "Params", "Quant", "Size", "Modified"}, rows)
			return nil
		},
	}
}

// =============================================================================
// PULL
// =============================================================================

const pullBarWidth = 30

func newPullCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pull [model]",
		Short: "Download a model into Ollama",
		Long: `Download a model. Without an argument the configured model is pulled.

Example:
  lokalchat pull mistral`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model := app.cfg.Ollama.Model
			if len(args) > 0 {
				model = args[0]
			}
			out := cmd.OutOrStdout()
			tty := isTerminal(app.Out)

			fmt.Fprintln(out, TitleStyle.Render("Pulling "+model))
			lastStatus := ""
			err := app.client().Pull(cmd.Context(), model, func(p ollama.PullProgress) {
				pct := p.Percent()
				switch {
				case pct >= 0 && tty:
					fmt.Fprintf(out, "\r%-24s [%s] %5.1f%%", util.TruncateRunes(p.Status, 24), styles.RenderProgressBar(pullBarWidth, pct), pct)
				case p.Status != lastStatus:
					if tty && lastStatus != "" {
						fmt.Fprintln(out)
					}
					fmt.Fprintln(out, "  "+p.Status)
				}
				lastStatus = p.Status
			})
			if tty {
				fmt.Fprintln(out)
			}
			if err != nil {
				return fmt.Errorf("pull %s: %w", model, err)
			}
			fmt.Fprintln(out, styles.RenderSuccess("Model "+model+" is ready"))
			return nil
		},
	}
}

// =============================================================================
// SERVE
// =============================================================================

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Make sure the Ollama server is running",
		Long: `Check the configured Ollama URL and start "ollama serve" in the
background when nothing answers there.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := app.client()
			out := cmd.OutOrStdout()
			if err := client.CheckRunning(cmd.Context()); err != nil {
				fmt.Fprintln(out, styles.RenderInfo("Starting Ollama..."))
				if err := client.EnsureRunning(cmd.Context()); err != nil {
					return fmt.Errorf("start ollama: %w", err)
				}
			}
			fmt.Fprintln(out, styles.RenderSuccess("Ollama is running at "+client.BaseURL()))

			model := app.cfg.Ollama.Model
			if !client.ModelExists(cmd.Context(), model) {
				fmt.Fprintln(out, styles.RenderWarning("Model "+model+" is not installed. Run: lokalchat pull "+model))
			}
			return nil
		},
	}
}
