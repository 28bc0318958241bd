// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lokalchat/internal/journal"
	"github.com/jeranaias/lokalchat/internal/ollama"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
	"github.com/jeranaias/lokalchat/internal/util"
)

func newHistoryCmd(app *App) *cobra.Command {
	var (
		limit int
		stats bool
		prune int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded exchanges",
		Long: `Every prompt sent to the model is recorded in the journal together with
its reply or error. history lists the most recent exchanges.

Examples:
  lokalchat history --limit 5
  lokalchat history --stats
  lokalchat history --prune 100   Keep only the newest 100 exchanges`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := journal.Open(app.cfg.JournalPath())
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if cmd.Flags().Changed("prune") {
				removed, err := j.Prune(ctx, prune)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, styles.RenderSuccess(fmt.Sprintf("Removed %d exchanges", removed)))
				return nil
			}

			if stats {
				s, err := j.Stats(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, TitleStyle.Render("Journal"))
				fmt.Fprintln(out, RenderSeparator(40))
				fmt.Fprintln(out, RenderField("File", j.Path()))
				fmt.Fprintln(out, RenderField("Exchanges", strconv.Itoa(s.Count)))
				fmt.Fprintln(out, RenderField("Errors", strconv.Itoa(s.Errors)))
				if s.Count > 0 {
					fmt.Fprintln(out, RenderField("Average time", s.AvgDuration.Round(10 * time.Millisecond).String()))
					fmt.Fprintln(out, RenderField("First", s.First.Local().Format("2006-01-02 15:04")))
					fmt.Fprintln(out, RenderField("Last", s.Last.Local().Format("2006-01-02 15:04")))
				}
				return nil
			}

			recent, err := j.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No exchanges recorded yet."))
				return nil
			}
			rows := make([][]string, 0, len(recent))
			for _, ex := range recent {
				rows = append(rows, exchangeRow(ex))
			}
			renderTable(out, []string{"When", "Model", "Row", "Prompt", "Result", "Time"}, rows)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of exchanges to show")
	cmd.Flags().BoolVar(&stats, "stats", false, "show journal statistics")
	cmd.Flags().IntVar(&prune, "prune", 0, "keep only the newest N exchanges")
	return cmd
}

// exchangeRow formats one journal entry for the history table.
func exchangeRow(ex journal.Exchange) []string {
	row := "-"
	if ex.RowPos != journal.NoRow {
		row = strconv.Itoa(ex.RowPos)
	}
	prompt := ""
	for i := len(ex.Prompt) - 1; i >= 0; i-- {
		if ex.Prompt[i].Role == ollama.RoleUser {
			prompt = ex.Prompt[i].Content
			break
		}
	}
	result := ex.Reply
	if ex.Failed() {
		result = "error: " + ex.Error
	}
	return []string{
		ex.StartedAt.Local().Format("01-02 15:04"),
		ex.Model,
		row,
		util.TruncateRunes(util.SingleLine(prompt), 40),
		util.TruncateRunes(util.SingleLine(result), 40),
		ex.Duration.Round(10 * time.Millisecond).String(),
	}
}
