// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lokalchat/internal/export"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
	"github.com/jeranaias/lokalchat/internal/util"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		format    string
		output    string
		sessionID string
		row       int
		noMeta    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the deck or a saved session",
		Long: `Export the conversation the deck would send from a row, or a saved
console session, as Markdown or JSON.

Without --output the document is printed. When --output names a directory a
file name is generated inside it.

Examples:
  lokalchat export
  lokalchat export --row 3 --format json --output prompt.json
  lokalchat export --session 1a2b3c4d --output ~/notes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.IncludeMetadata = !noMeta
			exp, err := export.ForFormat(format, opts)
			if err != nil {
				return err
			}

			var doc *export.Document
			if sessionID != "" {
				store, err := app.sessions()
				if err != nil {
					return err
				}
				sess, err := store.Find(sessionID)
				if err != nil {
					return err
				}
				doc = export.FromSession(sess)
			} else {
				d, err := app.loadDeck()
				if err != nil {
					return err
				}
				pos := row
				if !cmd.Flags().Changed("row") {
					pos = d.Len() - 1
				}
				doc, err = export.FromDeck(d, pos, app.cfg.Ollama.Model)
				if err != nil {
					return err
				}
			}
			if len(doc.Messages) == 0 {
				return export.ErrEmpty
			}

			out := cmd.OutOrStdout()
			if output == "" {
				content, err := exp.Export(doc)
				if err != nil {
					return err
				}
				_, err = out.Write(content)
				return err
			}

			path := util.ExpandHome(output)
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				path, err = export.ToFile(doc, exp, path)
				if err != nil {
					return err
				}
			} else {
				content, err := exp.Export(doc)
				if err != nil {
					return err
				}
				if err := util.AtomicWriteFile(path, content, 0644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
			}
			fmt.Fprintln(out, styles.RenderSuccess("Exported to "+path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: md or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory (default stdout)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "export a saved console session instead of the deck")
	cmd.Flags().IntVarP(&row, "row", "r", 0, "deck row to compose up to (default last row)")
	cmd.Flags().BoolVar(&noMeta, "no-metadata", false, "omit front matter and metadata")
	return cmd
}
