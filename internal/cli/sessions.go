// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lokalchat/internal/deck"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
	"github.com/jeranaias/lokalchat/internal/util"
)

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage saved console chats",
		Long: `Console chats are saved as sessions when they end or on /save.
A session can be referenced by its full ID or a unique prefix.`,
	}
	cmd.AddCommand(
		newSessionsListCmd(app),
		newSessionsShowCmd(app),
		newSessionsDeleteCmd(app),
	)
	return cmd
}

func newSessionsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.sessions()
			if err != nil {
				return err
			}
			metas, err := store.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(metas) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No saved sessions."))
				return nil
			}
			rows := make([][]string, 0, len(metas))
			for _, m := range metas {
				rows = append(rows, []string{
					shortID(m.ID),
					m.UpdatedAt.Local().Format("2006-01-02 15:04"),
					m.Model,
					strconv.Itoa(m.MessageCount),
					util.TruncateRunes(m.Summary, 50),
				})
			}
			renderTable(out, []string{"ID", "Updated", "Model", "Messages", "Summary"}, rows)
			return nil
		},
	}
}

func newSessionsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.sessions()
			if err != nil {
				return err
			}
			sess, err := store.Find(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render(sess.Summary))
			fmt.Fprintln(out, RenderField("ID", sess.ID))
			fmt.Fprintln(out, RenderField("Model", sess.Model))
			fmt.Fprintln(out, RenderField("Created", sess.CreatedAt.Local().Format("2006-01-02 15:04")))
			fmt.Fprintln(out, RenderSeparator(60))
			theme := styles.NewTheme()
			for _, m := range sess.Messages {
				label := theme.RoleLabel(m.Role).Render(deck.RoleLabel(m.Role))
				fmt.Fprintf(out, "%s: %s\n\n", label, m.Content)
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved session",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.sessions()
			if err != nil {
				return err
			}
			sess, err := store.Find(args[0])
			if err != nil {
				return err
			}
			if err := store.Delete(sess.ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.RenderSuccess("Deleted session "+shortID(sess.ID)))
			return nil
		},
	}
}

// shortID abbreviates a session ID for listings; Find accepts the prefix.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

