// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lokalchat/internal/config"
	"github.com/jeranaias/lokalchat/internal/ui/styles"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
		Long: `Keys use dot notation, for example ollama.model or chat.context_window.

Examples:
  lokalchat config show
  lokalchat config get ollama.model
  lokalchat config set ollama.model llama3
  lokalchat config path`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), app.cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one configuration value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := app.cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change a value and save the config file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := app.configFile()
				if err != nil {
					return err
				}
				cfg, err := readConfigFile(path)
				if err != nil {
					return err
				}
				if err := cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := cfg.Save(path); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), styles.RenderSuccess(fmt.Sprintf("%s = %s (saved to %s)", args[0], args[1], path)))
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := app.configFile()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if _, err := os.Stat(path); err != nil {
					fmt.Fprintln(out, path+" "+DimStyle.Render("(not created yet)"))
					return nil
				}
				fmt.Fprintln(out, path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List the configuration keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(config.Keys(), "\n"))
				return nil
			},
		},
	)
	return cmd
}

// configFile returns the file config set writes: the loaded file, or the
// default TOML location.
func (a *App) configFile() (string, error) {
	if a.cfg.Path() != "" {
		return a.cfg.Path(), nil
	}
	return config.ConfigPathTOML()
}

// readConfigFile loads path over the defaults without flag or environment
// overrides, so that saving it does not persist them.
func readConfigFile(path string) (*config.Config, error) {
	cfg := config.Default()
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}
	var err error
	if strings.HasSuffix(path, ".json") {
		err = config.LoadJSON(cfg, path)
	} else {
		err = config.LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
