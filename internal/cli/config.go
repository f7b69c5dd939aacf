// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/muse-tui/internal/config"
)

func (app *App) newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit settings",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.configInit(force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(
		initCmd,
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(app.Stdout, TitleStyle.Render("Settings"))
				fmt.Fprintln(app.Stdout, RenderSeparator(terminalWidth(app.Stdout)))
				fmt.Fprint(app.Stdout, app.cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(app.Stdout, app.cfgPath)
				return nil
			},
		},
		&cobra.Command{
			Use:       "get <key>",
			Short:     "Print one setting",
			Args:      cobra.ExactArgs(1),
			ValidArgs: config.GetAllKeys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := app.cfg.Get(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(app.Stdout, v)
				return nil
			},
		},
		&cobra.Command{
			Use:       "set <key> <value>",
			Short:     "Change one setting in the config file",
			Args:      cobra.ExactArgs(2),
			ValidArgs: config.GetAllKeys(),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.configSet(args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List setting keys",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(app.Stdout, strings.Join(config.GetAllKeys(), "\n"))
				return nil
			},
		},
	)
	return cmd
}

func (app *App) configInit(force bool) error {
	if _, err := os.Stat(app.cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", app.cfgPath)
	}
	if err := config.SaveTOML(config.Default(), app.cfgPath); err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, SuccessStyle.Render("Wrote ")+app.cfgPath)
	return nil
}

// configSet edits the file itself so flags and environment overrides of
// this run are not written back.
func (app *App) configSet(key, value string) error {
	cfg := config.Default()
	if err := config.LoadTOML(cfg, app.cfgPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.SaveTOML(cfg, app.cfgPath); err != nil {
		return err
	}
	fmt.Fprintln(app.Stdout, RenderField(key, value))
	return nil
}
