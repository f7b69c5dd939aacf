// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jeranaias/muse-tui/internal/export"
	"github.com/jeranaias/muse-tui/internal/storage"
	"github.com/jeranaias/muse-tui/internal/util"
)

func (app *App) newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse archived conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withArchive(cmd.Context(), func(ctx context.Context, db *storage.DB) error {
				metas, err := db.List(ctx)
				if err != nil {
					return err
				}
				return printHistory(app.Stdout, metas, time.Now())
			})
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "search <text>",
			Short: "Find conversations by title or content",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withArchive(cmd.Context(), func(ctx context.Context, db *storage.DB) error {
					metas, err := db.Search(ctx, args[0])
					if err != nil {
						return err
					}
					return printHistory(app.Stdout, metas, time.Now())
				})
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print a conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withArchive(cmd.Context(), func(ctx context.Context, db *storage.DB) error {
					conv, err := db.Get(ctx, args[0])
					if err != nil {
						return err
					}
					fmt.Fprintln(app.Stdout, TitleStyle.Render(conv.Title))
					for _, msg := range conv.Messages {
						fmt.Fprintln(app.Stdout, LabelStyle.Render(msg.Role.DisplayName()))
						fmt.Fprintln(app.Stdout, msg.Content)
						fmt.Fprintln(app.Stdout)
					}
					return nil
				})
			},
		},
		app.newHistoryExportCommand(),
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete an archived conversation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return app.withArchive(cmd.Context(), func(ctx context.Context, db *storage.DB) error {
					if err := db.DeleteConversation(ctx, args[0]); err != nil {
						return err
					}
					fmt.Fprintln(app.Stdout, SuccessStyle.Render("Deleted ")+args[0])
					return nil
				})
			},
		},
	)
	return cmd
}

func (app *App) newHistoryExportCommand() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a conversation to Markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := export.ForFormat(format, export.DefaultOptions())
			if err != nil {
				return err
			}
			return app.withArchive(cmd.Context(), func(ctx context.Context, db *storage.DB) error {
				conv, err := db.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if output == "-" {
					data, err := exp.Export(conv)
					if err != nil {
						return err
					}
					_, err = app.Stdout.Write(data)
					return err
				}
				path, err := export.WriteFile(conv, exp, output)
				if err != nil {
					return err
				}
				fmt.Fprintln(app.Stdout, SuccessStyle.Render("Exported ")+path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "md or json")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "directory to write to, - for stdout")
	return cmd
}

// withArchive opens the history database for fn.
func (app *App) withArchive(ctx context.Context, fn func(context.Context, *storage.DB) error) error {
	path, err := app.cfg.HistoryPath()
	if err != nil {
		return err
	}
	db, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func printHistory(w io.Writer, metas []storage.ConversationMeta, now time.Time) error {
	if len(metas) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No saved conversations."))
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, m := range metas {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.ID, util.TruncateWidth(m.Title, 48), m.MessageCount, humanize.RelTime(m.UpdatedAt, now, "ago", "from now"))
	}
	return tw.Flush()
}
