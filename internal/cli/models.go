// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func (app *App) newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List models installed in Ollama",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runModels(cmd.Context())
		},
	}
}

func (app *App) runModels(ctx context.Context) error {
	client := app.newClient()
	models, err := client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", client.BaseURL(), err)
	}
	if len(models) == 0 {
		fmt.Fprintln(app.Stdout, DimStyle.Render("No models installed. Try: ollama pull "+app.cfg.Model.Name))
		return nil
	}

	w := tabwriter.NewWriter(app.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tPARAMS\tMODIFIED")
	for i := range models {
		m := &models[i]
		name := m.Name
		if m.Name == app.cfg.Model.Name {
			name += " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, m.FormatSize(), m.Details.ParameterSize, m.ModifiedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
