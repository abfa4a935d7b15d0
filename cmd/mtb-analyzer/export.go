// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mtb-analyzer/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export editions with their items and analyses to YAML or JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		year, _ := cmd.Flags().GetInt("year")
		output, _ := cmd.Flags().GetString("output")
		if format != "yaml" && format != "json" {
			return fmt.Errorf("unsupported format %q: use yaml or json", format)
		}

		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		filter := store.EditionFilter{Year: year, Ascending: true}
		if format == "json" {
			err = a.store.ExportJSON(cmd.Context(), w, filter)
		} else {
			err = a.store.ExportYAML(cmd.Context(), w, filter)
		}
		if err != nil {
			return err
		}
		if output != "" {
			fmt.Fprintf(os.Stderr, "Exported to %s\n", output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	exportCmd.Flags().Int("year", 0, "only editions of this year")
	exportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	rootCmd.AddCommand(exportCmd)
}
