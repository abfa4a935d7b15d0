// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

var resetCmd = &cobra.Command{
	Use:   "reset [edition]",
	Short: "Return editions to the discovered stage",
	Long: `Reset deletes the items and analyses of an edition and marks it
discovered again, so the next scrape fetches it anew. --all resets every
edition.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("provide an edition id or --all")
		}

		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		if all {
			n, err := a.pipeline.ResetAll(cmd.Context(), a.engine)
			if err != nil {
				return err
			}
			fmt.Printf("Reset %d editions\n", n)
			return nil
		}

		id, err := types.ParseEditionID(args[0])
		if err != nil {
			return err
		}
		if err := a.pipeline.Reset(cmd.Context(), a.engine, id); err != nil {
			return err
		}
		fmt.Printf("Reset %s\n", id)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("all", false, "reset every edition")

	rootCmd.AddCommand(resetCmd)
}
