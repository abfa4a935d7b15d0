package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print edition and item counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		s, err := a.store.Settings(cmd.Context())
		if err != nil {
			return err
		}
		st, err := a.store.Stats(cmd.Context(), s.Threshold)
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return writeJSON(os.Stdout, st)
		}
		printStats(os.Stdout, st, s.Threshold)
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(statsCmd)
}

func printStats(w io.Writer, st types.Stats, threshold float64) {
	fmt.Fprintf(w, "Editions:  %d total, %d scraped, %d analyzed\n",
		st.TotalEditions, st.ScrapedEditions, st.AnalyzedEditions)
	fmt.Fprintf(w, "Items:     %d total, %d analyzed\n", st.TotalItems, st.AnalyzedItems)
	fmt.Fprintf(w, "Relevant:  %d (score >= %.0f), %d unread\n", st.RelevantItems, threshold, st.UnreadRelevant)
}
