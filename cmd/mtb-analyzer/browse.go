// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mtb-analyzer/internal/store"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

var editionsCmd = &cobra.Command{
	Use:   "editions",
	Short: "List known editions and their stage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		editions, err := a.store.ListEditions(cmd.Context(), store.EditionFilter{Year: year, Limit: limit})
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatEditions(os.Stdout, editions, jsonOutput)
	},
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List relevant items",
	Long: `Items lists analyzed items scoring at least the threshold, newest
edition first. The threshold defaults to the stored setting. With --edition
every item of that edition is listed, analyzed or not.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := editionFlag(cmd)
		if err != nil {
			return err
		}
		unread, _ := cmd.Flags().GetBool("unread")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer a.close()

		f := store.ItemFilter{Edition: id, Unread: unread, Limit: limit}
		if id == nil || cmd.Flags().Changed("threshold") {
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			if !cmd.Flags().Changed("threshold") {
				s, err := a.store.Settings(cmd.Context())
				if err != nil {
					return err
				}
				threshold = s.Threshold
			}
			f.MinScore = &threshold
		}

		items, err := a.store.ListItems(cmd.Context(), f)
		if err != nil {
			return err
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatItems(os.Stdout, items, jsonOutput)
	},
}

func init() {
	editionsCmd.Flags().Int("year", 0, "only editions of this year")
	editionsCmd.Flags().Int("limit", 0, "maximum editions to list (0 = all)")
	editionsCmd.Flags().Bool("json", false, "output results as JSON")

	itemsCmd.Flags().String("edition", "", "only items of this edition, e.g. 2026-10")
	itemsCmd.Flags().Float64("threshold", 0, "minimum score (default: stored threshold)")
	itemsCmd.Flags().Bool("unread", false, "only items not marked read")
	itemsCmd.Flags().Int("limit", 0, "maximum items to list (0 = all)")
	itemsCmd.Flags().Bool("json", false, "output results as JSON")

	rootCmd.AddCommand(editionsCmd, itemsCmd)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatEditions(w io.Writer, editions []types.Edition, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, editions)
	}
	if len(editions) == 0 {
		fmt.Fprintln(w, "No editions found.")
		return nil
	}

	fmt.Fprintf(w, "%-8s  %-30s  %-10s  %-10s  %s\n", "Edition", "Title", "Published", "Stage", "Items")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, e := range editions {
		published := "-"
		if e.PublishedAt != nil {
			published = e.PublishedAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "%-8s  %-30s  %-10s  %-10s  %d\n",
			e.ID, shorten(e.Title, 30), published, e.Stage, e.ItemCount)
	}
	fmt.Fprintf(w, "\n%d editions\n", len(editions))
	return nil
}

func formatItems(w io.Writer, items []types.Item, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(w, "No items found.")
		return nil
	}

	fmt.Fprintf(w, "%-6s  %-8s  %-4s  %-5s  %-50s  %s\n", "ID", "Edition", "Pkt.", "Score", "Title", "Read")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, it := range items {
		score, title := "-", it.Title
		if it.Analysis != nil {
			score = fmt.Sprintf("%.0f", it.Analysis.Score)
			if it.Analysis.ShortTitle != "" {
				title = it.Analysis.ShortTitle
			}
		}
		read := ""
		if it.Read() {
			read = "yes"
		}
		fmt.Fprintf(w, "%-6d  %-8s  %-4d  %-5s  %-50s  %s\n",
			it.ID, it.Edition, it.Number, score, shorten(title, 50), read)
	}
	fmt.Fprintf(w, "\n%d items\n", len(items))
	return nil
}

// shorten cuts s to n runes, marking the cut with "...".
func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
