// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mtb-analyzer/internal/pipeline"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover new editions in the bulletin archive",
	Long: `Scan walks the bulletin archive and records every edition not seen
before as discovered. Known editions are never changed. Use --from and --to
to bound the publication dates.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := dayFlag(cmd, "from")
		if err != nil {
			return err
		}
		to, err := dayFlag(cmd, "to")
		if err != nil {
			return err
		}
		return runTask(cmd, pipeline.Request{Kind: pipeline.KindScan, From: from, To: to})
	},
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch the items of discovered editions",
	Long: `Scrape fetches the items of every discovered edition, oldest first.
With --edition only that edition is scraped; --force re-scrapes it even when
it was scraped or analyzed before, which drops its previous analysis.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := editionRequest(cmd, pipeline.KindScrape)
		if err != nil {
			return err
		}
		return runTask(cmd, req)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Rate the items of scraped editions",
	Long: `Analyze sends every item without a result to the classifier and
stores its relevance score. An edition becomes analyzed once all of its items
have a result. With --edition and --force an analyzed edition is rated again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := editionRequest(cmd, pipeline.KindAnalyze)
		if err != nil {
			return err
		}
		return runTask(cmd, req)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan, scrape and analyze from the last analyzed edition",
	Long: `Sync runs scan, scrape and analyze in order, starting at the newest
analyzed edition. Without any analyzed edition it scans the configured
lookback window. --full processes the whole archive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		return runTask(cmd, pipeline.Request{Kind: pipeline.KindSync, Full: full})
	},
}

func init() {
	scanCmd.Flags().String("from", "", "earliest publication date (YYYY-MM-DD)")
	scanCmd.Flags().String("to", "", "latest publication date (YYYY-MM-DD)")

	for _, c := range []*cobra.Command{scrapeCmd, analyzeCmd} {
		c.Flags().String("edition", "", "single edition, e.g. 2026-10")
		c.Flags().Bool("force", false, "process the edition even when it is past this stage")
	}

	syncCmd.Flags().Bool("full", false, "process the whole archive instead of starting at the watermark")

	rootCmd.AddCommand(scanCmd, scrapeCmd, analyzeCmd, syncCmd)
}

func runTask(cmd *cobra.Command, req pipeline.Request) error {
	a, err := newApp(cmd.Context(), os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()
	return a.run(req)
}

func editionRequest(cmd *cobra.Command, kind pipeline.Kind) (pipeline.Request, error) {
	req := pipeline.Request{Kind: kind}
	req.Force, _ = cmd.Flags().GetBool("force")
	id, err := editionFlag(cmd)
	if err != nil {
		return req, err
	}
	req.Edition = id
	if req.Force && id == nil {
		return req, fmt.Errorf("--force requires --edition")
	}
	return req, nil
}

func editionFlag(cmd *cobra.Command) (*types.EditionID, error) {
	v, _ := cmd.Flags().GetString("edition")
	if v == "" {
		return nil, nil
	}
	id, err := types.ParseEditionID(v)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func dayFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	return parseDay(v)
}

// parseDay accepts YYYY-MM-DD. An empty value is no bound.
func parseDay(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", v)
	}
	return &t, nil
}
