// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/fetch"
	"github.com/pdiddy/mtb-analyzer/internal/task"
)

// ScanResult counts editions seen and newly recorded by a scan.
type ScanResult struct {
	Found int
	Added int
}

// Scan records every edition the archive lists within opts as Discovered.
// Known editions keep their stage. A listing failure aborts the scan;
// editions listed before it are still recorded, each in its own
// transaction.
func (p *Pipeline) Scan(ctx context.Context, r *task.Run, opts fetch.ListOptions) (ScanResult, error) {
	r.Logf("Starting scan for new editions...")
	if opts.From != nil {
		r.Logf("From date: %s", opts.From.Format("2006-01-02"))
	}
	if opts.To != nil {
		r.Logf("To date: %s", opts.To.Format("2006-01-02"))
	}

	// The listing spans several pages; the fetcher bounds each one.
	editions, listErr := p.fetcher.ListEditions(ctx, opts)

	res := ScanResult{Found: len(editions)}
	for _, e := range editions {
		added, err := p.store.UpsertDiscovered(ctx, e)
		if err != nil {
			return res, fmt.Errorf("recording %s: %w", e.ID, err)
		}
		if added {
			res.Added++
			r.Logf("  + %s", label(e))
		}
	}
	if listErr != nil {
		if len(editions) > 0 {
			r.Logf("Recorded %d editions before the listing failed, %d new", res.Found, res.Added)
		}
		return res, fmt.Errorf("listing editions: %w", listErr)
	}

	r.Logf("Found %d editions, %d new", res.Found, res.Added)
	p.log.Info("scan finished", zap.Int("found", res.Found), zap.Int("added", res.Added))
	return res, nil
}
