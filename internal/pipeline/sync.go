// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/fetch"
	"github.com/pdiddy/mtb-analyzer/internal/task"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// SyncOptions controls a sync run.
type SyncOptions struct {
	// Full scans the whole archive and processes every pending edition
	// instead of only those at or after the watermark.
	Full bool
}

// Sync scans for new editions, scrapes them and analyzes them. The
// watermark is the newest Analyzed edition: the scan starts at its publish
// date and only editions at or after it are processed. Without a watermark
// the scan covers the configured lookback. Failures in one phase never
// abort the next; a run with failures returns an error carrying their
// count.
func (p *Pipeline) Sync(ctx context.Context, r *task.Run, opts SyncOptions) error {
	wm, err := p.store.Watermark(ctx)
	if err != nil {
		return fmt.Errorf("reading watermark: %w", err)
	}

	var (
		list     fetch.ListOptions
		since    *types.EditionID
		failures int
	)
	switch {
	case opts.Full:
		r.Logf("Full sync requested, scanning the whole archive")
	case wm != nil:
		since = &wm.ID
		list.Since = &wm.ID
		list.From = wm.PublishedAt
		r.Logf("Looking for editions newer than %s", label(*wm))
	default:
		from := p.now().Add(-p.lookback)
		list.From = &from
		r.Logf("No fully processed editions found, scanning since %s", from.Format("2006-01-02"))
	}

	r.SetTask("sync: scanning")
	r.Logf("Phase 1/3: Scanning for new editions...")
	if _, err := p.Scan(ctx, r, list); err != nil {
		failures++
		r.Logf("  ✗ scan failed: %v", err)
		p.log.Warn("sync scan failed", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.SetTask("sync: scraping")
	r.Logf("Phase 2/3: Scraping new editions...")
	scraped, err := p.ScrapePending(ctx, r, since)
	failures += scraped.Failed
	if err != nil {
		failures++
		r.Logf("  ✗ scrape failed: %v", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.SetTask("sync: analyzing")
	r.Logf("Phase 3/3: Analyzing new editions...")
	analyzed, err := p.AnalyzePending(ctx, r, since)
	failures += analyzed.Failed
	if err != nil {
		failures++
		r.Logf("  ✗ analysis failed: %v", err)
	}

	r.Logf("Sync complete: %d failure(s)", failures)
	if failures > 0 {
		return fmt.Errorf("sync finished with %d failure(s)", failures)
	}
	return nil
}
