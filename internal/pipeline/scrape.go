// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/store"
	"github.com/pdiddy/mtb-analyzer/internal/task"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// ScrapeEdition fetches the items of one edition and replaces the stored
// ones. It reports false without fetching when the edition's stage does not
// allow scraping and force is not set.
func (p *Pipeline) ScrapeEdition(ctx context.Context, r *task.Run, id types.EditionID, force bool) (bool, error) {
	ed, err := p.store.GetEdition(ctx, id)
	if err != nil {
		return false, err
	}
	if _, ok := ed.Stage.Scrape(force); !ok {
		r.Logf("Skipping %s (already %s)", label(ed), ed.Stage)
		return false, nil
	}

	r.Logf("Scraping %s...", label(ed))
	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()
	items, err := p.fetcher.FetchItems(fctx, ed)
	if err != nil {
		return false, fmt.Errorf("fetching items of %s: %w", id, err)
	}

	n, err := p.store.ReplaceItems(ctx, id, items)
	if err != nil {
		return false, err
	}
	r.Logf("Scraped %d items from %s", n, label(ed))
	return true, nil
}

// ScrapePending scrapes every Discovered edition at or after since (all
// when nil), oldest first. A failed edition keeps its stage and the batch
// continues.
func (p *Pipeline) ScrapePending(ctx context.Context, r *task.Run, since *types.EditionID) (BatchResult, error) {
	pending, err := p.store.ListEditions(ctx, store.EditionFilter{
		Stage:     types.StageDiscovered,
		Since:     since,
		Ascending: true,
	})
	if err != nil {
		return BatchResult{}, err
	}
	if len(pending) == 0 {
		r.Logf("No unscraped editions found. Run scan first.")
		return BatchResult{}, nil
	}

	r.SetTotal(len(pending))
	r.Logf("Scraping %d editions...", len(pending))

	var res BatchResult
	for i, ed := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		scraped, err := p.ScrapeEdition(ctx, r, ed.ID, false)
		switch {
		case err != nil:
			res.Failed++
			r.Logf("  ✗ %s failed: %v", label(ed), err)
			p.log.Warn("scrape failed", zap.Stringer("edition", ed.ID), zap.Error(err))
		case scraped:
			res.Done++
			r.Logf("  ✓ %s done", label(ed))
		default:
			res.Skipped++
		}
		r.SetProgress(i + 1)
	}
	r.Logf("Scraping complete: %d done, %d skipped, %d failed", res.Done, res.Skipped, res.Failed)
	return res, nil
}
