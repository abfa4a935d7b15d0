// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/mtb-analyzer/internal/classify"
	"github.com/pdiddy/mtb-analyzer/internal/store"
	"github.com/pdiddy/mtb-analyzer/internal/task"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// EditionAnalysis summarizes one AnalyzeEdition call.
type EditionAnalysis struct {
	Skipped  bool
	Items    int
	Analyzed int
	Failed   int
	Relevant int
	AvgScore float64
}

// itemOutcome is the result of classifying one item.
type itemOutcome struct {
	result types.AnalysisResult
	err    error
}

// AnalyzeEdition classifies the items of a Scraped edition that have no
// result yet (every item when force is set on an Analyzed edition) and
// advances the edition to Analyzed once every item has one. Items that fail
// are logged and counted; the edition then stays Scraped and ErrIncomplete
// is returned alongside the summary.
func (p *Pipeline) AnalyzeEdition(ctx context.Context, r *task.Run, id types.EditionID, force bool) (EditionAnalysis, error) {
	ed, err := p.store.GetEdition(ctx, id)
	if err != nil {
		return EditionAnalysis{}, err
	}
	if _, ok := ed.Stage.Analyze(force); !ok {
		r.Logf("Skipping %s (%s)", label(ed), ed.Stage)
		return EditionAnalysis{Skipped: true}, nil
	}

	settings, err := p.settings(ctx)
	if err != nil {
		return EditionAnalysis{}, err
	}

	// A forced run re-submits every item; each new result replaces the old.
	items, err := p.store.ListItems(ctx, store.ItemFilter{
		Edition:    &id,
		Unanalyzed: !(force && ed.Stage == types.StageAnalyzed),
	})
	if err != nil {
		return EditionAnalysis{}, err
	}

	r.Logf("Analyzing %s (%d items)...", label(ed), len(items))
	res := EditionAnalysis{Items: len(items)}
	var total float64

	report := func(it types.Item, out itemOutcome) {
		if out.err != nil {
			res.Failed++
			r.Logf("  ✗ Pkt. %d failed: %v", it.Number, out.err)
			p.log.Warn("item analysis failed",
				zap.Stringer("edition", id), zap.Int("item", it.Number), zap.Error(out.err))
			return
		}
		res.Analyzed++
		total += out.result.Score
		mark := ""
		if out.result.Relevant(settings.Threshold) {
			res.Relevant++
			mark = " (relevant)"
		}
		r.Logf("  ✓ Pkt. %d: %.0f%s", it.Number, out.result.Score, mark)
	}

	if err := p.classifyItems(ctx, items, settings, report); err != nil {
		return res, err
	}
	if res.Analyzed > 0 {
		res.AvgScore = total / float64(res.Analyzed)
	}

	done, err := p.store.CompleteAnalysis(ctx, id, force)
	if err != nil {
		return res, err
	}
	if !done {
		return res, fmt.Errorf("%w: %d of %d items of %s failed", ErrIncomplete, res.Failed, res.Items, id)
	}
	r.Logf("Analyzed %s: %d items, %d relevant", label(ed), res.Items, res.Relevant)
	return res, nil
}

// classifyItems runs the classifier over items, sequentially or through a
// bounded pool, and calls report once per item in item order. It only
// fails when ctx is cancelled.
func (p *Pipeline) classifyItems(ctx context.Context, items []types.Item, s types.Settings, report func(types.Item, itemOutcome)) error {
	if p.workers <= 1 || len(items) < 2 {
		for _, it := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			report(it, p.classifyItem(ctx, it, s))
		}
		return nil
	}

	outcomes := make([]itemOutcome, len(items))
	ready := make([]bool, len(items))
	next := 0
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, it := range items {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out := p.classifyItem(gctx, it, s)

			mu.Lock()
			defer mu.Unlock()
			outcomes[i], ready[i] = out, true
			for next < len(items) && ready[next] {
				report(items[next], outcomes[next])
				next++
			}
			return nil
		})
	}
	return g.Wait()
}

// classifyItem classifies and stores one item. Each result is its own
// transaction.
func (p *Pipeline) classifyItem(ctx context.Context, it types.Item, s types.Settings) itemOutcome {
	cctx, cancel := context.WithTimeout(ctx, p.analysisTimeout)
	defer cancel()

	result, err := p.classifier.Classify(cctx, classify.Request{
		Item:      it,
		Role:      s.RoleDescription,
		Threshold: s.Threshold,
		Model:     s.Model,
	})
	if err != nil {
		return itemOutcome{err: err}
	}
	if err := p.store.SaveAnalysis(ctx, it.ID, result); err != nil {
		return itemOutcome{err: err}
	}
	return itemOutcome{result: result}
}

// AnalyzePending analyzes every Scraped edition at or after since (all when
// nil), oldest first. A failed edition keeps its stage and the batch
// continues.
func (p *Pipeline) AnalyzePending(ctx context.Context, r *task.Run, since *types.EditionID) (BatchResult, error) {
	pending, err := p.store.ListEditions(ctx, store.EditionFilter{
		Stage:     types.StageScraped,
		Since:     since,
		Ascending: true,
	})
	if err != nil {
		return BatchResult{}, err
	}
	if len(pending) == 0 {
		r.Logf("No unanalyzed editions found. Run scrape first.")
		return BatchResult{}, nil
	}
	// Configuration problems fail every edition the same way.
	if _, err := p.settings(ctx); err != nil {
		return BatchResult{}, err
	}

	r.SetTotal(len(pending))
	r.Logf("Analyzing %d editions...", len(pending))

	var res BatchResult
	for i, ed := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, err := p.AnalyzeEdition(ctx, r, ed.ID, false)
		switch {
		case err != nil:
			res.Failed++
			r.Logf("  ✗ %s failed: %v", label(ed), err)
		case out.Skipped:
			res.Skipped++
		default:
			res.Done++
			r.Logf("  ✓ %s: %d items, %d relevant", label(ed), out.Items, out.Relevant)
		}
		r.SetProgress(i + 1)
	}
	r.Logf("Analysis complete: %d done, %d skipped, %d failed", res.Done, res.Skipped, res.Failed)
	return res, nil
}
