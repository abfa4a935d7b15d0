// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/mtb-analyzer/internal/fetch"
	"github.com/pdiddy/mtb-analyzer/internal/task"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// Kind names an operation the task engine can run.
type Kind string

const (
	KindScan    Kind = "scan"
	KindScrape  Kind = "scrape"
	KindAnalyze Kind = "analyze"
	KindSync    Kind = "sync"
)

// Request describes an operation for the task engine. Fields that do not
// apply to Kind are ignored.
type Request struct {
	Kind    Kind
	From    *time.Time
	To      *time.Time
	Edition *types.EditionID
	Force   bool
	Full    bool
}

// Job turns req into a task name and function for task.Engine.Start.
func (p *Pipeline) Job(req Request) (string, task.Func, error) {
	switch req.Kind {
	case KindScan:
		return "scan", func(ctx context.Context, r *task.Run) error {
			_, err := p.Scan(ctx, r, fetch.ListOptions{From: req.From, To: req.To})
			if err == nil {
				r.Logf("Scan complete!")
			}
			return err
		}, nil

	case KindScrape:
		if req.Edition != nil {
			id := *req.Edition
			return "scrape " + id.String(), func(ctx context.Context, r *task.Run) error {
				r.SetTotal(1)
				if _, err := p.ScrapeEdition(ctx, r, id, req.Force); err != nil {
					return err
				}
				r.SetProgress(1)
				return nil
			}, nil
		}
		return "scrape all", func(ctx context.Context, r *task.Run) error {
			_, err := p.ScrapePending(ctx, r, nil)
			return err
		}, nil

	case KindAnalyze:
		if req.Edition != nil {
			id := *req.Edition
			return "analyze " + id.String(), func(ctx context.Context, r *task.Run) error {
				r.SetTotal(1)
				if _, err := p.AnalyzeEdition(ctx, r, id, req.Force); err != nil {
					return err
				}
				r.SetProgress(1)
				return nil
			}, nil
		}
		return "analyze all", func(ctx context.Context, r *task.Run) error {
			_, err := p.AnalyzePending(ctx, r, nil)
			return err
		}, nil

	case KindSync:
		return "sync: starting", func(ctx context.Context, r *task.Run) error {
			return p.Sync(ctx, r, SyncOptions{Full: req.Full})
		}, nil
	}
	return "", nil, fmt.Errorf("unknown operation %q", req.Kind)
}

// Reset returns an edition to Discovered, dropping its items and results.
// It is refused with task.ErrBusy while an operation is running.
func (p *Pipeline) Reset(ctx context.Context, e *task.Engine, id types.EditionID) error {
	ok, err := e.Exclusive(func() error {
		return p.store.ResetEdition(ctx, id)
	})
	if !ok {
		return task.ErrBusy
	}
	return err
}

// ResetAll returns every edition to Discovered under the same guard as
// Reset. It reports how many editions were reset.
func (p *Pipeline) ResetAll(ctx context.Context, e *task.Engine) (int, error) {
	var n int
	ok, err := e.Exclusive(func() error {
		var err error
		n, err = p.store.ResetAll(ctx)
		return err
	})
	if !ok {
		return 0, task.ErrBusy
	}
	return n, err
}
