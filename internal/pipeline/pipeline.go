// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline advances editions through discovery, scraping and
// analysis. Every operation is safe to re-run: stage transitions that do
// not apply are skipped, not failed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/classify"
	"github.com/pdiddy/mtb-analyzer/internal/convert"
	"github.com/pdiddy/mtb-analyzer/internal/fetch"
	"github.com/pdiddy/mtb-analyzer/internal/store"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const (
	defaultFetchTimeout    = 60 * time.Second
	defaultAnalysisTimeout = 90 * time.Second
	defaultLookback        = 30 * 24 * time.Hour
)

var (
	// ErrNotConfigured is returned when analysis lacks a role description
	// or API credential.
	ErrNotConfigured = errors.New("analysis not configured")

	// ErrIncomplete is returned when some items of an edition could not be
	// analyzed. The edition stays Scraped and the next run retries them.
	ErrIncomplete = errors.New("analysis incomplete")
)

// Store is the persistence the pipeline needs.
type Store interface {
	UpsertDiscovered(ctx context.Context, e types.Edition) (bool, error)
	GetEdition(ctx context.Context, id types.EditionID) (types.Edition, error)
	ListEditions(ctx context.Context, f store.EditionFilter) ([]types.Edition, error)
	Watermark(ctx context.Context) (*types.Edition, error)
	ResetEdition(ctx context.Context, id types.EditionID) error
	ResetAll(ctx context.Context) (int, error)

	ReplaceItems(ctx context.Context, id types.EditionID, items []types.RawItem) (int, error)
	ListItems(ctx context.Context, f store.ItemFilter) ([]types.Item, error)
	GetItem(ctx context.Context, itemID int64) (types.Item, error)
	SaveAnalysis(ctx context.Context, itemID int64, r types.AnalysisResult) error
	CompleteAnalysis(ctx context.Context, id types.EditionID, force bool) (bool, error)

	GetAttachment(ctx context.Context, id int64) (types.AttachmentRef, error)
	SetAttachmentCache(ctx context.Context, id int64, path string) error
	SaveDeepAnalysis(ctx context.Context, id int64, d types.DeepAnalysis) error

	Settings(ctx context.Context) (types.Settings, error)
}

// Downloader fetches attachment files into a local cache.
type Downloader interface {
	Download(ctx context.Context, a types.AttachmentRef) (string, error)
}

// BatchResult counts the outcome of a multi-edition run.
type BatchResult struct {
	Done    int
	Skipped int
	Failed  int
}

// Total returns the number of editions processed.
func (r BatchResult) Total() int {
	return r.Done + r.Skipped + r.Failed
}

// HasFailures reports whether any edition failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Pipeline wires the store to the archive and the classifier.
type Pipeline struct {
	store      Store
	fetcher    fetch.Fetcher
	classifier classify.Classifier
	downloader Downloader
	converter  convert.Converter
	log        *zap.Logger
	now        func() time.Time

	apiKey          string
	workers         int
	fetchTimeout    time.Duration
	analysisTimeout time.Duration
	lookback        time.Duration
}

// Deps groups the collaborators of a Pipeline. Downloader and Converter
// may be nil, which disables deep analysis.
type Deps struct {
	Store      Store
	Fetcher    fetch.Fetcher
	Classifier classify.Classifier
	Downloader Downloader
	Converter  convert.Converter
	Logger     *zap.Logger
}

// New returns a pipeline using deps with the limits in cfg.
func New(deps Deps, cfg types.Config) *Pipeline {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		store:           deps.Store,
		fetcher:         deps.Fetcher,
		classifier:      deps.Classifier,
		downloader:      deps.Downloader,
		converter:       deps.Converter,
		log:             log.With(zap.String("component", "pipeline")),
		now:             time.Now,
		apiKey:          cfg.Analysis.APIKey,
		workers:         cfg.Analysis.Workers,
		fetchTimeout:    cfg.Archive.Timeout,
		analysisTimeout: cfg.Analysis.Timeout,
		lookback:        cfg.Sync.InitialLookback,
	}
	if p.workers < 1 {
		p.workers = 1
	}
	if p.fetchTimeout <= 0 {
		p.fetchTimeout = defaultFetchTimeout
	}
	if p.analysisTimeout <= 0 {
		p.analysisTimeout = defaultAnalysisTimeout
	}
	if p.lookback <= 0 {
		p.lookback = defaultLookback
	}
	return p
}

// settings reads the operator settings fresh and checks they allow
// analysis. The credential comes from configuration, never the store.
func (p *Pipeline) settings(ctx context.Context) (types.Settings, error) {
	s, err := p.store.Settings(ctx)
	if err != nil {
		return types.Settings{}, fmt.Errorf("loading settings: %w", err)
	}
	s.APIKey = p.apiKey
	switch {
	case s.RoleDescription == "":
		return s, fmt.Errorf("%w: role description is empty", ErrNotConfigured)
	case !s.HasCredential():
		return s, fmt.Errorf("%w: no API key", ErrNotConfigured)
	}
	return s, nil
}

// label renders an edition for log lines, e.g. "MTB 10/2026".
func label(e types.Edition) string {
	if e.Title != "" {
		return e.Title
	}
	return e.ID.String()
}
