// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mtb-analyzer/internal/classify"
	"github.com/pdiddy/mtb-analyzer/internal/fetch"
	"github.com/pdiddy/mtb-analyzer/internal/store"
	"github.com/pdiddy/mtb-analyzer/internal/task"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// --- fakes ---

type fakeFetcher struct {
	mu        sync.Mutex
	editions  []types.Edition
	items     map[types.EditionID][]types.RawItem
	itemErr   map[types.EditionID]error
	listErr   error
	partial   []types.Edition // returned together with listErr
	listCalls []fetch.ListOptions
	fetched   []types.EditionID
}

func (f *fakeFetcher) ListEditions(_ context.Context, opts fetch.ListOptions) ([]types.Edition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls = append(f.listCalls, opts)
	if f.listErr != nil {
		return f.partial, f.listErr
	}
	var out []types.Edition
	for _, e := range f.editions {
		if opts.Keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeFetcher) FetchItems(_ context.Context, e types.Edition) ([]types.RawItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, e.ID)
	if err := f.itemErr[e.ID]; err != nil {
		return nil, err
	}
	return f.items[e.ID], nil
}

// fakeClassifier scores items by number; numbers in fail return an error.
type fakeClassifier struct {
	mu    sync.Mutex
	fail  map[int]bool
	score func(types.Item) float64
	calls []string
	deep  []classify.DeepRequest
}

func (c *fakeClassifier) Classify(_ context.Context, req classify.Request) (types.AnalysisResult, error) {
	c.mu.Lock()
	c.calls = append(c.calls, fmt.Sprintf("%s/%d", req.Item.Edition, req.Item.Number))
	c.mu.Unlock()
	if c.fail[req.Item.Number] {
		return types.AnalysisResult{}, classify.ErrMalformedResponse
	}
	score := 50.0
	if c.score != nil {
		score = c.score(req.Item)
	}
	return types.AnalysisResult{Score: score, ShortTitle: req.Item.Title, Model: "fake", AnalyzedAt: time.Now()}, nil
}

func (c *fakeClassifier) DeepAnalyze(_ context.Context, req classify.DeepRequest) (types.DeepAnalysis, error) {
	c.mu.Lock()
	c.deep = append(c.deep, req)
	c.mu.Unlock()
	return types.DeepAnalysis{Text: "summary of " + req.AttachmentName, Model: "fake-deep", AnalyzedAt: time.Now()}, nil
}

func (c *fakeClassifier) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fakeDownloader struct{ dir string }

func (d fakeDownloader) Download(_ context.Context, a types.AttachmentRef) (string, error) {
	path := filepath.Join(d.dir, fetch.CacheName(a))
	return path, os.WriteFile(path, []byte("%PDF"), 0o644)
}

type fakeConverter struct{}

func (fakeConverter) Convert(_ context.Context, path string) (string, error) {
	return "text of " + filepath.Base(path), nil
}

// --- helpers ---

type env struct {
	p          *Pipeline
	store      *store.Store
	fetcher    *fakeFetcher
	classifier *fakeClassifier
	run        *task.Run
}

func id(year, number int) types.EditionID {
	return types.EditionID{Year: year, Number: number}
}

func ed(year, number int, pub time.Time) types.Edition {
	return types.Edition{
		ID:          id(year, number),
		Title:       fmt.Sprintf("MTB %d/%d", number, year),
		PublishedAt: &pub,
	}
}

func items(numbers ...int) []types.RawItem {
	out := make([]types.RawItem, len(numbers))
	for i, n := range numbers {
		out[i] = types.RawItem{
			Number: n, Title: fmt.Sprintf("Item %d", n), Text: "text",
			Attachments: []types.RawAttachment{{Name: fmt.Sprintf("anhang-%d.pdf", n), URL: "https://ix.jku.at/downloadIxServlet?id=1"}},
		}
	}
	return out
}

func setup(t *testing.T, workers int) *env {
	t.Helper()
	s, err := store.NewStore(types.StorageConfig{Database: filepath.Join(t.TempDir(), "mtb.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.SeedSettings(context.Background(), types.Settings{
		RoleDescription: "Professor of computer science", Threshold: 60,
	}))

	f := &fakeFetcher{items: map[types.EditionID][]types.RawItem{}, itemErr: map[types.EditionID]error{}}
	c := &fakeClassifier{fail: map[int]bool{}}
	cfg := types.Config{}
	cfg.Analysis.APIKey = "sk-test"
	cfg.Analysis.Workers = workers

	p := New(Deps{
		Store:      s,
		Fetcher:    f,
		Classifier: c,
		Downloader: fakeDownloader{dir: t.TempDir()},
		Converter:  fakeConverter{},
	}, cfg)
	return &env{p: p, store: s, fetcher: f, classifier: c, run: task.Discard()}
}

func stageOf(t *testing.T, e *env, eid types.EditionID) types.Stage {
	t.Helper()
	got, err := e.store.GetEdition(context.Background(), eid)
	require.NoError(t, err)
	return got.Stage
}

func march(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

// --- Scan ---

func TestScan_Idempotent(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.editions = []types.Edition{ed(2026, 10, march(12)), ed(2026, 9, march(5))}

	res, err := e.p.Scan(ctx, e.run, fetch.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Found: 2, Added: 2}, res)

	// A scraped edition keeps its stage on rescans.
	e.fetcher.items[id(2026, 10)] = items(1)
	_, err = e.p.ScrapeEdition(ctx, e.run, id(2026, 10), false)
	require.NoError(t, err)

	res, err = e.p.Scan(ctx, e.run, fetch.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Found: 2, Added: 0}, res)
	assert.Equal(t, types.StageScraped, stageOf(t, e, id(2026, 10)))
	assert.Equal(t, types.StageDiscovered, stageOf(t, e, id(2026, 9)))
}

func TestScan_FetchErrorReturned(t *testing.T) {
	e := setup(t, 1)
	e.fetcher.listErr = errors.New("archive unreachable")

	_, err := e.p.Scan(context.Background(), e.run, fetch.ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive unreachable")
}

func TestScan_OverlappingRanges(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.editions = []types.Edition{
		ed(2026, 10, march(19)), ed(2026, 9, march(12)), ed(2026, 8, march(5)), ed(2026, 7, march(2)),
	}

	first := fetch.ListOptions{From: ptr(march(1)), To: ptr(march(12))}
	res, err := e.p.Scan(ctx, e.run, first)
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Found: 3, Added: 3}, res)

	e.fetcher.items[id(2026, 9)] = items(1, 2)
	_, err = e.p.ScrapeEdition(ctx, e.run, id(2026, 9), false)
	require.NoError(t, err)

	second := fetch.ListOptions{From: ptr(march(5)), To: ptr(march(19))}
	res, err = e.p.Scan(ctx, e.run, second)
	require.NoError(t, err)
	assert.Equal(t, ScanResult{Found: 3, Added: 1}, res)

	all, err := e.store.ListEditions(ctx, store.EditionFilter{Ascending: true})
	require.NoError(t, err)
	got := make([]string, len(all))
	for i, x := range all {
		got[i] = x.ID.String()
	}
	assert.Equal(t, []string{"2026-7", "2026-8", "2026-9", "2026-10"}, got)

	assert.Equal(t, types.StageScraped, stageOf(t, e, id(2026, 9)))
	assert.Equal(t, types.StageDiscovered, stageOf(t, e, id(2026, 10)))
	scraped, err := e.store.ListItems(ctx, store.ItemFilter{Edition: ptr(id(2026, 9))})
	require.NoError(t, err)
	assert.Len(t, scraped, 2)
}

func TestScan_KeepsEditionsListedBeforeFailure(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.partial = []types.Edition{ed(2026, 10, march(12)), ed(2026, 9, march(5))}
	e.fetcher.listErr = errors.New("archive page 2: HTTP 500")

	res, err := e.p.Scan(ctx, e.run, fetch.ListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive page 2")
	assert.Equal(t, ScanResult{Found: 2, Added: 2}, res)

	assert.Equal(t, types.StageDiscovered, stageOf(t, e, id(2026, 10)))
	assert.Equal(t, types.StageDiscovered, stageOf(t, e, id(2026, 9)))
}

// --- Scrape ---

func TestScrapeEdition_SkipAndForce(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.editions = []types.Edition{ed(2026, 10, march(12))}
	_, err := e.p.Scan(ctx, e.run, fetch.ListOptions{})
	require.NoError(t, err)

	e.fetcher.items[id(2026, 10)] = items(1, 2, 3)
	ok, err := e.p.ScrapeEdition(ctx, e.run, id(2026, 10), false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.p.ScrapeEdition(ctx, e.run, id(2026, 10), false)
	require.NoError(t, err)
	assert.False(t, ok, "scraped edition is skipped without force")
	assert.Len(t, e.fetcher.fetched, 1)

	// Forced re-scrape fully replaces the items.
	e.fetcher.items[id(2026, 10)] = items(4, 5)
	ok, err = e.p.ScrapeEdition(ctx, e.run, id(2026, 10), true)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := e.store.ListItems(ctx, store.ItemFilter{Edition: ptr(id(2026, 10))})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got[0].Number)
	assert.Equal(t, 5, got[1].Number)
}

func TestScrapeEdition_Unknown(t *testing.T) {
	e := setup(t, 1)
	_, err := e.p.ScrapeEdition(context.Background(), e.run, id(2026, 99), false)
	assert.ErrorIs(t, err, types.ErrEditionNotFound)
}

func TestScrapePending_ContinuesPastFailure(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.editions = []types.Edition{ed(2026, 3, march(3)), ed(2026, 2, march(2)), ed(2026, 1, march(1))}
	_, err := e.p.Scan(ctx, e.run, fetch.ListOptions{})
	require.NoError(t, err)

	e.fetcher.items[id(2026, 1)] = items(1)
	e.fetcher.itemErr[id(2026, 2)] = errors.New("timeout")
	e.fetcher.items[id(2026, 3)] = items(1, 2)

	res, err := e.p.ScrapePending(ctx, e.run, nil)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Done: 2, Failed: 1}, res)
	assert.Equal(t, []types.EditionID{id(2026, 1), id(2026, 2), id(2026, 3)}, e.fetcher.fetched, "oldest first")
	assert.Equal(t, types.StageDiscovered, stageOf(t, e, id(2026, 2)))
	assert.Equal(t, types.StageScraped, stageOf(t, e, id(2026, 3)))
}

func TestScrapePending_NothingToDo(t *testing.T) {
	e := setup(t, 1)
	eng := task.New(context.Background())
	name, fn, err := e.p.Job(Request{Kind: KindScrape})
	require.NoError(t, err)
	assert.Equal(t, "scrape all", name)
	require.NoError(t, eng.RunSync(name, fn))
	logs := eng.Status().Logs
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[0], "No unscraped editions found. Run scan first.")
}

// --- Analyze ---

func scanAndScrape(t *testing.T, e *env, editions ...types.Edition) {
	t.Helper()
	ctx := context.Background()
	e.fetcher.editions = append(e.fetcher.editions, editions...)
	_, err := e.p.Scan(ctx, e.run, fetch.ListOptions{})
	require.NoError(t, err)
	_, err = e.p.ScrapePending(ctx, e.run, nil)
	require.NoError(t, err)
}

func TestAnalyzeEdition_FailureKeepsScraped(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			e := setup(t, workers)
			ctx := context.Background()
			e.fetcher.items[id(2026, 10)] = items(1, 2, 3, 4, 5)
			scanAndScrape(t, e, ed(2026, 10, march(12)))
			e.classifier.fail[3] = true

			res, err := e.p.AnalyzeEdition(ctx, e.run, id(2026, 10), false)
			require.ErrorIs(t, err, ErrIncomplete)
			assert.Equal(t, 5, res.Items)
			assert.Equal(t, 4, res.Analyzed)
			assert.Equal(t, 1, res.Failed)
			assert.Equal(t, types.StageScraped, stageOf(t, e, id(2026, 10)))

			got, err := e.store.ListItems(ctx, store.ItemFilter{Edition: ptr(id(2026, 10))})
			require.NoError(t, err)
			for _, it := range got {
				if it.Number == 3 {
					assert.Nil(t, it.Analysis)
				} else {
					assert.NotNil(t, it.Analysis, "item %d", it.Number)
				}
			}

			// The next run only submits the missing item.
			delete(e.classifier.fail, 3)
			before := e.classifier.callCount()
			res, err = e.p.AnalyzeEdition(ctx, e.run, id(2026, 10), false)
			require.NoError(t, err)
			assert.Equal(t, 1, res.Items)
			assert.Equal(t, before+1, e.classifier.callCount())
			assert.Equal(t, types.StageAnalyzed, stageOf(t, e, id(2026, 10)))
		})
	}
}

func TestAnalyzeEdition_LogsInItemOrder(t *testing.T) {
	e := setup(t, 4)
	eng := task.New(context.Background())
	e.fetcher.items[id(2026, 10)] = items(1, 2, 3, 4, 5, 6)
	scanAndScrape(t, e, ed(2026, 10, march(12)))

	name, fn, err := e.p.Job(Request{Kind: KindAnalyze, Edition: ptr(id(2026, 10))})
	require.NoError(t, err)
	require.NoError(t, eng.RunSync(name, fn))

	var order []string
	for _, l := range eng.Status().Logs {
		if i := strings.Index(l, "✓ Pkt. "); i >= 0 {
			order = append(order, strings.SplitN(l[i+len("✓ Pkt. "):], ":", 2)[0])
		}
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, order)
}

func TestAnalyzeEdition_Stages(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.editions = []types.Edition{ed(2026, 11, march(19))}
	_, err := e.p.Scan(ctx, e.run, fetch.ListOptions{})
	require.NoError(t, err)

	// Discovered editions have nothing to analyze.
	res, err := e.p.AnalyzeEdition(ctx, e.run, id(2026, 11), true)
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	e.fetcher.items[id(2026, 11)] = items(1, 2)
	_, err = e.p.ScrapeEdition(ctx, e.run, id(2026, 11), false)
	require.NoError(t, err)
	_, err = e.p.AnalyzeEdition(ctx, e.run, id(2026, 11), false)
	require.NoError(t, err)
	assert.Equal(t, 2, e.classifier.callCount())

	res, err = e.p.AnalyzeEdition(ctx, e.run, id(2026, 11), false)
	require.NoError(t, err)
	assert.True(t, res.Skipped, "analyzed edition is skipped without force")

	// Forced re-analysis submits every item again and replaces results.
	e.classifier.score = func(types.Item) float64 { return 90 }
	res, err = e.p.AnalyzeEdition(ctx, e.run, id(2026, 11), true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Analyzed)
	assert.Equal(t, 2, res.Relevant)
	assert.Equal(t, 90.0, res.AvgScore)
	assert.Equal(t, 4, e.classifier.callCount())
	assert.Equal(t, types.StageAnalyzed, stageOf(t, e, id(2026, 11)))
}

func TestAnalyzeEdition_ZeroItems(t *testing.T) {
	e := setup(t, 1)
	scanAndScrape(t, e, ed(2026, 12, march(26)))

	res, err := e.p.AnalyzeEdition(context.Background(), e.run, id(2026, 12), false)
	require.NoError(t, err)
	assert.Zero(t, res.Items)
	assert.Equal(t, types.StageAnalyzed, stageOf(t, e, id(2026, 12)))
}

func TestAnalyzeEdition_NotConfigured(t *testing.T) {
	e := setup(t, 1)
	e.fetcher.items[id(2026, 10)] = items(1)
	scanAndScrape(t, e, ed(2026, 10, march(12)))

	e.p.apiKey = ""
	_, err := e.p.AnalyzeEdition(context.Background(), e.run, id(2026, 10), false)
	assert.ErrorIs(t, err, ErrNotConfigured)

	e.p.apiKey = "sk-test"
	require.NoError(t, e.store.PutSetting(context.Background(), store.SettingRole, ""))
	_, err = e.p.AnalyzeEdition(context.Background(), e.run, id(2026, 10), false)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Zero(t, e.classifier.callCount())
}

// --- Engine integration ---

func TestJob_SecondStartRejected(t *testing.T) {
	e := setup(t, 1)
	eng := task.New(context.Background())

	release := make(chan struct{})
	require.True(t, eng.Start("slow", func(context.Context, *task.Run) error { <-release; return nil }))

	name, fn, err := e.p.Job(Request{Kind: KindSync})
	require.NoError(t, err)
	assert.False(t, eng.Start(name, fn))

	close(release)
	eng.Wait()
}

func TestJob_Unknown(t *testing.T) {
	e := setup(t, 1)
	_, _, err := e.p.Job(Request{Kind: "publish"})
	assert.Error(t, err)
}

func TestReset(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	eng := task.New(ctx)
	e.fetcher.items[id(2026, 10)] = items(1, 2)
	scanAndScrape(t, e, ed(2026, 10, march(12)))

	// Rejected while a task runs.
	release := make(chan struct{})
	require.True(t, eng.Start("analyze", func(context.Context, *task.Run) error { <-release; return nil }))
	assert.ErrorIs(t, e.p.Reset(ctx, eng, id(2026, 10)), task.ErrBusy)
	assert.Equal(t, types.StageScraped, stageOf(t, e, id(2026, 10)))
	close(release)
	eng.Wait()

	require.NoError(t, e.p.Reset(ctx, eng, id(2026, 10)))
	assert.Equal(t, types.StageDiscovered, stageOf(t, e, id(2026, 10)))
	got, err := e.store.ListItems(ctx, store.ItemFilter{Edition: ptr(id(2026, 10))})
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, e.p.Reset(ctx, eng, id(2026, 77)), types.ErrEditionNotFound)

	n, err := e.p.ResetAll(ctx, eng)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// --- Sync ---

func TestSync_EndToEnd(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.p.now = func() time.Time { return march(28) }
	e.fetcher.editions = []types.Edition{ed(2026, 12, march(26)), ed(2026, 11, march(19)), ed(2026, 10, march(12))}
	for _, n := range []int{10, 11, 12} {
		e.fetcher.items[id(2026, n)] = items(1, 2)
	}

	eng := task.New(ctx)
	name, fn, err := e.p.Job(Request{Kind: KindSync})
	require.NoError(t, err)
	require.NoError(t, eng.RunSync(name, fn))

	for _, n := range []int{10, 11, 12} {
		assert.Equal(t, types.StageAnalyzed, stageOf(t, e, id(2026, n)), "edition %d", n)
	}
	st := eng.Status()
	assert.Empty(t, st.Error)
	assert.Contains(t, st.Logs[len(st.Logs)-1], "Sync complete: 0 failure(s)")

	// Without a watermark the scan covered the lookback window.
	require.Len(t, e.fetcher.listCalls, 1)
	require.NotNil(t, e.fetcher.listCalls[0].From)
	assert.Equal(t, march(28).Add(-defaultLookback), *e.fetcher.listCalls[0].From)
}

func TestSync_WatermarkBoundsScan(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.items[id(2026, 8)] = items(1)
	scanAndScrape(t, e, ed(2026, 8, time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC)))
	_, err := e.p.AnalyzeEdition(ctx, e.run, id(2026, 8), false)
	require.NoError(t, err)

	// An older edition left Discovered is outside the watermark.
	_, err = e.store.UpsertDiscovered(ctx, ed(2026, 5, time.Date(2026, 1, 22, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	e.fetcher.editions = append(e.fetcher.editions, ed(2026, 9, time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)))
	e.fetcher.items[id(2026, 9)] = items(1, 2)
	e.fetcher.listCalls = nil
	e.fetcher.fetched = nil

	require.NoError(t, e.p.Sync(ctx, e.run, SyncOptions{}))

	require.Len(t, e.fetcher.listCalls, 1)
	opts := e.fetcher.listCalls[0]
	require.NotNil(t, opts.Since)
	assert.Equal(t, id(2026, 8), *opts.Since)
	require.NotNil(t, opts.From)
	assert.Equal(t, "2026-02-12", opts.From.Format("2006-01-02"))

	assert.Equal(t, []types.EditionID{id(2026, 9)}, e.fetcher.fetched)
	assert.Equal(t, types.StageAnalyzed, stageOf(t, e, id(2026, 9)))
	assert.Equal(t, types.StageDiscovered, stageOf(t, e, id(2026, 5)))
}

func TestSync_FailuresReported(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.editions = []types.Edition{ed(2026, 10, time.Now())}
	e.fetcher.itemErr[id(2026, 10)] = errors.New("502 bad gateway")

	err := e.p.Sync(ctx, e.run, SyncOptions{})
	require.EqualError(t, err, "sync finished with 1 failure(s)")

	// A scan failure does not stop the later phases.
	e.fetcher.listErr = errors.New("archive down")
	delete(e.fetcher.itemErr, id(2026, 10))
	e.fetcher.items[id(2026, 10)] = items(1)
	err = e.p.Sync(ctx, e.run, SyncOptions{})
	require.EqualError(t, err, "sync finished with 1 failure(s)")
	assert.Equal(t, types.StageAnalyzed, stageOf(t, e, id(2026, 10)))
}

func TestSync_Full(t *testing.T) {
	e := setup(t, 1)
	require.NoError(t, e.p.Sync(context.Background(), e.run, SyncOptions{Full: true}))
	require.Len(t, e.fetcher.listCalls, 1)
	assert.Nil(t, e.fetcher.listCalls[0].From)
	assert.Nil(t, e.fetcher.listCalls[0].Since)
}

// --- Deep analysis ---

func TestDeepAnalyze(t *testing.T) {
	e := setup(t, 1)
	ctx := context.Background()
	e.fetcher.items[id(2026, 10)] = items(1)
	scanAndScrape(t, e, ed(2026, 10, march(12)))

	got, err := e.store.ListItems(ctx, store.ItemFilter{Edition: ptr(id(2026, 10))})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0].Attachments, 1)
	attID := got[0].Attachments[0].ID

	att, err := e.p.DeepAnalyze(ctx, attID)
	require.NoError(t, err)
	require.NotNil(t, att.DeepAnalysis)
	assert.Equal(t, "summary of anhang-1.pdf", att.DeepAnalysis.Text)
	assert.NotEmpty(t, att.CachedPath)

	require.Len(t, e.classifier.deep, 1)
	assert.Equal(t, "text of "+filepath.Base(att.CachedPath), e.classifier.deep[0].AttachmentText)
	assert.Equal(t, "Professor of computer science", e.classifier.deep[0].Role)

	stored, err := e.store.GetAttachment(ctx, attID)
	require.NoError(t, err)
	assert.Equal(t, att.CachedPath, stored.CachedPath)
	require.NotNil(t, stored.DeepAnalysis)

	// Neither the stage nor the item analysis changes.
	assert.Equal(t, types.StageScraped, stageOf(t, e, id(2026, 10)))

	_, err = e.p.DeepAnalyze(ctx, 9999)
	assert.ErrorIs(t, err, types.ErrAttachmentNotFound)
}

func TestDeepAnalyze_Unavailable(t *testing.T) {
	e := setup(t, 1)
	e.p.converter = nil
	_, err := e.p.DeepAnalyze(context.Background(), 1)
	assert.ErrorIs(t, err, ErrDeepUnavailable)
}

func ptr[T any](v T) *T { return &v }
