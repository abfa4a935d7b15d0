// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch retrieves editions and their items from the bulletin
// archive. The pipeline depends only on the Fetcher interface; HTTPFetcher
// is the production implementation against the JKU archive pages.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/httputil"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const (
	defaultBaseURL    = "https://ix.jku.at"
	defaultArchiveURL = "https://ix.jku.at/path/app/?qs_link=17D85C9AC0FFEB214A26C47CAD8895ADD20FB680"
	defaultUserAgent  = "mtb-analyzer/0.1 (+https://ix.jku.at)"
	defaultMaxPages   = 10
	defaultTimeout    = 60 * time.Second
)

// Fetcher turns the remote archive into edition and item records.
type Fetcher interface {
	// ListEditions returns the editions the archive lists within opts. On
	// error it may also return the editions listed before the failure.
	ListEditions(ctx context.Context, opts ListOptions) ([]types.Edition, error)

	// FetchItems returns the items of one edition as a single ordered batch.
	FetchItems(ctx context.Context, e types.Edition) ([]types.RawItem, error)
}

// ListOptions bounds a listing. Nil fields do not filter. Editions without
// a publication date are never excluded by the date bounds.
type ListOptions struct {
	From  *time.Time
	To    *time.Time
	Since *types.EditionID
}

// Keep reports whether an edition falls inside the options.
func (o ListOptions) Keep(e types.Edition) bool {
	if o.Since != nil && e.ID.Less(*o.Since) {
		return false
	}
	if e.PublishedAt == nil {
		return true
	}
	if o.From != nil && e.PublishedAt.Before(dayStart(*o.From)) {
		return false
	}
	if o.To != nil && e.PublishedAt.After(dayStart(*o.To)) {
		return false
	}
	return true
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// HTTPFetcher scrapes the archive listing and edition pages with goquery.
type HTTPFetcher struct {
	client     *http.Client
	baseURL    string
	archiveURL string
	userAgent  string
	delay      time.Duration
	maxPages   int
	maxRetries int
	timeout    time.Duration
	log        *zap.Logger

	// sleep waits between consecutive requests; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewHTTPFetcher builds a fetcher from cfg, applying defaults for unset
// fields.
func NewHTTPFetcher(cfg types.ArchiveConfig, log *zap.Logger) *HTTPFetcher {
	f := &HTTPFetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		archiveURL: cfg.ArchiveURL,
		userAgent:  cfg.UserAgent,
		delay:      cfg.Delay,
		maxPages:   cfg.MaxPages,
		maxRetries: cfg.MaxRetries,
		log:        log,
		sleep:      sleepCtx,
	}
	if f.baseURL == "" {
		f.baseURL = defaultBaseURL
	}
	if f.archiveURL == "" {
		f.archiveURL = defaultArchiveURL
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.maxPages <= 0 {
		f.maxPages = defaultMaxPages
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	f.timeout = timeout
	f.client = &http.Client{Timeout: timeout}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	return f
}

// ListEditions walks the archive listing, newest first, following "Weiter"
// links up to the page limit. It stops as soon as a dated edition older
// than opts.From appears. Each page, retries included, gets its own
// timeout. On error the editions collected from earlier pages are returned
// with it.
func (f *HTTPFetcher) ListEditions(ctx context.Context, opts ListOptions) ([]types.Edition, error) {
	var (
		out  []types.Edition
		seen = map[types.EditionID]bool{}
		next = f.archiveURL
	)

	for page := 1; page <= f.maxPages && next != ""; page++ {
		if page > 1 {
			if err := f.sleep(ctx, f.delay); err != nil {
				return out, err
			}
		}
		f.log.Debug("scanning archive page", zap.Int("page", page), zap.String("url", next))

		doc, err := f.page(ctx, next)
		if err != nil {
			return out, fmt.Errorf("archive page %d: %w", page, err)
		}

		editions := parseArchive(doc, f.baseURL)
		if len(editions) == 0 {
			break
		}

		stop := false
		for _, e := range editions {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			if opts.From != nil && e.PublishedAt != nil && e.PublishedAt.Before(dayStart(*opts.From)) {
				stop = true
				break
			}
			if opts.Keep(e) {
				out = append(out, e)
			}
		}
		if stop {
			break
		}
		next = nextPage(doc, next)
	}
	return out, nil
}

// FetchItems retrieves the edition page and parses its items.
func (f *HTTPFetcher) FetchItems(ctx context.Context, e types.Edition) ([]types.RawItem, error) {
	target := e.URL
	if target == "" {
		target = EditionURL(f.baseURL, e.ID)
	}
	doc, err := f.document(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("edition %s: %w", e.ID, err)
	}
	return parseItems(doc, f.baseURL), nil
}

// EditionURL builds the archive URL for one edition.
func EditionURL(baseURL string, id types.EditionID) string {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return fmt.Sprintf("%s/?app=mtb&jahr=%d&stk=%d", strings.TrimRight(baseURL, "/"), id.Year, id.Number)
}

func (f *HTTPFetcher) page(ctx context.Context, pageURL string) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	return f.document(ctx, pageURL)
}

func (f *HTTPFetcher) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	body, err := httputil.Get(ctx, f.client, pageURL, f.userAgent, f.maxRetries)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// nextPage returns the absolute URL behind the "Weiter" link, or "" when
// the listing has no further page.
func nextPage(doc *goquery.Document, current string) string {
	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.Contains(a.Text(), "Weiter") {
			href, _ = a.Attr("href")
			return false
		}
		return true
	})
	if href == "" || href == "#" {
		return ""
	}
	next, err := resolve(current, href)
	if err != nil || next == current {
		return ""
	}
	return next
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
