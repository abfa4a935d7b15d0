// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pdiddy/mtb-analyzer/internal/httputil"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const defaultCacheDir = "data/cache"

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Downloader stores attachment files in a local cache directory.
type Downloader struct {
	client     *http.Client
	dir        string
	userAgent  string
	maxRetries int
}

// NewDownloader returns a downloader writing below cacheDir.
func NewDownloader(cacheDir string, cfg types.ArchiveConfig) *Downloader {
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Downloader{
		client:     &http.Client{Timeout: timeout},
		dir:        cacheDir,
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
	}
}

// Download returns the local path of the attachment, fetching it when no
// cached copy exists yet.
func (d *Downloader) Download(ctx context.Context, a types.AttachmentRef) (string, error) {
	if a.CachedPath != "" {
		if _, err := os.Stat(a.CachedPath); err == nil {
			return a.CachedPath, nil
		}
	}

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}
	path := filepath.Join(d.dir, CacheName(a))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	body, err := httputil.Get(ctx, d.client, a.URL, d.userAgent, d.maxRetries)
	if err != nil {
		return "", fmt.Errorf("downloading attachment %d: %w", a.ID, err)
	}

	// Write to a temporary file first so a partial download never looks cached.
	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return "", fmt.Errorf("writing attachment %d: %w", a.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("storing attachment %d: %w", a.ID, err)
	}
	return path, nil
}

// CacheName derives a stable file name for an attachment.
func CacheName(a types.AttachmentRef) string {
	name := strings.Trim(unsafeName.ReplaceAllString(a.Name, "_"), "._")
	if name == "" {
		name = "attachment"
	}
	if filepath.Ext(name) == "" {
		name += ".pdf"
	}
	return fmt.Sprintf("%d-%s", a.ID, name)
}
