// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded attachments into plain text for deep
// analysis. Backends are pluggable: the pdftotext binary or the markitdown
// container image.
package convert

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/mtb-analyzer/internal/container"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// ErrEmptyText is returned when a backend produced no usable text, which
// usually means a scanned PDF without a text layer.
var ErrEmptyText = errors.New("attachment contains no extractable text")

// Converter transforms an attachment file into text.
type Converter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// New returns the backend selected by cfg. pdftotext is the default.
func New(ctx context.Context, cfg types.ConversionConfig) (Converter, error) {
	switch cfg.Backend {
	case "", types.BackendPdftotext:
		return NewPdftotextConverter(), nil
	case types.BackendMarkitdown:
		rt, err := container.Detect(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownConverter(ctx, rt)
	default:
		return nil, fmt.Errorf("unknown conversion backend %q", cfg.Backend)
	}
}

var (
	blankRunExpr = regexp.MustCompile(`\n{3,}`)
	spaceRunExpr = regexp.MustCompile(`[ \t]{2,}`)
)

// normalize trims trailing spaces, collapses runs of blanks and form feeds,
// and fails on output without any letters or digits.
func normalize(raw string) (string, error) {
	raw = strings.ReplaceAll(raw, "\f", "\n")
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(spaceRunExpr.ReplaceAllString(l, " "), " \t")
	}
	text := strings.TrimSpace(blankRunExpr.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
	if !strings.ContainsFunc(text, isAlnum) {
		return "", ErrEmptyText
	}
	return text, nil
}

func isAlnum(r rune) bool {
	return r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 0x7f
}
