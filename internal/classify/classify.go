// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify scores bulletin items against the operator's role
// description with a language model.
package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// ErrMalformedResponse is returned when the model output lacks a score.
var ErrMalformedResponse = errors.New("malformed model response")

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5"

// Request carries one item to classify. Role and model come from the
// settings read at the start of the run.
type Request struct {
	Item      types.Item
	Role      string
	Threshold float64
	Model     string
}

// DeepRequest carries an item together with its converted attachment.
type DeepRequest struct {
	Item           types.Item
	AttachmentName string
	AttachmentText string
	Role           string
	Model          string
}

// Classifier turns item text and a role description into a verdict.
type Classifier interface {
	Classify(ctx context.Context, req Request) (types.AnalysisResult, error)
	DeepAnalyze(ctx context.Context, req DeepRequest) (types.DeepAnalysis, error)
}

const maxShortTitle = 200

var (
	labelExpr  = regexp.MustCompile(`(?im)^[\s*#]*(SCORE|SHORT_TITLE|SUMMARY|RELEVANCE|EXPLANATION|KEY_POINTS)[\s*]*:[*]*`)
	numberExpr = regexp.MustCompile(`\d+(?:\.\d+)?`)
	bulletExpr = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
)

// ParseResponse reads the labelled response format the prompt asks for:
// SCORE, SHORT_TITLE, SUMMARY, RELEVANCE and KEY_POINTS. A response without
// a numeric SCORE is malformed. Scores are clamped to [0, 100].
func ParseResponse(text string) (types.AnalysisResult, error) {
	sections := splitSections(text)

	raw, ok := sections["SCORE"]
	if !ok {
		return types.AnalysisResult{}, fmt.Errorf("%w: no SCORE", ErrMalformedResponse)
	}
	num := numberExpr.FindString(raw)
	if num == "" {
		return types.AnalysisResult{}, fmt.Errorf("%w: SCORE %q is not a number", ErrMalformedResponse, strings.TrimSpace(raw))
	}
	score, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	reasoning := sections["RELEVANCE"]
	if reasoning == "" {
		reasoning = sections["EXPLANATION"]
	}

	return types.AnalysisResult{
		Score:      math.Min(100, math.Max(0, score)),
		ShortTitle: truncate(firstLine(sections["SHORT_TITLE"]), maxShortTitle),
		Summary:    sections["SUMMARY"],
		Reasoning:  reasoning,
		KeyPoints:  keyPoints(sections["KEY_POINTS"]),
	}, nil
}

// splitSections maps each label to the trimmed text up to the next label.
// The first occurrence of a label wins.
func splitSections(text string) map[string]string {
	out := map[string]string{}
	locs := labelExpr.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range locs {
		label := strings.ToUpper(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, dup := out[label]; dup {
			continue
		}
		out[label] = strings.TrimSpace(text[loc[1]:end])
	}
	return out
}

func keyPoints(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(bulletExpr.ReplaceAllString(line, ""))
		switch strings.ToLower(line) {
		case "", "none", "n/a", "-":
			continue
		}
		out = append(out, line)
	}
	return out
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
