// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors returned by the repository and pipeline. Callers match
// them with errors.Is.
var (
	ErrEditionNotFound    = errors.New("edition not found")
	ErrItemNotFound       = errors.New("item not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidEditionID   = errors.New("invalid edition id")
	ErrInvalidStage       = errors.New("invalid stage")
)

// EditionID identifies one bulletin edition by year and sequence number
// ("Stück"). IDs order by year, then number.
type EditionID struct {
	Year   int `json:"year" yaml:"year"`
	Number int `json:"number" yaml:"number"`
}

// String returns the canonical "<year>-<number>" form, e.g. "2026-10".
func (id EditionID) String() string {
	return fmt.Sprintf("%d-%d", id.Year, id.Number)
}

// IsZero reports whether id is the zero value.
func (id EditionID) IsZero() bool {
	return id.Year == 0 && id.Number == 0
}

// Compare returns -1, 0 or +1 depending on whether id sorts before, equal
// to, or after other.
func (id EditionID) Compare(other EditionID) int {
	switch {
	case id.Year < other.Year:
		return -1
	case id.Year > other.Year:
		return 1
	case id.Number < other.Number:
		return -1
	case id.Number > other.Number:
		return 1
	}
	return 0
}

// Less reports whether id sorts before other.
func (id EditionID) Less(other EditionID) bool {
	return id.Compare(other) < 0
}

// ParseEditionID parses the "<year>-<number>" form.
func ParseEditionID(s string) (EditionID, error) {
	year, num, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return EditionID{}, fmt.Errorf("%w: %q", ErrInvalidEditionID, s)
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1000 || y > 9999 {
		return EditionID{}, fmt.Errorf("%w: %q", ErrInvalidEditionID, s)
	}
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return EditionID{}, fmt.Errorf("%w: %q", ErrInvalidEditionID, s)
	}
	return EditionID{Year: y, Number: n}, nil
}

// Stage is an edition's position in the Discovered, Scraped, Analyzed
// lifecycle. The zero value is not a valid stage.
type Stage int

const (
	StageDiscovered Stage = iota + 1
	StageScraped
	StageAnalyzed
)

var stageNames = map[Stage]string{
	StageDiscovered: "discovered",
	StageScraped:    "scraped",
	StageAnalyzed:   "analyzed",
}

// String returns the stored text form of the stage.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage converts the stored text form back into a Stage.
func ParseStage(s string) (Stage, error) {
	for st, name := range stageNames {
		if name == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

// MarshalText implements encoding.TextMarshaler so stages render as their
// names in JSON and YAML.
func (s Stage) MarshalText() ([]byte, error) {
	if _, ok := stageNames[s]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStage, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(b []byte) error {
	st, err := ParseStage(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Scrape returns the stage after a scrape. Only a Discovered edition may be
// scraped unless force is set; ok is false when the move is rejected and
// the caller should treat the request as a no-op.
func (s Stage) Scrape(force bool) (next Stage, ok bool) {
	if s == StageDiscovered || force {
		return StageScraped, true
	}
	return s, false
}

// Analyze returns the stage after all items received a result. Only a
// Scraped edition may be analyzed; force additionally allows re-analysis of
// an Analyzed one. A Discovered edition has no items and is never analyzed.
func (s Stage) Analyze(force bool) (next Stage, ok bool) {
	switch {
	case s == StageScraped:
		return StageAnalyzed, true
	case s == StageAnalyzed && force:
		return StageAnalyzed, true
	}
	return s, false
}

// Reset returns the stage after an explicit reset, which is always
// Discovered.
func (s Stage) Reset() Stage {
	return StageDiscovered
}

// Edition is one published bulletin instance.
type Edition struct {
	ID EditionID `json:"id" yaml:"id"`

	// Title is the archive title, e.g. "MTB 10/2026" or
	// "SONDERNUMMER - MTB 11/2026".
	Title string `json:"title" yaml:"title"`

	// URL is the edition page in the archive.
	URL string `json:"url" yaml:"url"`

	// PublishedAt is the publication date when the archive lists one.
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// Special marks special issues (SONDERNUMMER).
	Special bool `json:"special" yaml:"special"`

	Stage Stage `json:"stage" yaml:"stage"`

	DiscoveredAt time.Time  `json:"discovered_at" yaml:"discovered_at"`
	ScrapedAt    *time.Time `json:"scraped_at,omitempty" yaml:"scraped_at,omitempty"`
	AnalyzedAt   *time.Time `json:"analyzed_at,omitempty" yaml:"analyzed_at,omitempty"`

	// ItemCount is derived from the stored items and filled by listing queries.
	ItemCount int `json:"item_count" yaml:"item_count"`
}
