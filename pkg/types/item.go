// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Link is a hyperlink extracted from an item's body, in source order.
type Link struct {
	Text string `json:"text" yaml:"text"`
	URL  string `json:"url" yaml:"url"`
}

// Item is one numbered entry ("Pkt.") within an edition. The pair
// (Edition, Number) is unique.
type Item struct {
	ID      int64     `json:"id" yaml:"id"`
	Edition EditionID `json:"edition" yaml:"edition"`

	// Number is the sequence number the source declares for the item.
	Number int `json:"number" yaml:"number"`

	Category string `json:"category" yaml:"category"`
	Title    string `json:"title" yaml:"title"`
	Text     string `json:"text" yaml:"text"`

	Links       []Link          `json:"links" yaml:"links"`
	Attachments []AttachmentRef `json:"attachments" yaml:"attachments"`

	// ReadAt records the first time the operator opened the item.
	ReadAt *time.Time `json:"read_at,omitempty" yaml:"read_at,omitempty"`

	Analysis *AnalysisResult `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// Read reports whether the item has been marked read.
func (it Item) Read() bool {
	return it.ReadAt != nil
}

// AttachmentRef is a file attached to an item.
type AttachmentRef struct {
	ID     int64  `json:"id" yaml:"id"`
	ItemID int64  `json:"item_id" yaml:"item_id"`
	Name   string `json:"name" yaml:"name"`
	URL    string `json:"url" yaml:"url"`

	// CachedPath is the local copy, filled the first time the attachment
	// is downloaded.
	CachedPath string `json:"cached_path,omitempty" yaml:"cached_path,omitempty"`

	DeepAnalysis *DeepAnalysis `json:"deep_analysis,omitempty" yaml:"deep_analysis,omitempty"`
}

// AnalysisResult is the classifier verdict for one item. Results are
// immutable; re-analysis replaces the stored row as a whole.
type AnalysisResult struct {
	// Score is the relevance score, 0 to 100 inclusive.
	Score float64 `json:"score" yaml:"score"`

	ShortTitle string   `json:"short_title" yaml:"short_title"`
	Summary    string   `json:"summary" yaml:"summary"`
	KeyPoints  []string `json:"key_points" yaml:"key_points"`
	Reasoning  string   `json:"reasoning" yaml:"reasoning"`

	Model      string    `json:"model" yaml:"model"`
	AnalyzedAt time.Time `json:"analyzed_at" yaml:"analyzed_at"`
}

// Relevant reports whether the score reaches threshold.
func (r AnalysisResult) Relevant(threshold float64) bool {
	return r.Score >= threshold
}

// DeepAnalysis is the on-demand analysis of one attachment together with
// its item. It is stored on the attachment and never touches the item's
// own AnalysisResult.
type DeepAnalysis struct {
	Text       string    `json:"text" yaml:"text"`
	Model      string    `json:"model" yaml:"model"`
	AnalyzedAt time.Time `json:"analyzed_at" yaml:"analyzed_at"`
}

// RawItem is what a Fetcher returns for one item before it is persisted.
type RawItem struct {
	Number      int
	Category    string
	Title       string
	Text        string
	Links       []Link
	Attachments []RawAttachment
}

// RawAttachment is attachment metadata as scraped.
type RawAttachment struct {
	Name string
	URL  string
}

// Stats summarizes repository contents.
type Stats struct {
	TotalEditions    int `json:"total_editions" yaml:"total_editions"`
	ScrapedEditions  int `json:"scraped_editions" yaml:"scraped_editions"`
	AnalyzedEditions int `json:"analyzed_editions" yaml:"analyzed_editions"`
	TotalItems       int `json:"total_items" yaml:"total_items"`
	AnalyzedItems    int `json:"analyzed_items" yaml:"analyzed_items"`
	RelevantItems    int `json:"relevant_items" yaml:"relevant_items"`
	UnreadRelevant   int `json:"unread_relevant" yaml:"unread_relevant"`
}
