// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// ReplaceItems stores a freshly scraped batch for the edition, replacing any
// items stored before, and moves the edition to StageScraped. The whole
// replacement is one transaction. Items repeating an earlier number are
// dropped. It returns the number of items stored.
func (s *Store) ReplaceItems(ctx context.Context, id types.EditionID, items []types.RawItem) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := stageTx(ctx, tx, id); err != nil {
		return 0, err
	}

	// Analyses and attachments go with their items (ON DELETE CASCADE).
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM items WHERE edition_year = ? AND edition_number = ?`, id.Year, id.Number,
	); err != nil {
		return 0, fmt.Errorf("deleting old items: %w", err)
	}

	itemStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO items (edition_year, edition_number, number, category, title, text, links)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing item insert: %w", err)
	}
	defer itemStmt.Close()

	attStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO attachments (item_id, position, name, url) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing attachment insert: %w", err)
	}
	defer attStmt.Close()

	seen := make(map[int]bool, len(items))
	stored := 0
	for _, it := range items {
		if seen[it.Number] {
			continue
		}
		seen[it.Number] = true

		links := it.Links
		if links == nil {
			links = []types.Link{}
		}
		linksJSON, err := json.Marshal(links)
		if err != nil {
			return 0, fmt.Errorf("encoding links of item %d: %w", it.Number, err)
		}

		res, err := itemStmt.ExecContext(ctx,
			id.Year, id.Number, it.Number, it.Category, it.Title, it.Text, string(linksJSON))
		if err != nil {
			return 0, fmt.Errorf("inserting item %d: %w", it.Number, err)
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading id of item %d: %w", it.Number, err)
		}

		for pos, a := range it.Attachments {
			if _, err := attStmt.ExecContext(ctx, itemID, pos, a.Name, a.URL); err != nil {
				return 0, fmt.Errorf("inserting attachment of item %d: %w", it.Number, err)
			}
		}
		stored++
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE editions SET stage = ?, scraped_at = ?, analyzed_at = NULL
		 WHERE year = ? AND number = ?`,
		types.StageScraped.String(), formatTime(s.now()), id.Year, id.Number,
	); err != nil {
		return 0, fmt.Errorf("advancing %s to scraped: %w", id, err)
	}

	return stored, tx.Commit()
}

// SaveAnalysis writes the result for one item, replacing any earlier result.
func (s *Store) SaveAnalysis(ctx context.Context, itemID int64, r types.AnalysisResult) error {
	keyPoints := r.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	kpJSON, err := json.Marshal(keyPoints)
	if err != nil {
		return fmt.Errorf("encoding key points: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (item_id, score, short_title, summary, key_points, reasoning, model, analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(item_id) DO UPDATE SET
			score=excluded.score, short_title=excluded.short_title, summary=excluded.summary,
			key_points=excluded.key_points, reasoning=excluded.reasoning,
			model=excluded.model, analyzed_at=excluded.analyzed_at`,
		itemID, r.Score, r.ShortTitle, r.Summary, string(kpJSON), r.Reasoning, r.Model,
		formatTime(r.AnalyzedAt),
	)
	if err != nil {
		return fmt.Errorf("saving analysis of item %d: %w", itemID, err)
	}
	return tx.Commit()
}

// CompleteAnalysis moves the edition to StageAnalyzed when the stage allows
// it and every item carries a result. It reports whether the edition is
// Analyzed afterwards.
func (s *Store) CompleteAnalysis(ctx context.Context, id types.EditionID, force bool) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stage, err := stageTx(ctx, tx, id)
	if err != nil {
		return false, err
	}
	next, ok := stage.Analyze(force)
	if !ok {
		return stage == types.StageAnalyzed, nil
	}

	var missing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items i LEFT JOIN analyses a ON a.item_id = i.id
		 WHERE i.edition_year = ? AND i.edition_number = ? AND a.item_id IS NULL`,
		id.Year, id.Number,
	).Scan(&missing); err != nil {
		return false, fmt.Errorf("counting unanalyzed items of %s: %w", id, err)
	}
	if missing > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE editions SET stage = ?, analyzed_at = ? WHERE year = ? AND number = ?`,
		next.String(), formatTime(s.now()), id.Year, id.Number,
	); err != nil {
		return false, fmt.Errorf("advancing %s to analyzed: %w", id, err)
	}
	return true, tx.Commit()
}

// ItemFilter narrows ListItems. Zero fields do not filter.
type ItemFilter struct {
	Edition *types.EditionID

	// MinScore keeps analyzed items scoring at least this value.
	MinScore *float64

	Unread     bool
	Unanalyzed bool
	Limit      int
}

const itemColumns = `i.id, i.edition_year, i.edition_number, i.number, i.category, i.title, i.text,
	i.links, i.read_at, a.score, a.short_title, a.summary, a.key_points, a.reasoning, a.model,
	a.analyzed_at`

// ListItems returns items matching f with analyses and attachments loaded.
// Items of one edition come in source order; across editions the newest
// edition comes first.
func (s *Store) ListItems(ctx context.Context, f ItemFilter) ([]types.Item, error) {
	q := psql.Select(itemColumns).
		From("items i").
		LeftJoin("analyses a ON a.item_id = i.id")
	if f.Edition != nil {
		q = q.Where(sq.Eq{"i.edition_year": f.Edition.Year, "i.edition_number": f.Edition.Number})
	}
	if f.MinScore != nil {
		q = q.Where(sq.GtOrEq{"a.score": *f.MinScore})
	}
	if f.Unread {
		q = q.Where(sq.Eq{"i.read_at": nil})
	}
	if f.Unanalyzed {
		q = q.Where(sq.Eq{"a.item_id": nil})
	}
	q = q.OrderBy("i.edition_year DESC", "i.edition_number DESC", "i.number ASC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building item query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []types.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadAttachments(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem returns one item or types.ErrItemNotFound.
func (s *Store) GetItem(ctx context.Context, itemID int64) (types.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items i LEFT JOIN analyses a ON a.item_id = i.id WHERE i.id = ?`,
		itemID)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, fmt.Errorf("%w: %d", types.ErrItemNotFound, itemID)
	}
	if err != nil {
		return types.Item{}, err
	}
	items := []types.Item{it}
	if err := s.loadAttachments(ctx, items); err != nil {
		return types.Item{}, err
	}
	return items[0], nil
}

// MarkRead records the first read of an item. Later calls keep the
// original timestamp.
func (s *Store) MarkRead(ctx context.Context, itemID int64) (types.Item, error) {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE items SET read_at = ? WHERE id = ? AND read_at IS NULL`,
		formatTime(s.now()), itemID,
	); err != nil {
		return types.Item{}, fmt.Errorf("marking item %d read: %w", itemID, err)
	}
	return s.GetItem(ctx, itemID)
}

func (s *Store) loadAttachments(ctx context.Context, items []types.Item) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int64, len(items))
	byID := make(map[int64]int, len(items))
	for i, it := range items {
		ids[i] = it.ID
		byID[it.ID] = i
	}

	query, args, err := psql.Select(attachmentColumns).
		From("attachments").
		Where(sq.Eq{"item_id": ids}).
		OrderBy("item_id", "position").
		ToSql()
	if err != nil {
		return fmt.Errorf("building attachment query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("loading attachments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return err
		}
		i := byID[a.ItemID]
		items[i].Attachments = append(items[i].Attachments, a)
	}
	return rows.Err()
}

func scanItem(r rowScanner) (types.Item, error) {
	var (
		it                             types.Item
		links                          string
		readAt                         sql.NullString
		score                          sql.NullFloat64
		shortTitle, summary, keyPoints sql.NullString
		reasoning, model, analyzedAt   sql.NullString
	)
	if err := r.Scan(&it.ID, &it.Edition.Year, &it.Edition.Number, &it.Number, &it.Category,
		&it.Title, &it.Text, &links, &readAt, &score, &shortTitle, &summary, &keyPoints,
		&reasoning, &model, &analyzedAt); err != nil {
		return types.Item{}, err
	}

	if err := json.Unmarshal([]byte(links), &it.Links); err != nil {
		return types.Item{}, fmt.Errorf("decoding links of item %d: %w", it.ID, err)
	}
	var err error
	if it.ReadAt, err = parseTimePtr(readAt); err != nil {
		return types.Item{}, err
	}

	if score.Valid {
		res := &types.AnalysisResult{
			Score:      score.Float64,
			ShortTitle: shortTitle.String,
			Summary:    summary.String,
			Reasoning:  reasoning.String,
			Model:      model.String,
		}
		if keyPoints.Valid {
			if err := json.Unmarshal([]byte(keyPoints.String), &res.KeyPoints); err != nil {
				return types.Item{}, fmt.Errorf("decoding key points of item %d: %w", it.ID, err)
			}
		}
		at, err := parseTimePtr(analyzedAt)
		if err != nil {
			return types.Item{}, err
		}
		if at != nil {
			res.AnalyzedAt = *at
		}
		it.Analysis = res
	}
	return it, nil
}
