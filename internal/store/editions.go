// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const editionColumns = `e.year, e.number, e.title, e.url, e.published_at, e.special, e.stage,
	e.discovered_at, e.scraped_at, e.analyzed_at,
	(SELECT COUNT(*) FROM items i WHERE i.edition_year = e.year AND i.edition_number = e.number)`

// UpsertDiscovered records an edition found by a scan. Unknown editions are
// inserted at StageDiscovered and added is true. Known editions keep their
// stage; only metadata the archive did not provide before is filled in.
func (s *Store) UpsertDiscovered(ctx context.Context, e types.Edition) (added bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO editions (year, number, title, url, published_at, special, stage, discovered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(year, number) DO NOTHING`,
		e.ID.Year, e.ID.Number, e.Title, e.URL, formatTimePtr(e.PublishedAt),
		e.Special, types.StageDiscovered.String(), formatTime(s.now()),
	)
	if err != nil {
		return false, fmt.Errorf("inserting edition %s: %w", e.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking insert of %s: %w", e.ID, err)
	}

	if n == 0 {
		_, err = tx.ExecContext(ctx,
			`UPDATE editions SET
				title = CASE WHEN title = '' THEN ? ELSE title END,
				url = CASE WHEN url = '' THEN ? ELSE url END,
				published_at = COALESCE(published_at, ?),
				special = special OR ?
			 WHERE year = ? AND number = ?`,
			e.Title, e.URL, formatTimePtr(e.PublishedAt), e.Special, e.ID.Year, e.ID.Number,
		)
		if err != nil {
			return false, fmt.Errorf("updating edition %s: %w", e.ID, err)
		}
	}

	return n > 0, tx.Commit()
}

// GetEdition returns one edition or types.ErrEditionNotFound.
func (s *Store) GetEdition(ctx context.Context, id types.EditionID) (types.Edition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+editionColumns+` FROM editions e WHERE e.year = ? AND e.number = ?`,
		id.Year, id.Number)
	e, err := scanEdition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Edition{}, fmt.Errorf("%w: %s", types.ErrEditionNotFound, id)
	}
	return e, err
}

// EditionFilter narrows ListEditions. Zero fields do not filter.
type EditionFilter struct {
	Year  int
	Stage types.Stage

	// Since keeps editions at or after this ID.
	Since *types.EditionID

	// Ascending orders oldest first; the default is newest first.
	Ascending bool
	Limit     int
}

// ListEditions returns editions matching f.
func (s *Store) ListEditions(ctx context.Context, f EditionFilter) ([]types.Edition, error) {
	q := psql.Select(editionColumns).From("editions e")
	if f.Year != 0 {
		q = q.Where(sq.Eq{"e.year": f.Year})
	}
	if f.Stage != 0 {
		q = q.Where(sq.Eq{"e.stage": f.Stage.String()})
	}
	if f.Since != nil {
		q = q.Where(sq.Or{
			sq.Gt{"e.year": f.Since.Year},
			sq.And{sq.Eq{"e.year": f.Since.Year}, sq.GtOrEq{"e.number": f.Since.Number}},
		})
	}
	if f.Ascending {
		q = q.OrderBy("e.year ASC", "e.number ASC")
	} else {
		q = q.OrderBy("e.year DESC", "e.number DESC")
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building edition query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing editions: %w", err)
	}
	defer rows.Close()

	var out []types.Edition
	for rows.Next() {
		e, err := scanEdition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Watermark returns the newest Analyzed edition, or nil when none exists.
func (s *Store) Watermark(ctx context.Context) (*types.Edition, error) {
	eds, err := s.ListEditions(ctx, EditionFilter{Stage: types.StageAnalyzed, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("finding watermark: %w", err)
	}
	if len(eds) == 0 {
		return nil, nil
	}
	return &eds[0], nil
}

// ResetEdition deletes all items of the edition (analyses and attachments
// cascade) and returns it to StageDiscovered in one transaction.
func (s *Store) ResetEdition(ctx context.Context, id types.EditionID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stage, err := stageTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM items WHERE edition_year = ? AND edition_number = ?`, id.Year, id.Number,
	); err != nil {
		return fmt.Errorf("deleting items of %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE editions SET stage = ?, scraped_at = NULL, analyzed_at = NULL
		 WHERE year = ? AND number = ?`,
		stage.Reset().String(), id.Year, id.Number,
	); err != nil {
		return fmt.Errorf("resetting %s: %w", id, err)
	}
	return tx.Commit()
}

// ResetAll returns every edition to StageDiscovered and deletes all items.
func (s *Store) ResetAll(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return 0, fmt.Errorf("deleting items: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE editions SET stage = ?, scraped_at = NULL, analyzed_at = NULL`,
		types.StageDiscovered.String())
	if err != nil {
		return 0, fmt.Errorf("resetting editions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), tx.Commit()
}

func stageTx(ctx context.Context, tx *sql.Tx, id types.EditionID) (types.Stage, error) {
	var raw string
	err := tx.QueryRowContext(ctx,
		`SELECT stage FROM editions WHERE year = ? AND number = ?`, id.Year, id.Number,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", types.ErrEditionNotFound, id)
	}
	if err != nil {
		return 0, fmt.Errorf("reading stage of %s: %w", id, err)
	}
	return types.ParseStage(raw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEdition(r rowScanner) (types.Edition, error) {
	var (
		e                            types.Edition
		stage, discovered            string
		published, scraped, analyzed sql.NullString
	)
	if err := r.Scan(&e.ID.Year, &e.ID.Number, &e.Title, &e.URL, &published, &e.Special,
		&stage, &discovered, &scraped, &analyzed, &e.ItemCount); err != nil {
		return types.Edition{}, err
	}

	var err error
	if e.Stage, err = types.ParseStage(stage); err != nil {
		return types.Edition{}, fmt.Errorf("edition %s: %w", e.ID, err)
	}
	d, err := parseTimePtr(sql.NullString{String: discovered, Valid: true})
	if err != nil {
		return types.Edition{}, err
	}
	if d != nil {
		e.DiscoveredAt = *d
	}
	if e.PublishedAt, err = parseTimePtr(published); err != nil {
		return types.Edition{}, err
	}
	if e.ScrapedAt, err = parseTimePtr(scraped); err != nil {
		return types.Edition{}, err
	}
	if e.AnalyzedAt, err = parseTimePtr(analyzed); err != nil {
		return types.Edition{}, err
	}
	return e, nil
}
