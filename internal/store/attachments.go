// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const attachmentColumns = `id, item_id, name, url, cached_path, deep_text, deep_model, deep_analyzed_at`

// GetAttachment returns one attachment or types.ErrAttachmentNotFound.
func (s *Store) GetAttachment(ctx context.Context, id int64) (types.AttachmentRef, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)
	a, err := scanAttachment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AttachmentRef{}, fmt.Errorf("%w: %d", types.ErrAttachmentNotFound, id)
	}
	return a, err
}

// SetAttachmentCache records where the attachment was downloaded to.
func (s *Store) SetAttachmentCache(ctx context.Context, id int64, path string) error {
	return s.updateAttachment(ctx, id,
		`UPDATE attachments SET cached_path = ? WHERE id = ?`, path, id)
}

// SaveDeepAnalysis stores the attachment-level analysis. It leaves the
// owning item's analysis and the edition stage untouched.
func (s *Store) SaveDeepAnalysis(ctx context.Context, id int64, d types.DeepAnalysis) error {
	return s.updateAttachment(ctx, id,
		`UPDATE attachments SET deep_text = ?, deep_model = ?, deep_analyzed_at = ? WHERE id = ?`,
		d.Text, d.Model, formatTime(d.AnalyzedAt), id)
}

func (s *Store) updateAttachment(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating attachment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating attachment %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", types.ErrAttachmentNotFound, id)
	}
	return nil
}

func scanAttachment(r rowScanner) (types.AttachmentRef, error) {
	var (
		a                     types.AttachmentRef
		text, model, analyzed sql.NullString
	)
	if err := r.Scan(&a.ID, &a.ItemID, &a.Name, &a.URL, &a.CachedPath, &text, &model, &analyzed); err != nil {
		return types.AttachmentRef{}, err
	}
	if text.Valid {
		at, err := parseTimePtr(analyzed)
		if err != nil {
			return types.AttachmentRef{}, err
		}
		d := &types.DeepAnalysis{Text: text.String, Model: model.String}
		if at != nil {
			d.AnalyzedAt = *at
		}
		a.DeepAnalysis = d
	}
	return a, nil
}
