// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// Setting keys in the settings table.
const (
	SettingRole      = "role_description"
	SettingThreshold = "threshold"
	SettingModel     = "model"
	SettingDeepModel = "deep_model"
)

// DefaultThreshold is the relevance threshold used until one is stored.
const DefaultThreshold = 60

// SeedSettings stores the given values for keys that have no stored value
// yet. Values changed through PutSetting are never overwritten.
func (s *Store) SeedSettings(ctx context.Context, defaults types.Settings) error {
	seed := map[string]string{
		SettingRole:      defaults.RoleDescription,
		SettingModel:     defaults.Model,
		SettingDeepModel: defaults.DeepModel,
	}
	if defaults.Threshold > 0 {
		seed[SettingThreshold] = strconv.FormatFloat(defaults.Threshold, 'f', -1, 64)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for k, v := range seed {
		if v == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, k, v,
		); err != nil {
			return fmt.Errorf("seeding setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// PutSetting stores one setting value.
func (s *Store) PutSetting(ctx context.Context, key, value string) error {
	if key == SettingThreshold {
		if _, err := parseThreshold(value); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("storing setting %s: %w", key, err)
	}
	return nil
}

// Settings reads the stored settings. The API key is never stored and is
// left empty; callers fill it from configuration.
func (s *Store) Settings(ctx context.Context) (types.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return types.Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	defer rows.Close()

	out := types.Settings{Threshold: DefaultThreshold}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return types.Settings{}, err
		}
		switch k {
		case SettingRole:
			out.RoleDescription = v
		case SettingModel:
			out.Model = v
		case SettingDeepModel:
			out.DeepModel = v
		case SettingThreshold:
			t, err := parseThreshold(v)
			if err != nil {
				return types.Settings{}, err
			}
			out.Threshold = t
		}
	}
	return out, rows.Err()
}

func parseThreshold(v string) (float64, error) {
	t, err := strconv.ParseFloat(v, 64)
	if err != nil || t < 0 || t > 100 {
		return 0, fmt.Errorf("threshold must be a number between 0 and 100, got %q", v)
	}
	return t, nil
}

// Stats counts editions and items. Items scoring at least threshold count
// as relevant.
func (s *Store) Stats(ctx context.Context, threshold float64) (types.Stats, error) {
	var st types.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(stage IN ('scraped', 'analyzed')), 0),
			COALESCE(SUM(stage = 'analyzed'), 0)
		 FROM editions`,
	).Scan(&st.TotalEditions, &st.ScrapedEditions, &st.AnalyzedEditions)
	if err != nil {
		return types.Stats{}, fmt.Errorf("counting editions: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COUNT(a.item_id),
			COALESCE(SUM(a.score >= ?), 0),
			COALESCE(SUM(a.score >= ? AND i.read_at IS NULL), 0)
		 FROM items i LEFT JOIN analyses a ON a.item_id = i.id`,
		threshold, threshold,
	).Scan(&st.TotalItems, &st.AnalyzedItems, &st.RelevantItems, &st.UnreadRelevant)
	if err != nil {
		return types.Stats{}, fmt.Errorf("counting items: %w", err)
	}
	return st, nil
}
