// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// ExportEdition holds one edition with its items for export.
type ExportEdition struct {
	types.Edition `yaml:",inline"`
	Items         []types.Item `json:"items" yaml:"items"`
}

// ExportYAML writes the editions matching f, with their items, as YAML.
func (s *Store) ExportYAML(ctx context.Context, w io.Writer, f EditionFilter) error {
	entries, err := s.exportEntries(ctx, f)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}

// ExportJSON writes the editions matching f, with their items, as JSON.
func (s *Store) ExportJSON(ctx context.Context, w io.Writer, f EditionFilter) error {
	entries, err := s.exportEntries(ctx, f)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return nil
}

func (s *Store) exportEntries(ctx context.Context, f EditionFilter) ([]ExportEdition, error) {
	eds, err := s.ListEditions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying for export: %w", err)
	}

	entries := make([]ExportEdition, len(eds))
	for i, e := range eds {
		id := e.ID
		items, err := s.ListItems(ctx, ItemFilter{Edition: &id})
		if err != nil {
			return nil, fmt.Errorf("querying items of %s for export: %w", e.ID, err)
		}
		if items == nil {
			items = []types.Item{}
		}
		entries[i] = ExportEdition{Edition: e, Items: items}
	}
	return entries, nil
}
