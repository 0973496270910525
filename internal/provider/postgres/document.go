package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dwsmith1983/clearmail/internal/provider"
)

// GetDocument returns the stored fields of collection/document.
func (s *Store) GetDocument(ctx context.Context, collection, document string) (map[string]any, error) {
	query := fmt.Sprintf(`SELECT fields FROM %s WHERE collection = $1 AND document = $2`, s.table)

	var raw []byte
	err := s.pool.QueryRow(ctx, query, collection, document).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, provider.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s/%s: %w", collection, document, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("postgres decode %s/%s: %w", collection, document, err)
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// MergeFields upserts the row and merges fields into its JSONB object. Keys
// not named in fields are left untouched.
func (s *Store) MergeFields(ctx context.Context, collection, document string, fields map[string]any) error {
	if len(fields) == 0 {
		return errors.New("postgres merge: no fields")
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("postgres merge %s/%s: %w", collection, document, err)
	}

	query := fmt.Sprintf(`
INSERT INTO %[1]s (collection, document, fields, updated_at)
VALUES ($1, $2, $3::jsonb, NOW())
ON CONFLICT (collection, document)
DO UPDATE SET fields = %[1]s.fields || EXCLUDED.fields, updated_at = NOW()`, s.table)

	if _, err := s.pool.Exec(ctx, query, collection, document, string(body)); err != nil {
		return fmt.Errorf("postgres merge %s/%s: %w", collection, document, err)
	}
	return nil
}
