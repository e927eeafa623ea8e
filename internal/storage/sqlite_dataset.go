package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SaveDataset inserts or replaces an extraction dataset.
func (s *SQLiteStore) SaveDataset(ctx context.Context, ds ExtractDataset) error {
	data := ds.Data
	if data == nil {
		data = []json.RawMessage{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	query := `
		INSERT INTO extract_datasets (id, user_id, name, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id, name = excluded.name, data = excluded.data
	`
	if _, err := s.db.ExecContext(ctx, query, ds.ID, ds.UserID, ds.Name, string(raw)); err != nil {
		return fmt.Errorf("failed to save dataset %s: %w", ds.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetDataset(ctx context.Context, id, userID string) (*ExtractDataset, error) {
	var ds ExtractDataset
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, data, created_at FROM extract_datasets WHERE id = ? AND user_id = ?",
		id, userID,
	).Scan(&ds.ID, &ds.UserID, &ds.Name, &raw, &ds.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	if err := json.Unmarshal([]byte(raw), &ds.Data); err != nil {
		return nil, fmt.Errorf("dataset %s is not a JSON array: %w", id, err)
	}
	return &ds, nil
}
