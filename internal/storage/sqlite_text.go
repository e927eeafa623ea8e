package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const textColumns = `id, slug, title_en, title_sa, category, tradition, difficulty, description, verse_count, created_at`

const verseColumns = `id, text_id, ref, order_index, sanskrit, transliteration, translation_en, created_at`

// SaveText inserts or replaces a text.
func (s *SQLiteStore) SaveText(ctx context.Context, text Text) error {
	if text.Difficulty == "" {
		text.Difficulty = "beginner"
	}
	query := `
		INSERT INTO texts (id, slug, title_en, title_sa, category, tradition, difficulty, description, verse_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug,
			title_en = excluded.title_en,
			title_sa = excluded.title_sa,
			category = excluded.category,
			tradition = excluded.tradition,
			difficulty = excluded.difficulty,
			description = excluded.description,
			verse_count = excluded.verse_count
	`
	_, err := s.db.ExecContext(ctx, query,
		text.ID, text.Slug, text.TitleEn, text.TitleSa, text.Category,
		text.Tradition, text.Difficulty, text.Description, text.VerseCount,
	)
	if err != nil {
		return fmt.Errorf("failed to save text %s: %w", text.ID, err)
	}
	return nil
}

// SaveVerse inserts or replaces a verse.
func (s *SQLiteStore) SaveVerse(ctx context.Context, verse Verse) error {
	query := `
		INSERT INTO verses (id, text_id, ref, order_index, sanskrit, transliteration, translation_en)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			text_id = excluded.text_id,
			ref = excluded.ref,
			order_index = excluded.order_index,
			sanskrit = excluded.sanskrit,
			transliteration = excluded.transliteration,
			translation_en = excluded.translation_en
	`
	_, err := s.db.ExecContext(ctx, query,
		verse.ID, verse.TextID, verse.Ref, verse.OrderIndex,
		verse.Sanskrit, verse.Transliteration, verse.TranslationEn,
	)
	if err != nil {
		return fmt.Errorf("failed to save verse %s: %w", verse.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetText(ctx context.Context, id string) (*Text, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+textColumns+" FROM texts WHERE id = ?", id)
	text, err := scanText(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get text: %w", err)
	}
	return &text, nil
}

// GetTextsByIDs returns the texts that exist among ids, in title order.
func (s *SQLiteStore) GetTextsByIDs(ctx context.Context, ids []string) ([]Text, error) {
	if len(ids) == 0 {
		return []Text{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := "SELECT " + textColumns + " FROM texts WHERE id IN (" + placeholders + ") ORDER BY title_en"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query texts: %w", err)
	}
	defer rows.Close()

	texts := []Text{}
	for rows.Next() {
		text, err := scanText(rows)
		if err != nil {
			return nil, err
		}
		texts = append(texts, text)
	}
	return texts, rows.Err()
}

func (s *SQLiteStore) GetVerse(ctx context.Context, textID, ref string) (*Verse, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+verseColumns+" FROM verses WHERE text_id = ? AND ref = ?", textID, ref)
	verse, err := scanVerse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verse: %w", err)
	}
	return &verse, nil
}

func (s *SQLiteStore) GetVersesByText(ctx context.Context, textID string, limit int) ([]Verse, error) {
	query := "SELECT " + verseColumns + " FROM verses WHERE text_id = ? ORDER BY order_index ASC"
	args := []interface{}{textID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verses: %w", err)
	}
	defer rows.Close()

	verses := []Verse{}
	for rows.Next() {
		verse, err := scanVerse(rows)
		if err != nil {
			return nil, err
		}
		verses = append(verses, verse)
	}
	return verses, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanText(row rowScanner) (Text, error) {
	var t Text
	err := row.Scan(&t.ID, &t.Slug, &t.TitleEn, &t.TitleSa, &t.Category, &t.Tradition,
		&t.Difficulty, &t.Description, &t.VerseCount, &t.CreatedAt)
	return t, err
}

func scanVerse(row rowScanner) (Verse, error) {
	var v Verse
	err := row.Scan(&v.ID, &v.TextID, &v.Ref, &v.OrderIndex, &v.Sanskrit,
		&v.Transliteration, &v.TranslationEn, &v.CreatedAt)
	return v, err
}
