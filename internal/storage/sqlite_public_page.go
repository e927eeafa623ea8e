package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const publicPageColumns = `id, slug, title, content, source_query, language, mode, meta_description, keywords, created_at`

func (s *SQLiteStore) ListPublicPages(ctx context.Context, mode, language string, limit int) ([]PublicPage, error) {
	query := "SELECT " + publicPageColumns + ` FROM public_pages
		WHERE mode = ? AND language = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, mode, language, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query public pages: %w", err)
	}
	defer rows.Close()

	pages := []PublicPage{}
	for rows.Next() {
		page, err := scanPublicPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (s *SQLiteStore) InsertPublicPage(ctx context.Context, page PublicPage) (*PublicPage, error) {
	keywords := page.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	keywordsJSON, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keywords: %w", err)
	}

	query := `
		INSERT INTO public_pages (slug, title, content, source_query, language, mode, meta_description, keywords)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		page.Slug, page.Title, page.Content, page.SourceQuery,
		page.Language, page.Mode, page.MetaDescription, string(keywordsJSON),
	)
	if err != nil {
		if isUniqueViolation(err) {
			RecordSlugConflict("sqlite")
			return nil, fmt.Errorf("%w: %s", ErrSlugConflict, page.Slug)
		}
		return nil, fmt.Errorf("failed to insert public page: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read public page id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, "SELECT "+publicPageColumns+" FROM public_pages WHERE id = ?", id)
	saved, err := scanPublicPage(row)
	if err != nil {
		return nil, fmt.Errorf("failed to reload public page: %w", err)
	}
	return &saved, nil
}

func (s *SQLiteStore) GetPublicPage(ctx context.Context, slug string) (*PublicPage, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+publicPageColumns+" FROM public_pages WHERE slug = ?", slug)
	page, err := scanPublicPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get public page: %w", err)
	}
	return &page, nil
}

func scanPublicPage(row rowScanner) (PublicPage, error) {
	var p PublicPage
	var keywords string
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &p.SourceQuery, &p.Language,
		&p.Mode, &p.MetaDescription, &keywords, &p.CreatedAt); err != nil {
		return p, err
	}
	if keywords != "" {
		if err := json.Unmarshal([]byte(keywords), &p.Keywords); err != nil {
			return p, fmt.Errorf("failed to unmarshal keywords: %w", err)
		}
	}
	return p, nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Primary result code when extended codes are off
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	}
	return false
}
