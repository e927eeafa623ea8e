// Package supabase implements the storage repositories on top of a Supabase
// (PostgREST) project.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"github.com/runixer/shastrarthi/internal/storage"
)

// PostgreSQL error codes surfaced by PostgREST.
const (
	codeUniqueViolation = "23505"
	codeNoRows          = "PGRST116"
)

// postgrest-go reports failures as "(<code>) <message>".
var errorCodePattern = regexp.MustCompile(`^\(([0-9A-Z]+)\)`)

// Config holds Supabase connection configuration
type Config struct {
	URL    string
	APIKey string
}

// Store implements storage.Storage using Supabase.
type Store struct {
	client *supabase.Client
	logger *slog.Logger
}

var _ storage.Storage = (*Store)(nil)

// New creates a new Supabase-backed store.
func New(logger *slog.Logger, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}

	client, err := supabase.NewClient(cfg.URL, cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Store{
		client: client,
		logger: logger.With("component", "supabase_store"),
	}, nil
}

// GetText retrieves a text by ID
func (s *Store) GetText(ctx context.Context, id string) (*storage.Text, error) {
	var texts []storage.Text
	_, err := s.client.From("texts").
		Select("*", "", false).
		Eq("id", id).
		Limit(1, "").
		ExecuteTo(&texts)
	if err != nil {
		return nil, fmt.Errorf("failed to get text: %w", classify(err))
	}
	if len(texts) == 0 {
		return nil, storage.ErrNotFound
	}
	return &texts[0], nil
}

// GetTextsByIDs retrieves multiple texts by their IDs
func (s *Store) GetTextsByIDs(ctx context.Context, ids []string) ([]storage.Text, error) {
	if len(ids) == 0 {
		return []storage.Text{}, nil
	}

	texts := []storage.Text{}
	_, err := s.client.From("texts").
		Select("*", "", false).
		In("id", ids).
		Order("title_en", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&texts)
	if err != nil {
		return nil, fmt.Errorf("failed to get texts by ids: %w", classify(err))
	}
	return texts, nil
}

// GetVerse retrieves a verse by its text and reference
func (s *Store) GetVerse(ctx context.Context, textID, ref string) (*storage.Verse, error) {
	var verses []storage.Verse
	_, err := s.client.From("verses").
		Select("*", "", false).
		Eq("text_id", textID).
		Eq("ref", ref).
		Limit(1, "").
		ExecuteTo(&verses)
	if err != nil {
		return nil, fmt.Errorf("failed to get verse: %w", classify(err))
	}
	if len(verses) == 0 {
		return nil, storage.ErrNotFound
	}
	return &verses[0], nil
}

// GetVersesByText retrieves verses of a text in reading order
func (s *Store) GetVersesByText(ctx context.Context, textID string, limit int) ([]storage.Verse, error) {
	query := s.client.From("verses").
		Select("*", "", false).
		Eq("text_id", textID).
		Order("order_index", &postgrest.OrderOpts{Ascending: true})
	if limit > 0 {
		query = query.Limit(limit, "")
	}

	verses := []storage.Verse{}
	if _, err := query.ExecuteTo(&verses); err != nil {
		return nil, fmt.Errorf("failed to get verses: %w", classify(err))
	}
	return verses, nil
}

// ListPublicPages returns the newest pages for (mode, language)
func (s *Store) ListPublicPages(ctx context.Context, mode, language string, limit int) ([]storage.PublicPage, error) {
	pages := []storage.PublicPage{}
	_, err := s.client.From("public_pages").
		Select("*", "", false).
		Eq("mode", mode).
		Eq("language", language).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&pages)
	if err != nil {
		return nil, fmt.Errorf("failed to list public pages: %w", classify(err))
	}
	return pages, nil
}

type publicPageRow struct {
	Slug            string   `json:"slug"`
	Title           string   `json:"title"`
	Content         string   `json:"content"`
	SourceQuery     string   `json:"source_query"`
	Language        string   `json:"language"`
	Mode            string   `json:"mode"`
	MetaDescription string   `json:"meta_description"`
	Keywords        []string `json:"keywords"`
}

// InsertPublicPage stores a new page and returns the saved row
func (s *Store) InsertPublicPage(ctx context.Context, page storage.PublicPage) (*storage.PublicPage, error) {
	keywords := page.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	row := publicPageRow{
		Slug:            page.Slug,
		Title:           page.Title,
		Content:         page.Content,
		SourceQuery:     page.SourceQuery,
		Language:        page.Language,
		Mode:            page.Mode,
		MetaDescription: page.MetaDescription,
		Keywords:        keywords,
	}

	var saved []storage.PublicPage
	_, err := s.client.From("public_pages").
		Insert(row, false, "", "representation", "").
		ExecuteTo(&saved)
	if err != nil {
		err = classify(err)
		if errors.Is(err, storage.ErrSlugConflict) {
			storage.RecordSlugConflict("supabase")
		}
		return nil, fmt.Errorf("failed to insert public page %s: %w", page.Slug, err)
	}
	if len(saved) == 0 {
		return nil, fmt.Errorf("insert of public page %s returned no row", page.Slug)
	}
	return &saved[0], nil
}

// GetPublicPage retrieves a published page by slug
func (s *Store) GetPublicPage(ctx context.Context, slug string) (*storage.PublicPage, error) {
	var pages []storage.PublicPage
	_, err := s.client.From("public_pages").
		Select("*", "", false).
		Eq("slug", slug).
		Limit(1, "").
		ExecuteTo(&pages)
	if err != nil {
		return nil, fmt.Errorf("failed to get public page: %w", classify(err))
	}
	if len(pages) == 0 {
		return nil, storage.ErrNotFound
	}
	return &pages[0], nil
}

// GetDataset retrieves a dataset owned by userID
func (s *Store) GetDataset(ctx context.Context, id, userID string) (*storage.ExtractDataset, error) {
	var datasets []storage.ExtractDataset
	_, err := s.client.From("extract_datasets").
		Select("*", "", false).
		Eq("id", id).
		Eq("user_id", userID).
		Limit(1, "").
		ExecuteTo(&datasets)
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", classify(err))
	}
	if len(datasets) == 0 {
		return nil, storage.ErrNotFound
	}
	return &datasets[0], nil
}

type generationLogRow struct {
	UserID           string `json:"user_id"`
	ConfigID         string `json:"config_id"`
	JobType          string `json:"job_type"`
	Model            string `json:"model"`
	Query            string `json:"query"`
	Response         string `json:"response"`
	Metadata         string `json:"metadata"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	DurationMs       int    `json:"duration_ms"`
	Success          bool   `json:"success"`
	ErrorKind        string `json:"error_kind"`
	ErrorMessage     string `json:"error_message"`
}

// generationLogRecord is a stored row; id and created_at are assigned by the database.
type generationLogRecord struct {
	ID int64 `json:"id"`
	generationLogRow
	CreatedAt time.Time `json:"created_at"`
}

// AddGenerationLog stores a generation audit record
func (s *Store) AddGenerationLog(ctx context.Context, log storage.GenerationLog) error {
	row := generationLogRow{
		UserID:           log.UserID,
		ConfigID:         log.ConfigID,
		JobType:          log.JobType,
		Model:            log.Model,
		Query:            log.Query,
		Response:         log.Response,
		Metadata:         log.Metadata,
		PromptTokens:     log.PromptTokens,
		CompletionTokens: log.CompletionTokens,
		DurationMs:       log.DurationMs,
		Success:          log.Success,
		ErrorKind:        log.ErrorKind,
		ErrorMessage:     log.ErrorMessage,
	}

	_, _, err := s.client.From("generation_logs").
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to add generation log: %w", classify(err))
	}
	return nil
}

// GetGenerationLogs returns the most recent generation logs matching filter
func (s *Store) GetGenerationLogs(ctx context.Context, filter storage.GenerationLogFilter, limit int) ([]storage.GenerationLog, error) {
	query := s.client.From("generation_logs").Select("*", "", false)
	if filter.UserID != "" {
		query = query.Eq("user_id", filter.UserID)
	}
	if filter.ConfigID != "" {
		query = query.Eq("config_id", filter.ConfigID)
	}
	if filter.Success != nil {
		query = query.Eq("success", fmt.Sprintf("%t", *filter.Success))
	}

	var rows []generationLogRecord
	_, err := query.
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Limit(limit, "").
		ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("failed to get generation logs: %w", classify(err))
	}

	logs := make([]storage.GenerationLog, len(rows))
	for i, r := range rows {
		logs[i] = storage.GenerationLog{
			ID:               r.ID,
			UserID:           r.UserID,
			ConfigID:         r.ConfigID,
			JobType:          r.JobType,
			Model:            r.Model,
			Query:            r.Query,
			Response:         r.Response,
			Metadata:         r.Metadata,
			PromptTokens:     r.PromptTokens,
			CompletionTokens: r.CompletionTokens,
			DurationMs:       r.DurationMs,
			Success:          r.Success,
			ErrorKind:        r.ErrorKind,
			ErrorMessage:     r.ErrorMessage,
			CreatedAt:        r.CreatedAt,
		}
	}
	return logs, nil
}

// Close is a no-op; the client holds no persistent connection.
func (s *Store) Close() error {
	return nil
}

// errorCode extracts the PostgreSQL or PostgREST code from a postgrest-go error.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	m := errorCodePattern.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return m[1]
}

// classify maps PostgREST error codes onto storage sentinels.
func classify(err error) error {
	switch errorCode(err) {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %v", storage.ErrSlugConflict, err)
	case codeNoRows:
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	}
	return err
}
