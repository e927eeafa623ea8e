package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSlugConflict is returned when a public page slug is already taken.
	ErrSlugConflict = errors.New("slug already exists")
)

// Text is a scripture in the library.
type Text struct {
	ID          string    `json:"id" yaml:"id"`
	Slug        string    `json:"slug" yaml:"slug"`
	TitleEn     string    `json:"title_en" yaml:"title_en"`
	TitleSa     string    `json:"title_sa,omitempty" yaml:"title_sa"`
	Category    string    `json:"category" yaml:"category"`
	Tradition   string    `json:"tradition,omitempty" yaml:"tradition"`
	Difficulty  string    `json:"difficulty" yaml:"difficulty"`
	Description string    `json:"description,omitempty" yaml:"description"`
	VerseCount  int       `json:"verse_count" yaml:"verse_count"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
}

// Verse is a single verse of a text. OrderIndex gives reading order within the text.
type Verse struct {
	ID              string    `json:"id" yaml:"id"`
	TextID          string    `json:"text_id" yaml:"text_id"`
	Ref             string    `json:"ref" yaml:"ref"`
	OrderIndex      int       `json:"order_index" yaml:"order_index"`
	Sanskrit        string    `json:"sanskrit,omitempty" yaml:"sanskrit"`
	Transliteration string    `json:"transliteration,omitempty" yaml:"transliteration"`
	TranslationEn   string    `json:"translation_en" yaml:"translation_en"`
	CreatedAt       time.Time `json:"created_at" yaml:"-"`
}

// PublicPage is a published generation output reachable under /explore/<slug>.
type PublicPage struct {
	ID              int64     `json:"-"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Content         string    `json:"content"`
	SourceQuery     string    `json:"source_query"`
	Language        string    `json:"language"`
	Mode            string    `json:"mode"`
	MetaDescription string    `json:"meta_description"`
	Keywords        []string  `json:"keywords"`
	CreatedAt       time.Time `json:"created_at"`
}

// ExtractDataset is user uploaded data for the extract tool. Data holds the raw
// JSON items.
type ExtractDataset struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Name      string            `json:"name"`
	Data      []json.RawMessage `json:"data"`
	CreatedAt time.Time         `json:"created_at"`
}

// GenerationLog is an audit record of a single generation call.
type GenerationLog struct {
	ID               int64
	UserID           string
	ConfigID         string // prompt config id, e.g. readerChat
	JobType          string // chat, tool, synthesis, cli
	Model            string
	Query            string
	Response         string
	Metadata         string // JSON
	PromptTokens     int
	CompletionTokens int
	DurationMs       int
	Success          bool
	ErrorKind        string
	ErrorMessage     string
	CreatedAt        time.Time
}

// GenerationLogFilter narrows GetGenerationLogs.
type GenerationLogFilter struct {
	UserID   string
	ConfigID string
	Success  *bool
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	dbPath string // Original path without query params, for file size check
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	originalPath := path
	if idx := strings.Index(path, "?"); idx != -1 {
		originalPath = path[:idx]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// A single connection avoids "database is locked" on concurrent writes
	// and keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// modernc.org/sqlite ignores the _journal_mode query param
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", originalPath)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		logger.Warn("failed to enable foreign keys", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger.With("component", "sqlite_store"), dbPath: originalPath}, nil
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS texts (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		title_en TEXT NOT NULL,
		title_sa TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		tradition TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'beginner',
		description TEXT NOT NULL DEFAULT '',
		verse_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS verses (
		id TEXT PRIMARY KEY,
		text_id TEXT NOT NULL REFERENCES texts(id) ON DELETE CASCADE,
		ref TEXT NOT NULL,
		order_index INTEGER NOT NULL,
		sanskrit TEXT NOT NULL DEFAULT '',
		transliteration TEXT NOT NULL DEFAULT '',
		translation_en TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(text_id, ref)
	);
	CREATE INDEX IF NOT EXISTS idx_verses_text_order ON verses(text_id, order_index);
	CREATE TABLE IF NOT EXISTS public_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		source_query TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL,
		mode TEXT NOT NULL,
		meta_description TEXT NOT NULL DEFAULT '',
		keywords TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_public_pages_mode_language ON public_pages(mode, language, created_at DESC);
	CREATE TABLE IF NOT EXISTS extract_datasets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_extract_datasets_user ON extract_datasets(user_id);
	CREATE TABLE IF NOT EXISTS generation_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL DEFAULT '',
		config_id TEXT NOT NULL,
		job_type TEXT NOT NULL,
		model TEXT NOT NULL,
		query TEXT NOT NULL DEFAULT '',
		response TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '',
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		success BOOLEAN NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_generation_logs_created ON generation_logs(created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Checkpoint forces a WAL checkpoint to flush pending writes to the main database file.
func (s *SQLiteStore) Checkpoint() error {
	var busy, log, checkpointed int
	err := s.db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &log, &checkpointed)
	if err != nil {
		return fmt.Errorf("checkpoint query failed: %w", err)
	}

	s.logger.Debug("WAL checkpoint result",
		"busy", busy,
		"log_frames", log,
		"checkpointed_frames", checkpointed,
	)

	if busy != 0 {
		return fmt.Errorf("checkpoint blocked by reader (busy=%d)", busy)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if err := s.Checkpoint(); err != nil {
		s.logger.Warn("failed to checkpoint WAL before close", "error", err)
	}
	return s.db.Close()
}
