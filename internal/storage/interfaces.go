package storage

import "context"

// TextRepository reads the scripture library used to build verse context.
type TextRepository interface {
	GetText(ctx context.Context, id string) (*Text, error)
	GetTextsByIDs(ctx context.Context, ids []string) ([]Text, error)
	GetVerse(ctx context.Context, textID, ref string) (*Verse, error)
	// GetVersesByText returns verses in order_index order. limit <= 0 means all.
	GetVersesByText(ctx context.Context, textID string, limit int) ([]Verse, error)
}

// PublicPageRepository persists published generation outputs.
type PublicPageRepository interface {
	// ListPublicPages returns the newest pages for (mode, language) first.
	ListPublicPages(ctx context.Context, mode, language string, limit int) ([]PublicPage, error)
	// InsertPublicPage returns ErrSlugConflict when the slug is taken.
	InsertPublicPage(ctx context.Context, page PublicPage) (*PublicPage, error)
	GetPublicPage(ctx context.Context, slug string) (*PublicPage, error)
}

// DatasetRepository reads user uploaded extraction datasets.
type DatasetRepository interface {
	// GetDataset returns ErrNotFound unless the dataset belongs to userID.
	GetDataset(ctx context.Context, id, userID string) (*ExtractDataset, error)
}

// GenerationLogRepository stores generation audit records.
type GenerationLogRepository interface {
	AddGenerationLog(ctx context.Context, log GenerationLog) error
	GetGenerationLogs(ctx context.Context, filter GenerationLogFilter, limit int) ([]GenerationLog, error)
}

// MaintenanceRepository handles database maintenance operations.
type MaintenanceRepository interface {
	GetDBSize() (int64, error)
	GetTableSizes() ([]TableSize, error)
	CleanupGenerationLogs(keep int) (int64, error)
	Checkpoint() error
}

// Storage is the full datastore used by the service.
type Storage interface {
	TextRepository
	PublicPageRepository
	DatasetRepository
	GenerationLogRepository
	Close() error
}

var (
	_ Storage               = (*SQLiteStore)(nil)
	_ MaintenanceRepository = (*SQLiteStore)(nil)
)
