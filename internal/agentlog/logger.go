// Package agentlog records an audit trail of generation calls.
package agentlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/runixer/shastrarthi/internal/storage"
)

// maxStoredChars caps query and response text kept in the audit table.
const maxStoredChars = 20000

// Entry represents a log entry for a generation call.
type Entry struct {
	UserID           string
	ConfigID         string
	JobType          string
	Model            string
	Query            string
	Response         string
	Metadata         interface{} // Will be JSON serialized
	PromptTokens     int
	CompletionTokens int
	DurationMs       int
	Success          bool
	ErrorKind        string
	ErrorMessage     string
}

// Logger handles logging for generation calls.
type Logger struct {
	repo    storage.GenerationLogRepository
	logger  *slog.Logger
	enabled bool
}

// NewLogger creates a new generation logger.
// If enabled is false, Log() calls will be no-ops.
func NewLogger(repo storage.GenerationLogRepository, logger *slog.Logger, enabled bool) *Logger {
	return &Logger{
		repo:    repo,
		logger:  logger,
		enabled: enabled,
	}
}

// Log records a generation call entry.
// If the logger is nil, disabled, or has no repo, this is a no-op.
func (l *Logger) Log(ctx context.Context, entry Entry) {
	if l == nil || !l.enabled || l.repo == nil {
		return
	}

	log := storage.GenerationLog{
		UserID:           entry.UserID,
		ConfigID:         entry.ConfigID,
		JobType:          entry.JobType,
		Model:            entry.Model,
		Query:            truncate(entry.Query, maxStoredChars),
		Response:         truncate(entry.Response, maxStoredChars),
		Metadata:         serializeJSON(entry.Metadata),
		PromptTokens:     entry.PromptTokens,
		CompletionTokens: entry.CompletionTokens,
		DurationMs:       entry.DurationMs,
		Success:          entry.Success,
		ErrorKind:        entry.ErrorKind,
		ErrorMessage:     entry.ErrorMessage,
	}

	// The request context may already be cancelled by a disconnected client.
	if err := l.repo.AddGenerationLog(context.WithoutCancel(ctx), log); err != nil {
		l.logger.Warn("failed to save generation log",
			"config_id", entry.ConfigID,
			"user_id", entry.UserID,
			"error", err,
		)
	}
}

// Enabled returns whether logging is enabled.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled
}

// serializeJSON converts interface{} to JSON string.
// Returns empty string for nil or on error.
func serializeJSON(v interface{}) string {
	if v == nil {
		return ""
	}

	// If already a string, return as-is
	if s, ok := v.(string); ok {
		return s
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes])
}
