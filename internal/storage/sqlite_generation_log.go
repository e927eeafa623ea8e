package storage

import (
	"context"
	"fmt"
	"strings"
)

// AddGenerationLog inserts a new generation audit record.
func (s *SQLiteStore) AddGenerationLog(ctx context.Context, log GenerationLog) error {
	query := `
		INSERT INTO generation_logs (
			user_id, config_id, job_type, model, query, response, metadata,
			prompt_tokens, completion_tokens, duration_ms, success, error_kind, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		log.UserID,
		log.ConfigID,
		log.JobType,
		log.Model,
		log.Query,
		log.Response,
		log.Metadata,
		log.PromptTokens,
		log.CompletionTokens,
		log.DurationMs,
		log.Success,
		log.ErrorKind,
		log.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to add generation log: %w", err)
	}
	return nil
}

// GetGenerationLogs returns the most recent generation logs matching filter.
func (s *SQLiteStore) GetGenerationLogs(ctx context.Context, filter GenerationLogFilter, limit int) ([]GenerationLog, error) {
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.ConfigID != "" {
		conditions = append(conditions, "config_id = ?")
		args = append(args, filter.ConfigID)
	}
	if filter.Success != nil {
		conditions = append(conditions, "success = ?")
		args = append(args, *filter.Success)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, config_id, job_type, model, query, response, metadata,
			   prompt_tokens, completion_tokens, duration_ms, success, error_kind, error_message, created_at
		FROM generation_logs
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, whereClause)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation logs: %w", err)
	}
	defer rows.Close()

	var logs []GenerationLog
	for rows.Next() {
		var l GenerationLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.ConfigID, &l.JobType, &l.Model, &l.Query, &l.Response, &l.Metadata,
			&l.PromptTokens, &l.CompletionTokens, &l.DurationMs, &l.Success, &l.ErrorKind, &l.ErrorMessage, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan generation log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
