package main

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/shastrarthi/internal/storage"
)

func seedGenerationLogs(t *testing.T, store *storage.SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.AddGenerationLog(ctx, storage.GenerationLog{
		UserID: "user-1", ConfigID: "simplify", JobType: "tool", Model: "gemini-test",
		PromptTokens: 120, CompletionTokens: 80, DurationMs: 950, Success: true,
	}))
	require.NoError(t, store.AddGenerationLog(ctx, storage.GenerationLog{
		UserID: "user-2", ConfigID: "readerChat", JobType: "chat", Model: "gemini-test",
		DurationMs: 30, ErrorKind: "rate_limit_exceeded", ErrorMessage: "quota",
	}))
}

func TestLogsList(t *testing.T) {
	cli := newTestCLI(t)
	seedGenerationLogs(t, cli.store)

	out, err := cli.run("logs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Generation logs: 2")
	assert.Contains(t, out, "120/80")
	assert.Contains(t, out, "rate_limit_exceeded")

	out, err = cli.run("logs", "list", "--failed", "-o", "json")
	require.NoError(t, err)
	var body struct {
		Count int                     `json:"count"`
		Data  []storage.GenerationLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "readerChat", body.Data[0].ConfigID)

	out, err = cli.run("logs", "list", "--config-id", "simplify", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Generation logs: 1")

	out, err = cli.run("logs", "list", "--user", "nobody")
	require.NoError(t, err)
	assert.Equal(t, "Generation logs: 0\n", out)
}

func TestLogsList_InvalidLimit(t *testing.T) {
	cli := newTestCLI(t)

	_, err := cli.run("logs", "list", "--limit", "0")

	assert.ErrorContains(t, err, "--limit must be positive")
}
