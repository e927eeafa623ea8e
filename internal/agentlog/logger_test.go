package agentlog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/shastrarthi/internal/storage"
)

type fakeRepo struct {
	logs []storage.GenerationLog
	err  error
}

func (f *fakeRepo) AddGenerationLog(ctx context.Context, log storage.GenerationLog) error {
	if f.err != nil {
		return f.err
	}
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeRepo) GetGenerationLogs(ctx context.Context, filter storage.GenerationLogFilter, limit int) ([]storage.GenerationLog, error) {
	return f.logs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLog_Disabled(t *testing.T) {
	repo := &fakeRepo{}
	l := NewLogger(repo, testLogger(), false)

	l.Log(context.Background(), Entry{ConfigID: "readerChat"})
	assert.Empty(t, repo.logs)
	assert.False(t, l.Enabled())
}

func TestLog_NilLogger(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Log(context.Background(), Entry{}) })
	assert.False(t, l.Enabled())
}

func TestLog_Enabled(t *testing.T) {
	repo := &fakeRepo{}
	l := NewLogger(repo, testLogger(), true)

	l.Log(context.Background(), Entry{
		UserID:       "user-1",
		ConfigID:     "simplify",
		JobType:      "tool",
		Model:        "gemini-test",
		Query:        "karmany evadhikaras te",
		Response:     "Act without attachment.",
		Metadata:     map[string]int{"history": 2},
		PromptTokens: 12,
		DurationMs:   150,
		Success:      true,
	})

	require.Len(t, repo.logs, 1)
	log := repo.logs[0]
	assert.Equal(t, "user-1", log.UserID)
	assert.Equal(t, "simplify", log.ConfigID)
	assert.JSONEq(t, `{"history":2}`, log.Metadata)
	assert.True(t, log.Success)
}

func TestLog_TruncatesLongText(t *testing.T) {
	repo := &fakeRepo{}
	l := NewLogger(repo, testLogger(), true)

	l.Log(context.Background(), Entry{ConfigID: "synthesis", Response: strings.Repeat("अ", maxStoredChars+10)})

	require.Len(t, repo.logs, 1)
	assert.Equal(t, maxStoredChars, len([]rune(repo.logs[0].Response)))
}

func TestLog_CancelledContextStillWrites(t *testing.T) {
	repo := &fakeRepo{}
	l := NewLogger(repo, testLogger(), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Log(ctx, Entry{ConfigID: "readerChat"})

	assert.Len(t, repo.logs, 1)
}

func TestLog_RepoErrorIsSwallowed(t *testing.T) {
	repo := &fakeRepo{err: errors.New("disk full")}
	l := NewLogger(repo, testLogger(), true)

	assert.NotPanics(t, func() { l.Log(context.Background(), Entry{ConfigID: "extract"}) })
}

func TestSerializeJSON(t *testing.T) {
	assert.Equal(t, "", serializeJSON(nil))
	assert.Equal(t, "raw", serializeJSON("raw"))
	assert.Equal(t, `{"a":1}`, serializeJSON(map[string]int{"a": 1}))
	assert.Equal(t, "", serializeJSON(make(chan int)), "unserializable values are dropped")
}
