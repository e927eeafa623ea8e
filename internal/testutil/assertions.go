package testutil

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/shastrarthi/internal/storage"
)

// AssertJSONError asserts the recorder holds {"error": msg} with the given status.
func AssertJSONError(t *testing.T, rr *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	assert.Equal(t, msg, body.Error)
}

// AssertGenerationLogged asserts that the newest generation log for configID exists.
// Returns it for further inspection.
func AssertGenerationLogged(t *testing.T, repo storage.GenerationLogRepository, configID string) storage.GenerationLog {
	t.Helper()
	logs, err := repo.GetGenerationLogs(context.Background(), storage.GenerationLogFilter{ConfigID: configID}, 1)
	require.NoError(t, err, "failed to get generation logs")
	if len(logs) == 0 {
		t.Fatalf("no generation log for config %q", configID)
	}
	return logs[0]
}

// AssertPublicPageCount asserts the number of pages stored for (mode, language).
func AssertPublicPageCount(t *testing.T, repo storage.PublicPageRepository, mode, language string, expected int) {
	t.Helper()
	pages, err := repo.ListPublicPages(context.Background(), mode, language, 1000)
	require.NoError(t, err, "failed to list public pages")
	if len(pages) != expected {
		t.Errorf("expected %d public pages for %s/%s, got %d", expected, mode, language, len(pages))
		for i, p := range pages {
			t.Logf("Page %d: %s (%q)", i+1, p.Slug, p.SourceQuery)
		}
	}
}
