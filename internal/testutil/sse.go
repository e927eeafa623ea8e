package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// SSEStream is a decoded text/event-stream body.
type SSEStream struct {
	Contents []string
	Done     bool
	Error    string
}

// Text concatenates the content events.
func (s SSEStream) Text() string {
	return strings.Join(s.Contents, "")
}

// ParseSSE decodes a body written by the stream package.
func ParseSSE(t *testing.T, body string) SSEStream {
	t.Helper()

	var out SSEStream
	for _, frame := range strings.Split(body, "\n\n") {
		if frame == "" {
			continue
		}
		payload, ok := strings.CutPrefix(frame, "data: ")
		if !ok {
			t.Fatalf("malformed SSE frame %q", frame)
		}
		if payload == "[DONE]" {
			out.Done = true
			continue
		}

		var ev struct {
			Content *string `json:"content"`
			Error   *string `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			t.Fatalf("malformed SSE payload %q: %v", payload, err)
		}
		switch {
		case ev.Content != nil:
			out.Contents = append(out.Contents, *ev.Content)
		case ev.Error != nil:
			out.Error = *ev.Error
		}
	}
	return out
}
