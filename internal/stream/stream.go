// Package stream frames a generated text as server-sent events.
//
// Wire format:
//
//	data: {"content":"<chunk>"}\n\n   one per chunk, in order
//	data: [DONE]\n\n                  end of a successful stream
//	data: {"error":"<message>"}\n\n   terminal failure after headers were sent
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// DefaultChunkSize is the number of runes per content event.
const DefaultChunkSize = 100

const doneMarker = "[DONE]"

var (
	// ErrClientGone reports that the client disconnected mid-stream.
	ErrClientGone = errors.New("client disconnected")
	// ErrNotSupported is returned when the ResponseWriter cannot flush.
	ErrNotSupported = errors.New("streaming not supported")
)

type contentEvent struct {
	Content string `json:"content"`
}

type errorEvent struct {
	Error string `json:"error"`
}

// Writer emits events on a committed 200 text/event-stream response.
type Writer struct {
	ctx       context.Context
	w         http.ResponseWriter
	flusher   http.Flusher
	chunkSize int
}

// Open sets the event-stream headers, commits status 200 and flushes so the
// client sees the stream before generation starts.
func Open(ctx context.Context, w http.ResponseWriter, chunkSize int) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNotSupported
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Writer{ctx: ctx, w: w, flusher: flusher, chunkSize: chunkSize}, nil
}

// Send emits text as content events followed by the [DONE] marker.
// Returns ErrClientGone if the client went away; nothing more is written then.
func (s *Writer) Send(text string) error {
	for _, chunk := range Chunks(text, s.chunkSize) {
		if err := s.event(contentEvent{Content: chunk}); err != nil {
			return err
		}
		recordEvent(eventContent)
	}
	if err := s.write(doneMarker); err != nil {
		return err
	}
	recordEvent(eventDone)
	return nil
}

// Fail emits a single error event. The stream must not be used afterwards.
func (s *Writer) Fail(msg string) error {
	if err := s.event(errorEvent{Error: msg}); err != nil {
		return err
	}
	recordEvent(eventError)
	return nil
}

func (s *Writer) event(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.write(string(data))
}

func (s *Writer) write(payload string) error {
	if s.ctx.Err() != nil {
		recordEvent(eventClientGone)
		return ErrClientGone
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		recordEvent(eventClientGone)
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	s.flusher.Flush()
	return nil
}

// Chunks splits text into consecutive slices of at most size runes.
// Concatenating the result yields text.
func Chunks(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
