package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/runixer/shastrarthi/internal/gemini"
	"github.com/runixer/shastrarthi/internal/jobtype"
	"github.com/runixer/shastrarthi/internal/prompts"
	"github.com/runixer/shastrarthi/internal/storage"
	"github.com/runixer/shastrarthi/internal/stream"
)

const (
	msgMissingQuery       = "Missing required field: query"
	msgEmptyQuery         = "Query cannot be empty"
	msgChatFailed         = "Failed to generate AI response"
	msgVerseContextFailed = "Could not resolve verse context for chat."

	// noVerseContext is the candidate context of a chat turn without a verse.
	noVerseContext = "No verse context provided."
	notAvailable   = "N/A"
)

var errVerseContext = errors.New(msgVerseContextFailed)

type chatRequest struct {
	Query               *string        `json:"query"`
	TextID              string         `json:"textId"`
	VerseRef            string         `json:"verseRef"`
	Agent               string         `json:"agent"`
	ConversationHistory []historyEntry `json:"conversationHistory"`
}

// historyEntry is a client supplied turn. Either field may hold any JSON
// value; entries without string content are dropped.
type historyEntry struct {
	Role    any `json:"role"`
	Content any `json:"content"`
}

// chatHandler handles POST /api/chat and answers with an event stream.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	if req.Query == nil || *req.Query == "" {
		writeError(w, http.StatusBadRequest, msgMissingQuery)
		return
	}
	query := *req.Query
	if strings.TrimSpace(query) == "" {
		writeError(w, http.StatusBadRequest, msgEmptyQuery)
		return
	}
	if maxLen := s.cfg.Chat.GetMaxQueryLength(); utf8.RuneCountInString(query) > maxLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Query is too long. Maximum %d characters allowed.", maxLen))
		return
	}

	if !s.checkRateLimit(w, r, userID(r)) {
		return
	}
	if !s.generator.Configured() {
		writeError(w, http.StatusServiceUnavailable, msgChatNotConfigured)
		return
	}

	ctx := jobtype.WithJobType(r.Context(), jobtype.Chat)
	sw, err := stream.Open(ctx, w, s.cfg.Chat.GetStreamChunkSize())
	if err != nil {
		s.logger.Error("failed to open event stream", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	text, err := s.chatReply(ctx, req, query)
	if err != nil {
		s.logger.Warn("chat generation failed",
			"user_id", userID(r),
			"request_id", requestID(ctx),
			"error", err,
		)
		s.finishStream(sw.Fail(chatErrorMessage(err)))
		return
	}
	s.finishStream(sw.Send(text))
}

// chatReply produces the full answer for a chat turn. With both textId and
// verseRef set the turn is anchored to that verse; otherwise it is a free
// synthesis turn over the sanitized history.
func (s *Server) chatReply(ctx context.Context, req chatRequest, query string) (string, error) {
	if req.TextID != "" && req.VerseRef != "" {
		vars, err := s.verseContext(ctx, req.TextID, req.VerseRef)
		if err != nil {
			return "", err
		}
		prompt := prompts.Resolve(agentOr(req.Agent, prompts.ReaderChat), vars)
		return s.generator.GenerateContextual(ctx, prompt, query)
	}

	history := sanitizeHistory(req.ConversationHistory, s.cfg.Chat.GetHistoryLimit(), s.cfg.Chat.GetHistoryMessageLength())
	prompt := prompts.Resolve(agentOr(req.Agent, prompts.Synthesis), nil)
	return s.generator.GenerateSynthesis(ctx, prompt, query, noVerseContext, history)
}

// verseContext loads the verse and its neighbourhood as readerChat variables.
// verseRef may be a verse ref within the text or a verse id.
func (s *Server) verseContext(ctx context.Context, textID, verseRef string) (prompts.Vars, error) {
	text, err := s.texts.GetText(ctx, textID)
	if err != nil {
		return nil, fmt.Errorf("%w: text %s: %v", errVerseContext, textID, err)
	}
	verses, err := s.texts.GetVersesByText(ctx, textID, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: verses of %s: %v", errVerseContext, textID, err)
	}

	verse, err := s.texts.GetVerse(ctx, textID, verseRef)
	if errors.Is(err, storage.ErrNotFound) {
		verse = findVerseByID(verses, verseRef)
	} else if err != nil {
		return nil, fmt.Errorf("%w: verse %s: %v", errVerseContext, verseRef, err)
	}
	if verse == nil {
		return nil, fmt.Errorf("%w: verse %s not found", errVerseContext, verseRef)
	}

	return prompts.Vars{
		"text_name":       text.TitleEn,
		"verse_ref":       verse.Ref,
		"sanskrit":        orNA(verse.Sanskrit),
		"transliteration": orNA(verse.Transliteration),
		"translation":     verse.TranslationEn,
		"context_verses":  neighbourhood(verses, verse.OrderIndex, s.cfg.Chat.GetNeighborVerses()),
	}, nil
}

func findVerseByID(verses []storage.Verse, id string) *storage.Verse {
	for i := range verses {
		if verses[i].ID == id {
			return &verses[i]
		}
	}
	return nil
}

// neighbourhood renders the verses within radius of current as "ref: translation" lines.
func neighbourhood(verses []storage.Verse, current, radius int) string {
	lines := make([]string, 0, 2*radius+1)
	for _, v := range verses {
		if d := v.OrderIndex - current; d >= -radius && d <= radius {
			lines = append(lines, v.Ref+": "+v.TranslationEn)
		}
	}
	return strings.Join(lines, "\n")
}

// sanitizeHistory keeps the last limit entries with string content, coerces
// roles to user or assistant and cuts content to maxRunes.
func sanitizeHistory(entries []historyEntry, limit, maxRunes int) []gemini.Message {
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	history := make([]gemini.Message, 0, len(entries))
	for _, e := range entries {
		content, ok := e.Content.(string)
		if !ok {
			continue
		}
		role := "user"
		if r, _ := e.Role.(string); r == "assistant" {
			role = "assistant"
		}
		history = append(history, gemini.Message{Role: role, Content: truncateRunes(content, maxRunes)})
	}
	return history
}

// agentOr returns the persona config for agent, or fallback for an unknown key.
func agentOr(agent string, fallback prompts.ConfigID) prompts.ConfigID {
	if id, ok := prompts.AgentConfigID(agent); ok {
		return id
	}
	return fallback
}

func chatErrorMessage(err error) string {
	if gerr, ok := gemini.AsError(err); ok {
		return gerr.Message
	}
	if errors.Is(err, errVerseContext) {
		return msgVerseContextFailed
	}
	return msgChatFailed
}

// finishStream logs how a stream ended. A gone client is not an error.
func (s *Server) finishStream(err error) {
	switch {
	case err == nil:
	case errors.Is(err, stream.ErrClientGone):
		s.logger.Debug("client left before the stream finished", "error", err)
	default:
		s.logger.Warn("failed to write event stream", "error", err)
	}
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
