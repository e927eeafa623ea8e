package web

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/runixer/shastrarthi/internal/gemini"
	"github.com/runixer/shastrarthi/internal/jobtype"
	"github.com/runixer/shastrarthi/internal/prompts"
	"github.com/runixer/shastrarthi/internal/stream"
)

const (
	msgSynthMissingQuery = "Missing query"
	msgSynthFailed       = "Failed to generate synthesis response"

	maxSynthTexts        = 8
	maxSynthTitleRunes   = 300
	maxSynthSummaryRunes = 5000
	defaultSynthSummary  = "No summary available."
)

type synthesizeRequest struct {
	Query string           `json:"query"`
	Texts []synthesisInput `json:"texts"`
}

type synthesisInput struct {
	TitleEn     string  `json:"title_en"`
	Description *string `json:"description"`
}

// synthesizeHandler handles POST /api/synthesize: a synthesis across the
// texts of a search result, streamed as events.
func (s *Server) synthesizeHandler(w http.ResponseWriter, r *http.Request) {
	var req synthesizeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, msgSynthMissingQuery)
		return
	}
	if maxLen := s.cfg.Chat.GetMaxQueryLength(); utf8.RuneCountInString(req.Query) > maxLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Query is too long. Maximum %d characters allowed.", maxLen))
		return
	}

	if !s.checkRateLimit(w, r, userID(r)) {
		return
	}
	if !s.generator.Configured() {
		writeError(w, http.StatusServiceUnavailable, msgToolsNotConfigured)
		return
	}

	ctx := jobtype.WithJobType(r.Context(), jobtype.Synthesis)
	sw, err := stream.Open(ctx, w, s.cfg.Chat.GetStreamChunkSize())
	if err != nil {
		s.logger.Error("failed to open event stream", "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	prompt := prompts.Resolve(prompts.Synthesis, nil)
	text, err := s.generator.GenerateSynthesis(ctx, prompt, req.Query, textSummaries(req.Texts), nil)
	if err != nil {
		s.logger.Warn("synthesis generation failed",
			"user_id", userID(r),
			"request_id", requestID(ctx),
			"error", err,
		)
		msg := msgSynthFailed
		if gerr, ok := gemini.AsError(err); ok {
			msg = gerr.Message
		}
		s.finishStream(sw.Fail(msg))
		return
	}
	s.finishStream(sw.Send(text))
}

// textSummaries numbers the first texts as "N. title: description" lines.
func textSummaries(texts []synthesisInput) string {
	if len(texts) > maxSynthTexts {
		texts = texts[:maxSynthTexts]
	}
	lines := make([]string, len(texts))
	for i, t := range texts {
		description := defaultSynthSummary
		if t.Description != nil {
			description = *t.Description
		}
		lines[i] = fmt.Sprintf("%d. %s: %s", i+1,
			truncateRunes(t.TitleEn, maxSynthTitleRunes),
			truncateRunes(description, maxSynthSummaryRunes))
	}
	return strings.Join(lines, "\n")
}
