package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/runixer/shastrarthi/internal/jobtype"
	"github.com/runixer/shastrarthi/internal/prompts"
	"github.com/runixer/shastrarthi/internal/publish"
	"github.com/runixer/shastrarthi/internal/storage"
)

// Tool modes accepted by POST /api/tools.
const (
	modeWriterDraft     = "writer_draft"
	modeWriterCitations = "writer_citations"
	modeSimplify        = "simplify"
	modeTranslate       = "translate"
	modeExtract         = "extract"
	modeReference       = "reference"
)

const (
	msgMissingMode        = "Missing mode"
	msgUnsupportedMode    = "Unsupported mode"
	msgInvalidSimplify    = "Invalid simplify payload."
	msgInvalidTranslate   = "Invalid translate payload."
	msgExtractNeedsSource = "At least one text or dataset must be provided for extraction."
	msgExtractFailed      = "Failed to process extraction results from AI."

	maxLevelLength       = 40
	maxLanguageLength    = 60
	maxVersesPerText     = 50
	maxDatasetItems      = 100
	defaultLevel         = "Simple"
	defaultCitationStyle = "APA"

	extractPrompt = `Extract concise insights and verse-like references relevant to the user's question from the provided sources.
Return the response as a JSON array of objects, where each object has 'text', 'ref', and 'insight' fields.
Example: [{"text": "Bhagavad Gita", "ref": "2.47", "insight": "Action without fruit-attachment is central."}, {"text": "Yoga Sutras", "ref": "1.12", "insight": "Vairagya balances sustained practice."}]`
)

var validLevels = map[string]bool{
	"Simple":         true,
	"Academic":       true,
	"Child-friendly": true,
}

type toolsRequest struct {
	Mode    string                     `json:"mode"`
	Payload map[string]json.RawMessage `json:"payload"`
}

// toolJob is a validated tool request ready for generation.
type toolJob struct {
	config  prompts.ConfigID
	prompt  string
	context string
	extract bool
	// publish is set for modes whose output may become a public page.
	publish *publish.Request
}

// Insight is one element of an extract result.
type Insight struct {
	Text    string `json:"text"`
	Ref     string `json:"ref"`
	Insight string `json:"insight"`
}

type toolsResponse struct {
	Data toolsData `json:"data"`
}

type toolsData struct {
	Content    any           `json:"content"`
	PublicPage *publish.Page `json:"publicPage"`
}

// errBadPayload carries the 400 message of a rejected payload.
type errBadPayload struct{ msg string }

func (e errBadPayload) Error() string { return e.msg }

// toolsHandler handles POST /api/tools.
func (s *Server) toolsHandler(w http.ResponseWriter, r *http.Request) {
	var req toolsRequest
	if err := decodeBody(r, &req); err != nil {
		// A body without a usable mode is reported as such
		req = toolsRequest{}
	}
	if req.Mode == "" {
		writeError(w, http.StatusBadRequest, msgMissingMode)
		return
	}

	user := userID(r)
	if !s.checkRateLimit(w, r, user) {
		return
	}
	if !s.generator.Configured() {
		writeError(w, http.StatusServiceUnavailable, msgToolsNotConfigured)
		return
	}

	ctx := jobtype.WithJobType(r.Context(), jobtype.Tool)
	job, err := s.buildToolJob(ctx, req, user)
	if err != nil {
		var bad errBadPayload
		if errors.As(err, &bad) {
			writeError(w, http.StatusBadRequest, bad.msg)
			return
		}
		s.logger.Error("failed to prepare tool request", "mode", req.Mode, "error", err)
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	prompt := prompts.Resolve(job.config, nil)
	content, err := s.generator.GenerateSynthesis(ctx, prompt, job.prompt, job.context, nil)
	if err != nil {
		status, msg := generationError(err)
		s.logger.Warn("tool generation failed",
			"mode", req.Mode,
			"user_id", user,
			"request_id", requestID(ctx),
			"error", err,
		)
		writeError(w, status, msg)
		return
	}

	var page *publish.Page
	if job.publish != nil {
		job.publish.Content = content
		page = s.publisher.FindOrCreate(ctx, *job.publish)
	}

	var out any = content
	if job.extract {
		insights, err := parseInsights(content)
		if err != nil {
			s.logger.Error("failed to parse extraction result", "error", err)
			writeError(w, http.StatusInternalServerError, msgExtractFailed)
			return
		}
		out = insights
	}

	writeJSON(w, http.StatusOK, toolsResponse{Data: toolsData{Content: out, PublicPage: page}})
}

// buildToolJob validates the payload of mode and assembles its prompt and context.
func (s *Server) buildToolJob(ctx context.Context, req toolsRequest, user string) (toolJob, error) {
	p := payload{fields: req.Payload, max: s.cfg.Tools.GetMaxFieldLength()}
	fieldsErr := errBadPayload{fmt.Sprintf("Payload fields must be strings up to %d characters.", p.max)}

	switch req.Mode {
	case modeWriterDraft:
		title, ok1 := p.str("title", p.max)
		body, ok2 := p.str("body", p.max)
		if !ok1 || !ok2 {
			return toolJob{}, fieldsErr
		}
		if title == "" {
			title = "Untitled"
		}
		return toolJob{
			config:  prompts.WriterDraft,
			prompt:  "Write a structured draft titled \"" + title + "\".",
			context: "Topic/body notes:\n" + body,
		}, nil

	case modeWriterCitations:
		body, ok := p.str("body", p.max)
		if !ok {
			return toolJob{}, fieldsErr
		}
		return toolJob{
			config:  prompts.WriterCitations,
			prompt:  "Insert verse-style citations into the given draft where appropriate.",
			context: body,
		}, nil

	case modeSimplify:
		input, ok := p.str("input", p.max)
		if !ok {
			return toolJob{}, fieldsErr
		}
		level, ok1 := p.str("level", maxLevelLength)
		lang, ok2 := p.str("targetLanguage", maxLanguageLength)
		if !ok1 || !ok2 {
			return toolJob{}, errBadPayload{msgInvalidSimplify}
		}
		language := publish.NormalizeLanguage(lang)
		prompt := fmt.Sprintf("Simplify the given passage into %s at %s level while preserving philosophical meaning.\n"+
			"Return:\n- A short heading\n- 1 concise explanation paragraph\n- 3 bullet points\n- Optional glossary (max 3 terms if needed).",
			language, normalizeLevel(level))
		return toolJob{
			config:  prompts.Simplify,
			prompt:  prompt,
			context: input,
			publish: &publish.Request{Mode: publish.ModeSimplify, Language: language, SourceQuery: input},
		}, nil

	case modeTranslate:
		input, ok := p.str("input", p.max)
		if !ok {
			return toolJob{}, fieldsErr
		}
		lang, ok := p.str("targetLanguage", maxLanguageLength)
		if !ok {
			return toolJob{}, errBadPayload{msgInvalidTranslate}
		}
		language := publish.NormalizeLanguage(lang)
		prompt := fmt.Sprintf("Translate the given passage into %s while preserving meaning.\n"+
			"Return:\n- Original line (if provided)\n- Direct translation\n- Easy explanation in %s\n"+
			"- Note on key Sanskrit terms that should remain untranslated, if any.",
			language, language)
		return toolJob{
			config:  prompts.Translate,
			prompt:  prompt,
			context: input,
			publish: &publish.Request{Mode: publish.ModeTranslate, Language: language, SourceQuery: input},
		}, nil

	case modeExtract:
		question, ok := p.str("question", p.max)
		if !ok {
			return toolJob{}, fieldsErr
		}
		textIDs, ok1 := p.list("textIds")
		datasetID, ok2 := p.str("datasetId", p.max)
		if !ok1 || !ok2 {
			return toolJob{}, fieldsErr
		}
		if len(textIDs) == 0 && datasetID == "" {
			return toolJob{}, errBadPayload{msgExtractNeedsSource}
		}
		extractCtx, err := s.extractionContext(ctx, question, textIDs, datasetID, user)
		if err != nil {
			return toolJob{}, err
		}
		return toolJob{
			config:  prompts.Extract,
			prompt:  extractPrompt,
			context: extractCtx,
			extract: true,
		}, nil

	case modeReference:
		style, ok1 := p.str("style", p.max)
		source, ok2 := p.str("source", p.max)
		if !ok1 || !ok2 {
			return toolJob{}, fieldsErr
		}
		if strings.TrimSpace(style) == "" {
			style = defaultCitationStyle
		}
		return toolJob{
			config:  prompts.Synthesis,
			prompt:  fmt.Sprintf("Generate citation output in %s style for source: %s", style, source),
			context: "Return only the final citation line.",
		}, nil
	}

	return toolJob{}, errBadPayload{msgUnsupportedMode}
}

// extractionContext lists the question, the verses of each requested text and
// the items of the caller's dataset. Unreadable sources are skipped.
func (s *Server) extractionContext(ctx context.Context, question string, textIDs []string, datasetID, user string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Question: " + question + "\n\nSources:")

	if len(textIDs) > 0 {
		texts, err := s.texts.GetTextsByIDs(ctx, textIDs)
		if err != nil {
			return "", fmt.Errorf("failed to load texts for extraction: %w", err)
		}
		for _, text := range texts {
			verses, err := s.texts.GetVersesByText(ctx, text.ID, maxVersesPerText)
			if err != nil {
				s.logger.Warn("failed to fetch verses for extraction", "text_id", text.ID, "error", err)
				continue
			}
			fmt.Fprintf(&sb, "\n\nText: %s (%s)", text.TitleEn, text.Category)
			for _, v := range verses {
				fmt.Fprintf(&sb, "\n- %s: %s", v.Ref, v.TranslationEn)
				if v.Sanskrit != "" {
					fmt.Fprintf(&sb, " (Sanskrit: %s)", v.Sanskrit)
				}
			}
		}
	}

	if datasetID != "" {
		ds, err := s.datasets.GetDataset(ctx, datasetID, user)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.logger.Warn("extraction dataset not found", "dataset_id", datasetID, "user_id", user)
		case err != nil:
			s.logger.Warn("failed to fetch extraction dataset", "dataset_id", datasetID, "error", err)
		default:
			fmt.Fprintf(&sb, "\n\nUser Uploaded Data (Dataset ID: %s):", datasetID)
			items := ds.Data
			if len(items) > maxDatasetItems {
				items = items[:maxDatasetItems]
			}
			for _, item := range items {
				sb.WriteString("\n- ")
				sb.Write(compactJSON(item))
			}
		}
	}

	return sb.String(), nil
}

// parseInsights decodes an extract response, tolerating a markdown code fence.
func parseInsights(content string) ([]Insight, error) {
	raw := stripCodeFence(content)

	var items []map[string]any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("extraction result is not a JSON array: %w", err)
	}

	insights := make([]Insight, 0, len(items))
	for i, item := range items {
		text, ok1 := item["text"].(string)
		ref, ok2 := item["ref"].(string)
		insight, ok3 := item["insight"].(string)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("extraction item %d lacks string text, ref or insight", i)
		}
		insights = append(insights, Insight{Text: text, Ref: ref, Insight: insight})
	}
	return insights, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:] // language tag
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

func normalizeLevel(level string) string {
	level = strings.TrimSpace(level)
	if validLevels[level] {
		return level
	}
	return defaultLevel
}

// payload reads bounded fields of a tool payload. Absent or null fields read
// as empty.
type payload struct {
	fields map[string]json.RawMessage
	max    int
}

func (p payload) str(key string, limit int) (string, bool) {
	raw, ok := p.fields[key]
	if !ok || string(raw) == "null" {
		return "", true
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	if utf8.RuneCountInString(v) > limit {
		return "", false
	}
	return v, true
}

func (p payload) list(key string) ([]string, bool) {
	raw, ok := p.fields[key]
	if !ok || string(raw) == "null" {
		return nil, true
	}
	var v []string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return v, true
}
