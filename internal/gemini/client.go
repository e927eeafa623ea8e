// Package gemini wraps the Gemini generateContent API behind the two
// generation modes the service uses and owns the generation error taxonomy.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/runixer/shastrarthi/internal/agentlog"
	"github.com/runixer/shastrarthi/internal/auth"
	"github.com/runixer/shastrarthi/internal/config"
	"github.com/runixer/shastrarthi/internal/jobtype"
	"github.com/runixer/shastrarthi/internal/prompts"
)

const (
	// MaxHistoryMessages is how many trailing history entries reach the backend.
	MaxHistoryMessages = 8

	roleUser  = "user"
	roleModel = "model"
)

// Message is one prior conversation turn. Role is "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	// Configured reports whether an API key is present.
	Configured() bool
	Model() string
	// GenerateContextual answers query under a verse-context prompt.
	GenerateContextual(ctx context.Context, prompt prompts.Resolved, query string) (string, error)
	// GenerateSynthesis answers query over candidate texts and prior turns.
	GenerateSynthesis(ctx context.Context, prompt prompts.Resolved, query, candidateContext string, history []Message) (string, error)
}

// generator is the subset of *genai.Models used by the client.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type clientImpl struct {
	models  generator
	model   string
	timeout time.Duration
	logger  *slog.Logger
	audit   *agentlog.Logger
}

// NewClient creates a Gemini client. An empty API key yields a client that
// reports Configured() == false and fails every call with ErrNotConfigured.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.GenerationConfig, audit *agentlog.Logger) (Client, error) {
	clientLogger := logger.With("component", "gemini")

	var models generator
	if cfg.APIKey != "" {
		cc := &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
		}
		gc, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, fmt.Errorf("failed to create genai client: %w", err)
		}
		models = gc.Models
	} else {
		clientLogger.Warn("Gemini API key is not set, generation is disabled")
	}

	return newClient(clientLogger, cfg, models, audit), nil
}

func newClient(logger *slog.Logger, cfg config.GenerationConfig, models generator, audit *agentlog.Logger) *clientImpl {
	return &clientImpl{
		models:  models,
		model:   cfg.Model,
		timeout: cfg.GetTimeout(),
		logger:  logger,
		audit:   audit,
	}
}

func (c *clientImpl) Configured() bool {
	return c.models != nil
}

func (c *clientImpl) Model() string {
	return c.model
}

func (c *clientImpl) GenerateContextual(ctx context.Context, prompt prompts.Resolved, query string) (string, error) {
	query = prompts.Sanitize(query)
	contents := []*genai.Content{userContent(query)}
	return c.generate(ctx, prompt, query, contents, map[string]any{
		"mode": "contextual",
	})
}

func (c *clientImpl) GenerateSynthesis(ctx context.Context, prompt prompts.Resolved, query, candidateContext string, history []Message) (string, error) {
	query = prompts.Sanitize(query)
	candidateContext = prompts.Sanitize(candidateContext)

	contents := historyContents(history)
	contents = append(contents, userContent(SynthesisTurn(query, candidateContext)))
	return c.generate(ctx, prompt, query, contents, map[string]any{
		"mode":          "synthesis",
		"history_count": len(contents) - 1,
		"context_chars": len(candidateContext),
	})
}

// SynthesisTurn renders the final user turn of a synthesis request.
func SynthesisTurn(query, candidateContext string) string {
	return strings.Join([]string{
		"User query: " + query,
		"Candidate texts:",
		candidateContext,
		"Output format:",
		"- One short overview paragraph",
		"- 3 bullet points with cross-text insights",
		"- One suggested next step for study",
	}, "\n")
}

func (c *clientImpl) generate(ctx context.Context, prompt prompts.Resolved, query string, contents []*genai.Content, meta map[string]any) (string, error) {
	startTime := time.Now()
	jt := jobtype.FromContext(ctx).String()

	if !c.Configured() {
		c.finish(ctx, prompt, jt, query, "", meta, startTime, nil, ErrNotConfigured)
		return "", ErrNotConfigured
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(prompt.Temperature),
		MaxOutputTokens: prompt.MaxOutputTokens,
	}
	if si := prompt.SystemInstruction(); si != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: si}},
		}
	}

	c.logger.Info("Sending request to Gemini",
		"model", c.model,
		"config_id", prompt.ID,
		"job_type", jt,
		"content_count", len(contents),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.models.GenerateContent(callCtx, c.model, contents, genCfg)
	if err != nil {
		gerr := classify(err)
		c.logger.Error("Gemini request failed",
			"model", c.model,
			"config_id", prompt.ID,
			"kind", gerr.Kind,
			"status", gerr.Status,
			"error", err,
		)
		c.finish(ctx, prompt, jt, query, "", meta, startTime, nil, gerr)
		return "", gerr
	}

	text := firstCandidateText(resp)
	c.finish(ctx, prompt, jt, query, text, meta, startTime, resp.UsageMetadata, nil)
	return text, nil
}

// finish records metrics and the audit entry for a completed call.
func (c *clientImpl) finish(ctx context.Context, prompt prompts.Resolved, jt, query, text string, meta map[string]any,
	startTime time.Time, usage *genai.GenerateContentResponseUsageMetadata, gerr *Error) {
	duration := time.Since(startTime)

	var promptTokens, completionTokens int
	if usage != nil {
		promptTokens = int(usage.PromptTokenCount)
		completionTokens = int(usage.CandidatesTokenCount)
	}

	var kind Kind
	entry := agentlog.Entry{
		ConfigID:         prompt.ID.String(),
		JobType:          jt,
		Model:            c.model,
		Query:            query,
		Response:         text,
		Metadata:         meta,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		DurationMs:       int(duration.Milliseconds()),
		Success:          gerr == nil,
	}
	if gerr != nil {
		kind = gerr.Kind
		entry.ErrorKind = string(gerr.Kind)
		entry.ErrorMessage = gerr.Message
	}
	if userID, ok := auth.UserFromContext(ctx); ok {
		entry.UserID = userID
	}

	RecordLLMRequest(c.model, jt, duration.Seconds(), kind, promptTokens, completionTokens)
	c.audit.Log(ctx, entry)

	if gerr == nil {
		c.logger.Debug("Gemini response received",
			"model", c.model,
			"config_id", prompt.ID,
			"response_chars", len(text),
			"prompt_tokens", promptTokens,
			"completion_tokens", completionTokens,
			"duration_ms", duration.Milliseconds(),
		)
	}
}

func userContent(text string) *genai.Content {
	return &genai.Content{
		Role:  roleUser,
		Parts: []*genai.Part{{Text: text}},
	}
}

// historyContents keeps the last MaxHistoryMessages non-empty turns.
func historyContents(history []Message) []*genai.Content {
	if len(history) > MaxHistoryMessages {
		history = history[len(history)-MaxHistoryMessages:]
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		text := prompts.Sanitize(msg.Content)
		if text == "" {
			continue
		}
		role := roleUser
		if msg.Role == "assistant" || msg.Role == roleModel {
			role = roleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: text}},
		})
	}
	return contents
}

// firstCandidateText returns the text parts of the first candidate, or "".
func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}
