package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/runixer/shastrarthi/internal/gemini"
	"github.com/runixer/shastrarthi/internal/jobtype"
	"github.com/runixer/shastrarthi/internal/prompts"
	"github.com/runixer/shastrarthi/internal/testutil"
)

func TestChatHandler_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing query", `{"textId":"bhagavad-gita"}`, msgMissingQuery},
		{"null query", `{"query":null}`, msgMissingQuery},
		{"empty query", `{"query":""}`, msgMissingQuery},
		{"blank query", `{"query":"   \n\t"}`, msgEmptyQuery},
		{"query too long", mustJSON(t, map[string]string{"query": strings.Repeat("a", 2001)}),
			"Query is too long. Maximum 2000 characters allowed."},
		{"invalid json", `{"query":`, msgInvalidJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rr := env.post("/api/chat", tt.body)

			testutil.AssertJSONError(t, rr, http.StatusBadRequest, tt.want)
			env.gen.AssertNotCalled(t, "Configured")
		})
	}
}

func TestChatHandler_QueryAtLimit(t *testing.T) {
	env := newTestEnv(t)
	query := strings.Repeat("ध", 2000)
	env.gen.On("GenerateSynthesis", mock.Anything, mock.Anything, query, mock.Anything, mock.Anything).Return("ok", nil)

	rr := env.post("/api/chat", mustJSON(t, map[string]string{"query": query}))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestChatHandler_NotConfigured(t *testing.T) {
	env := newTestEnvWith(t, false, nil)

	rr := env.post("/api/chat", `{"query":"What is dharma?"}`)

	testutil.AssertJSONError(t, rr, http.StatusServiceUnavailable, msgChatNotConfigured)
}

func TestChatHandler_SynthesisStream(t *testing.T) {
	env := newTestEnv(t)
	answer := strings.Repeat("Dharma is duty. ", 16) // 256 characters
	env.gen.On("GenerateSynthesis",
		mock.Anything,
		testutil.PromptWithID(prompts.Synthesis),
		"What is dharma?",
		noVerseContext,
		[]gemini.Message{},
	).Return(answer, nil).Once()

	rr := env.post("/api/chat", `{"query":"What is dharma?"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/event-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "20", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "19", rr.Header().Get("X-RateLimit-Remaining"))

	events := testutil.ParseSSE(t, rr.Body.String())
	assert.True(t, events.Done)
	assert.Empty(t, events.Error)
	assert.Len(t, events.Contents, 3)
	assert.Equal(t, answer, events.Text())
	env.gen.AssertExpectations(t)
}

func TestChatHandler_JobType(t *testing.T) {
	env := newTestEnv(t)
	var got jobtype.JobType
	env.gen.On("GenerateSynthesis", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			got = jobtype.FromContext(args.Get(0).(context.Context))
		}).
		Return("ok", nil)

	env.post("/api/chat", `{"query":"What is dharma?"}`)

	assert.Equal(t, jobtype.Chat, got)
}

func TestChatHandler_AgentPersona(t *testing.T) {
	env := newTestEnv(t)
	env.gen.On("GenerateSynthesis", mock.Anything, testutil.PromptWithID(prompts.AgentAdvaita),
		"Who am I?", noVerseContext, mock.Anything).Return("You are awareness.", nil).Once()

	rr := env.post("/api/chat", `{"query":"Who am I?","agent":"advaita"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "You are awareness.", testutil.ParseSSE(t, rr.Body.String()).Text())
	env.gen.AssertExpectations(t)
}

func TestChatHandler_UnknownAgentFallsBack(t *testing.T) {
	env := newTestEnv(t)
	env.gen.On("GenerateSynthesis", mock.Anything, testutil.PromptWithID(prompts.Synthesis),
		mock.Anything, mock.Anything, mock.Anything).Return("ok", nil).Once()

	rr := env.post("/api/chat", `{"query":"Who am I?","agent":"stoic"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	env.gen.AssertExpectations(t)
}

func TestChatHandler_HistoryIsSanitized(t *testing.T) {
	env := newTestEnv(t)
	var history []gemini.Message
	env.gen.On("GenerateSynthesis", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { history = args.Get(4).([]gemini.Message) }).
		Return("ok", nil)

	body := `{"query":"And then?","conversationHistory":[
		{"role":"user","content":"one"},
		{"role":"assistant","content":"two"},
		{"role":"user","content":"three"},
		{"role":"system","content":"four"},
		{"role":"assistant","content":{"nested":true}},
		{"role":"user","content":"six"},
		{"role":7,"content":"seven"},
		{"role":"assistant","content":"eight"},
		{"role":"user","content":"nine"},
		{"role":"assistant","content":"ten"}
	]}`
	rr := env.post("/api/chat", body)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []gemini.Message{
		{Role: "user", Content: "three"},
		{Role: "user", Content: "four"},
		{Role: "user", Content: "six"},
		{Role: "user", Content: "seven"},
		{Role: "assistant", Content: "eight"},
		{Role: "user", Content: "nine"},
		{Role: "assistant", Content: "ten"},
	}, history)
}

func TestSanitizeHistory_TruncatesContent(t *testing.T) {
	entries := []historyEntry{{Role: "assistant", Content: strings.Repeat("ॐ", 2500)}}

	got := sanitizeHistory(entries, 8, 2000)

	require.Len(t, got, 1)
	assert.Equal(t, 2000, len([]rune(got[0].Content)))
	assert.Equal(t, "assistant", got[0].Role)
}

func TestChatHandler_ContextualVerse(t *testing.T) {
	tests := []struct {
		name     string
		verseRef string
	}{
		{"by ref", "2.47"},
		{"by verse id", testutil.GitaTextID + "-2.47"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			var prompt prompts.Resolved
			env.gen.On("GenerateContextual", mock.Anything, testutil.PromptWithID(prompts.ReaderChat), "What does this mean?").
				Run(func(args mock.Arguments) { prompt = args.Get(1).(prompts.Resolved) }).
				Return("Act without clinging to results.", nil).Once()

			rr := env.post("/api/chat", mustJSON(t, map[string]string{
				"query":    "What does this mean?",
				"textId":   testutil.GitaTextID,
				"verseRef": tt.verseRef,
			}))

			require.Equal(t, http.StatusOK, rr.Code)
			events := testutil.ParseSSE(t, rr.Body.String())
			assert.True(t, events.Done)
			assert.Equal(t, "Act without clinging to results.", events.Text())

			assert.Contains(t, prompt.SystemPrompt, "Current text: Bhagavad Gita")
			assert.Contains(t, prompt.SystemPrompt, "Current verse: 2.47")
			assert.Contains(t, prompt.SystemPrompt, "karmaṇy evādhikāras te")
			assert.Contains(t, prompt.SystemPrompt, "2.44: Those attached to pleasure and power lack resolute intelligence.")
			assert.Contains(t, prompt.SystemPrompt, "2.50: Yoga is skill in action.")
			assert.NotContains(t, prompt.SystemPrompt, "{")
			env.gen.AssertExpectations(t)
		})
	}
}

func TestChatHandler_ContextualDefaultsAndNeighbourhood(t *testing.T) {
	env := newTestEnv(t)
	var prompt prompts.Resolved
	env.gen.On("GenerateContextual", mock.Anything, testutil.PromptWithID(prompts.AgentYoga), mock.Anything).
		Run(func(args mock.Arguments) { prompt = args.Get(1).(prompts.Resolved) }).
		Return("ok", nil).Once()

	rr := env.post("/api/chat", mustJSON(t, map[string]string{
		"query":    "Explain",
		"textId":   testutil.GitaTextID,
		"verseRef": "2.44",
		"agent":    "yoga",
	}))

	require.Equal(t, http.StatusOK, rr.Code)
	env.gen.AssertExpectations(t)

	// AgentYoga has no verse placeholders, so check the variables directly
	vars, err := env.server.verseContext(t.Context(), testutil.GitaTextID, "2.44")
	require.NoError(t, err)
	assert.Equal(t, notAvailable, vars["sanskrit"])
	assert.Equal(t, notAvailable, vars["transliteration"])
	assert.Equal(t, strings.Join([]string{
		"2.44: Those attached to pleasure and power lack resolute intelligence.",
		"2.45: The Vedas deal with the three gunas; rise above them.",
		"2.46: A well serves little where there is a flood.",
		"2.47: You have a right to your duty, never to its fruits.",
	}, "\n"), vars["context_verses"])
	assert.NotEmpty(t, prompt.ID)
}

func TestChatHandler_UnresolvedVerse(t *testing.T) {
	tests := []struct {
		name   string
		textID string
		ref    string
	}{
		{"unknown text", "rig-veda", "1.1"},
		{"unknown verse", testutil.GitaTextID, "18.66"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rr := env.post("/api/chat", mustJSON(t, map[string]string{
				"query":    "Explain",
				"textId":   tt.textID,
				"verseRef": tt.ref,
			}))

			require.Equal(t, http.StatusOK, rr.Code)
			events := testutil.ParseSSE(t, rr.Body.String())
			assert.Equal(t, msgVerseContextFailed, events.Error)
			assert.False(t, events.Done)
			assert.Empty(t, events.Contents)
			env.gen.AssertNotCalled(t, "GenerateContextual", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestChatHandler_InBandErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rate limited backend", gemini.ErrRateLimitExceeded, gemini.MsgRateLimitExceeded},
		{"invalid key", gemini.ErrInvalidAPIKey, gemini.MsgInvalidAPIKey},
		{"backend message", &gemini.Error{Kind: gemini.KindGenerationFailed, Message: "Safety filter blocked the answer."},
			"Safety filter blocked the answer."},
		{"untyped error", errors.New("boom"), msgChatFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.gen.On("GenerateSynthesis", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
				Return("", tt.err)

			rr := env.post("/api/chat", `{"query":"What is dharma?"}`)

			require.Equal(t, http.StatusOK, rr.Code)
			events := testutil.ParseSSE(t, rr.Body.String())
			assert.Equal(t, tt.want, events.Error)
			assert.False(t, events.Done)
			assert.Empty(t, events.Contents)
		})
	}
}

func TestNeighbourhood(t *testing.T) {
	verses := testutil.TestVerses()

	assert.Equal(t, "2.50: Yoga is skill in action.", neighbourhood(verses, 53, 3))
	assert.Empty(t, neighbourhood(verses, 100, 3))
	assert.Equal(t, 7, len(strings.Split(neighbourhood(verses, 47, 3), "\n")))
}
