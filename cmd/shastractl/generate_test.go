package main

import (
	"context"
	"encoding/json"
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

func TestGenerate_Synthesis(t *testing.T) {
	cli := newTestCLI(t)
	cli.gen.On("Configured").Return(true)
	var jt jobtype.JobType
	cli.gen.On("GenerateSynthesis", mock.Anything, testutil.PromptWithID(prompts.Synthesis),
		"What is dharma?", "1. Bhagavad Gita: duty", []gemini.Message(nil)).
		Run(func(args mock.Arguments) { jt = jobtype.FromContext(args.Get(0).(context.Context)) }).
		Return("Dharma is duty.", nil).Once()

	out, err := cli.run("generate", "synthesis", "--query", "What is dharma?", "--context", "1. Bhagavad Gita: duty")

	require.NoError(t, err)
	assert.Equal(t, "Dharma is duty.\n", out)
	assert.Equal(t, jobtype.CLI, jt)
	cli.gen.AssertExpectations(t)
}

func TestGenerate_ContextualJSON(t *testing.T) {
	cli := newTestCLI(t)
	cli.gen.On("Configured").Return(true)
	cli.gen.On("GenerateContextual", mock.Anything, mock.MatchedBy(func(p prompts.Resolved) bool {
		return p.ID == prompts.ReaderChat && strings.Contains(p.SystemPrompt, "Current verse: 2.47")
	}), "Explain this verse").Return("Act without attachment.", nil).Once()

	out, err := cli.run("generate", "readerChat", "--var", "verse_ref=2.47", "--query", "Explain this verse", "-o", "json")
	require.NoError(t, err)

	var res generateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "readerChat", res.ConfigID)
	assert.Equal(t, "gemini-test", res.Model)
	assert.Equal(t, "cli", res.JobType)
	assert.Equal(t, "Act without attachment.", res.Response)
	assert.Empty(t, res.Error)
	cli.gen.AssertExpectations(t)
}

func TestGenerate_BackendError(t *testing.T) {
	cli := newTestCLI(t)
	cli.gen.On("Configured").Return(true)
	cli.gen.On("GenerateSynthesis", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", gemini.ErrRateLimitExceeded)

	out, err := cli.run("generate", "synthesis", "--query", "q", "--context", "c", "-o", "json")

	require.Error(t, err)
	assert.ErrorIs(t, err, gemini.ErrRateLimitExceeded)
	var res generateResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, string(gemini.KindRateLimitExceeded), res.ErrorKind)
	assert.Equal(t, gemini.MsgRateLimitExceeded, res.Error)
}

func TestGenerate_Validation(t *testing.T) {
	cli := newTestCLI(t)

	_, err := cli.run("generate", "synthesis")
	assert.ErrorContains(t, err, "--query is required")

	_, err = cli.run("generate", "synthesis", "--query", "   ")
	assert.ErrorContains(t, err, "--query is required")

	_, err = cli.run("generate", "unknown", "--query", "q")
	assert.ErrorIs(t, err, prompts.ErrInvalidPromptConfig)

	// Nothing above needed the backend
	assert.Zero(t, cli.setups)
	cli.gen.AssertNotCalled(t, "Configured")
}

func TestGenerate_NotConfigured(t *testing.T) {
	cli := newTestCLI(t)
	cli.gen.On("Configured").Return(false)

	_, err := cli.run("generate", "synthesis", "--query", "q")

	assert.ErrorIs(t, err, errNotConfigured)
	cli.gen.AssertNotCalled(t, "GenerateContextual", mock.Anything, mock.Anything, mock.Anything)
}
