// Package testutil provides centralized test mocks, fixtures, and helpers.
// All test files should import mocks from here instead of defining their own.
package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/runixer/shastrarthi/internal/gemini"
	"github.com/runixer/shastrarthi/internal/prompts"
)

// MockGeminiClient implements gemini.Client for tests.
type MockGeminiClient struct {
	mock.Mock
}

var _ gemini.Client = (*MockGeminiClient)(nil)

func (m *MockGeminiClient) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockGeminiClient) Model() string {
	return "gemini-test"
}

func (m *MockGeminiClient) GenerateContextual(ctx context.Context, prompt prompts.Resolved, query string) (string, error) {
	args := m.Called(ctx, prompt, query)
	return args.String(0), args.Error(1)
}

func (m *MockGeminiClient) GenerateSynthesis(ctx context.Context, prompt prompts.Resolved, query, candidateContext string, history []gemini.Message) (string, error) {
	args := m.Called(ctx, prompt, query, candidateContext, history)
	return args.String(0), args.Error(1)
}

// PromptWithID matches a prompts.Resolved argument by configuration id.
func PromptWithID(id prompts.ConfigID) interface{} {
	return mock.MatchedBy(func(p prompts.Resolved) bool {
		return p.ID == id
	})
}
