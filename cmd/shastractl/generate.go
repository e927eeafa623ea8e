package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/runixer/shastrarthi/internal/gemini"
	"github.com/runixer/shastrarthi/internal/jobtype"
	"github.com/runixer/shastrarthi/internal/prompts"
)

var errNotConfigured = errors.New("generation backend is not configured (set SHASTRARTHI_GEMINI_API_KEY)")

type generateResult struct {
	ConfigID   string `json:"config_id"`
	Model      string `json:"model"`
	JobType    string `json:"job_type"`
	Response   string `json:"response"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
}

func newGenerateCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <config-id>",
		Short: "Run one generation against the configured backend",
		Long: `Resolve a prompt configuration and send a single generation request.

With --context the request is a synthesis turn (query plus candidate context);
without it the query is sent as is under the resolved system instruction.
Calls are tagged with the "cli" job type in metrics and the audit log.

Example:
  shastractl generate synthesis --query "What is dharma?" --context "1. Gita: duty"
  shastractl generate readerChat --var verse_ref=2.47 --query "Explain this verse"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := mustGetString(cmd, "query")
			candidateContext := mustGetString(cmd, "context")
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("--query is required")
			}

			vars, err := parseVars(mustGetStringArray(cmd, "var"))
			if err != nil {
				return err
			}
			resolved, err := prompts.ResolveString(args[0], vars)
			if err != nil {
				return err
			}

			svc, err := getServices(cmd, c)
			if err != nil {
				return err
			}
			if !svc.Generator.Configured() {
				return errNotConfigured
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			ctx = jobtype.WithJobType(ctx, jobtype.CLI)

			start := time.Now()
			text, genErr := generate(ctx, svc.Generator, resolved, query, candidateContext)
			result := generateResult{
				ConfigID:   resolved.ID.String(),
				Model:      svc.Generator.Model(),
				JobType:    jobtype.CLI.String(),
				Response:   text,
				DurationMs: time.Since(start).Milliseconds(),
			}
			if genErr != nil {
				result.Error = genErr.Error()
				if ge, ok := gemini.AsError(genErr); ok {
					result.ErrorKind = string(ge.Kind)
					result.Error = ge.Message
				}
			}

			if c.json() {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else if genErr == nil {
				fmt.Fprintln(cmd.OutOrStdout(), text)
			}
			if genErr != nil {
				return fmt.Errorf("generation failed: %w", genErr)
			}
			return nil
		},
	}
	cmd.Flags().String("query", "", "User query (required)")
	cmd.Flags().String("context", "", "Candidate context for a synthesis turn")
	cmd.Flags().StringArray("var", nil, "Template variable as key=value (repeatable)")
	return cmd
}

func generate(ctx context.Context, client gemini.Client, prompt prompts.Resolved, query, candidateContext string) (string, error) {
	if candidateContext == "" {
		return client.GenerateContextual(ctx, prompt, query)
	}
	return client.GenerateSynthesis(ctx, prompt, query, candidateContext, nil)
}
