package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runixer/shastrarthi/internal/prompts"
)

type promptSummary struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Temperature     float32 `json:"temperature"`
	MaxOutputTokens int32   `json:"max_output_tokens"`
	Boundaries      int     `json:"boundaries"`
}

func newPromptsCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect the prompt registry",
	}
	cmd.AddCommand(newPromptsListCmd(c), newPromptsRenderCmd(c))
	return cmd
}

func newPromptsListCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every prompt configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var summaries []promptSummary
			for _, id := range prompts.IDs() {
				cfg, ok := prompts.Lookup(id)
				if !ok {
					continue
				}
				summaries = append(summaries, promptSummary{
					ID:              id.String(),
					Name:            cfg.Name,
					Temperature:     cfg.Temperature,
					MaxOutputTokens: cfg.MaxOutputTokens,
					Boundaries:      len(cfg.Boundaries),
				})
			}

			if c.json() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"count": len(summaries),
					"data":  summaries,
				})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTEMPERATURE\tMAX TOKENS")
			for _, s := range summaries {
				fmt.Fprintf(tw, "%s\t%s\t%.1f\t%d\n", s.ID, s.Name, s.Temperature, s.MaxOutputTokens)
			}
			return tw.Flush()
		},
	}
}

func newPromptsRenderCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <config-id>",
		Short: "Render a prompt's system instruction",
		Long: `Resolve a prompt configuration against the given variables and print the
system instruction exactly as it is sent to the model. Missing variables
resolve to empty strings; values are sanitized the same way request values are.

Example:
  shastractl prompts render readerChat --var text_name="Bhagavad Gita" --var verse_ref=2.47`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vars, err := parseVars(mustGetStringArray(cmd, "var"))
			if err != nil {
				return err
			}
			resolved, err := prompts.ResolveString(args[0], vars)
			if err != nil {
				return err
			}

			if c.json() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"id":                 resolved.ID,
					"system_instruction": resolved.SystemInstruction(),
					"temperature":        resolved.Temperature,
					"max_output_tokens":  resolved.MaxOutputTokens,
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resolved.SystemInstruction())
			return err
		},
	}
	cmd.Flags().StringArray("var", nil, "Template variable as key=value (repeatable)")
	return cmd
}
