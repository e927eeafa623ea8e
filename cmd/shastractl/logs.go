package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runixer/shastrarthi/internal/storage"
)

const defaultLogLimit = 20

func newLogsCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Read the generation audit log",
		Long: `The audit log is written only while server.debug_mode is enabled.`,
	}
	cmd.AddCommand(newLogsListCmd(c))
	return cmd
}

func newLogsListCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent generation calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := mustGetInt(cmd, "limit")
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			filter := storage.GenerationLogFilter{
				UserID:   mustGetString(cmd, "user"),
				ConfigID: mustGetString(cmd, "config-id"),
			}
			if mustGetBool(cmd, "failed") {
				failed := false
				filter.Success = &failed
			}

			svc, err := getServices(cmd, c)
			if err != nil {
				return err
			}
			logs, err := svc.Store.GetGenerationLogs(cmd.Context(), filter, limit)
			if err != nil {
				return err
			}

			if c.json() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"type":  "generation_logs",
					"count": len(logs),
					"data":  logs,
				})
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Generation logs: %d\n", len(logs))
			if len(logs) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tCONFIG\tJOB\tMODEL\tTOKENS\tDURATION\tSTATUS")
			for _, l := range logs {
				status := "ok"
				if !l.Success {
					status = l.ErrorKind
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%dms\t%s\n",
					l.CreatedAt.Format("2006-01-02 15:04:05"), l.ConfigID, l.JobType, l.Model,
					l.PromptTokens, l.CompletionTokens, l.DurationMs, status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", defaultLogLimit, "Maximum number of entries")
	cmd.Flags().String("user", "", "Only entries for this user id")
	cmd.Flags().String("config-id", "", "Only entries for this prompt config")
	cmd.Flags().Bool("failed", false, "Only failed calls")
	return cmd
}
