package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runixer/shastrarthi/internal/publish"
	"github.com/runixer/shastrarthi/internal/storage"
)

func newPagesCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "Look up published explore pages",
	}
	cmd.AddCommand(newPagesFindCmd(c), newPagesShowCmd(c))
	return cmd
}

func newPagesFindCmd(c *ctl) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find the page already published for a source",
		Long: `Run the same lookup the tools endpoint performs before publishing: the
source is whitespace-collapsed and compared against the newest pages for the
mode and language.

Example:
  shastractl pages find --mode translate --language Hindi --source "tat tvam asi"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := publish.Mode(strings.TrimSpace(mustGetString(cmd, "mode")))
			language := mustGetString(cmd, "language")
			source := mustGetString(cmd, "source")

			if mode != publish.ModeSimplify && mode != publish.ModeTranslate {
				return fmt.Errorf("invalid --mode %q (want simplify or translate)", mode)
			}
			if strings.TrimSpace(source) == "" {
				return fmt.Errorf("--source is required")
			}

			svc, err := getServices(cmd, c)
			if err != nil {
				return err
			}
			page, err := svc.Publisher.Find(cmd.Context(), mode, language, source)
			if err != nil {
				return err
			}

			if c.json() {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"found": page != nil,
					"page":  page,
				})
			}
			if page == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "No %s page in %s for this source\n", mode, publish.NormalizeLanguage(language))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Slug:  %s\nTitle: %s\nURL:   %s\n", page.Slug, page.Title, page.URL)
			return nil
		},
	}
	cmd.Flags().String("mode", string(publish.ModeSimplify), "Publish mode: simplify or translate")
	cmd.Flags().String("language", publish.DefaultLanguage, "Target language")
	cmd.Flags().String("source", "", "Source passage as sent to the tool (required)")
	return cmd
}

func newPagesShowCmd(c *ctl) *cobra.Command {
	return &cobra.Command{
		Use:   "show <slug>",
		Short: "Print a published page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := getServices(cmd, c)
			if err != nil {
				return err
			}
			page, err := svc.Store.GetPublicPage(cmd.Context(), args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("page %q not found", args[0])
			}
			if err != nil {
				return err
			}

			if c.json() {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n\n", page.Title)
			fmt.Fprintf(out, "Mode: %s | Language: %s | Created: %s\n", page.Mode, page.Language, page.CreatedAt.Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "Keywords: %s\n\n", strings.Join(page.Keywords, ", "))
			fmt.Fprintln(out, page.Content)
			return nil
		},
	}
}
