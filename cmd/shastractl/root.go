package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runixer/shastrarthi/internal/app"
	"github.com/runixer/shastrarthi/internal/config"
	"github.com/runixer/shastrarthi/internal/prompts"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// serviceFactory builds the services a command runs against.
type serviceFactory func(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*app.Services, error)

// ctl is the state shared by every command of one invocation.
type ctl struct {
	setup  serviceFactory
	cfg    *config.Config
	logger *slog.Logger
	output string
	svc    *app.Services
}

// services builds the services on first use. Commands that never touch the
// datastore or the backend do not pay for it.
func (c *ctl) services(ctx context.Context) (*app.Services, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, err := c.setup(ctx, c.logger, c.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up services: %w", err)
	}
	c.svc = svc
	return svc, nil
}

func (c *ctl) close() error {
	if c.svc == nil {
		return nil
	}
	err := c.svc.Close()
	c.svc = nil
	return err
}

func (c *ctl) json() bool {
	return c.output == outputJSON
}

// run executes one CLI invocation. Services are released even when the
// command fails.
func run(setup serviceFactory, args []string, out, errOut io.Writer) error {
	c := &ctl{setup: setup}
	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.Execute()
	if cerr := c.close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close services: %w", cerr)
	}
	return err
}

func newRootCmd(c *ctl) *cobra.Command {
	root := &cobra.Command{
		Use:   "shastractl",
		Short: "Operator CLI for the shastrarthi generation service",
		Long: `shastractl inspects the prompt registry, runs one-off generations against the
configured backend, looks up published explore pages, imports texts into the
library and reads the generation audit log.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := mustGetString(cmd, "config")
			dbPath := mustGetString(cmd, "db")
			verbose := mustGetBool(cmd, "verbose")
			c.output = mustGetString(cmd, "output")

			if c.output != outputText && c.output != outputJSON {
				return fmt.Errorf("invalid output format %q (want text or json)", c.output)
			}

			// Load .env from CWD - fail only if config was explicitly provided
			if err := app.LoadEnv(); err != nil {
				if cfgFile != "" {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
			}

			resolved, err := app.ResolveConfigPath(cfgFile)
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfig(resolved)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database.Driver = "sqlite"
				cfg.Database.Path = dbPath
			}
			c.cfg = cfg

			// Quiet by default, verbose shows all logs
			var sink io.Writer = io.Discard
			if verbose {
				sink = cmd.ErrOrStderr()
			}
			c.logger = slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{Level: slog.LevelDebug}))
			c.logger.Info("Using config", "path", resolved, "database", cfg.Database.Driver)
			return nil
		},
	}

	root.PersistentFlags().String("config", "", "Path to config file (default: configs/config.yaml if present)")
	root.PersistentFlags().String("db", "", "SQLite database path, overrides database.driver and database.path")
	root.PersistentFlags().StringP("output", "o", outputText, "Output format: text or json")
	root.PersistentFlags().BoolP("verbose", "v", false, "Verbose debug output (shows all logs)")

	root.AddCommand(
		newPromptsCmd(c),
		newGenerateCmd(c),
		newPagesCmd(c),
		newTextsCmd(c),
		newLogsCmd(c),
	)
	return root
}

// parseVars turns repeated --var key=value flags into prompt variables.
func parseVars(pairs []string) (prompts.Vars, error) {
	vars := make(prompts.Vars, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q (want key=value)", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Flag retrieval helpers that panic on error (error indicates bug in flag name).

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetStringArray(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringArray(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

// getServices is a shorthand for RunE bodies.
func getServices(cmd *cobra.Command, c *ctl) (*app.Services, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return c.services(ctx)
}
