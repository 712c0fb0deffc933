package main

import (
	"fmt"
	"strings"

	"log/slog"

	"github.com/spf13/cobra"

	"earshot/internal/agent"
	"earshot/internal/catalog"
	"earshot/internal/config"
	"earshot/internal/dispatch"
	"earshot/internal/llm"
	"earshot/internal/notify"
	"earshot/internal/pipeline"
	"earshot/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one discovery-to-notification batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runner, err := buildRunner(cmd, cfg, store, logger)
			if err != nil {
				return err
			}
			summary, err := runner.RunBatch(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			return nil
		},
	}
}

func buildRunner(cmd *cobra.Command, cfg *config.Config, store *queue.Store, logger *slog.Logger) (*pipeline.Runner, error) {
	lister, err := catalog.NewYouTubeLister(cmd.Context(), cfg.Catalog.APIKey)
	if err != nil {
		return nil, fmt.Errorf("catalog client: %w", err)
	}
	scanner := catalog.NewScanner(lister, cfg.Catalog.ChannelID)
	dispatcher := dispatch.NewClient(cfg.Dispatch)
	completer := llm.NewClient(cfg.LLM)
	notifier := notify.NewService(cfg.Notifications)

	var agents []pipeline.Analyzer
	for _, name := range agent.BuiltinKinds() {
		kind, ok := agent.LookupKind(name)
		if !ok {
			continue
		}
		agents = append(agents, agent.New(kind, completer, cfg.Agent.MaxSteps, logger))
	}

	return pipeline.NewRunner(cfg, store, scanner, dispatcher, agents, notifier, logger), nil
}

func printSummary(cmd *cobra.Command, summary pipeline.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, renderTable(
		[]string{"Discovered", "Processed", "Succeeded", "Failed", "Notified"},
		[][]string{{
			fmt.Sprintf("%d", summary.Discovered),
			fmt.Sprintf("%d", summary.Processed),
			fmt.Sprintf("%d", summary.Succeeded),
			fmt.Sprintf("%d", summary.Failed),
			fmt.Sprintf("%d", summary.Notified),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	if len(summary.Errors) > 0 {
		fmt.Fprintf(out, "\n%d error(s):\n", len(summary.Errors))
		for _, msg := range summary.Errors {
			fmt.Fprintf(out, "  - %s\n", strings.TrimSpace(msg))
		}
	}
}
