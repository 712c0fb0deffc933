package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"earshot/internal/dispatch"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the store and the extraction worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.Health(cmd.Context())
			if err != nil {
				return err
			}

			workerStatus := "not configured"
			if strings.TrimSpace(cfg.Dispatch.WorkerURL) != "" {
				client := dispatch.NewClient(cfg.Dispatch)
				if err := client.Health(cmd.Context()); err != nil {
					workerStatus = fmt.Sprintf("unreachable (%v)", err)
				} else {
					workerStatus = "ok"
				}
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			workerCell := workerStatus
			if colorize {
				if workerStatus == "ok" {
					workerCell = ansiGreen + workerStatus + ansiReset
				} else if workerStatus != "not configured" {
					workerCell = ansiRed + workerStatus + ansiReset
				}
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Check", "Value"},
				[][]string{
					{"items total", fmt.Sprintf("%d", summary.Total)},
					{"queued", fmt.Sprintf("%d", summary.Queued)},
					{"processing", fmt.Sprintf("%d", summary.Processing)},
					{"succeeded", fmt.Sprintf("%d", summary.Succeeded)},
					{"failed", fmt.Sprintf("%d", summary.Failed)},
					{"worker", workerCell},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}
