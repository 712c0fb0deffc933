package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"earshot/internal/logging"
	"earshot/internal/queue"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var runAtStart bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run batches on the configured cron schedule",
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

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runBatch := func() {
				summary, err := runner.RunBatch(runCtx)
				if err != nil {
					logger.Error("scheduled batch failed", logging.Error(err))
					return
				}
				logger.Info("scheduled batch done",
					logging.Int64("succeeded", int64(summary.Succeeded)),
					logging.Int64("failed", int64(summary.Failed)))
			}

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(cfg.Scheduler.CronSpec, runBatch); err != nil {
				return fmt.Errorf("parse cron spec %q: %w", cfg.Scheduler.CronSpec, err)
			}

			if runAtStart {
				runBatch()
			}
			scheduler.Start()
			logger.Info("daemon started", logging.String("schedule", cfg.Scheduler.CronSpec))

			<-runCtx.Done()
			waitCtx := scheduler.Stop()
			<-waitCtx.Done()
			logger.Info("daemon stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&runAtStart, "run-at-start", true, "Run a batch immediately before scheduling")
	return cmd
}
