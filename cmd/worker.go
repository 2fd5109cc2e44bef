package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the verification worker",
	Long:  "Consumes verification jobs from the queue, re-generates each topic with a high-cost model, and promotes the stored explanation to verified.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		env.Router.Quarantine().StartSweeper(ctx, cfg.Router.QuarantineClearInterval())

		var hc worker.HotCache
		if env.Cache != nil {
			hc = env.Cache
		}
		v := worker.New(env.Store, env.Router, hc, cfg.Worker)

		zap.L().Info("starting verification worker",
			zap.Int("concurrency", cfg.Worker.Concurrency),
			zap.Int("rate_per_minute", cfg.Worker.RatePerMinute),
		)
		return v.Run(ctx, env.Queue)
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
