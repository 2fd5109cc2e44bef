package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "quicklearn",
	Short: "Structured topic explanations with model fallback",
	Long:  "Serves structured topic explanations from a prioritized chain of language models, with Redis hot caching, durable storage, and asynchronous verification of cached answers.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
