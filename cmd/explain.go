package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/explain"
)

var (
	explainPreferredModel string
	explainForce          bool
)

var explainCmd = &cobra.Command{
	Use:   "explain <topic>",
	Short: "Explain a topic from the command line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		resp, err := env.Service.Explain(ctx, args[0], explain.Options{
			PreferredModel: explainPreferredModel,
			ForceVerify:    explainForce,
		})
		if err != nil {
			return err
		}

		zap.L().Info("explanation ready",
			zap.String("topic", resp.Topic),
			zap.String("source", resp.Source),
			zap.Bool("verified", resp.Verified),
			zap.Int64("response_time_ms", resp.ResponseTimeMs),
		)

		out, err := json.MarshalIndent(resp.Content, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	explainCmd.Flags().StringVar(&explainPreferredModel, "model", "", "try this model first")
	explainCmd.Flags().BoolVar(&explainForce, "force", false, "bypass cache and store, regenerate from the model chain")
	rootCmd.AddCommand(explainCmd)
}
