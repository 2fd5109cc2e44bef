package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/quicklearn/quicklearn/internal/model"
	"github.com/quicklearn/quicklearn/internal/router"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the model fallback chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		configured := map[model.Provider]bool{
			model.ProviderGroq:      cfg.Groq.Key != "",
			model.ProviderOpenAI:    cfg.OpenAI.Key != "",
			model.ProviderAnthropic: cfg.Anthropic.Key != "",
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tPROVIDER\tCOST\tTIER\tAVAILABLE")
		for _, mc := range router.DefaultChain() {
			avail := "no key"
			if configured[mc.Provider] {
				avail = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", mc.Name, mc.Provider, mc.Cost, mc.Tier, avail)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
