package cmd

import (
	"fmt"

	"github.com/theirongolddev/cchat/internal/config"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List available models and their pricing",
	RunE:  runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  %-32s  %12s  %12s\n", "MODEL", "IN $/MTOK", "OUT $/MTOK")
	for _, m := range config.AvailableModels {
		p, _ := config.LookupPricing(m)
		marker := "  "
		if m == cfg.Chat.Model {
			marker = "* "
		}
		fmt.Printf("%s%-32s  %12.2f  %12.2f\n", marker, m, p.InputPerMTok, p.OutputPerMTok)
	}
	fmt.Println()
	fmt.Println("  * current model. Change it with `cchat setup` or in the TUI settings.")
	fmt.Println()

	return nil
}
