package cmd

import (
	"fmt"
	"sort"

	"github.com/theirongolddev/cchat/internal/cli"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show cumulative token usage and cost",
	RunE:  runUsage,
}

func init() {
	rootCmd.AddCommand(usageCmd)
}

func runUsage(_ *cobra.Command, _ []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer func() { _ = c.ledger.Close() }()

	snap := c.ledger.Snapshot()

	fmt.Println()
	fmt.Printf("  Input tokens:   %s\n", cli.FormatNumber(snap.InputTokens))
	fmt.Printf("  Output tokens:  %s\n", cli.FormatNumber(snap.OutputTokens))
	fmt.Printf("  Total cost:     %s\n", cli.FormatCost(snap.TotalCost))
	fmt.Println()

	if len(snap.ByModel) == 0 {
		return nil
	}

	models := make([]string, 0, len(snap.ByModel))
	for m := range snap.ByModel {
		models = append(models, m)
	}
	// Highest spend first; ties by name so output is stable.
	sort.Slice(models, func(i, j int) bool {
		ci, cj := snap.ByModel[models[i]].Cost, snap.ByModel[models[j]].Cost
		if ci != cj {
			return ci > cj
		}
		return models[i] < models[j]
	})

	fmt.Printf("  %-32s  %10s  %10s  %10s\n", "MODEL", "INPUT", "OUTPUT", "COST")
	for _, m := range models {
		mu := snap.ByModel[m]
		fmt.Printf("  %-32s  %10s  %10s  %10s\n",
			m,
			cli.FormatTokens(mu.InputTokens),
			cli.FormatTokens(mu.OutputTokens),
			cli.FormatCost(mu.Cost),
		)
	}
	fmt.Println()

	return nil
}
