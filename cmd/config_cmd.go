package cmd

import (
	"fmt"

	"github.com/theirongolddev/cchat/internal/cli"
	"github.com/theirongolddev/cchat/internal/config"
	"github.com/theirongolddev/cchat/internal/secret"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show current configuration",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	secrets := secret.Open(config.DataDir())
	key := secret.APIKey(secrets)

	fmt.Println()
	fmt.Printf("  Config file:    %s\n", config.ConfigPath())
	fmt.Printf("  Data dir:       %s\n", config.DataDir())
	fmt.Println()
	fmt.Printf("  Model:          %s\n", cfg.Chat.Model)
	fmt.Printf("  Max tokens:     %d\n", cfg.Chat.MaxTokens)
	fmt.Printf("  Temperature:    %g\n", cfg.Chat.Temperature)
	if cfg.Chat.SystemPrompt != "" {
		fmt.Printf("  System prompt:  %s\n", cfg.Chat.SystemPrompt)
	}
	fmt.Printf("  Theme:          %s\n", cfg.Appearance.Theme)
	fmt.Println()
	if key != "" {
		fmt.Printf("  API key:        %s\n", cli.MaskKey(key))
	} else {
		fmt.Println("  API key:        not set (run `cchat setup`)")
	}
	fmt.Println()

	return nil
}
