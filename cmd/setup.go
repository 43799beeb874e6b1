package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/theirongolddev/cchat/internal/cli"
	"github.com/theirongolddev/cchat/internal/config"
	"github.com/theirongolddev/cchat/internal/secret"
	"github.com/theirongolddev/cchat/internal/tui/theme"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "First-time setup wizard",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(_ *cobra.Command, _ []string) error {
	cfg, _ := config.Load()
	secrets := secret.Open(config.DataDir())

	keyDesc := "Get one at console.anthropic.com > API keys"
	if existing, err := secrets.Get(); err == nil && existing != "" {
		keyDesc = fmt.Sprintf("Current: %s. Leave blank to keep it.", cli.MaskKey(existing))
	}

	var apiKey string
	modelChoice := cfg.Chat.Model
	maxTokens := strconv.Itoa(cfg.Chat.MaxTokens)
	themeChoice := cfg.Appearance.Theme

	modelOptions := make([]huh.Option[string], len(config.AvailableModels))
	for i, m := range config.AvailableModels {
		modelOptions[i] = huh.NewOption(m, m)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Anthropic API key").
				Description(keyDesc).
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),

			huh.NewSelect[string]().
				Title("Model").
				Options(modelOptions...).
				Value(&modelChoice),

			huh.NewInput().
				Title("Max output tokens").
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil {
						return fmt.Errorf("must be a whole number")
					}
					if n <= 0 || n > config.MaxTokensCeiling {
						return fmt.Errorf("must be in 1..%d", config.MaxTokensCeiling)
					}
					return nil
				}).
				Value(&maxTokens),

			huh.NewSelect[string]().
				Title("Color theme").
				Options(huh.NewOptions(theme.Names()...)...).
				Value(&themeChoice),
		),
	)

	if err := form.Run(); err != nil {
		return err
	}

	cfg.Chat.Model = modelChoice
	if n, err := strconv.Atoi(strings.TrimSpace(maxTokens)); err == nil {
		cfg.Chat.MaxTokens = n
	}
	cfg.Appearance.Theme = themeChoice

	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	if key := strings.TrimSpace(apiKey); key != "" {
		if err := secrets.Set(key); err != nil {
			return fmt.Errorf("storing API key: %w", err)
		}
	}

	fmt.Println()
	fmt.Printf("  Saved to %s\n", config.ConfigPath())
	fmt.Println("  Run `cchat setup` anytime to reconfigure.")
	fmt.Println()

	return nil
}
