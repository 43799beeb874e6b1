package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/theirongolddev/cchat/internal/config"
	"github.com/theirongolddev/cchat/internal/tui/theme"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
)

// settingsValues backs the settings form fields. Numeric fields are edited
// as strings and validated before the form can complete.
type settingsValues struct {
	apiKey       string
	model        string
	maxTokens    string
	temperature  string
	systemPrompt string
	theme        string
}

// newSettingsForm builds the settings form prefilled from cfg. currentKey is
// only used for the field description; leaving the key blank keeps it.
func newSettingsForm(vals *settingsValues, cfg config.Config, currentKey string) *huh.Form {
	vals.model = cfg.Chat.Model
	vals.maxTokens = strconv.Itoa(cfg.Chat.MaxTokens)
	vals.temperature = strconv.FormatFloat(cfg.Chat.Temperature, 'f', -1, 64)
	vals.systemPrompt = cfg.Chat.SystemPrompt
	vals.theme = cfg.Appearance.Theme

	keyDesc := "Stored in the system keychain. Leave blank to keep the current key."
	if currentKey == "" {
		keyDesc = "Get one at console.anthropic.com > API keys"
	}

	modelOptions := make([]huh.Option[string], len(config.AvailableModels))
	for i, m := range config.AvailableModels {
		modelOptions[i] = huh.NewOption(m, m)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Anthropic API key").
				Description(keyDesc).
				EchoMode(huh.EchoModePassword).
				Value(&vals.apiKey),

			huh.NewSelect[string]().
				Title("Model").
				Options(modelOptions...).
				Value(&vals.model),

			huh.NewInput().
				Title("Max output tokens").
				Validate(validateMaxTokens).
				Value(&vals.maxTokens),

			huh.NewInput().
				Title("Temperature").
				Description(fmt.Sprintf("0.0 to 1.0; %g is the provider default", config.DefaultTemperature)).
				Validate(validateTemperature).
				Value(&vals.temperature),

			huh.NewText().
				Title("System prompt").
				Description("Optional. Sent with every request when non-empty.").
				Value(&vals.systemPrompt),

			huh.NewSelect[string]().
				Title("Theme").
				Options(huh.NewOptions(theme.Names()...)...).
				Value(&vals.theme),
		),
	)
}

func validateMaxTokens(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number")
	}
	if n <= 0 || n > config.MaxTokensCeiling {
		return fmt.Errorf("must be in 1..%d", config.MaxTokensCeiling)
	}
	return nil
}

func validateTemperature(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if v < 0.0 || v > 1.0 {
		return fmt.Errorf("must be in 0.0..1.0")
	}
	return nil
}

func (a App) updateSettingsForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.settingsForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.settingsForm = f
	}

	if a.settingsForm.State == huh.StateCompleted {
		a.applySettings()
		a.needSetup = false
		a.settingsForm = nil
		a.refreshTranscript()
		return a, nil
	}

	if a.settingsForm.State == huh.StateAborted {
		a.needSetup = false
		a.settingsForm = nil
		return a, nil
	}

	return a, cmd
}

// applySettings writes the form values back to config and the secret store.
// Validation already ran per-field, so parse failures here cannot happen.
func (a *App) applySettings() {
	v := a.settingsVals

	a.cfg.Chat.Model = v.model
	if n, err := strconv.Atoi(strings.TrimSpace(v.maxTokens)); err == nil {
		a.cfg.Chat.MaxTokens = n
	}
	if t, err := strconv.ParseFloat(strings.TrimSpace(v.temperature), 64); err == nil {
		a.cfg.Chat.Temperature = t
	}
	a.cfg.Chat.SystemPrompt = v.systemPrompt
	a.cfg.Appearance.Theme = v.theme
	theme.SetActive(v.theme)

	if err := config.Save(a.cfg); err != nil {
		log.Error("saving config failed", "err", err)
	}

	if key := strings.TrimSpace(v.apiKey); key != "" {
		if err := a.secrets.Set(key); err != nil {
			log.Error("storing API key failed", "err", err)
		}
	}
}
