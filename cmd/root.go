// Package cmd wires the cchat command tree.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/theirongolddev/cchat/internal/chat"
	"github.com/theirongolddev/cchat/internal/config"
	"github.com/theirongolddev/cchat/internal/exchange"
	"github.com/theirongolddev/cchat/internal/secret"
	"github.com/theirongolddev/cchat/internal/tui"
	"github.com/theirongolddev/cchat/internal/tui/theme"
	"github.com/theirongolddev/cchat/internal/usage"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var flagDebug bool

var rootCmd = &cobra.Command{
	Use:   "cchat",
	Short: "Chat with Claude from your terminal",
	Long:  "A local chat client for the Anthropic API: streaming responses, persistent sessions, and a running usage ledger.",
	RunE:  runChat,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cobra.OnInitialize(func() {
		if flagDebug {
			log.SetLevel(log.DebugLevel)
		}
	})
}

// core bundles the stores every command needs. Close the ledger when done.
type core struct {
	cfg     config.Config
	store   *chat.Store
	ledger  *usage.Ledger
	secrets secret.Store
}

// openCore loads config and opens the session store, usage ledger, and
// credential store under the data directory.
func openCore() (*core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dataDir := config.DataDir()
	store, err := chat.NewStore(dataDir)
	if err != nil {
		return nil, err
	}
	ledger, err := usage.Open(filepath.Join(dataDir, "usage.db"))
	if err != nil {
		return nil, err
	}

	return &core{
		cfg:     cfg,
		store:   store,
		ledger:  ledger,
		secrets: secret.Open(dataDir),
	}, nil
}

func runChat(_ *cobra.Command, _ []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer func() { _ = c.ledger.Close() }()

	theme.SetActive(c.cfg.Appearance.Theme)

	// Force TrueColor profile so all background styling produces ANSI codes.
	// Without this, lipgloss may default to Ascii profile (no colors).
	lipgloss.SetColorProfile(termenv.TrueColor)

	// The TUI owns the terminal; route logs to a file instead of stderr.
	logPath := filepath.Join(config.DataDir(), "cchat.log")
	if f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600); err == nil {
		log.SetOutput(f)
		defer func() { _ = f.Close() }()
	}

	controller := exchange.NewController(c.store, c.ledger)
	needSetup := !config.Exists() && secret.APIKey(c.secrets) == ""

	app := tui.NewApp(c.store, c.ledger, controller, c.secrets, c.cfg, needSetup)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
