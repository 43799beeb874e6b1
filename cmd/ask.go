package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/theirongolddev/cchat/internal/chat"
	"github.com/theirongolddev/cchat/internal/cli"
	"github.com/theirongolddev/cchat/internal/exchange"
	"github.com/theirongolddev/cchat/internal/secret"

	"github.com/spf13/cobra"
)

var (
	flagAskModel   string
	flagAskSystem  string
	flagAskSession string
	flagAskQuiet   bool
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and stream the reply to stdout",
	Long: "Sends a single message and streams the reply. By default each ask starts\n" +
		"a fresh session; pass --session to continue an existing one.",
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&flagAskModel, "model", "m", "", "Override the configured model")
	askCmd.Flags().StringVar(&flagAskSystem, "system", "", "Override the configured system prompt")
	askCmd.Flags().StringVar(&flagAskSession, "session", "", "Continue an existing session by id")
	askCmd.Flags().BoolVarP(&flagAskQuiet, "quiet", "q", false, "Suppress the usage footer")

	rootCmd.AddCommand(askCmd)
}

func runAsk(_ *cobra.Command, args []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer func() { _ = c.ledger.Close() }()

	if flagAskSession != "" {
		if _, err := c.store.LoadSession(flagAskSession); err != nil {
			return err
		}
	} else {
		c.store.NewSession()
	}

	cfg := c.cfg.Chat
	if flagAskModel != "" {
		cfg.Model = flagAskModel
	}
	if flagAskSystem != "" {
		cfg.SystemPrompt = flagAskSystem
	}

	if _, err := c.store.AppendMessage(chat.RoleUser, strings.Join(args, " "), "", 0, 0); err != nil {
		return err
	}

	done := make(chan error, 1)
	var final chat.Message
	var cost float64
	var saveErr error

	controller := exchange.NewController(c.store, c.ledger)
	cb := exchange.Callbacks{
		OnChunk: func(text string) { fmt.Print(text) },
		OnDone: func(msg chat.Message, c float64, persistErr error) {
			final = msg
			cost = c
			saveErr = persistErr
			done <- nil
		},
		OnError: func(err error) { done <- err },
	}

	if err := controller.Send(context.Background(), cfg, secret.APIKey(c.secrets), cb); err != nil {
		return err
	}
	if err := <-done; err != nil {
		fmt.Println()
		return err
	}
	fmt.Println()

	if saveErr != nil {
		fmt.Fprintf(os.Stderr, "\n  warning: response shown but not saved: %v\n", saveErr)
	}

	if !flagAskQuiet {
		fmt.Fprintf(os.Stderr, "\n  %s in / %s out · %s · session %s\n",
			cli.FormatTokens(final.InputTokens),
			cli.FormatTokens(final.OutputTokens),
			cli.FormatCost(cost),
			c.store.ActiveID(),
		)
	}
	return nil
}
