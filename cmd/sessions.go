package cmd

import (
	"fmt"

	"github.com/theirongolddev/cchat/internal/cli"

	"github.com/spf13/cobra"
)

var flagSessionsDelete string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved chat sessions",
	RunE:  runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&flagSessionsDelete, "delete", "", "Delete the session with the given id")

	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(_ *cobra.Command, _ []string) error {
	c, err := openCore()
	if err != nil {
		return err
	}
	defer func() { _ = c.ledger.Close() }()

	if flagSessionsDelete != "" {
		if err := c.store.DeleteSession(flagSessionsDelete); err != nil {
			return err
		}
		fmt.Printf("  Deleted session %s\n", flagSessionsDelete)
		return nil
	}

	sessions := c.store.ListSessions()
	if len(sessions) == 0 {
		fmt.Println("  No saved sessions. Run `cchat` to start chatting.")
		return nil
	}

	fmt.Println()
	fmt.Printf("  %-36s  %-40s  %5s  %s\n", "ID", "TITLE", "MSGS", "CREATED")
	for _, s := range sessions {
		created := ""
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Format("2006-01-02 15:04")
		}
		fmt.Printf("  %-36s  %-40s  %5d  %s\n", s.ID, cli.Truncate(s.Title, 40), s.MessageCount, created)
	}
	fmt.Println()

	return nil
}
