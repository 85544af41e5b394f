package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var chatCmd = &cobra.Command{
	Use:   "chat [session]",
	Short: "Ask questions about a saved session interactively",
	Example: `  # Reopen a session by name (see 'ytrag sessions')
  ytrag chat tAP1eZYEuKA`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: sessionArgCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newOpenAIApp(cmd)
		if err != nil {
			return err
		}
		session, err := loadSession(cmd, app, args[0])
		if err != nil {
			return err
		}
		defer session.Close()

		printSummary(session.Summary())
		return app.RunChat(cmd.Context(), session, os.Stdin, os.Stdout, internal.IsInteractive())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
