package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var askCmd = &cobra.Command{
	Use:   "ask [session] [question]",
	Short: "Answer a single question about a saved session",
	Example: `  ytrag ask tAP1eZYEuKA "What are the main arguments?"

  # Do not add the exchange to the session's chat history
  ytrag ask tAP1eZYEuKA "Who is speaking?" --no-record

  # Show the transcript passages the answer is based on
  ytrag ask tAP1eZYEuKA "Which books are mentioned?" --sources`,
	Args:              cobra.MinimumNArgs(2),
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

		question := strings.Join(args[1:], " ")
		var answer *internal.Answer
		if noRecord, _ := cmd.Flags().GetBool("no-record"); noRecord {
			answer, err = app.Ask(cmd.Context(), session, question, session.History())
		} else {
			answer, err = app.AskAndRecord(cmd.Context(), session, question)
		}
		if err != nil {
			return err
		}

		printSummary(answer.Text)
		if showSources, _ := cmd.Flags().GetBool("sources"); showSources {
			for i, source := range answer.Sources {
				fmt.Printf("\n[%d] %s (score %.3f)\n%s\n", i+1, source.Source, source.Score, source.Content)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("no-record", false, "Do not save the question and answer to the session history")
	askCmd.Flags().Bool("sources", false, "Print the retrieved transcript passages")
	rootCmd.AddCommand(askCmd)
}
