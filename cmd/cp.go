package cmd

import (
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

// cpCmd copies a session's summary to the system clipboard instead of printing to stdout.
var cpCmd = &cobra.Command{
	Use:   "cp [session]",
	Short: "Copy a session's summary to the clipboard",
	Example: `  # Copy the summary
  ytrag cp tAP1eZYEuKA

  # Copy the subtitles or transcript instead
  ytrag cp tAP1eZYEuKA --original`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: sessionArgCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config)
		session, err := loadSession(cmd, app, args[0])
		if err != nil {
			return err
		}
		defer session.Close()

		text, what := session.Summary(), "Summary"
		if original, _ := cmd.Flags().GetBool("original"); original {
			text, what = session.Document().Content, "Original text"
		}

		if err := clipboard.WriteAll(text); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}

		if !config.Quiet {
			fmt.Printf("%s copied to clipboard\n", what)
		}
		return nil
	},
}

func init() {
	cpCmd.Flags().Bool("original", false, "Copy the subtitles or transcript instead of the summary")
	rootCmd.AddCommand(cpCmd)
}
