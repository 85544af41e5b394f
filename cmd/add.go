package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var addCmd = &cobra.Command{
	Use:   "add [session] [YouTube URL or ID]",
	Short: "Add another video to a saved session",
	Long: `Fetch, summarize and index another video into an existing session.

The session's summary becomes the combination of all video summaries and
questions are answered from every video it contains.`,
	Example: `  ytrag add tAP1eZYEuKA "https://youtu.be/dQw4w9WgXcQ"
  ytrag add tAP1eZYEuKA dQw4w9WgXcQ --no-chat`,
	Args:              cobra.ExactArgs(2),
	ValidArgsFunction: sessionArgCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed := internal.ClassifyArg(args[1])
		if parsed.ContentType != internal.ContentTypeVideo {
			return fmt.Errorf("'%s' is not a valid YouTube video URL or ID", args[1])
		}

		app, err := newOpenAIApp(cmd)
		if err != nil {
			return err
		}
		internal.InstallYtDlp(cmd.Context())

		session, err := loadSession(cmd, app, args[0])
		if err != nil {
			return err
		}

		result, err := app.AddVideoToSession(cmd.Context(), session, parsed.NormalizedURL, internal.ContentOptionsFromFlags(cmd, config))
		if err != nil {
			session.Close()
			return err
		}
		defer result.Session.Close()

		printSummary(result.NewSummary)
		fmt.Printf("\nSession %s now contains %d videos\n", result.Session.Name, len(result.Session.VideoURLs()))

		return maybeChat(cmd, app, result.Session)
	},
}

func init() {
	internal.AddTranscriptionFlags(addCmd)
	addCmd.Flags().Bool("no-chat", false, "Exit after adding instead of starting the Q&A chat")
	rootCmd.AddCommand(addCmd)
}
