package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

// transcribeCmd represents the transcribe command
var transcribeCmd = &cobra.Command{
	Use:   "transcribe [YouTube URL or ID]",
	Short: "Print a video's cleaned subtitles, or a Whisper transcript",
	Example: `  # Subtitles as plain text
  ytrag transcribe "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  ytrag transcribe tAP1eZYEuKA

  # Save to a file
  ytrag transcribe tAP1eZYEuKA -o transcript.txt

  # Never fall back to paid transcription
  ytrag transcribe tAP1eZYEuKA --no-transcription`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed := internal.ClassifyArg(args[0])
		if parsed.ContentType != internal.ContentTypeVideo {
			return fmt.Errorf("'%s' is not a valid YouTube video URL or ID", args[0])
		}
		internal.InstallYtDlp(cmd.Context())

		app := internal.NewApp(config)
		opts := internal.ContentOptionsFromFlags(cmd, config)
		if opts.AllowTranscription && !internal.ValidateAPIKey(config.OpenAIAPIKey) {
			app.UI().Verbose("No valid OpenAI API key, transcription disabled\n")
			opts.AllowTranscription = false
		}

		doc, err := app.GetVideoContent(cmd.Context(), parsed.NormalizedURL, opts)
		if err != nil {
			return err
		}

		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			return os.WriteFile(outputFile, []byte(doc.Content), 0644)
		}

		fmt.Println(doc.Content)
		return nil
	},
}

func init() {
	internal.AddTranscriptionFlags(transcribeCmd)
	transcribeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	rootCmd.AddCommand(transcribeCmd)
}
