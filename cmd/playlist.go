package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var playlistCmd = &cobra.Command{
	Use:   "playlist [playlist URL]",
	Short: "Ingest every video of a playlist into one session",
	Example: `  # First ten videos into a session named "course"
  ytrag playlist "https://www.youtube.com/playlist?list=PL..." --max-videos 10 --session course

  # Resume later, skipping what is already in the session
  ytrag playlist "https://www.youtube.com/playlist?list=PL..." --session course --start 10 --skip-existing`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed := internal.ClassifyArg(args[0])
		if parsed.ContentType != internal.ContentTypePlaylist {
			return fmt.Errorf("'%s' is not a YouTube playlist URL or ID", args[0])
		}
		return runPlaylist(cmd, parsed.NormalizedURL)
	},
}

func addPlaylistFlags(cmd *cobra.Command) {
	cmd.Flags().Int("start", 0, "Zero-based index of the first playlist entry to process")
	cmd.Flags().Int("max-videos", 0, "Maximum number of playlist entries to process (0 means all)")
	cmd.Flags().Bool("skip-existing", false, "Skip videos already contained in the session")
	cmd.Flags().Bool("stop-on-error", false, "Stop at the first video that fails")
}

// runPlaylist ingests a playlist and then offers the chat on the resulting session
func runPlaylist(cmd *cobra.Command, playlistURL string) error {
	app, err := newOpenAIApp(cmd)
	if err != nil {
		return err
	}
	internal.InstallYtDlp(cmd.Context())

	opts := internal.PlaylistOptions{
		ContentOptions: internal.ContentOptionsFromFlags(cmd, config),
	}
	opts.SessionName, _ = cmd.Flags().GetString("session")
	opts.StartIndex, _ = cmd.Flags().GetInt("start")
	opts.MaxVideos, _ = cmd.Flags().GetInt("max-videos")
	opts.SkipExisting, _ = cmd.Flags().GetBool("skip-existing")
	opts.StopOnError, _ = cmd.Flags().GetBool("stop-on-error")
	opts.SaveSummary, _ = cmd.Flags().GetBool("save-summary")
	opts.SaveOriginal, _ = cmd.Flags().GetBool("save-original")

	report, err := app.IngestPlaylist(cmd.Context(), playlistURL, opts)
	if report != nil && report.Session != nil {
		defer report.Session.Close()
	}
	if report != nil {
		printPlaylistReport(report)
	}
	if err != nil {
		return err
	}
	if report.Session == nil {
		return nil
	}

	printSummary(report.Session.Summary())
	return maybeChat(cmd, app, report.Session)
}

func printPlaylistReport(report *internal.PlaylistReport) {
	fmt.Printf("\nPlaylist: %s\n", report.Title)
	fmt.Printf("Processed: %d, skipped: %d, failed: %d\n", len(report.Processed), len(report.Skipped), len(report.Failed))
	if len(report.Failed) > 0 {
		rows := make([][]string, 0, len(report.Failed))
		for _, failure := range report.Failed {
			reason := failure.Err.Error()
			if internal.IsTranscriptionRefused(failure.Err) {
				reason = "no subtitles (transcription not allowed)"
			}
			rows = append(rows, []string{failure.Entry.Title, failure.Entry.URL, reason})
		}
		fmt.Println(renderTable([]string{"Title", "URL", "Reason"}, rows))
	}
	if name := report.SessionName(); name != "" {
		fmt.Printf("Session: %s\n", name)
	}
}

func init() {
	internal.AddTranscriptionFlags(playlistCmd)
	internal.AddOpenAIFlags(playlistCmd)
	internal.AddChunkFlags(playlistCmd)
	internal.AddExportFlags(playlistCmd)
	addPlaylistFlags(playlistCmd)
	playlistCmd.Flags().String("session", "", "Session to create or append to (default: the first video's ID)")
	playlistCmd.Flags().Bool("no-chat", false, "Exit after ingesting instead of starting the Q&A chat")
	rootCmd.AddCommand(playlistCmd)
}
