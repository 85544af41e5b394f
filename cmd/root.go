package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var (
	config     *internal.Config
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ytrag [YouTube URL, ID or playlist]",
	Short: "Summarize YouTube videos and chat with their transcripts",
	Long: `ytrag turns YouTube videos into searchable Q&A sessions.

It fetches the video's subtitles (or transcribes the audio with Whisper when
there are none), writes a summary in English or Chinese, indexes the transcript
with OpenAI embeddings and then answers your questions about it.

Sessions are saved to disk and can be reopened, extended with more videos,
copied, exported and analyzed later.`,
	Example: `  # Summarize a video and start asking questions
  ytrag "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  ytrag tAP1eZYEuKA

  # Summaries in Chinese, without the interactive chat
  ytrag tAP1eZYEuKA --language zh --no-chat

  # Ingest a whole playlist into one session
  ytrag "https://www.youtube.com/playlist?list=PL..." --max-videos 5

  # Never pay for Whisper transcription
  ytrag tAP1eZYEuKA --no-transcription`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return internal.HandleVerboseFlag(cmd, config)
	},
	Args: cobra.ExactArgs(1),
}

// runRoot is assigned in init to avoid an initialization cycle through commandNames
func runRoot(cmd *cobra.Command, args []string) error {
	parsed := internal.ClassifyArg(args[0])
	switch parsed.ContentType {
	case internal.ContentTypeCommand:
		return fmt.Errorf("'%s' doesn't look like a YouTube URL or video ID: %s", args[0], parsed.SuggestCorrection(commandNames()))
	case internal.ContentTypePlaylist:
		return runPlaylist(cmd, parsed.NormalizedURL)
	case internal.ContentTypeVideo:
	default:
		return fmt.Errorf("'%s' is not a valid YouTube video URL or ID", args[0])
	}

	app, err := newOpenAIApp(cmd)
	if err != nil {
		return err
	}
	internal.InstallYtDlp(cmd.Context())

	saveSummary, _ := cmd.Flags().GetBool("save-summary")
	saveOriginal, _ := cmd.Flags().GetBool("save-original")
	sessionName, _ := cmd.Flags().GetString("session")

	result, err := app.ProcessVideo(cmd.Context(), parsed.NormalizedURL, internal.ProcessOptions{
		ContentOptions: internal.ContentOptionsFromFlags(cmd, config),
		SaveSummary:    saveSummary,
		SaveOriginal:   saveOriginal,
		SessionName:    sessionName,
	})
	if err != nil {
		return err
	}
	defer result.Session.Close()

	printSummary(result.Session.Summary())
	for _, saved := range result.SavedFiles {
		fmt.Printf("Saved %s\n", saved)
	}
	fmt.Printf("\nSession saved as %s\n", result.Session.Name)

	return maybeChat(cmd, app, result.Session)
}

// commandNames lists the subcommands offered as suggestions for mistyped input
func commandNames() []string {
	var names []string
	for _, c := range rootCmd.Commands() {
		if !c.Hidden {
			names = append(names, c.Name())
		}
	}
	return names
}

// initConfig loads configuration once flags are parsed
func initConfig() {
	config = internal.InitConfig(configFile)

	if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.CacheDir, config.SessionsDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating XDG directories: %v\n", err)
		os.Exit(1)
	}

	if err := internal.EnsureDefaultConfig(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default config: %v\n", err)
	}

	if err := internal.EnsureDefaultPrompt(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default prompt: %v\n", err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal. Cleaning up and shutting down...")
		cancel()

		// give servers a moment to shut down before removing temp files
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cleanupCancel()

		cleanupDone := make(chan struct{})
		go func() {
			if config != nil {
				if err := internal.CleanupTempDir(config.TempDir); err != nil {
					fmt.Fprintf(os.Stderr, "Error cleaning up temporary files: %v\n", err)
				}
			}
			close(cleanupDone)
		}()

		select {
		case <-cleanupDone:
		case <-cleanupCtx.Done():
			fmt.Fprintln(os.Stderr, "Warning: Cleanup timed out, forcing exit")
		}

		os.Exit(130)
	}()

	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.RunE = runRoot

	internal.AddTranscriptionFlags(rootCmd)
	internal.AddOpenAIFlags(rootCmd)
	internal.AddChunkFlags(rootCmd)
	internal.AddExportFlags(rootCmd)
	addPlaylistFlags(rootCmd)
	rootCmd.Flags().Bool("no-chat", false, "Exit after the summary instead of starting the Q&A chat")
	rootCmd.Flags().String("session", "", "Session name (default: the video ID)")

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is $XDG_CONFIG_HOME/ytrag/config.toml)")
}
