package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var exportCmd = &cobra.Command{
	Use:   "export [session]",
	Short: "Save a session's summary and original text to files",
	Example: `  # Both files into the configured exports directory
  ytrag export tAP1eZYEuKA

  # Only the subtitles or transcript, into ./out
  ytrag export tAP1eZYEuKA --original --dir out`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: sessionArgCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config)
		session, err := loadSession(cmd, app, args[0])
		if err != nil {
			return err
		}
		defer session.Close()

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = config.ExportsDir
		}
		summaryOnly, _ := cmd.Flags().GetBool("summary")
		originalOnly, _ := cmd.Flags().GetBool("original")
		both := summaryOnly == originalOnly

		doc := session.Document()
		if both || summaryOnly {
			path, err := internal.SaveSummary(dir, session.Summary(), doc)
			if err != nil {
				return err
			}
			fmt.Printf("Summary saved to %s\n", path)
		}
		if both || originalOnly {
			path, err := internal.SaveOriginalText(dir, doc)
			if err != nil {
				return err
			}
			fmt.Printf("Original text saved to %s\n", path)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().Bool("summary", false, "Only export the summary")
	exportCmd.Flags().Bool("original", false, "Only export the subtitles or transcript")
	exportCmd.Flags().StringP("dir", "d", "", "Output directory (default: exports_dir from config)")
	rootCmd.AddCommand(exportCmd)
}
