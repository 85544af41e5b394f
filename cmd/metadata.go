package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

// metadataCmd represents the metadata command
var metadataCmd = &cobra.Command{
	Use:   "metadata [URL]",
	Short: "Get metadata from YouTube video",
	Example: `  # Get metadata from YouTube video
  ytrag metadata "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  ytrag metadata tAP1eZYEuKA

  # Save pretty JSON to a file
  ytrag metadata tAP1eZYEuKA --pretty -o metadata.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed := internal.ClassifyArg(args[0])
		if parsed.ContentType != internal.ContentTypeVideo {
			return fmt.Errorf("'%s' is not a valid YouTube video URL or ID", args[0])
		}
		internal.InstallYtDlp(cmd.Context())

		app := internal.NewApp(config)
		metadata, err := app.Metadata(cmd.Context(), parsed.NormalizedURL)
		if err != nil {
			return err
		}

		var jsonData []byte
		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			jsonData, err = json.MarshalIndent(metadata, "", "  ")
		} else {
			jsonData, err = json.Marshal(metadata)
		}
		if err != nil {
			return fmt.Errorf("error converting metadata to JSON: %w", err)
		}

		if outputFile, _ := cmd.Flags().GetString("output"); outputFile != "" {
			return os.WriteFile(outputFile, jsonData, 0644)
		}

		fmt.Println(string(jsonData))
		return nil
	},
}

func init() {
	metadataCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	metadataCmd.Flags().Bool("pretty", false, "Format output as pretty JSON")
	rootCmd.AddCommand(metadataCmd)
}
