package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [session]",
	Short: "Write a structured analysis report for a session",
	Example: `  # Report in the session's language, saved to ./analysis/<session>_analysis.md
  ytrag analyze tAP1eZYEuKA

  # Chinese report at a chosen path
  ytrag analyze tAP1eZYEuKA --language zh -o report.md`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: sessionArgCompletion,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
			return err
		}
		// the report language defaults to the session's, not the config's
		var lang internal.Language
		if value, _ := cmd.Flags().GetString("language"); value != "" {
			lang = internal.NormalizeLanguage(value)
		}

		app := internal.NewApp(config)
		session, err := loadSession(cmd, app, args[0])
		if err != nil {
			return err
		}
		defer session.Close()

		output, _ := cmd.Flags().GetString("output")
		spinner := app.UI().NewSpinner("Generating analysis report...")
		path, err := app.ExportAnalysis(cmd.Context(), session, lang, output)
		spinner.Finish()
		if err != nil {
			return err
		}

		fmt.Printf("Analysis report saved to %s\n", path)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringP("language", "l", "", "Report language: en or zh (default: the session's)")
	analyzeCmd.Flags().StringP("output", "o", "", "Report path (default: <exports_dir>/analysis/<session>_analysis.md)")
	rootCmd.AddCommand(analyzeCmd)
}
