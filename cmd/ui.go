package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Serve the bilingual chat web UI",
	Long: `Serve a browser chat interface for the same workflow as the CLI:
choose a summary language, analyze a new video or reopen a saved session,
then ask questions, save files or add more videos.

Each browser gets its own conversation. When no OpenAI API key is configured
the page asks for one first.`,
	Example: `  ytrag ui
  ytrag ui --addr 0.0.0.0:8080`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			config.WebAddr = addr
		}
		internal.InitLogging(config)
		defer internal.SyncLogging()
		internal.InstallYtDlp(cmd.Context())

		server := internal.NewWebServer(config, func(apiKey string) *internal.App {
			appConfig := config.Clone()
			if apiKey != "" {
				appConfig.OpenAIAPIKey = apiKey
			}
			appConfig.Quiet = true
			return internal.NewApp(appConfig, internal.WithUI(internal.NewSilentUIManager()))
		})
		if err := server.Listen(); err != nil {
			return err
		}

		fmt.Printf("ytrag web UI running at http://%s (Ctrl+C to stop)\n", server.Addr())
		return server.Serve(cmd.Context())
	},
}

func init() {
	uiCmd.Flags().String("addr", "", "Listen address (default: web_addr from config)")
	rootCmd.AddCommand(uiCmd)
}
