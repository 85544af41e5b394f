package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

// pathsCmd represents the paths command
var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show paths used by the application",
	Example: `  # Show all application paths
  ytrag paths`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Config directory: %s\n", config.ConfigDir)
		fmt.Printf("Data directory: %s\n", config.DataDir)
		fmt.Printf("Cache directory: %s\n", config.CacheDir)
		fmt.Printf("Sessions directory: %s\n", config.SessionsDir)
		fmt.Printf("Exports directory: %s\n", config.ExportsDir)
		fmt.Printf("Server log: %s\n", internal.LogPath(config))
	},
}

func init() {
	rootCmd.AddCommand(pathsCmd)
}
