package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"ls"},
	Short:   "List saved Q&A sessions",
	Example: `  ytrag sessions
  ytrag sessions show tAP1eZYEuKA
  ytrag sessions copy tAP1eZYEuKA favourite
  ytrag sessions delete favourite`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved Q&A sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session]",
	Short: "Show a session's videos, settings and summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config)
		session, err := loadSession(cmd, app, args[0])
		if err != nil {
			return err
		}
		defer session.Close()

		chunks, err := session.Store().Count(cmd.Context())
		if err != nil {
			return err
		}

		meta := session.Metadata
		rows := [][]string{
			{"Name", session.Name},
			{"Created", internal.SessionInfo{CreatedAt: meta.CreatedAt}.CreatedLabel()},
			{"Videos", strings.Join(session.VideoURLs(), "\n")},
			{"Content", string(meta.ContentType)},
			{"Model", meta.ModelName},
			{"Chunks", fmt.Sprintf("%d indexed (size %d, overlap %d)", chunks, meta.ChunkSize, meta.ChunkOverlap)},
			{"Language", session.Language().Label()},
			{"Questions", strconv.Itoa(len(meta.ChatHistory))},
		}
		fmt.Println(renderTable([]string{"Field", "Value"}, rows))

		printSummary(session.Summary())
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:     "delete [session]",
	Aliases: []string{"rm"},
	Short:   "Delete a saved session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		sessions := internal.NewSessionManager(config, nil)
		if !sessions.Exists(name) {
			return fmt.Errorf("%w: %s", internal.ErrSessionNotFound, name)
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force && internal.IsInteractive() && !internal.AskUser(fmt.Sprintf("Delete session %s?", name)) {
			fmt.Println("Cancelled")
			return nil
		}

		if err := sessions.Delete(cmd.Context(), name); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", name)
		return nil
	},
}

var sessionsCopyCmd = &cobra.Command{
	Use:   "copy [session] [new name]",
	Short: "Save a session under a new name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions := internal.NewSessionManager(config, nil)
		if sessions.Exists(args[1]) {
			return fmt.Errorf("session %s already exists", args[1])
		}
		if err := sessions.Copy(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Copied session %s to %s\n", args[0], args[1])
		return nil
	},
}

func listSessions() error {
	sessions, err := internal.NewSessionManager(config, nil).List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No saved sessions")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for i, info := range sessions {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			info.Name,
			info.CreatedLabel(),
			strconv.Itoa(info.VideoCount),
			string(info.ContentType),
			info.ModelName,
			info.VideoURL,
		})
	}
	fmt.Println(renderTable([]string{"#", "Name", "Created", "Videos", "Content", "Model", "URL"}, rows, 0, 3))
	return nil
}

// sessionArgCompletion suggests saved session names
func sessionArgCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || config == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	sessions, err := internal.NewSessionManager(config, nil).List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	names := make([]string, 0, len(sessions))
	for _, info := range sessions {
		if strings.HasPrefix(info.Name, toComplete) {
			names = append(names, info.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	sessionsDeleteCmd.Flags().BoolP("force", "f", false, "Delete without asking")
	for _, c := range []*cobra.Command{sessionsShowCmd, sessionsDeleteCmd, sessionsCopyCmd} {
		c.ValidArgsFunction = sessionArgCompletion
	}
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd, sessionsCopyCmd)
	rootCmd.AddCommand(sessionsCmd)
}
