package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

// newOpenAIApp validates the key and generation flags, then builds an App honoring --prompt
func newOpenAIApp(cmd *cobra.Command) (*internal.App, error) {
	if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
		return nil, err
	}

	app := internal.NewApp(config)
	if err := internal.HandlePromptFlag(cmd, app); err != nil {
		return nil, err
	}
	return app, nil
}

// loadSession opens a saved session and switches the app to its settings
func loadSession(cmd *cobra.Command, app *internal.App, name string) (*internal.Session, error) {
	if err := internal.ValidateSessionName(name); err != nil {
		return nil, err
	}
	session, err := app.LoadSession(cmd.Context(), name)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", name, err)
	}
	return session, nil
}

// printSummary writes a summary as rendered markdown on terminals and plain text otherwise
func printSummary(summary string) {
	fmt.Println()
	if internal.IsInteractive() {
		if rendered, err := internal.RenderMarkdown(summary); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(summary)
}

// maybeChat starts the interactive Q&A unless --no-chat is set or stdin is not a terminal
func maybeChat(cmd *cobra.Command, app *internal.App, session *internal.Session) error {
	if noChat, _ := cmd.Flags().GetBool("no-chat"); noChat {
		return nil
	}
	if !internal.IsInteractive() {
		return nil
	}
	return app.RunChat(cmd.Context(), session, os.Stdin, os.Stdout, true)
}
