package internal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// IsExitCommand reports whether input ends an interactive chat
func IsExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "quit", "exit", "退出":
		return true
	}
	return false
}

// IsInteractive reports whether stdin is a terminal
func IsInteractive() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// RunChat answers questions read from in until EOF or an exit command, saving history after each answer
func (app *App) RunChat(ctx context.Context, session *Session, in io.Reader, out io.Writer, renderMarkdown bool) error {
	fmt.Fprintf(out, "\nAsk questions about %s (type 'quit' to exit)\n", session.Name)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if IsExitCommand(question) {
			fmt.Fprintln(out, "Goodbye! / 再见！")
			return nil
		}

		var spinner ProgressBar
		if renderMarkdown {
			spinner = app.ui.NewSpinner("Thinking...")
		}
		answer, err := app.AskAndRecord(ctx, session, question)
		if spinner != nil {
			spinner.Finish()
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		text := answer.Text
		if renderMarkdown {
			if rendered, err := RenderMarkdown(text); err == nil {
				text = rendered
			}
		}
		fmt.Fprintln(out, text)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}
