package internal

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AddTranscriptionFlags adds flags related to transcription functionality
func AddTranscriptionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-transcription", false, "Never fall back to Whisper transcription when subtitles are missing")
	cmd.Flags().BoolP("yes", "y", false, "Transcribe without asking when subtitles are missing (costs money)")
}

// AddOpenAIFlags adds flags related to OpenAI API functionality
func AddOpenAIFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "OpenAI chat model for summaries and answers")
	cmd.Flags().StringP("prompt", "p", "", "Custom summary prompt (string or file path)")
	cmd.Flags().StringP("language", "l", "", "Summary language: en or zh")
}

// AddChunkFlags adds the text splitting flags
func AddChunkFlags(cmd *cobra.Command) {
	cmd.Flags().Int("chunk-size", 0, "Chunk size in characters for the vector index (default from config)")
	cmd.Flags().Int("chunk-overlap", -1, "Chunk overlap in characters (default from config)")
}

// AddExportFlags adds flags that write summary and original text files
func AddExportFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("save-summary", false, "Save the summary to <videoID>_summary.txt")
	cmd.Flags().Bool("save-original", false, "Save the subtitles or transcript to <videoID>_<type>.txt")
}

// HandlePromptFlag processes the --prompt flag to set custom prompt
func HandlePromptFlag(cmd *cobra.Command, app *App) error {
	promptFlag := cmd.Flags().Lookup("prompt")
	if promptFlag == nil || !promptFlag.Changed {
		return nil
	}

	prompt, err := cmd.Flags().GetString("prompt")
	if err != nil {
		return fmt.Errorf("failed to get prompt flag: %w", err)
	}
	if prompt == "" {
		return nil
	}

	app.SetPromptManager(NewPromptManager(app.config.ConfigDir, prompt))

	if IsLikelyFilePath(prompt) && FileExists(prompt) {
		app.ui.Verbose("Using custom prompt file: %s\n", prompt)
	} else {
		app.ui.Verbose("Using custom prompt string\n")
	}
	return nil
}

// HandleVerboseFlag processes the --verbose flag to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	config.Verbose = config.Verbose || verbose
	return nil
}

// ApplyGenerationFlags copies --model, --language and the chunk flags into config
func ApplyGenerationFlags(cmd *cobra.Command, config *Config) error {
	if f := cmd.Flags().Lookup("model"); f != nil && f.Value.String() != "" {
		if err := ValidateModel(f.Value.String()); err != nil {
			return err
		}
		config.ChatModel = f.Value.String()
	} else if err := ValidateModel(config.ChatModel); err != nil {
		return fmt.Errorf("invalid model in config: %w", err)
	}

	if f := cmd.Flags().Lookup("language"); f != nil && f.Value.String() != "" {
		lang, ok := ParseLanguageChoice(f.Value.String())
		if !ok {
			return fmt.Errorf("unsupported language %q (use en or zh)", f.Value.String())
		}
		config.Language = string(lang)
	}

	if cmd.Flags().Lookup("chunk-size") != nil {
		size, _ := cmd.Flags().GetInt("chunk-size")
		if size > 0 {
			config.ChunkSize = size
		}
		overlap, _ := cmd.Flags().GetInt("chunk-overlap")
		if overlap >= 0 {
			config.ChunkOverlap = overlap
		}
	}
	if _, err := NewSplitter(config.ChunkSize, config.ChunkOverlap); err != nil {
		return err
	}
	return nil
}

// ContentOptionsFromFlags resolves whether and how transcription may happen
func ContentOptionsFromFlags(cmd *cobra.Command, config *Config) ContentOptions {
	opts := ContentOptions{
		AllowTranscription: config.AllowTranscription,
		ShowStatus:         !config.Quiet,
	}
	if noTranscription, _ := cmd.Flags().GetBool("no-transcription"); noTranscription {
		opts.AllowTranscription = false
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if opts.AllowTranscription && !yes && IsInteractive() {
		opts.Confirm = func(videoURL string) bool {
			return AskUser(fmt.Sprintf("%s has no subtitles. Transcribe it with OpenAI Whisper ($$$)?", videoURL))
		}
	}
	return opts
}

// ValidateOpenAIRequirements validates the OpenAI API key and generation flags
func ValidateOpenAIRequirements(cmd *cobra.Command, config *Config) error {
	if err := ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
		return err
	}
	return ApplyGenerationFlags(cmd, config)
}
