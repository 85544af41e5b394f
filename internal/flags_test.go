package internal

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().BoolP("verbose", "v", false, "")
	AddTranscriptionFlags(cmd)
	AddOpenAIFlags(cmd)
	AddChunkFlags(cmd)
	AddExportFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplyGenerationFlags(t *testing.T) {
	config := DefaultConfig(t.TempDir())
	cmd := newFlagCommand(t, "--model", "gpt-4o", "--language", "zh", "--chunk-size", "300", "--chunk-overlap", "0")

	require.NoError(t, ApplyGenerationFlags(cmd, config))
	assert.Equal(t, "gpt-4o", config.ChatModel)
	assert.Equal(t, string(LanguageChinese), config.Language)
	assert.Equal(t, 300, config.ChunkSize)
	assert.Equal(t, 0, config.ChunkOverlap)
}

func TestApplyGenerationFlagsKeepsConfigDefaults(t *testing.T) {
	config := DefaultConfig(t.TempDir())
	require.NoError(t, ApplyGenerationFlags(newFlagCommand(t), config))
	assert.Equal(t, "gpt-4o-mini", config.ChatModel)
	assert.Equal(t, 1000, config.ChunkSize)
	assert.Equal(t, 20, config.ChunkOverlap)
}

func TestApplyGenerationFlagsRejectsBadValues(t *testing.T) {
	config := DefaultConfig(t.TempDir())
	assert.ErrorContains(t, ApplyGenerationFlags(newFlagCommand(t, "--model", "gpt-2"), config), "unsupported model")
	assert.ErrorContains(t, ApplyGenerationFlags(newFlagCommand(t, "--language", "fr"), config), "unsupported language")
	assert.Error(t, ApplyGenerationFlags(newFlagCommand(t, "--chunk-size", "10", "--chunk-overlap", "10"), config))

	config = DefaultConfig(t.TempDir())
	config.ChatModel = "davinci"
	assert.ErrorContains(t, ApplyGenerationFlags(newFlagCommand(t), config), "invalid model in config")
}

func TestValidateOpenAIRequirements(t *testing.T) {
	config := DefaultConfig(t.TempDir())
	assert.ErrorContains(t, ValidateOpenAIRequirements(newFlagCommand(t), config), "OpenAI API key is required")

	config.OpenAIAPIKey = testAPIKey
	assert.NoError(t, ValidateOpenAIRequirements(newFlagCommand(t), config))
}

func TestContentOptionsFromFlags(t *testing.T) {
	config := DefaultConfig(t.TempDir())

	opts := ContentOptionsFromFlags(newFlagCommand(t, "--yes"), config)
	assert.True(t, opts.AllowTranscription)
	assert.Nil(t, opts.Confirm)
	assert.True(t, opts.ShowStatus)

	opts = ContentOptionsFromFlags(newFlagCommand(t, "--no-transcription"), config)
	assert.False(t, opts.AllowTranscription)
	assert.Nil(t, opts.Confirm)

	config.AllowTranscription = false
	config.Quiet = true
	opts = ContentOptionsFromFlags(newFlagCommand(t), config)
	assert.False(t, opts.AllowTranscription)
	assert.False(t, opts.ShowStatus)
}

func TestHandleFlags(t *testing.T) {
	config := newTestConfig(t)
	require.NoError(t, HandleVerboseFlag(newFlagCommand(t, "-v"), config))
	assert.True(t, config.Verbose)

	app := newTestApp(t, newFakeSource(t), &fakeOpenAI{})
	require.NoError(t, HandlePromptFlag(newFlagCommand(t, "--prompt", "Short summary of {{.Title}}"), app))
	prompt, err := app.promptManager.CreatePrompt("text", &VideoMetadata{Title: "Cats"}, LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, "Short summary of Cats", prompt)
}
