package cmd

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/rtzll/ytrag/internal"
)

// effectiveConfig mirrors the keys of config.toml
type effectiveConfig struct {
	ChatModel          string  `toml:"chat_model"`
	EmbeddingModel     string  `toml:"embedding_model"`
	ChunkSize          int     `toml:"chunk_size"`
	ChunkOverlap       int     `toml:"chunk_overlap"`
	RetrievalK         int     `toml:"retrieval_k"`
	Language           string  `toml:"language"`
	AllowTranscription bool    `toml:"allow_transcription"`
	SessionsDir        string  `toml:"sessions_dir"`
	ExportsDir         string  `toml:"exports_dir"`
	SummaryTimeout     string  `toml:"summary_timeout"`
	AnswerTimeout      string  `toml:"answer_timeout"`
	WhisperTimeout     string  `toml:"whisper_timeout"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
	WebAddr            string  `toml:"web_addr"`
	LogEnabled         bool    `toml:"log_enabled"`
	Prompt             string  `toml:"prompt"`
	OpenAIAPIKey       string  `toml:"openai_api_key"`
	OpenAIBaseURL      string  `toml:"openai_base_url,omitempty"`
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as TOML",
	Example: `  # Show settings after config file, .env and environment are applied
  ytrag config`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := toml.NewEncoder(os.Stdout)
		enc.SetIndentTables(true)
		return enc.Encode(newEffectiveConfig(config))
	},
}

func newEffectiveConfig(c *internal.Config) effectiveConfig {
	return effectiveConfig{
		ChatModel:          c.ChatModel,
		EmbeddingModel:     c.EmbeddingModel,
		ChunkSize:          c.ChunkSize,
		ChunkOverlap:       c.ChunkOverlap,
		RetrievalK:         c.RetrievalK,
		Language:           c.Language,
		AllowTranscription: c.AllowTranscription,
		SessionsDir:        c.SessionsDir,
		ExportsDir:         c.ExportsDir,
		SummaryTimeout:     c.SummaryTimeout.String(),
		AnswerTimeout:      c.AnswerTimeout.String(),
		WhisperTimeout:     c.WhisperTimeout.String(),
		RequestsPerSecond:  c.RequestsPerSecond,
		WebAddr:            c.WebAddr,
		LogEnabled:         c.LogEnabled,
		Prompt:             c.Prompt,
		OpenAIAPIKey:       maskKey(c.OpenAIAPIKey),
		OpenAIBaseURL:      c.OpenAIBaseURL,
	}
}

// maskKey keeps only enough of an API key to recognize it
func maskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	default:
		return fmt.Sprintf("%s...%s", key[:3], key[len(key)-4:])
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
}
