package internal

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application settings
type Config struct {
	// User configurable settings
	ChatModel          string
	EmbeddingModel     string
	ChunkSize          int
	ChunkOverlap       int
	RetrievalK         int
	Language           string
	SessionsDir        string
	ExportsDir         string
	SummaryTimeout     time.Duration
	AnswerTimeout      time.Duration
	WhisperTimeout     time.Duration
	RequestsPerSecond  float64
	AllowTranscription bool
	WebAddr            string
	LogEnabled         bool
	Verbose            bool
	Quiet              bool
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	Prompt             string

	// Fixed XDG paths (not configurable)
	ConfigDir string
	DataDir   string
	CacheDir  string
	TempDir   string
}

//go:embed config.toml prompt.txt
var defaultFS embed.FS

// WhisperLimit is the maximum file size accepted by OpenAI's Whisper API (25 MiB)
const WhisperLimit int64 = 25 << 20

// ensureDefaultFile checks if a file exists in the specified directory
// and creates it from the embedded default if it doesn't exist
func ensureDefaultFile(configDir, embedFilename, description string) error {
	filePath := filepath.Join(configDir, embedFilename)

	if FileExists(filePath) {
		return nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default %s: %w", description, err)
	}

	fmt.Printf("Created default %s at %s\n", description, filePath)
	return nil
}

// EnsureDefaultConfig checks if a config file exists in the XDG config directory
// and creates it from the embedded default if it doesn't exist
func EnsureDefaultConfig(configDir string) error {
	return ensureDefaultFile(configDir, "config.toml", "configuration")
}

// EnsureDefaultPrompt checks if a prompt.txt file exists in the XDG config directory
// and creates it from the embedded default if it doesn't exist
func EnsureDefaultPrompt(configDir string) error {
	return ensureDefaultFile(configDir, "prompt.txt", "summary prompt template")
}

// setDefaults registers the default value of every configurable key
func setDefaults(v *viper.Viper, dataDir string) {
	v.SetDefault("chat_model", "gpt-4o-mini")
	v.SetDefault("embedding_model", "text-embedding-3-small")
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("chunk_overlap", 20)
	v.SetDefault("retrieval_k", 4)
	v.SetDefault("language", string(LanguageEnglish))
	v.SetDefault("sessions_dir", filepath.Join(dataDir, "sessions"))
	v.SetDefault("exports_dir", ".")
	v.SetDefault("summary_timeout", 2*time.Minute)
	v.SetDefault("answer_timeout", 2*time.Minute)
	v.SetDefault("whisper_timeout", 10*time.Minute)
	v.SetDefault("requests_per_second", 5.0)
	v.SetDefault("allow_transcription", true)
	v.SetDefault("web_addr", "127.0.0.1:7860")
	v.SetDefault("log_enabled", false)
	v.SetDefault("verbose", false)
	v.SetDefault("prompt", "") // if empty will use default prompt template
}

// InitConfig initializes Viper and loads configuration
func InitConfig(configFile string) *Config {
	// .env values only fill variables that are not already set
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error reading .env file: %v\n", err)
	}

	configDir := filepath.Join(xdg.ConfigHome, "ytrag")
	dataDir := filepath.Join(xdg.DataHome, "ytrag")
	cacheDir := filepath.Join(xdg.CacheHome, "ytrag")

	v := viper.New()
	setDefaults(v, dataDir)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("YTRAG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// OpenAI credentials use the SDK's conventional variable names
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai_base_url", "OPENAI_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	config := configFromViper(v)
	config.ConfigDir = configDir
	config.DataDir = dataDir
	config.CacheDir = cacheDir
	config.TempDir = filepath.Join(cacheDir, "temp_chunks")

	if config.Verbose {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	return config
}

// configFromViper builds a Config from the resolved viper keys
func configFromViper(v *viper.Viper) *Config {
	return &Config{
		ChatModel:          v.GetString("chat_model"),
		EmbeddingModel:     v.GetString("embedding_model"),
		ChunkSize:          v.GetInt("chunk_size"),
		ChunkOverlap:       v.GetInt("chunk_overlap"),
		RetrievalK:         v.GetInt("retrieval_k"),
		Language:           string(NormalizeLanguage(v.GetString("language"))),
		SessionsDir:        v.GetString("sessions_dir"),
		ExportsDir:         v.GetString("exports_dir"),
		SummaryTimeout:     v.GetDuration("summary_timeout"),
		AnswerTimeout:      v.GetDuration("answer_timeout"),
		WhisperTimeout:     v.GetDuration("whisper_timeout"),
		RequestsPerSecond:  v.GetFloat64("requests_per_second"),
		AllowTranscription: v.GetBool("allow_transcription"),
		WebAddr:            v.GetString("web_addr"),
		LogEnabled:         v.GetBool("log_enabled"),
		Verbose:            v.GetBool("verbose"),
		OpenAIAPIKey:       v.GetString("openai_api_key"),
		OpenAIBaseURL:      v.GetString("openai_base_url"),
		Prompt:             v.GetString("prompt"),
	}
}

// DefaultConfig returns the built-in defaults rooted at dataDir, without reading files or env
func DefaultConfig(dataDir string) *Config {
	v := viper.New()
	setDefaults(v, dataDir)
	config := configFromViper(v)
	config.DataDir = dataDir
	config.ConfigDir = filepath.Join(dataDir, "config")
	config.CacheDir = filepath.Join(dataDir, "cache")
	config.TempDir = filepath.Join(config.CacheDir, "temp_chunks")
	return config
}

// Clone returns a shallow copy so callers can override per-request settings
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ModelConfig returns the chunking and model parameters recorded with sessions
func (c *Config) ModelConfig() ModelConfig {
	return ModelConfig{
		ModelName:    c.ChatModel,
		ChunkSize:    c.ChunkSize,
		ChunkOverlap: c.ChunkOverlap,
	}
}
