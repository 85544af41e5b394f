package internal

import (
	"context"
	"fmt"
	"path/filepath"
)

// App holds the application state and dependencies
type App struct {
	source        VideoSource
	audio         *Audio
	ai            *AI
	promptManager *PromptManager
	sessions      *SessionManager
	config        *Config
	ui            UIManager
}

// NewApp initializes the application
func NewApp(config *Config, options ...AppOption) *App {
	cmdRunner := &DefaultCommandRunner{}
	audio := NewAudio(cmdRunner, config.TempDir, config.Verbose)

	app := &App{
		source:        NewYouTube(config.CacheDir, config.Verbose),
		audio:         audio,
		ai:            NewAIWithKey(audio, config),
		promptManager: NewPromptManager(config.ConfigDir, config.Prompt),
		config:        config,
		ui:            NewUIManager(config.Verbose, config.Quiet),
	}

	// Apply any custom options
	for _, option := range options {
		option(app)
	}

	if app.ai.audio == nil {
		app.ai.audio = app.audio
	}
	app.sessions = NewSessionManager(config, app.ai)
	return app
}

// AppOption customizes App creation
type AppOption func(*App)

// WithVideoSource sets a custom video source
func WithVideoSource(source VideoSource) AppOption {
	return func(a *App) {
		a.source = source
	}
}

// WithAudio sets the audio splitter handed to an AI built without one
func WithAudio(audio *Audio) AppOption {
	return func(a *App) {
		a.audio = audio
	}
}

// WithAI sets a custom AI processor
func WithAI(ai *AI) AppOption {
	return func(a *App) {
		a.ai = ai
	}
}

// WithUI sets a custom UI manager
func WithUI(ui UIManager) AppOption {
	return func(a *App) {
		a.ui = ui
	}
}

// SetPromptManager sets a new prompt manager
func (app *App) SetPromptManager(pm *PromptManager) {
	app.promptManager = pm
}

// Config returns the application settings
func (app *App) Config() *Config {
	return app.config
}

// Sessions returns the session store
func (app *App) Sessions() *SessionManager {
	return app.sessions
}

// UI returns the user interface manager
func (app *App) UI() UIManager {
	return app.ui
}

// Language returns the language summaries are currently written in
func (app *App) Language() Language {
	return NormalizeLanguage(app.config.Language)
}

// SetLanguage switches the summary and report language
func (app *App) SetLanguage(lang Language) {
	app.config.Language = string(lang)
}

// adoptSession switches model, chunking and language to what a session was built with
func (app *App) adoptSession(session *Session) {
	meta := session.Metadata
	if meta.ModelName != "" {
		app.config.ChatModel = meta.ModelName
		app.ai.SetModel(meta.ModelName)
	}
	if meta.ChunkSize > 0 {
		app.config.ChunkSize = meta.ChunkSize
		app.config.ChunkOverlap = meta.ChunkOverlap
	}
	if meta.Language != "" {
		app.SetLanguage(session.Language())
	}
}

// LoadSession loads a session and adopts its settings
func (app *App) LoadSession(ctx context.Context, name string) (*Session, error) {
	session, err := app.sessions.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	app.adoptSession(session)
	return session, nil
}

// Metadata gets metadata from YouTube (cached or fresh)
func (app *App) Metadata(ctx context.Context, youtubeURL string) (*VideoMetadata, error) {
	return app.MetadataWithStatus(ctx, youtubeURL, false)
}

// MetadataWithStatus gets metadata with optional status spinner
func (app *App) MetadataWithStatus(ctx context.Context, youtubeURL string, showStatus bool) (*VideoMetadata, error) {
	var spinner ProgressBar
	if showStatus {
		spinner = app.ui.NewSpinner("Fetching video metadata...")
		defer spinner.Finish()
	}
	_, youtubeID := ParseArg(youtubeURL)
	cacheDir := app.metadataCacheDir()

	if cachedMetadata, err := LoadCachedMetadata(youtubeID, cacheDir); err == nil {
		app.ui.Verbose("Using cached metadata for %s\n", youtubeID)
		return cachedMetadata, nil
	}

	app.ui.Verbose("Fetching fresh metadata for %s\n", youtubeID)
	metadata, err := app.source.Metadata(ctx, youtubeURL)
	if err != nil {
		return nil, err
	}

	if spinner != nil {
		spinner.Describe("Caching metadata...")
	}
	if err := SaveMetadata(youtubeID, metadata, cacheDir); err != nil {
		app.ui.Verbose("Warning: Failed to cache metadata: %v\n", err)
	}

	return metadata, nil
}

func (app *App) metadataCacheDir() string {
	return filepath.Join(app.config.CacheDir, "metadata")
}

// Transcribe downloads a video's audio and transcribes it with Whisper
func (app *App) Transcribe(ctx context.Context, videoURL string, showStatus bool) (string, error) {
	var spinner ProgressBar
	if showStatus && !app.config.Verbose {
		spinner = app.ui.NewSpinner("Downloading audio...")
		defer spinner.Finish()
	}

	audioFile, err := app.source.Audio(ctx, videoURL)
	if err != nil {
		return "", fmt.Errorf("downloading audio: %w", err)
	}
	defer cleanupFiles(audioFile)

	if spinner != nil {
		spinner.Describe("Transcribing with OpenAI Whisper...")
	}

	transcript, err := app.ai.TranscribeWithProgress(ctx, audioFile, spinner)
	if err != nil {
		return "", err
	}
	return transcript, nil
}
