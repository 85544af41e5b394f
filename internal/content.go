package internal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ContentOptions controls how a video's text is obtained
type ContentOptions struct {
	// AllowTranscription permits the paid Whisper fallback when a video has no subtitles
	AllowTranscription bool
	// Confirm, when set, is asked before transcribing
	Confirm func(videoURL string) bool
	// ShowStatus shows spinners while fetching
	ShowStatus bool
}

// GetVideoContent returns a video's subtitles, or its audio transcription when subtitles are missing
func (app *App) GetVideoContent(ctx context.Context, videoURL string, opts ContentOptions) (Document, error) {
	text, subErr := app.fetchSubtitles(ctx, videoURL, opts.ShowStatus)
	if subErr == nil {
		return Document{
			Content:  text,
			Metadata: DocumentMetadata{Source: videoURL, Type: KindSubtitles},
		}, nil
	}
	if ctx.Err() != nil {
		return Document{}, ctx.Err()
	}

	app.ui.Verbose("Subtitles unavailable for %s: %v\n", videoURL, subErr)
	if !opts.AllowTranscription {
		return Document{}, fmt.Errorf("%w: %v", ErrTranscriptionNotAllowed, subErr)
	}
	if opts.Confirm != nil && !opts.Confirm(videoURL) {
		return Document{}, fmt.Errorf("%w: transcription declined", ErrTranscriptionNotAllowed)
	}

	app.ui.Printf("No subtitles found, transcribing audio...\n")
	transcript, err := app.Transcribe(ctx, videoURL, opts.ShowStatus)
	if err != nil {
		return Document{}, fmt.Errorf("transcribing %s: %w", videoURL, err)
	}

	content := SanitizeForStorage(transcript, MaxStoredBytes)
	if content == "" {
		return Document{}, fmt.Errorf("transcription of %s returned no text", videoURL)
	}
	return Document{
		Content:  content,
		Metadata: DocumentMetadata{Source: videoURL, Type: KindTranscription},
	}, nil
}

// fetchSubtitles downloads and cleans subtitles, retrying once after a download failure
func (app *App) fetchSubtitles(ctx context.Context, videoURL string, showStatus bool) (string, error) {
	var spinner ProgressBar
	if showStatus {
		spinner = app.ui.NewSpinner("Fetching subtitles...")
		defer spinner.Finish()
	}

	raw, err := app.source.Subtitles(ctx, videoURL)
	if errors.Is(err, ErrDownloadFailed) {
		if spinner != nil {
			spinner.Describe("Download failed, retrying...")
		}
		app.ui.Verbose("Download failed, retrying in 1 second...\n")

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}
		raw, err = app.source.Subtitles(ctx, videoURL)
	}
	if err != nil {
		return "", err
	}

	text := SanitizeForStorage(raw, MaxStoredBytes)
	if text == "" {
		return "", fmt.Errorf("%w: subtitle file contains no text", ErrNoSubtitles)
	}
	return text, nil
}
