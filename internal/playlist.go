package internal

import (
	"context"
	"errors"
	"fmt"
)

// PlaylistOptions controls IngestPlaylist
type PlaylistOptions struct {
	ContentOptions
	// SessionName appends to this session when it exists, otherwise names the new session
	SessionName  string
	StartIndex   int
	MaxVideos    int
	SkipExisting bool
	StopOnError  bool
	SaveSummary  bool
	SaveOriginal bool
}

// PlaylistFailure records why one entry could not be ingested
type PlaylistFailure struct {
	Entry PlaylistEntry
	Err   error
}

// PlaylistReport summarizes a playlist ingestion
type PlaylistReport struct {
	Title     string
	Session   *Session
	Processed []PlaylistEntry
	Skipped   []PlaylistEntry
	Failed    []PlaylistFailure
}

// SessionName returns the name of the resulting session, if any
func (r *PlaylistReport) SessionName() string {
	if r.Session == nil {
		return ""
	}
	return r.Session.Name
}

// LimitEntries applies a zero-based start index and an optional maximum count
func LimitEntries(entries []PlaylistEntry, start, limit int) []PlaylistEntry {
	start = max(start, 0)
	if start >= len(entries) {
		return nil
	}
	selected := entries[start:]
	if limit > 0 && limit < len(selected) {
		selected = selected[:limit]
	}
	return selected
}

// IngestPlaylist processes every selected playlist entry into a single session
func (app *App) IngestPlaylist(ctx context.Context, playlistURL string, opts PlaylistOptions) (*PlaylistReport, error) {
	info, err := app.source.PlaylistEntries(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("resolving playlist: %w", err)
	}

	report := &PlaylistReport{Title: info.Title}
	known := map[string]bool{}

	if opts.SessionName != "" && app.sessions.Exists(opts.SessionName) {
		session, err := app.LoadSession(ctx, opts.SessionName)
		if err != nil {
			return nil, fmt.Errorf("loading session %s: %w", opts.SessionName, err)
		}
		report.Session = session
		for _, u := range session.VideoURLs() {
			known[u] = true
		}
	}

	entries := LimitEntries(info.Entries, opts.StartIndex, opts.MaxVideos)
	app.ui.Printf("Found %d videos in playlist: %s\n", len(entries), info.Title)

	bar := app.ui.NewProgressBar(len(entries), "Ingesting videos")
	for i, entry := range entries {
		bar.Set(i)
		title := entry.Title
		if title == "" {
			title = entry.ID
		}

		if opts.SkipExisting && known[entry.URL] {
			app.ui.Verbose("\nSkipping already ingested video: %s\n", title)
			report.Skipped = append(report.Skipped, entry)
			continue
		}

		app.ui.Verbose("\nProcessing: %s\n    URL: %s\n", title, entry.URL)
		if err := app.ingestEntry(ctx, report, entry, opts); err != nil {
			if ctx.Err() != nil {
				bar.Finish()
				return report, ctx.Err()
			}
			report.Failed = append(report.Failed, PlaylistFailure{Entry: entry, Err: err})
			app.ui.Verbose("Failed to ingest %q: %v\n", title, err)
			if opts.StopOnError {
				break
			}
			continue
		}

		report.Processed = append(report.Processed, entry)
		known[entry.URL] = true
	}
	bar.Finish()

	if report.Session == nil && len(report.Failed) > 0 {
		return report, fmt.Errorf("no videos could be ingested: %w", report.Failed[0].Err)
	}
	return report, nil
}

// ingestEntry creates the session from the first video and appends the rest
func (app *App) ingestEntry(ctx context.Context, report *PlaylistReport, entry PlaylistEntry, opts PlaylistOptions) error {
	content := opts.ContentOptions
	content.ShowStatus = false

	if report.Session == nil {
		result, err := app.ProcessVideo(ctx, entry.URL, ProcessOptions{
			ContentOptions: content,
			SaveSummary:    opts.SaveSummary,
			SaveOriginal:   opts.SaveOriginal,
			SessionName:    opts.SessionName,
		})
		if err != nil {
			return err
		}
		report.Session = result.Session
		return nil
	}

	result, err := app.AddVideoToSession(ctx, report.Session, entry.URL, content)
	if err != nil {
		return err
	}
	report.Session = result.Session

	latest := result.Session.Documents[len(result.Session.Documents)-1]
	if opts.SaveSummary {
		if _, err := SaveSummary(app.config.ExportsDir, result.NewSummary, latest); err != nil {
			app.ui.Warnf("saving summary: %v", err)
		}
	}
	if opts.SaveOriginal {
		if _, err := SaveOriginalText(app.config.ExportsDir, latest); err != nil {
			app.ui.Warnf("saving original text: %v", err)
		}
	}
	return nil
}

// IsTranscriptionRefused reports whether err means a video was skipped for lack of subtitles
func IsTranscriptionRefused(err error) bool {
	return errors.Is(err, ErrTranscriptionNotAllowed)
}
