package internal

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	analysisExcerptBytes = 120_000
	analysisExcerptRunes = 20_000
	analysisSummaryRunes = 4000

	summaryRule = "\n\n" + "--------------------------------------------------" + "\n\n"
)

// ProcessOptions controls ProcessVideo
type ProcessOptions struct {
	ContentOptions
	SaveSummary  bool
	SaveOriginal bool
	// SessionName overrides the default session name (the video ID)
	SessionName string
}

// ProcessResult is a freshly built session plus any files exported on the way
type ProcessResult struct {
	Session    *Session
	SavedFiles []string
}

// Answer is a response to a question with the chunks it was based on
type Answer struct {
	Text    string
	Sources []SearchResult
}

// AddResult reports the refreshed session and the summary of the added video
type AddResult struct {
	Session    *Session
	NewSummary string
}

// Summarize summarizes a document in the current language
func (app *App) Summarize(ctx context.Context, doc Document) (string, error) {
	var metadata *VideoMetadata
	if doc.Metadata.Type != KindCombined && doc.Metadata.Source != "" {
		if m, err := app.Metadata(ctx, doc.Metadata.Source); err == nil {
			metadata = m
		} else {
			app.ui.Verbose("Failed to extract video metadata: %v\n", err)
		}
	}

	summarizer := NewSummarizer(app.ai, app.promptManager, app.ui)
	return summarizer.Summarize(ctx, doc, metadata, app.Language())
}

// summarizeOrPlaceholder keeps ingestion going when both summary attempts fail
func (app *App) summarizeOrPlaceholder(ctx context.Context, doc Document, showStatus bool) (string, error) {
	var spinner ProgressBar
	if showStatus && !app.config.Verbose {
		spinner = app.ui.NewSpinner("Generating summary...")
		defer spinner.Finish()
	}

	summary, err := app.Summarize(ctx, doc)
	if err == nil {
		return summary, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	app.ui.Warnf("summary generation failed: %v", err)
	return fmt.Sprintf("Summary unavailable: %v", err), nil
}

// ProcessVideo fetches, summarizes and indexes a video into a new session
func (app *App) ProcessVideo(ctx context.Context, videoURL string, opts ProcessOptions) (*ProcessResult, error) {
	doc, err := app.GetVideoContent(ctx, videoURL, opts.ContentOptions)
	if err != nil {
		return nil, err
	}

	summary, err := app.summarizeOrPlaceholder(ctx, doc, opts.ShowStatus)
	if err != nil {
		return nil, err
	}

	var saved []string
	if opts.SaveSummary {
		path, err := SaveSummary(app.config.ExportsDir, summary, doc)
		if err != nil {
			app.ui.Warnf("saving summary: %v", err)
		} else {
			saved = append(saved, "Summary: "+path)
		}
	}
	if opts.SaveOriginal {
		path, err := SaveOriginalText(app.config.ExportsDir, doc)
		if err != nil {
			app.ui.Warnf("saving original text: %v", err)
		} else {
			saved = append(saved, "Original: "+path)
		}
	}

	name := opts.SessionName
	if name == "" {
		if id := ExtractVideoID(videoURL); id != "unknown" {
			name = id
		}
	}

	var spinner ProgressBar
	if opts.ShowStatus && !app.config.Verbose {
		spinner = app.ui.NewSpinner("Building knowledge base...")
	}
	name, err = app.sessions.Save(ctx, SaveRequest{
		Name:      name,
		Document:  doc,
		Documents: []Document{doc},
		Summary:   summary,
		Summaries: []VideoSummary{{VideoURL: videoURL, Summary: summary}},
		Language:  app.Language(),
		Model:     app.config.ModelConfig(),
	})
	if spinner != nil {
		spinner.Finish()
	}
	if err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	session, err := app.LoadSession(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading session after saving: %w", err)
	}
	return &ProcessResult{Session: session, SavedFiles: saved}, nil
}

// AddVideoToSession appends another video to a loaded session and returns the reloaded session
func (app *App) AddVideoToSession(ctx context.Context, session *Session, videoURL string, opts ContentOptions) (*AddResult, error) {
	if session == nil {
		return nil, ErrNoActiveSession
	}

	doc, err := app.GetVideoContent(ctx, videoURL, opts)
	if err != nil {
		return nil, err
	}
	summary, err := app.summarizeOrPlaceholder(ctx, doc, opts.ShowStatus)
	if err != nil {
		return nil, err
	}

	documents := append(slices.Clone(session.Documents), doc)
	summaries := append(slices.Clone(session.Metadata.Summaries), VideoSummary{VideoURL: videoURL, Summary: summary})

	combinedSummary := session.Summary()
	if combinedSummary != "" {
		combinedSummary += summaryRule
	}
	combinedSummary += summary

	contents := make([]string, len(documents))
	for i, d := range documents {
		contents[i] = d.Content
	}
	primary := videoURL
	if urls := session.VideoURLs(); len(urls) > 0 {
		primary = urls[0]
	}
	combined := Document{
		Content:  strings.Join(contents, "\n\n"),
		Metadata: DocumentMetadata{Source: primary, Type: KindCombined},
	}

	err = app.sessions.Append(ctx, session.Name, AppendRequest{
		Documents:        documents,
		NewDocuments:     []Document{doc},
		Summaries:        summaries,
		CombinedSummary:  combinedSummary,
		CombinedDocument: combined,
		ChatHistory:      session.Metadata.ChatHistory,
		Language:         app.Language(),
		Model:            app.config.ModelConfig(),
	})
	if err != nil {
		return nil, fmt.Errorf("updating session with new video: %w", err)
	}

	if err := session.Close(); err != nil {
		app.ui.Verbose("Warning: closing session index: %v\n", err)
	}
	refreshed, err := app.LoadSession(ctx, session.Name)
	if err != nil {
		return nil, fmt.Errorf("reloading session after adding video: %w", err)
	}
	return &AddResult{Session: refreshed, NewSummary: summary}, nil
}

// historyMessages converts chat turns into alternating user/assistant messages
func historyMessages(history []ChatTurn) []ChatMessage {
	var messages []ChatMessage
	for _, turn := range history {
		if turn.Question != "" && !strings.EqualFold(turn.Question, "system") {
			messages = append(messages, ChatMessage{Role: RoleUser, Content: turn.Question})
		}
		if turn.Answer != "" {
			messages = append(messages, ChatMessage{Role: RoleAssistant, Content: turn.Answer})
		}
	}
	return messages
}

// Ask answers a question from the session's indexed content, taking prior turns into account
func (app *App) Ask(ctx context.Context, session *Session, question string, history []ChatTurn) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if session == nil || session.Retriever == nil {
		return nil, ErrNoActiveSession
	}

	results, err := session.Retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Content
	}
	system, err := app.promptManager.Render(PromptQA, PromptData{Context: strings.Join(contexts, "\n\n")})
	if err != nil {
		return nil, err
	}

	messages := []ChatMessage{{Role: RoleSystem, Content: system}}
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, ChatMessage{Role: RoleUser, Content: question})

	text, err := app.ai.Answer(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("answering question: %w", err)
	}
	return &Answer{Text: text, Sources: results}, nil
}

// AskAndRecord answers a question and persists the new turn; a failed save only warns
func (app *App) AskAndRecord(ctx context.Context, session *Session, question string) (*Answer, error) {
	if session == nil {
		return nil, ErrNoActiveSession
	}
	answer, err := app.Ask(ctx, session, question, session.Metadata.ChatHistory)
	if err != nil {
		return nil, err
	}

	session.Metadata.ChatHistory = append(session.Metadata.ChatHistory, ChatTurn{
		Question: strings.TrimSpace(question),
		Answer:   answer.Text,
	})
	if err := app.sessions.UpdateChatHistory(ctx, session.Name, session.Metadata.ChatHistory); err != nil {
		app.ui.Warnf("saving chat history: %v", err)
	}
	return answer, nil
}

// analysisMetadataBlock lists what is known about the session for the analysis prompt
func analysisMetadataBlock(meta SessionMetadata) string {
	var lines []string
	urls := meta.VideoURLs
	if len(urls) == 0 && meta.VideoURL != "" {
		urls = []string{meta.VideoURL}
	}
	if len(urls) > 0 {
		lines = append(lines, "Video URLs: "+strings.Join(urls, ", "))
	}
	if meta.CreatedAt != "" {
		lines = append(lines, "Session Created At: "+meta.CreatedAt)
	}
	if meta.ModelName != "" {
		lines = append(lines, "Model: "+meta.ModelName)
	}
	if meta.ChunkSize > 0 {
		lines = append(lines, "Chunk Size: "+strconv.Itoa(meta.ChunkSize))
	}
	if len(lines) == 0 {
		return "(No additional metadata provided)"
	}
	return strings.Join(lines, "\n")
}

// transcriptExcerpt bounds the transcript sent for analysis, falling back to the summary
func transcriptExcerpt(content, summary string) string {
	excerpt := SanitizeForStorage(content, analysisExcerptBytes)
	if excerpt == "" {
		return truncateRunes(summary, analysisSummaryRunes)
	}
	if utf8.RuneCountInString(excerpt) > analysisExcerptRunes {
		return truncateRunes(excerpt, analysisExcerptRunes)
	}
	return excerpt
}

// GenerateAnalysisReport writes a structured markdown analysis of a session; empty lang uses the session's
func (app *App) GenerateAnalysisReport(ctx context.Context, session *Session, lang Language) (string, error) {
	if session == nil {
		return "", ErrNoActiveSession
	}
	if lang == "" {
		lang = session.Language()
	}

	summary := session.Summary()
	excerpt := transcriptExcerpt(session.Document().Content, summary)

	data := PromptData{
		Summary:    orDefault(summary, "(Summary not available)"),
		Transcript: orDefault(excerpt, "(Transcript excerpt not available)"),
		Metadata:   analysisMetadataBlock(session.Metadata),
	}.WithLanguage(lang)

	prompt, err := app.promptManager.Render(PromptAnalysis, data)
	if err != nil {
		return "", err
	}

	report, err := app.ai.Analysis(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generating analysis: %w", err)
	}
	return report, nil
}

// ExportAnalysis generates a report and writes it to path, or the default location when path is empty
func (app *App) ExportAnalysis(ctx context.Context, session *Session, lang Language, path string) (string, error) {
	report, err := app.GenerateAnalysisReport(ctx, session, lang)
	if err != nil {
		return "", err
	}
	if path == "" {
		path = AnalysisPath(app.config.ExportsDir, session.Name)
	}
	if err := SaveAnalysisReport(path, session.Name, report, session.VideoURLs()); err != nil {
		return "", err
	}
	return path, nil
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
