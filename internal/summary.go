package internal

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	defaultTokenLimit    = 6000
	chunkSummaryMaxRunes = 1500
	combinedMaxRunes     = 10000
	fallbackPrefixRunes  = 2000

	// EmptyTranscriptNotice is returned instead of a summary when no text survives cleaning
	EmptyTranscriptNotice = "Transcript contains no usable text / 转录内容为空"

	truncatedNotice       = "\n\nNote: Transcript truncated to first ~0.5MB to avoid API limits."
	partialSummaryBanner  = "Partial Summary (video too long) / 部分摘要（视频过长）:\n\n"
	chunkTruncatedNote    = "\n\n(Chunk summaries truncated for final synthesis due to length.)"
	combinedTruncatedNote = "\n\n(Combined summary truncated to keep request small.)"
)

var modelTokenLimits = map[string]int{
	"gpt-5-mini":    100000,
	"gpt-4o-mini":   100000,
	"gpt-4o":        100000,
	"gpt-4-turbo":   100000,
	"o4-mini":       100000,
	"gpt-4":         6000,
	"gpt-3.5-turbo": 12000,
}

// EstimateTokens approximates the token count as one token per three characters
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / 3
}

// ModelTokenLimit returns the estimated-token budget for a single summary request
func ModelTokenLimit(model string) int {
	if limit, ok := modelTokenLimits[model]; ok {
		return limit
	}
	if strings.HasPrefix(model, "gpt-4.1") {
		return 100000
	}
	return defaultTokenLimit
}

// ChunkTextForSummary packs whole lines into chunks of max(1000, 0.75*maxTokens) runes
func ChunkTextForSummary(text string, maxTokens int) []string {
	if EstimateTokens(text) <= maxTokens {
		return []string{text}
	}

	maxRunes := max(1000, maxTokens*3/4)

	var chunks, current []string
	currentLen := 0
	for line := range strings.SplitSeq(text, "\n") {
		lineLen := utf8.RuneCountInString(line) + 1

		if currentLen+lineLen > maxRunes {
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, "\n"))
				current = nil
				currentLen = 0
			}
			if lineLen >= maxRunes {
				chunks = append(chunks, splitRunes(line, maxRunes)...)
				continue
			}
		}

		current = append(current, line)
		currentLen += lineLen
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}

// splitRunes hard-splits s into pieces of at most n runes
func splitRunes(s string, n int) []string {
	runes := []rune(s)
	var parts []string
	for i := 0; i < len(runes); i += n {
		parts = append(parts, string(runes[i:min(i+n, len(runes))]))
	}
	return parts
}

// SummaryModel is the completion backend a Summarizer needs
type SummaryModel interface {
	Summary(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Summarizer turns a transcript into a summary, switching to map-reduce for long inputs
type Summarizer struct {
	model   SummaryModel
	prompts *PromptManager
	ui      UIManager
}

// NewSummarizer creates a summarizer
func NewSummarizer(model SummaryModel, prompts *PromptManager, ui UIManager) *Summarizer {
	return &Summarizer{model: model, prompts: prompts, ui: ui}
}

// Summarize writes a summary of doc in lang; metadata may be nil
func (s *Summarizer) Summarize(ctx context.Context, doc Document, metadata *VideoMetadata, lang Language) (string, error) {
	cleaned := CleanSubtitleText(doc.Content)
	if cleaned == "" {
		return EmptyTranscriptNotice, nil
	}

	text := cleaned
	notice := ""
	if len(text) > MaxStoredBytes {
		s.ui.Verbose("Transcript very long; truncating to ~0.5MB to avoid API limits\n")
		text = truncateBytes(text, MaxStoredBytes)
		notice = truncatedNotice
	}

	summary, err := s.summarize(ctx, text, metadata, lang)
	if err == nil {
		return summary + notice, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	s.ui.Verbose("Summary failed (%v), retrying with truncated text\n", err)
	fallback, fallbackErr := s.fallback(ctx, cleaned, lang)
	if fallbackErr != nil {
		return "", fmt.Errorf("generating summary: %w (fallback: %v)", err, fallbackErr)
	}
	return partialSummaryBanner + fallback + notice, nil
}

func (s *Summarizer) summarize(ctx context.Context, text string, metadata *VideoMetadata, lang Language) (string, error) {
	limit := ModelTokenLimit(s.model.Model())
	estimated := EstimateTokens(text)

	if estimated <= limit {
		prompt, err := s.prompts.CreatePrompt(text, metadata, lang)
		if err != nil {
			return "", fmt.Errorf("creating prompt: %w", err)
		}
		return s.model.Summary(ctx, prompt)
	}

	chunks := ChunkTextForSummary(text, limit)
	s.ui.Verbose("Text is long (%d estimated tokens), summarizing %d chunks\n", estimated, len(chunks))

	base := PromptData{}.WithMetadata(metadata).WithLanguage(lang)
	chunkSummaries := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		s.ui.Verbose("Summarizing chunk %d/%d...\n", i+1, len(chunks))

		data := base
		data.Chunk = chunk
		prompt, err := s.prompts.Render(PromptChunk, data)
		if err != nil {
			return "", err
		}
		part, err := s.model.Summary(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("summarizing chunk %d: %w", i+1, err)
		}
		part = strings.TrimSpace(part)
		if utf8.RuneCountInString(part) > chunkSummaryMaxRunes {
			part = truncateRunes(part, chunkSummaryMaxRunes) + "..."
		}
		chunkSummaries = append(chunkSummaries, part)
	}

	combined := strings.Join(chunkSummaries, "\n\n")
	if EstimateTokens(combined) > limit {
		combined = truncateRunes(combined, limit*2) + chunkTruncatedNote
	}
	if utf8.RuneCountInString(combined) > combinedMaxRunes {
		combined = truncateRunes(combined, combinedMaxRunes) + combinedTruncatedNote
	}

	data := base
	data.Summaries = combined
	prompt, err := s.prompts.Render(PromptFinal, data)
	if err != nil {
		return "", err
	}
	return s.model.Summary(ctx, prompt)
}

func (s *Summarizer) fallback(ctx context.Context, cleaned string, lang Language) (string, error) {
	data := PromptData{Transcript: truncateRunes(cleaned, fallbackPrefixRunes)}.WithLanguage(lang)
	prompt, err := s.prompts.Render(PromptFallback, data)
	if err != nil {
		return "", err
	}
	return s.model.Summary(ctx, prompt)
}
