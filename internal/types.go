package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSubtitles is returned when a video has no subtitle track in any requested language
	ErrNoSubtitles = errors.New("no subtitles available")
	// ErrTranscriptionNotAllowed is returned when subtitles are missing and transcription is disabled or declined
	ErrTranscriptionNotAllowed = errors.New("video has no subtitles and audio transcription is not allowed")
	ErrSessionNotFound         = errors.New("session not found")
	ErrInvalidSessionName      = errors.New("invalid session name")
	ErrEmptyQuestion           = errors.New("question is empty")
	ErrNoActiveSession         = errors.New("no active session")
	ErrDownloadFailed          = errors.New("download failed")
)

// ContentType represents the type of YouTube content
type ContentType int

const (
	ContentTypeUnknown ContentType = iota
	ContentTypeVideo
	ContentTypePlaylist
	ContentTypeCommand
)

// String returns a human-readable representation of the content type
func (ct ContentType) String() string {
	switch ct {
	case ContentTypeVideo:
		return "video"
	case ContentTypePlaylist:
		return "playlist"
	case ContentTypeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// ParsedArg represents the result of classifying a command line argument
type ParsedArg struct {
	ContentType   ContentType
	OriginalInput string
	NormalizedURL string
	ID            string
}

// ClassifyArg decides whether arg names a video, a playlist or a mistyped command
func ClassifyArg(arg string) ParsedArg {
	parsed := ParsedArg{OriginalInput: arg}
	if !strings.HasPrefix(arg, "http") && IsLikelyCommand(arg) {
		parsed.ContentType = ContentTypeCommand
		return parsed
	}

	parsed.NormalizedURL, parsed.ID = ParseArg(arg)
	switch {
	case IsValidPlaylistID(parsed.ID):
		parsed.ContentType = ContentTypePlaylist
	case IsValidYouTubeID(parsed.ID) || ValidateYouTubeURL(parsed.NormalizedURL):
		parsed.ContentType = ContentTypeVideo
	}
	return parsed
}

// SuggestCorrection provides helpful suggestions for inputs that look like commands
func (p *ParsedArg) SuggestCorrection(availableCommands []string) string {
	if p.ContentType != ContentTypeCommand {
		return ""
	}

	input := strings.ToLower(p.OriginalInput)
	var suggestions []string
	for _, cmd := range availableCommands {
		if strings.Contains(cmd, input) || strings.Contains(input, cmd) {
			suggestions = append(suggestions, cmd)
		}
	}

	if len(suggestions) > 0 {
		return fmt.Sprintf("did you mean: %s", strings.Join(suggestions, ", "))
	}

	return "use --help to see available commands"
}

// DocumentKind records where a document's text came from
type DocumentKind string

const (
	KindSubtitles     DocumentKind = "subtitles"
	KindTranscription DocumentKind = "transcription"
	KindCombined      DocumentKind = "combined"
)

// DocumentMetadata describes the origin of a document
type DocumentMetadata struct {
	Source string       `json:"source"`
	Type   DocumentKind `json:"type"`
}

// Document is the full text obtained for one video
type Document struct {
	Content  string           `json:"content"`
	Metadata DocumentMetadata `json:"metadata"`
}

// VideoSummary pairs a video URL with its generated summary
type VideoSummary struct {
	VideoURL string `json:"video_url"`
	Summary  string `json:"summary"`
}

// ChatTurn is one question and its answer; stored as a [question, answer] pair
type ChatTurn struct {
	Question string
	Answer   string
}

// MarshalJSON encodes the turn as a two element array
func (t ChatTurn) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{t.Question, t.Answer})
}

// UnmarshalJSON decodes a [question, answer] array
func (t *ChatTurn) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decoding chat turn: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decoding chat turn: expected 2 elements, got %d", len(pair))
	}
	t.Question, t.Answer = pair[0], pair[1]
	return nil
}

// ModelConfig holds the generation parameters a session was built with
type ModelConfig struct {
	ModelName    string `json:"model_name"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

// Language selects the language summaries and reports are written in
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageChinese Language = "zh"
)

// NormalizeLanguage maps free-form input to a supported language, defaulting to English
func NormalizeLanguage(s string) Language {
	if lang, ok := ParseLanguageChoice(s); ok {
		return lang
	}
	return LanguageEnglish
}

// ParseLanguageChoice recognizes a menu number or language name
func ParseLanguageChoice(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "zh", "cn", "zh-cn", "zh-hans", "中文", "chinese", "简体", "简体中文":
		return LanguageChinese, true
	case "2", "en", "english", "英文":
		return LanguageEnglish, true
	}
	return "", false
}

// Label returns the display name of the language
func (l Language) Label() string {
	if l == LanguageChinese {
		return "简体中文"
	}
	return "English"
}

// PromptName returns the language name used inside prompts
func (l Language) PromptName() string {
	if l == LanguageChinese {
		return "Simplified Chinese"
	}
	return "English"
}
