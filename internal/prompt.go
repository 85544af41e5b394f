package internal

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Built-in prompt templates
const (
	PromptChunk    = "chunk"
	PromptFinal    = "final"
	PromptFallback = "fallback"
	PromptAnalysis = "analysis"
	PromptQA       = "qa"
)

var builtinPrompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// PromptData for template injection
type PromptData struct {
	Title       string
	Channel     string
	Description string
	Transcript  string
	Chunk       string
	Summaries   string
	Summary     string
	Context     string
	Metadata    string

	LanguageLabel       string
	LanguageInstruction string
	LanguageReminder    string
}

// WithLanguage fills the language fields for lang
func (d PromptData) WithLanguage(lang Language) PromptData {
	d.LanguageLabel = lang.PromptName()
	if lang == LanguageChinese {
		d.LanguageInstruction = "请使用简体中文撰写。"
		d.LanguageReminder = "请用简体中文回答。"
	} else {
		d.LanguageInstruction = "Please write it in English."
		d.LanguageReminder = "Please respond in English."
	}
	return d
}

// WithMetadata copies the descriptive fields of a video into the data
func (d PromptData) WithMetadata(metadata *VideoMetadata) PromptData {
	if metadata != nil {
		d.Title = metadata.Title
		d.Channel = metadata.Channel
		d.Description = metadata.Description
	}
	return d
}

// PromptManager handles loading and processing prompt templates
type PromptManager struct {
	promptFile   string
	promptString string
	configDir    string
}

// NewPromptManager creates a new prompt manager
func NewPromptManager(configDir, promptSetting string) *PromptManager {
	pm := &PromptManager{
		configDir: configDir,
	}

	if promptSetting != "" {
		if IsLikelyFilePath(promptSetting) && FileExists(promptSetting) {
			pm.promptFile = promptSetting
		} else {
			pm.promptString = promptSetting
		}
	}

	return pm
}

// summaryTemplate returns the summary template text, preferring user overrides
func (pm *PromptManager) summaryTemplate() (string, error) {
	if pm.promptString != "" {
		return pm.promptString, nil
	}

	promptFile := pm.promptFile
	if promptFile == "" {
		promptFile = filepath.Join(pm.configDir, "prompt.txt")
		if !FileExists(promptFile) {
			content, err := defaultFS.ReadFile("prompt.txt")
			if err != nil {
				return "", fmt.Errorf("reading embedded prompt template: %w", err)
			}
			return string(content), nil
		}
	}

	content, err := os.ReadFile(promptFile)
	if err != nil {
		return "", fmt.Errorf("reading prompt template: %w", err)
	}
	return string(content), nil
}

// CreatePrompt builds the direct summary prompt from a transcript and metadata
func (pm *PromptManager) CreatePrompt(transcript string, metadata *VideoMetadata, lang Language) (string, error) {
	tmplContent, err := pm.summaryTemplate()
	if err != nil {
		return "", err
	}

	data := PromptData{Transcript: transcript}.WithMetadata(metadata).WithLanguage(lang)
	return buildPromptFromTemplate(tmplContent, data)
}

// Render executes one of the built-in templates
func (pm *PromptManager) Render(name string, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := builtinPrompts.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("executing %s prompt template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// buildPromptFromTemplate builds the AI prompt from template content
func buildPromptFromTemplate(templateContent string, data PromptData) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateContent)
	if err != nil {
		return "", fmt.Errorf("parsing prompt template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing prompt template: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// IsLikelyFilePath uses heuristics to determine if a string is likely a file path
func IsLikelyFilePath(s string) bool {
	if strings.Contains(s, "/") || strings.Contains(s, "\\") {
		return true
	}

	if strings.Contains(s, ".txt") || strings.Contains(s, ".md") ||
		strings.Contains(s, ".template") || strings.Contains(s, ".tmpl") {
		return true
	}

	if len(s) > 200 {
		return false
	}

	// Single words without whitespace are treated as file names
	return !strings.Contains(s, " ") && !strings.Contains(s, "\n")
}
