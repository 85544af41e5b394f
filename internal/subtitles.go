package internal

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxStoredBytes caps the text kept per document so later requests stay within provider limits
const MaxStoredBytes = 500_000

var (
	cueNumberPattern = regexp.MustCompile(`^\d{1,4}$`)
	markupPattern    = regexp.MustCompile(`<[^>]+>`)
)

// CleanSubtitleText strips VTT/SRT framing and markup, keeping one caption line per line
func CleanSubtitleText(text string) string {
	if text == "" {
		return ""
	}

	var lines []string
	prev := ""
	for line := range strings.SplitSeq(text, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" {
			continue
		}
		if strings.HasPrefix(stripped, "WEBVTT") || strings.HasPrefix(stripped, "NOTE") {
			continue
		}
		if strings.HasPrefix(stripped, "Kind:") || strings.HasPrefix(stripped, "Language:") {
			continue
		}
		if strings.Contains(stripped, "-->") || cueNumberPattern.MatchString(stripped) {
			continue
		}

		stripped = strings.TrimSpace(markupPattern.ReplaceAllString(stripped, ""))
		if stripped == "" {
			continue
		}

		// Auto captions repeat the previous line while rolling up
		if stripped == prev {
			continue
		}
		lines = append(lines, stripped)
		prev = stripped
	}

	return strings.Join(lines, "\n")
}

// SanitizeForStorage cleans text and truncates it to maxBytes on a UTF-8 boundary
func SanitizeForStorage(text string, maxBytes int) string {
	cleaned := CleanSubtitleText(text)
	return truncateBytes(cleaned, maxBytes)
}

// truncateBytes cuts s to at most maxBytes without splitting a rune
func truncateBytes(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
