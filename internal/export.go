package internal

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SummaryFileName returns "<videoID>_summary.txt" for a video URL
func SummaryFileName(videoURL string) string {
	return ExtractVideoID(videoURL) + "_summary.txt"
}

// OriginalFileName returns "<videoID>_<type>.txt" for a document
func OriginalFileName(doc Document) string {
	kind := string(doc.Metadata.Type)
	if kind == "" {
		kind = "content"
	}
	return ExtractVideoID(sourceOrUnknown(doc)) + "_" + kind + ".txt"
}

func sourceOrUnknown(doc Document) string {
	if doc.Metadata.Source == "" {
		return "unknown"
	}
	return doc.Metadata.Source
}

// SaveSummary writes a video summary into dir and returns the file path
func SaveSummary(dir, summary string, doc Document) (string, error) {
	if strings.TrimSpace(summary) == "" {
		return "", fmt.Errorf("summary is empty")
	}
	source := sourceOrUnknown(doc)
	path := filepath.Join(dir, SummaryFileName(source))
	header := "Video Summary / 视频摘要\nSource: " + source
	if err := SaveTextFile(path, summary, header); err != nil {
		return "", err
	}
	return path, nil
}

// SaveOriginalText writes a document's full text into dir and returns the file path
func SaveOriginalText(dir string, doc Document) (string, error) {
	kind := string(doc.Metadata.Type)
	if kind == "" {
		kind = "content"
	}
	path := filepath.Join(dir, OriginalFileName(doc))
	header := fmt.Sprintf("Source: %s\nType: %s", sourceOrUnknown(doc), kind)
	if err := SaveTextFile(path, doc.Content, header); err != nil {
		return "", err
	}
	return path, nil
}

// AnalysisPath returns the default report location for a session
func AnalysisPath(exportsDir, sessionName string) string {
	return filepath.Join(exportsDir, "analysis", sessionName+"_analysis.md")
}

// SaveAnalysisReport writes a markdown report with a title and source header
func SaveAnalysisReport(path, sessionName, report string, videoURLs []string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s Analysis\n\n", sessionName)
	if len(videoURLs) > 0 {
		fmt.Fprintf(&sb, "Source Video: %s\n\n", strings.Join(videoURLs, ", "))
	}
	sb.WriteString(strings.TrimSpace(report))
	sb.WriteString("\n")

	return SaveTextFile(path, sb.String(), "")
}
