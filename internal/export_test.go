package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportFileNames(t *testing.T) {
	assert.Equal(t, testVideoID+"_summary.txt", SummaryFileName(testVideoURL))
	assert.Equal(t, testVideoID+"_subtitles.txt", OriginalFileName(catDocument()))
	assert.Equal(t, "unknown_content.txt", OriginalFileName(Document{Content: "x"}))
	assert.Equal(t, filepath.Join("out", "analysis", "pets_analysis.md"), AnalysisPath("out", "pets"))
}

func TestSaveSummary(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveSummary(dir, "cats and mats", catDocument())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, testVideoID+"_summary.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Video Summary / 视频摘要\nSource: "+testVideoURL+"\n"+
		"==================================================\n\ncats and mats", string(data))

	_, err = SaveSummary(dir, "   ", catDocument())
	assert.Error(t, err)
}

func TestSaveOriginalText(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := SaveOriginalText(dir, rocketDocument())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, otherVideoID+"_subtitles.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Source: "+otherVideoURL+"\nType: subtitles\n"+
		"==================================================\n\n"+rocketDocument().Content, string(data))
}

func TestSaveAnalysisReport(t *testing.T) {
	path := AnalysisPath(t.TempDir(), "pets")

	require.NoError(t, SaveAnalysisReport(path, "pets", "\n## Overview\nCats.\n\n", []string{testVideoURL, otherVideoURL}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# pets Analysis\n\nSource Video: "+testVideoURL+", "+otherVideoURL+"\n\n## Overview\nCats.\n", string(data))
}
