package internal

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitterValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr string
	}{
		{"valid", 1000, 20, ""},
		{"zero overlap", 10, 0, ""},
		{"zero size", 0, 0, "chunk size must be positive"},
		{"negative overlap", 10, -1, "must not be negative"},
		{"overlap equals size", 10, 10, "must be smaller than chunk size"},
		{"overlap exceeds size", 10, 20, "must be smaller than chunk size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSplitter(tt.size, tt.overlap)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, s)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSplitText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
		want    []string
	}{
		{"words without overlap", "a b c d e f", 3, 0, []string{"a b", "c d", "e f"}},
		{"words with overlap", "aa bb cc dd", 5, 2, []string{"aa bb", "bb cc", "cc dd"}},
		{"no separators", "abcdefgh", 3, 0, []string{"abc", "def", "gh"}},
		{"counts runes", "你好世界", 2, 0, []string{"你好", "世界"}},
		{"short text is one chunk", "The cat sat.", 100, 10, []string{"The cat sat."}},
		{"prefers paragraph breaks", "first part\n\nsecond part", 15, 0, []string{"first part", "second part"}},
		{"empty text", "", 10, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSplitter(tt.size, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.SplitText(tt.text))
		})
	}
}

func TestSplitTextRespectsChunkSize(t *testing.T) {
	s, err := NewSplitter(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("Cats like warm places to sleep in the afternoon.\n", 40)
	chunks := s.SplitText(text)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
		assert.Equal(t, strings.TrimSpace(chunk), chunk)
	}
}

func TestSplitDocuments(t *testing.T) {
	s, err := NewSplitter(3, 0)
	require.NoError(t, err)

	chunks := s.SplitDocuments([]Document{
		{Content: "a b c d", Metadata: DocumentMetadata{Source: testVideoURL, Type: KindSubtitles}},
		{Content: "e f", Metadata: DocumentMetadata{Source: otherVideoURL, Type: KindTranscription}},
	})

	assert.Equal(t, []Chunk{
		{Content: "a b", Source: testVideoURL, Type: KindSubtitles, Index: 0},
		{Content: "c d", Source: testVideoURL, Type: KindSubtitles, Index: 1},
		{Content: "e f", Source: otherVideoURL, Type: KindTranscription, Index: 0},
	}, chunks)
}
