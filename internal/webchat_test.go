package internal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFactory builds conversation apps that share one config, source and client
type testFactory struct {
	mu     sync.Mutex
	config *Config
	source *fakeSource
	client *fakeOpenAI
	keys   []string
}

func newTestFactory(t *testing.T) *testFactory {
	t.Helper()
	source := newFakeSource(t)
	source.subtitles[testVideoURL] = catSubtitles
	source.subtitles[otherVideoURL] = rocketSubtitle
	return &testFactory{config: newTestConfig(t), source: source, client: &fakeOpenAI{}}
}

func (f *testFactory) newApp(apiKey string) *App {
	f.mu.Lock()
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()

	config := f.config.Clone()
	if apiKey != "" {
		config.OpenAIAPIKey = apiKey
	}
	return NewApp(config,
		WithVideoSource(f.source),
		WithAI(NewAI(f.client, nil, config)),
		WithUI(NewSilentUIManager()),
	)
}

func lastAnswer(history []ChatTurn) string {
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1].Answer
}

func TestConversationNewVideoFlow(t *testing.T) {
	ctx := context.Background()
	f := newTestFactory(t)
	conv := NewConversation(f.newApp, false)
	defer conv.Close()

	assert.Equal(t, StateAPIKey, conv.State())
	require.Len(t, conv.History(), 1)
	assert.Equal(t, "System", conv.History()[0].Question)
	assert.Contains(t, conv.History()[0].Answer, "Please enter your OpenAI API key")

	history := conv.Respond(ctx, "not-a-key")
	assert.Equal(t, StateAPIKey, conv.State())
	assert.Contains(t, lastAnswer(history), "Invalid API key format!")

	history = conv.Respond(ctx, testAPIKey)
	assert.Equal(t, StateLanguageChoice, conv.State())
	assert.Contains(t, lastAnswer(history), "API key set successfully!")
	assert.Equal(t, []string{testAPIKey}, f.keys)

	history = conv.Respond(ctx, "klingon")
	assert.Equal(t, StateLanguageChoice, conv.State())
	assert.Contains(t, lastAnswer(history), "Unrecognized language option")

	history = conv.Respond(ctx, "English")
	assert.Equal(t, StateActionChoice, conv.State())
	assert.Contains(t, lastAnswer(history), "Language set to English")

	history = conv.Respond(ctx, "3")
	assert.Equal(t, StateActionChoice, conv.State())
	assert.Contains(t, lastAnswer(history), "Please enter 1 or 2")

	history = conv.Respond(ctx, "2")
	assert.Equal(t, StateNewVideo, conv.State())
	assert.Contains(t, lastAnswer(history), "No saved sessions found")

	history = conv.Respond(ctx, "https://vimeo.com/123")
	assert.Equal(t, StateNewVideo, conv.State())
	assert.Contains(t, lastAnswer(history), "Invalid YouTube URL format!")

	history = conv.Respond(ctx, testVideoURL)
	require.Equal(t, StateReady, conv.State())
	done := history[len(history)-1]
	assert.Equal(t, "System", done.Question)
	assert.Contains(t, done.Answer, "Video processing completed!")
	assert.Contains(t, done.Answer, "a short summary")
	assert.Contains(t, done.Answer, "**Session saved as / 会话已保存为:** "+testVideoID)
	assert.Contains(t, done.Answer, "**Summary Language / 摘要语言:** English")
	assert.Contains(t, history[len(history)-2].Answer, "Processing video...")

	history = conv.Respond(ctx, "Where do cats sleep?")
	assert.Equal(t, "answer from context", lastAnswer(history))

	history = conv.Respond(ctx, "save summary")
	summaryPath := filepath.Join(f.config.ExportsDir, testVideoID+"_summary.txt")
	assert.Contains(t, lastAnswer(history), "Summary saved to "+summaryPath)
	assert.FileExists(t, summaryPath)

	history = conv.Respond(ctx, "save subtitles")
	assert.Contains(t, lastAnswer(history), "Subtitles saved to")
	assert.FileExists(t, filepath.Join(f.config.ExportsDir, testVideoID+"_subtitles.txt"))

	history = conv.Respond(ctx, "save as")
	assert.Contains(t, lastAnswer(history), "Please provide a session name")

	history = conv.Respond(ctx, "save as favourite")
	assert.Contains(t, lastAnswer(history), "Session saved as 'favourite'")
	assert.True(t, NewSessionManager(f.config, nil).Exists("favourite"))

	history = conv.Respond(ctx, "sessions")
	assert.Contains(t, lastAnswer(history), "**"+testVideoID+"**")
	assert.Contains(t, lastAnswer(history), "**favourite**")

	history = conv.Respond(ctx, "add video")
	assert.Contains(t, lastAnswer(history), "Please provide a YouTube URL")

	history = conv.Respond(ctx, "add video "+otherVideoURL)
	assert.Contains(t, lastAnswer(history), "Video added to knowledge base")
	assert.Contains(t, lastAnswer(history), "**Videos in session / 当前视频总数:** 2")

	before := len(history)
	history = conv.Respond(ctx, "   ")
	assert.Len(t, history, before)

	history = conv.Respond(ctx, "reset")
	assert.Equal(t, StateAPIKey, conv.State())
	assert.Len(t, history, 1)
}

func TestConversationLoadSession(t *testing.T) {
	ctx := context.Background()
	f := newTestFactory(t)

	seed := f.newApp("")
	result, err := seed.ProcessVideo(ctx, testVideoURL, ProcessOptions{})
	require.NoError(t, err)
	_, err = seed.AskAndRecord(ctx, result.Session, "Who sat?")
	require.NoError(t, err)
	require.NoError(t, result.Session.Close())

	conv := NewConversation(f.newApp, true)
	defer conv.Close()

	assert.Equal(t, StateLanguageChoice, conv.State())
	assert.Equal(t, []string{"", ""}, f.keys)

	conv.Respond(ctx, "1")
	history := conv.Respond(ctx, "2")
	assert.Equal(t, StateSessionSelect, conv.State())
	assert.Contains(t, lastAnswer(history), "1. "+testVideoID)
	assert.Contains(t, lastAnswer(history), "(1-1)")

	history = conv.Respond(ctx, "7")
	assert.Equal(t, StateSessionSelect, conv.State())
	assert.Contains(t, lastAnswer(history), "Invalid number!")

	history = conv.Respond(ctx, "someone-else")
	assert.Contains(t, lastAnswer(history), "Session name not found!")

	history = conv.Respond(ctx, testVideoID)
	require.Equal(t, StateReady, conv.State())
	assert.Contains(t, lastAnswer(history), "Session loaded successfully!")
	assert.Contains(t, lastAnswer(history), "**Summary Language / 摘要语言:** English")
	assert.Contains(t, history, ChatTurn{Question: "Who sat?", Answer: "answer from context"})
}

func TestConversationExitAndEmpty(t *testing.T) {
	f := newTestFactory(t)
	conv := NewConversation(f.newApp, true)
	defer conv.Close()

	history := conv.Respond(context.Background(), "")
	assert.Len(t, history, 1)

	history = conv.Respond(context.Background(), "quit")
	assert.Equal(t, "Goodbye! / 再见！", lastAnswer(history))
	assert.Equal(t, StateLanguageChoice, conv.State())

	history = conv.Reset()
	assert.Len(t, history, 1)
	assert.Contains(t, history[0].Answer, "Please choose the summary language")
}
