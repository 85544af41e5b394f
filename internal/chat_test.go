package internal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunChat(t *testing.T) {
	ctx := context.Background()
	source := newFakeSource(t)
	source.subtitles[testVideoURL] = catSubtitles
	client := &fakeOpenAI{}
	app := newTestApp(t, source, client)
	session := processTestVideo(t, app, testVideoURL)

	in := strings.NewReader("Where do cats sleep?\n\n   \nexit\nnever asked\n")
	var out bytes.Buffer
	require.NoError(t, app.RunChat(ctx, session, in, &out, false))

	output := out.String()
	assert.Contains(t, output, "Ask questions about "+testVideoID)
	assert.Contains(t, output, "answer from context")
	assert.Contains(t, output, "Goodbye! / 再见！")
	assert.NotContains(t, output, "never asked")

	// one summary request and one answer
	assert.Len(t, client.requests, 2)
	assert.Equal(t, []ChatTurn{{Question: "Where do cats sleep?", Answer: "answer from context"}}, session.History())

	reloaded, err := app.Sessions().Load(ctx, testVideoID)
	require.NoError(t, err)
	defer reloaded.Close()
	assert.Len(t, reloaded.History(), 1)
}

func TestRunChatReportsErrorsAndContinues(t *testing.T) {
	source := newFakeSource(t)
	source.subtitles[testVideoURL] = catSubtitles
	calls := 0
	client := &fakeOpenAI{respond: func(req ChatRequest) (string, error) {
		calls++
		switch calls {
		case 1:
			return "a short summary", nil
		case 2:
			return "", errors.New("model overloaded")
		}
		return "second try worked", nil
	}}
	app := newTestApp(t, source, client)
	session := processTestVideo(t, app, testVideoURL)

	var out bytes.Buffer
	err := app.RunChat(context.Background(), session, strings.NewReader("first?\nsecond?\n"), &out, false)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Error: ")
	assert.Contains(t, out.String(), "model overloaded")
	assert.Contains(t, out.String(), "second try worked")
	assert.Len(t, session.History(), 1)
}
