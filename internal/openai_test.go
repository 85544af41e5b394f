package internal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsReasoningModel(t *testing.T) {
	for model, want := range map[string]bool{
		"o4-mini":       true,
		"gpt-5-mini":    true,
		"gpt-4o-mini":   false,
		"gpt-3.5-turbo": false,
	} {
		assert.Equal(t, want, isReasoningModel(model), model)
	}
}

func TestEmbedBatchesInputs(t *testing.T) {
	config := newTestConfig(t)
	client := &fakeOpenAI{}
	ai := NewAI(client, nil, config)

	texts := make([]string, 2*EmbeddingBatchSize+50)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}
	vectors, err := ai.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, len(texts))
	assert.Equal(t, bagOfWords("text 7"), vectors[7])
	assert.Equal(t, []string{"text-embedding-3-small", "text-embedding-3-small", "text-embedding-3-small"}, client.embedModels)

	vectors, err = ai.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestEmbedderForRecordedModel(t *testing.T) {
	config := newTestConfig(t)
	client := &fakeOpenAI{}
	ai := NewAI(client, nil, config)

	assert.Same(t, ai, ai.EmbedderFor("").(*AI))
	_, err := ai.EmbedderFor("text-embedding-3-large").Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"text-embedding-3-large"}, client.embedModels)
}

func TestCompleteUsesConfiguredModel(t *testing.T) {
	config := newTestConfig(t)
	client := &fakeOpenAI{respond: func(req ChatRequest) (string, error) {
		return "  padded reply \n", nil
	}}
	ai := NewAI(client, nil, config)

	out, err := ai.Summary(context.Background(), "summarize")
	require.NoError(t, err)
	assert.Equal(t, "padded reply", out)
	assert.Equal(t, "gpt-4o-mini", client.lastRequest().Model)

	ai.SetModel("gpt-4o")
	ai.SetModel("")
	_, err = ai.Answer(context.Background(), []ChatMessage{{Role: RoleUser, Content: "q"}})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", client.lastRequest().Model)
}

func TestCompleteWithoutKey(t *testing.T) {
	config := newTestConfig(t)
	config.OpenAIAPIKey = ""
	_, err := NewAIWithKey(nil, config).Summary(context.Background(), "x")
	assert.ErrorContains(t, err, "OpenAI API key is required")
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := withTimeout(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	ctx, cancel = withTimeout(context.Background(), time.Minute)
	defer cancel()
	_, ok = ctx.Deadline()
	assert.True(t, ok)
}
