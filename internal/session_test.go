package internal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *fakeOpenAI) {
	t.Helper()
	config := newTestConfig(t)
	client := &fakeOpenAI{}
	return NewSessionManager(config, NewAI(client, nil, config)), client
}

func catDocument() Document {
	return Document{
		Content:  "The cat sat on the mat.\nCats like warm places to sleep.",
		Metadata: DocumentMetadata{Source: testVideoURL, Type: KindSubtitles},
	}
}

func rocketDocument() Document {
	return Document{
		Content:  "Rockets need fuel and oxygen.\nThe launch window opens at dawn.",
		Metadata: DocumentMetadata{Source: otherVideoURL, Type: KindSubtitles},
	}
}

func saveCatSession(t *testing.T, m *SessionManager, name string) string {
	t.Helper()
	saved, err := m.Save(context.Background(), SaveRequest{
		Name:        name,
		Document:    catDocument(),
		Summary:     "cats and mats",
		Summaries:   []VideoSummary{{VideoURL: testVideoURL, Summary: "cats and mats"}},
		ChatHistory: []ChatTurn{{Question: "Who sat?", Answer: "The cat."}},
		Language:    LanguageChinese,
		Model:       ModelConfig{ModelName: "gpt-4o-mini", ChunkSize: 40, ChunkOverlap: 0},
	})
	require.NoError(t, err)
	return saved
}

func TestSessionSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(t)

	name := saveCatSession(t, m, "pets")
	assert.Equal(t, "pets", name)
	assert.True(t, m.Exists("pets"))
	assert.FileExists(t, filepath.Join(m.Path("pets"), SessionVectorsDir, VectorIndexFile))

	session, err := m.Load(ctx, "pets")
	require.NoError(t, err)
	defer session.Close()

	meta := session.Metadata
	assert.Equal(t, "pets", meta.SessionID)
	assert.Equal(t, "pets", meta.PersistName)
	assert.Equal(t, testVideoURL, meta.VideoURL)
	assert.Equal(t, []string{testVideoURL}, meta.VideoURLs)
	assert.Equal(t, KindSubtitles, meta.ContentType)
	assert.Equal(t, "gpt-4o-mini", meta.ModelName)
	assert.Equal(t, 40, meta.ChunkSize)
	assert.Equal(t, LanguageChinese, session.Language())
	assert.Equal(t, "cats and mats", session.Summary())
	assert.Equal(t, catDocument(), session.Document())
	assert.Equal(t, []ChatTurn{{Question: "Who sat?", Answer: "The cat."}}, session.History())
	_, err = time.Parse(time.RFC3339, meta.CreatedAt)
	assert.NoError(t, err)

	count, err := session.Store().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := session.Retriever.Retrieve(ctx, "Do cats like to sleep?")
	require.NoError(t, err)
	assert.Equal(t, "Cats like warm places to sleep.", results[0].Content)
}

func TestSessionMetadataFormat(t *testing.T) {
	m, _ := newTestSessionManager(t)
	saveCatSession(t, m, "pets")

	data, err := os.ReadFile(filepath.Join(m.Path("pets"), SessionMetadataFile))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{
		"session_id", "persist_name", "created_at", "model_name", "chunk_size", "chunk_overlap",
		"video_url", "video_urls", "content_type", "summary", "summaries", "document_content",
		"documents", "chat_history", "language",
	} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, []any{[]any{"Who sat?", "The cat."}}, raw["chat_history"])
	assert.Equal(t, "zh", raw["language"])
	assert.Contains(t, string(data), "\n  \"session_id\"")
}

func TestSessionSaveGeneratesName(t *testing.T) {
	m, _ := newTestSessionManager(t)
	name := saveCatSession(t, m, "")
	assert.Len(t, name, 36)
	assert.True(t, m.Exists(name))
}

func TestSessionSaveRejectsBadName(t *testing.T) {
	m, _ := newTestSessionManager(t)
	_, err := m.Save(context.Background(), SaveRequest{Name: "../escape", Document: catDocument(), Model: ModelConfig{ChunkSize: 40}})
	assert.ErrorIs(t, err, ErrInvalidSessionName)
}

func TestSessionSaveReplacesExisting(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(t)
	saveCatSession(t, m, "pets")

	_, err := m.Save(ctx, SaveRequest{
		Name:     "pets",
		Document: rocketDocument(),
		Summary:  "rockets",
		Model:    ModelConfig{ModelName: "gpt-4o-mini", ChunkSize: 40},
	})
	require.NoError(t, err)

	session, err := m.Load(ctx, "pets")
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "rockets", session.Summary())
	assert.Empty(t, session.History())
	count, err := session.Store().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSessionLoadMissing(t *testing.T) {
	m, _ := newTestSessionManager(t)
	_, err := m.Load(context.Background(), "nothing-here")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, m.Exists("nothing-here"))

	_, err = m.Load(context.Background(), "../etc")
	assert.ErrorIs(t, err, ErrInvalidSessionName)
}

func TestSessionLoadRebuildsMissingIndex(t *testing.T) {
	ctx := context.Background()
	m, client := newTestSessionManager(t)
	saveCatSession(t, m, "pets")
	require.NoError(t, os.RemoveAll(filepath.Join(m.Path("pets"), SessionVectorsDir)))
	embeddedBefore := client.embeddedInputs

	session, err := m.Load(ctx, "pets")
	require.NoError(t, err)
	defer session.Close()

	count, err := session.Store().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, embeddedBefore+2, client.embeddedInputs)
}

func TestSessionLoadLegacyMetadata(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(t)

	dir := m.Path("legacy")
	require.NoError(t, os.MkdirAll(dir, 0755))
	legacy := `{
  "session_id": "legacy",
  "persist_name": "legacy",
  "created_at": "2024-05-01T10:00:00",
  "model_name": "gpt-4o-mini",
  "chunk_size": 40,
  "chunk_overlap": 0,
  "video_url": "` + testVideoURL + `",
  "content_type": "transcription",
  "summary": "old summary",
  "document_content": "The cat sat on the mat.",
  "chat_history": [["q", "a"]]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, SessionMetadataFile), []byte(legacy), 0644))

	session, err := m.Load(ctx, "legacy")
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, []string{testVideoURL}, session.VideoURLs())
	assert.Equal(t, Document{
		Content:  "The cat sat on the mat.",
		Metadata: DocumentMetadata{Source: testVideoURL, Type: KindTranscription},
	}, session.Document())
	assert.Equal(t, LanguageEnglish, session.Language())
	assert.Equal(t, []ChatTurn{{Question: "q", Answer: "a"}}, session.History())

	sessions, err := m.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 1, sessions[0].VideoCount)
	assert.Equal(t, "2024-05-01 10:00:00", sessions[0].CreatedLabel())
}

func TestSessionStoreKeepsEmbeddingModel(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(t)
	saveCatSession(t, m, "pets")

	config := newTestConfig(t)
	config.SessionsDir = m.Root()
	config.EmbeddingModel = "text-embedding-3-large"
	client := &fakeOpenAI{}
	other := NewSessionManager(config, NewAI(client, nil, config))

	session, err := other.Load(ctx, "pets")
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, "text-embedding-3-small", session.Store().EmbeddingModel())
	_, err = session.Retriever.Retrieve(ctx, "cats?")
	require.NoError(t, err)
	assert.Equal(t, []string{"text-embedding-3-small"}, client.embedModels)
}

func TestSessionListNewestFirst(t *testing.T) {
	m, _ := newTestSessionManager(t)

	sessions, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, sessions)

	for name, created := range map[string]string{
		"older":  "2024-01-01T00:00:00Z",
		"newer":  "2025-06-01T00:00:00Z",
		"middle": "2024-12-31T23:59:59Z",
	} {
		dir := m.Path(name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, writeSessionMetadata(dir, &SessionMetadata{
			SessionID: name,
			CreatedAt: created,
			VideoURL:  testVideoURL,
			VideoURLs: []string{testVideoURL, otherVideoURL},
		}))
	}
	// directories without metadata are ignored
	require.NoError(t, os.MkdirAll(m.Path("stray"), 0755))

	sessions, err = m.List()
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "newer", sessions[0].Name)
	assert.Equal(t, "middle", sessions[1].Name)
	assert.Equal(t, "older", sessions[2].Name)
	assert.Equal(t, 2, sessions[0].VideoCount)
}

func TestSessionDelete(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(t)
	saveCatSession(t, m, "pets")

	require.NoError(t, m.Delete(ctx, "pets"))
	assert.False(t, m.Exists("pets"))
	assert.NoDirExists(t, m.Path("pets"))

	assert.ErrorIs(t, m.Delete(ctx, "pets"), ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete(ctx, ".."), ErrInvalidSessionName)
}

func TestSessionCopy(t *testing.T) {
	ctx := context.Background()
	m, client := newTestSessionManager(t)
	saveCatSession(t, m, "pets")
	embeddedBefore := client.embeddedInputs

	require.NoError(t, m.Copy(ctx, "pets", "favourite"))

	copied, err := m.Load(ctx, "favourite")
	require.NoError(t, err)
	defer copied.Close()

	assert.Equal(t, "favourite", copied.Metadata.SessionID)
	assert.Equal(t, "favourite", copied.Metadata.PersistName)
	assert.Equal(t, "cats and mats", copied.Summary())
	count, err := copied.Store().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, embeddedBefore, client.embeddedInputs)

	assert.True(t, m.Exists("pets"))
	assert.Error(t, m.Copy(ctx, "pets", "pets"))
	assert.ErrorIs(t, m.Copy(ctx, "missing", "other"), ErrSessionNotFound)
}

func TestSessionUpdateChatHistory(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(t)
	saveCatSession(t, m, "pets")

	history := []ChatTurn{{"q1", "a1"}, {"q2", "a2"}}
	require.NoError(t, m.UpdateChatHistory(ctx, "pets", history))

	session, err := m.Load(ctx, "pets")
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, history, session.History())

	assert.ErrorIs(t, m.UpdateChatHistory(ctx, "missing", history), ErrSessionNotFound)
}

func TestSessionAppend(t *testing.T) {
	ctx := context.Background()
	m, client := newTestSessionManager(t)
	saveCatSession(t, m, "pets")
	embeddedBefore := client.embeddedInputs

	documents := []Document{catDocument(), rocketDocument()}
	require.NoError(t, m.Append(ctx, "pets", AppendRequest{
		Documents:       documents,
		NewDocuments:    documents[1:],
		Summaries:       []VideoSummary{{testVideoURL, "cats"}, {otherVideoURL, "rockets"}},
		CombinedSummary: "cats and rockets",
		CombinedDocument: Document{
			Content:  catDocument().Content + "\n\n" + rocketDocument().Content,
			Metadata: DocumentMetadata{Source: testVideoURL, Type: KindCombined},
		},
		Language: LanguageEnglish,
	}))
	// only the new document is embedded
	assert.Equal(t, embeddedBefore+2, client.embeddedInputs)

	session, err := m.Load(ctx, "pets")
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, []string{testVideoURL, otherVideoURL}, session.VideoURLs())
	assert.Equal(t, KindCombined, session.Document().Metadata.Type)
	assert.Contains(t, session.Document().Content, "Rockets need fuel")
	assert.Equal(t, "cats and rockets", session.Summary())
	assert.Equal(t, 40, session.Metadata.ChunkSize)
	assert.Len(t, session.Documents, 2)

	count, err := session.Store().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSessionRequiresEmbedderToIndex(t *testing.T) {
	config := newTestConfig(t)
	m := NewSessionManager(config, nil)
	_, err := m.Save(context.Background(), SaveRequest{Name: "pets", Document: catDocument(), Model: ModelConfig{ChunkSize: 40}})
	assert.ErrorContains(t, err, "no embedder configured")
}

func TestSessionLoadRetriesFailedRebuild(t *testing.T) {
	ctx := context.Background()
	m, client := newTestSessionManager(t)
	saveCatSession(t, m, "pets")
	require.NoError(t, os.RemoveAll(filepath.Join(m.Path("pets"), SessionVectorsDir)))

	client.embedErr = errors.New("embeddings down")
	_, err := m.Load(ctx, "pets")
	assert.ErrorContains(t, err, "rebuilding index for session pets")
	assert.NoFileExists(t, filepath.Join(m.Path("pets"), SessionVectorsDir, VectorIndexFile))

	client.embedErr = nil
	session, err := m.Load(ctx, "pets")
	require.NoError(t, err)
	defer session.Close()

	count, err := session.Store().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSessionSaveFailureLeavesNoSession(t *testing.T) {
	m, client := newTestSessionManager(t)
	client.embedErr = errors.New("embeddings down")

	_, err := m.Save(context.Background(), SaveRequest{Name: "pets", Document: catDocument(), Model: ModelConfig{ChunkSize: 40}})
	assert.ErrorContains(t, err, "embeddings down")
	assert.False(t, m.Exists("pets"))
	assert.NoDirExists(t, m.Path("pets"))

	_, err = m.Load(context.Background(), "pets")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionAppendFailureKeepsMetadata(t *testing.T) {
	ctx := context.Background()
	m, client := newTestSessionManager(t)
	saveCatSession(t, m, "pets")

	client.embedErr = errors.New("embeddings down")
	documents := []Document{catDocument(), rocketDocument()}
	err := m.Append(ctx, "pets", AppendRequest{
		Documents:       documents,
		NewDocuments:    documents[1:],
		CombinedSummary: "cats and rockets",
		Language:        LanguageEnglish,
	})
	assert.ErrorContains(t, err, "embeddings down")

	client.embedErr = nil
	session, err := m.Load(ctx, "pets")
	require.NoError(t, err)
	defer session.Close()

	assert.Equal(t, []string{testVideoURL}, session.VideoURLs())
	assert.Equal(t, "cats and mats", session.Summary())
	count, err := session.Store().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
