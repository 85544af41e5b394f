package internal

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testVideoURL   = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	testVideoID    = "dQw4w9WgXcQ"
	otherVideoURL  = "https://www.youtube.com/watch?v=tAP1eZYEuKA"
	otherVideoID   = "tAP1eZYEuKA"
	testAPIKey     = "sk-test-0123456789abcdefghij"
	testEmbedDims  = 512
	catSubtitles   = "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nThe cat sat on the mat.\n\n00:00:02.000 --> 00:00:04.000\nCats like warm places to sleep.\n"
	rocketSubtitle = "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nRockets need fuel and oxygen.\n\n00:00:02.000 --> 00:00:04.000\nThe launch window opens at dawn.\n"
)

// fakeSource serves canned subtitles, audio and playlists
type fakeSource struct {
	mu            sync.Mutex
	subtitles     map[string]string
	subtitleErrs  map[string][]error
	audioDir      string
	playlist      *PlaylistInfo
	subtitleCalls map[string]int
	audioCalls    int
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	return &fakeSource{
		subtitles:     map[string]string{},
		subtitleErrs:  map[string][]error{},
		subtitleCalls: map[string]int{},
		audioDir:      t.TempDir(),
	}
}

func (f *fakeSource) Metadata(ctx context.Context, videoURL string) (*VideoMetadata, error) {
	id := ExtractVideoID(videoURL)
	return &VideoMetadata{ID: id, Title: "Video " + id, Channel: "Test Channel"}, nil
}

func (f *fakeSource) Subtitles(ctx context.Context, videoURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subtitleCalls[videoURL]++
	if errs := f.subtitleErrs[videoURL]; len(errs) > 0 {
		f.subtitleErrs[videoURL] = errs[1:]
		return "", errs[0]
	}
	text, ok := f.subtitles[videoURL]
	if !ok {
		return "", ErrNoSubtitles
	}
	return text, nil
}

func (f *fakeSource) Audio(ctx context.Context, videoURL string) (string, error) {
	f.mu.Lock()
	f.audioCalls++
	f.mu.Unlock()
	path := filepath.Join(f.audioDir, ExtractVideoID(videoURL)+".mp3")
	if err := os.WriteFile(path, []byte("fake audio"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeSource) PlaylistEntries(ctx context.Context, playlistURL string) (*PlaylistInfo, error) {
	if f.playlist == nil {
		return nil, errors.New("no playlist")
	}
	return f.playlist, nil
}

// fakeOpenAI answers chat requests through respond and embeds with hashed bags of words
type fakeOpenAI struct {
	mu             sync.Mutex
	respond        func(req ChatRequest) (string, error)
	transcript     string
	requests       []ChatRequest
	embeddedInputs int
	embedModels    []string
	embedErr       error
}

func (f *fakeOpenAI) CreateTranscription(ctx context.Context, file *os.File) (string, error) {
	if f.transcript == "" {
		return "whisper transcript of the talk", nil
	}
	return f.transcript, nil
}

func (f *fakeOpenAI) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	respond := f.respond
	f.mu.Unlock()
	if respond != nil {
		return respond(req)
	}
	if len(req.Messages) > 0 && req.Messages[0].Role == RoleSystem {
		return "answer from context", nil
	}
	return "a short summary", nil
}

func (f *fakeOpenAI) CreateEmbeddings(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	if f.embedErr != nil {
		err := f.embedErr
		f.mu.Unlock()
		return nil, err
	}
	f.embeddedInputs += len(inputs)
	f.embedModels = append(f.embedModels, model)
	f.mu.Unlock()
	vectors := make([][]float32, len(inputs))
	for i, in := range inputs {
		vectors[i] = bagOfWords(in)
	}
	return vectors, nil
}

func (f *fakeOpenAI) lastRequest() ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func bagOfWords(text string) []float32 {
	vec := make([]float32, testEmbedDims)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.TrimSuffix(word, "s")))
		vec[h.Sum32()%testEmbedDims]++
	}
	vec[testEmbedDims-1] += 0.01
	return vec
}

// newTestConfig returns defaults rooted in a temp dir without rate limiting
func newTestConfig(t *testing.T) *Config {
	t.Helper()
	config := DefaultConfig(t.TempDir())
	config.OpenAIAPIKey = testAPIKey
	config.ExportsDir = filepath.Join(config.DataDir, "exports")
	config.RequestsPerSecond = 0
	config.Quiet = true
	config.ChunkSize = 40
	config.ChunkOverlap = 0
	return config
}

func newTestApp(t *testing.T, source VideoSource, client OpenAIClientInterface) *App {
	t.Helper()
	config := newTestConfig(t)
	return NewApp(config,
		WithVideoSource(source),
		WithAI(NewAI(client, nil, config)),
		WithUI(NewSilentUIManager()),
	)
}

func processTestVideo(t *testing.T, app *App, url string) *Session {
	t.Helper()
	result, err := app.ProcessVideo(context.Background(), url, ProcessOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = result.Session.Close() })
	return result.Session
}
