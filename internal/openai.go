package internal

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"golang.org/x/time/rate"
)

// EmbeddingBatchSize is the number of inputs sent per embeddings request
const EmbeddingBatchSize = 100

// Chat message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message of a chat completion request
type ChatMessage struct {
	Role    string
	Content string
}

// ChatRequest describes a chat completion call
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	Temperature float64 // zero leaves the provider default
	MaxTokens   int
}

// OpenAIClientInterface defines the interface for OpenAI client operations
type OpenAIClientInterface interface {
	CreateTranscription(ctx context.Context, file *os.File) (string, error)
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error)
	CreateEmbeddings(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

// OpenAIClient wraps the official OpenAI Go SDK
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client; baseURL may be empty
func NewOpenAIClient(apiKey, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAIClient{client: &client}
}

// CreateTranscription implements the transcription method
func (c *OpenAIClient) CreateTranscription(ctx context.Context, file *os.File) (string, error) {
	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  file,
		Model: openai.AudioModelWhisper1,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// isReasoningModel reports models that reject a custom temperature
func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o") || strings.HasPrefix(model, "gpt-5")
}

// CreateChatCompletion implements the chat completion method
func (c *OpenAIClient) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Temperature > 0 && !isReasoningModel(req.Model) {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

// CreateEmbeddings embeds inputs in one request, returning vectors in input order
func (c *OpenAIClient) CreateEmbeddings(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(resp.Data))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// AI handles OpenAI API interactions for transcription, completion and embeddings
type AI struct {
	client         OpenAIClientInterface
	audio          *Audio
	model          string
	embeddingModel string
	whisperLimit   int64
	summaryTimeout time.Duration
	answerTimeout  time.Duration
	whisperTimeout time.Duration
	limiter        *rate.Limiter
	verbose        bool
	apiKey         string
	baseURL        string
	clientOnce     sync.Once
}

// NewAI creates a new AI processor around an existing client
func NewAI(client OpenAIClientInterface, audio *Audio, config *Config) *AI {
	ai := NewAIWithKey(audio, config)
	ai.client = client
	return ai
}

// NewAIWithKey creates a new AI processor with lazy client initialization
func NewAIWithKey(audio *Audio, config *Config) *AI {
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &AI{
		audio:          audio,
		model:          config.ChatModel,
		embeddingModel: config.EmbeddingModel,
		whisperLimit:   WhisperLimit,
		summaryTimeout: config.SummaryTimeout,
		answerTimeout:  config.AnswerTimeout,
		whisperTimeout: config.WhisperTimeout,
		limiter:        rate.NewLimiter(limit, 1),
		verbose:        config.Verbose,
		apiKey:         config.OpenAIAPIKey,
		baseURL:        config.OpenAIBaseURL,
	}
}

// Model returns the chat model in use
func (ai *AI) Model() string {
	return ai.model
}

// SetModel switches the chat model, e.g. when a session recorded a different one
func (ai *AI) SetModel(model string) {
	if model != "" {
		ai.model = model
	}
}

// EmbeddingModel returns the embedding model in use
func (ai *AI) EmbeddingModel() string {
	return ai.embeddingModel
}

// ensureClient initializes the OpenAI client if needed
func (ai *AI) ensureClient() error {
	ai.clientOnce.Do(func() {
		if ai.client == nil && ai.apiKey != "" {
			ai.client = NewOpenAIClient(ai.apiKey, ai.baseURL)
		}
	})

	if ai.client == nil {
		return ValidateOpenAIAPIKey("")
	}
	return nil
}

// wait blocks until the rate limiter admits another request
func (ai *AI) wait(ctx context.Context) error {
	if err := ai.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return nil
}

// withTimeout derives a context bounded by d when d is positive
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Transcribe transcribes audio using OpenAI's Whisper API
func (ai *AI) Transcribe(ctx context.Context, audioFile string) (string, error) {
	return ai.TranscribeWithProgress(ctx, audioFile, nil)
}

// TranscribeWithProgress transcribes audio, splitting files above the Whisper limit; bar may be nil
func (ai *AI) TranscribeWithProgress(ctx context.Context, audioFile string, bar ProgressBar) (string, error) {
	if err := ai.ensureClient(); err != nil {
		return "", err
	}

	if ai.verbose {
		fmt.Printf("Transcribing audio file: %s\n", audioFile)
	}

	numChunks, err := PartsFor(audioFile, ai.whisperLimit)
	if err != nil {
		return "", err
	}

	chunks := []string{audioFile}
	if numChunks > 1 {
		if ai.audio == nil {
			return "", fmt.Errorf("audio file exceeds %d bytes and no splitter is configured", ai.whisperLimit)
		}
		chunks, err = ai.audio.Split(ctx, audioFile, numChunks)
		if err != nil {
			return "", fmt.Errorf("splitting audio: %w", err)
		}
		defer cleanupFiles(chunks...)
	}

	transcript, err := ai.processAudioChunks(ctx, chunks, bar)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return transcript, nil
}

// processAudioChunks transcribes audio chunks sequentially
// NOTE: concurrent uploads once returned a broken transcript for one chunk
func (ai *AI) processAudioChunks(ctx context.Context, chunks []string, bar ProgressBar) (string, error) {
	numChunks := len(chunks)

	if ai.verbose {
		fmt.Printf("Transcribing chunks (%d)\n", numChunks)
	}

	var sb strings.Builder
	for i, chunkPath := range chunks {
		if bar != nil {
			bar.Describe(fmt.Sprintf("Transcribing chunk %d/%d", i+1, numChunks))
		}

		text, err := ai.transcribeFile(ctx, chunkPath)
		if err != nil {
			return "", fmt.Errorf("transcribing chunk %d: %w", i+1, err)
		}

		sb.WriteString(text)
		if i < numChunks-1 {
			sb.WriteString("\n")
		}

		if bar != nil {
			bar.Set((i + 1) * 100 / numChunks)
		}
		if ai.verbose {
			fmt.Printf("Transcribed chunk %d/%d\n", i+1, numChunks)
		}
	}

	return sb.String(), nil
}

// transcribeFile uploads one file under the Whisper timeout
func (ai *AI) transcribeFile(ctx context.Context, path string) (string, error) {
	if err := ai.wait(ctx); err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening chunk %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close file %s: %v\n", path, closeErr)
		}
	}()

	ctx, cancel := withTimeout(ctx, ai.whisperTimeout)
	defer cancel()

	return ai.client.CreateTranscription(ctx, file)
}

// Complete runs a chat completion with the configured model unless req names one
func (ai *AI) Complete(ctx context.Context, req ChatRequest, timeout time.Duration) (string, error) {
	if err := ai.ensureClient(); err != nil {
		return "", err
	}
	if req.Model == "" {
		req.Model = ai.model
	}
	if err := ai.wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	content, err := ai.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("creating chat completion: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// Summary creates an AI summary using a prepared prompt
func (ai *AI) Summary(ctx context.Context, prompt string) (string, error) {
	return ai.Complete(ctx, ChatRequest{
		Messages:    []ChatMessage{{Role: RoleUser, Content: prompt}},
		Temperature: 1,
		MaxTokens:   2048,
	}, ai.summaryTimeout)
}

// Analysis creates a structured report from a prepared prompt
func (ai *AI) Analysis(ctx context.Context, prompt string) (string, error) {
	return ai.Complete(ctx, ChatRequest{
		Messages:    []ChatMessage{{Role: RoleUser, Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   2048,
	}, ai.summaryTimeout)
}

// Answer runs a question-answering completion under the answer timeout
func (ai *AI) Answer(ctx context.Context, messages []ChatMessage) (string, error) {
	return ai.Complete(ctx, ChatRequest{
		Messages:    messages,
		Temperature: 1,
		MaxTokens:   2048,
	}, ai.answerTimeout)
}

// Embed returns one vector per text, requesting at most EmbeddingBatchSize inputs at a time
func (ai *AI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return ai.embedWith(ctx, ai.embeddingModel, texts)
}

// EmbedderFor returns an Embedder bound to model, e.g. the one an existing index was built with
func (ai *AI) EmbedderFor(model string) Embedder {
	if model == "" || model == ai.embeddingModel {
		return ai
	}
	return modelEmbedder{ai: ai, model: model}
}

type modelEmbedder struct {
	ai    *AI
	model string
}

func (m modelEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return m.ai.embedWith(ctx, m.model, texts)
}

func (ai *AI) embedWith(ctx context.Context, model string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := ai.ensureClient(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += EmbeddingBatchSize {
		end := min(start+EmbeddingBatchSize, len(texts))

		if err := ai.wait(ctx); err != nil {
			return nil, err
		}
		batch, err := ai.client.CreateEmbeddings(ctx, model, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("creating embeddings for inputs %d-%d: %w", start, end-1, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(batch))
		}
		vectors = append(vectors, batch...)

		if ai.verbose {
			fmt.Printf("Embedded %d/%d chunks\n", end, len(texts))
		}
	}

	return vectors, nil
}
