package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	// SessionMetadataFile holds everything about a session except its vectors
	SessionMetadataFile = "metadata.json"
	// SessionVectorsDir holds the session's vector index
	SessionVectorsDir = "vectors"

	lockRetryDelay = 100 * time.Millisecond
	lockTimeout    = 30 * time.Second
)

// SessionMetadata is the on-disk description of a session
type SessionMetadata struct {
	SessionID       string         `json:"session_id"`
	PersistName     string         `json:"persist_name"`
	CreatedAt       string         `json:"created_at"`
	ModelName       string         `json:"model_name"`
	ChunkSize       int            `json:"chunk_size"`
	ChunkOverlap    int            `json:"chunk_overlap"`
	VideoURL        string         `json:"video_url"`
	VideoURLs       []string       `json:"video_urls"`
	ContentType     DocumentKind   `json:"content_type"`
	Summary         string         `json:"summary"`
	Summaries       []VideoSummary `json:"summaries"`
	DocumentContent string         `json:"document_content"`
	Documents       []Document     `json:"documents"`
	ChatHistory     []ChatTurn     `json:"chat_history"`
	Language        Language       `json:"language"`
}

// ModelConfig returns the generation parameters recorded with the session
func (m *SessionMetadata) ModelConfig() ModelConfig {
	return ModelConfig{ModelName: m.ModelName, ChunkSize: m.ChunkSize, ChunkOverlap: m.ChunkOverlap}
}

// SessionInfo is the summary line shown when listing sessions
type SessionInfo struct {
	Name        string       `json:"name"`
	CreatedAt   string       `json:"created_at"`
	VideoURL    string       `json:"video_url"`
	VideoCount  int          `json:"video_count"`
	ModelName   string       `json:"model_name"`
	ContentType DocumentKind `json:"content_type"`
	Language    Language     `json:"language"`
}

// CreatedLabel formats the creation time as "YYYY-MM-DD HH:MM:SS"
func (i SessionInfo) CreatedLabel() string {
	return strings.Replace(truncateRunes(i.CreatedAt, 19), "T", " ", 1)
}

// Session is a loaded session with its open vector index
type Session struct {
	Name      string
	Dir       string
	Metadata  SessionMetadata
	Documents []Document
	Retriever *Retriever

	store *VectorStore
}

// Document returns the session's primary document, the combined text once several videos were added
func (s *Session) Document() Document {
	if s.Metadata.ContentType == KindCombined && s.Metadata.DocumentContent != "" {
		return Document{
			Content:  s.Metadata.DocumentContent,
			Metadata: DocumentMetadata{Source: s.Metadata.VideoURL, Type: KindCombined},
		}
	}
	if len(s.Documents) == 0 {
		return Document{}
	}
	return s.Documents[0]
}

// Summary returns the session summary
func (s *Session) Summary() string {
	return s.Metadata.Summary
}

// Language returns the language the session's summaries are written in
func (s *Session) Language() Language {
	return NormalizeLanguage(string(s.Metadata.Language))
}

// VideoURLs returns the URLs of every video in the session
func (s *Session) VideoURLs() []string {
	if len(s.Metadata.VideoURLs) > 0 {
		return s.Metadata.VideoURLs
	}
	if s.Metadata.VideoURL != "" {
		return []string{s.Metadata.VideoURL}
	}
	return nil
}

// History returns a copy of the chat history
func (s *Session) History() []ChatTurn {
	return append([]ChatTurn(nil), s.Metadata.ChatHistory...)
}

// Store returns the session's vector index
func (s *Session) Store() *VectorStore {
	return s.store
}

// Close releases the vector index
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	return s.store.Close()
}

// EmbedderProvider hands out embedders for a given embedding model
type EmbedderProvider interface {
	EmbedderFor(model string) Embedder
}

// SaveRequest describes a session to write
type SaveRequest struct {
	Name        string
	Document    Document
	Documents   []Document
	Summary     string
	Summaries   []VideoSummary
	ChatHistory []ChatTurn
	Language    Language
	Model       ModelConfig
}

// AppendRequest describes new content added to an existing session
type AppendRequest struct {
	Documents        []Document
	NewDocuments     []Document
	Summaries        []VideoSummary
	CombinedSummary  string
	CombinedDocument Document
	ChatHistory      []ChatTurn
	Language         Language
	Model            ModelConfig
}

// SessionManager stores sessions as directories under a root
type SessionManager struct {
	root           string
	embeddingModel string
	retrievalK     int
	embedders      EmbedderProvider
}

// NewSessionManager creates a manager rooted at config.SessionsDir
func NewSessionManager(config *Config, embedders EmbedderProvider) *SessionManager {
	return &SessionManager{
		root:           config.SessionsDir,
		embeddingModel: config.EmbeddingModel,
		retrievalK:     config.RetrievalK,
		embedders:      embedders,
	}
}

// Root returns the directory sessions are stored in
func (m *SessionManager) Root() string {
	return m.root
}

// Path returns the directory of a session
func (m *SessionManager) Path(name string) string {
	return filepath.Join(m.root, name)
}

// Exists reports whether a session with metadata exists
func (m *SessionManager) Exists(name string) bool {
	if ValidateSessionName(name) != nil {
		return false
	}
	return FileExists(filepath.Join(m.Path(name), SessionMetadataFile))
}

// lock takes the exclusive writer lock of a session; locks live beside the session directory
func (m *SessionManager) lock(ctx context.Context, name string) (*flock.Flock, error) {
	if err := EnsureDirs(m.root); err != nil {
		return nil, fmt.Errorf("creating sessions directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	fileLock := flock.New(filepath.Join(m.root, "."+name+".lock"))
	ok, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire session lock %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("session %s is locked by another process", name)
	}
	return fileLock, nil
}

// Save writes a new session, replacing any existing one with the same name, and builds its index
func (m *SessionManager) Save(ctx context.Context, req SaveRequest) (string, error) {
	name := req.Name
	if name == "" {
		name = uuid.NewString()
	}
	if err := ValidateSessionName(name); err != nil {
		return "", err
	}

	fileLock, err := m.lock(ctx, name)
	if err != nil {
		return "", err
	}
	defer func() { _ = fileLock.Unlock() }()

	dir := m.Path(name)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("removing existing session %s: %w", name, err)
	}
	if err := EnsureDirs(dir); err != nil {
		return "", fmt.Errorf("creating session directory: %w", err)
	}

	documents := req.Documents
	if len(documents) == 0 {
		documents = []Document{req.Document}
	}

	meta := SessionMetadata{
		SessionID:       name,
		PersistName:     name,
		CreatedAt:       time.Now().Format(time.RFC3339),
		ModelName:       req.Model.ModelName,
		ChunkSize:       req.Model.ChunkSize,
		ChunkOverlap:    req.Model.ChunkOverlap,
		VideoURLs:       documentSources(documents),
		ContentType:     req.Document.Metadata.Type,
		Summary:         req.Summary,
		Summaries:       nonNil(req.Summaries),
		DocumentContent: req.Document.Content,
		Documents:       documents,
		ChatHistory:     nonNil(req.ChatHistory),
		Language:        NormalizeLanguage(string(req.Language)),
	}
	if len(meta.VideoURLs) > 0 {
		meta.VideoURL = meta.VideoURLs[0]
	}

	if err := m.buildIndex(ctx, dir, documents, meta.ModelConfig()); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}

	// metadata goes last so a session only exists once its index is complete
	if err := writeSessionMetadata(dir, &meta); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return name, nil
}

// buildIndex splits and embeds documents into a fresh index under dir
func (m *SessionManager) buildIndex(ctx context.Context, dir string, documents []Document, model ModelConfig) error {
	store, err := OpenVectorStore(ctx, filepath.Join(dir, SessionVectorsDir), m.embeddingModel)
	if err != nil {
		return err
	}
	defer store.Close()

	return m.addDocuments(ctx, store, documents, model)
}

func (m *SessionManager) addDocuments(ctx context.Context, store *VectorStore, documents []Document, model ModelConfig) error {
	splitter, err := NewSplitter(model.ChunkSize, model.ChunkOverlap)
	if err != nil {
		return err
	}
	embedder := m.embedderFor(store.EmbeddingModel())
	if embedder == nil {
		return errors.New("no embedder configured for indexing")
	}
	chunks := splitter.SplitDocuments(documents)
	if err := store.AddChunks(ctx, embedder, chunks); err != nil {
		return fmt.Errorf("building vector index: %w", err)
	}
	return nil
}

func (m *SessionManager) embedderFor(model string) Embedder {
	if m.embedders == nil {
		return nil
	}
	return m.embedders.EmbedderFor(model)
}

// Load reads a session and opens its index, rebuilding the index when it is missing
func (m *SessionManager) Load(ctx context.Context, name string) (*Session, error) {
	if err := ValidateSessionName(name); err != nil {
		return nil, err
	}

	dir := m.Path(name)
	meta, err := readSessionMetadata(dir)
	if err != nil {
		return nil, err
	}

	documents := meta.Documents
	if len(documents) == 0 {
		// Older sessions only kept the primary document
		documents = []Document{{
			Content: meta.DocumentContent,
			Metadata: DocumentMetadata{
				Source: meta.VideoURL,
				Type:   meta.ContentType,
			},
		}}
	}

	vectorsDir := filepath.Join(dir, SessionVectorsDir)
	rebuild := !FileExists(filepath.Join(vectorsDir, VectorIndexFile))

	store, err := OpenVectorStore(ctx, vectorsDir, m.embeddingModel)
	if err != nil {
		return nil, err
	}

	if rebuild {
		if err := m.addDocuments(ctx, store, documents, meta.ModelConfig()); err != nil {
			_ = store.Close()
			// drop the empty index so the next Load rebuilds again
			_ = os.RemoveAll(vectorsDir)
			return nil, fmt.Errorf("rebuilding index for session %s: %w", name, err)
		}
	}

	return &Session{
		Name:      name,
		Dir:       dir,
		Metadata:  *meta,
		Documents: documents,
		Retriever: NewRetriever(store, m.embedderFor(store.EmbeddingModel()), m.retrievalK),
		store:     store,
	}, nil
}

// List returns every session that has metadata, newest first
func (m *SessionManager) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sessions directory: %w", err)
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := readSessionMetadata(m.Path(entry.Name()))
		if err != nil {
			continue
		}

		videoCount := len(meta.VideoURLs)
		if videoCount == 0 && meta.VideoURL != "" {
			videoCount = 1
		}
		sessions = append(sessions, SessionInfo{
			Name:        entry.Name(),
			CreatedAt:   meta.CreatedAt,
			VideoURL:    meta.VideoURL,
			VideoCount:  videoCount,
			ModelName:   meta.ModelName,
			ContentType: meta.ContentType,
			Language:    meta.Language,
		})
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt > sessions[j].CreatedAt
	})
	return sessions, nil
}

// Delete removes a session directory
func (m *SessionManager) Delete(ctx context.Context, name string) error {
	if err := ValidateSessionName(name); err != nil {
		return err
	}
	dir := m.Path(name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}

	fileLock, err := m.lock(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		_ = fileLock.Unlock()
		_ = os.Remove(fileLock.Path())
	}()

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting session %s: %w", name, err)
	}
	return nil
}

// UpdateChatHistory rewrites the chat history of a session
func (m *SessionManager) UpdateChatHistory(ctx context.Context, name string, history []ChatTurn) error {
	return m.updateMetadata(ctx, name, func(meta *SessionMetadata) {
		meta.ChatHistory = nonNil(history)
	})
}

// Append embeds the new documents into the existing index, then rewrites the metadata for the combined content
func (m *SessionManager) Append(ctx context.Context, name string, req AppendRequest) error {
	if err := ValidateSessionName(name); err != nil {
		return err
	}

	fileLock, err := m.lock(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = fileLock.Unlock() }()

	dir := m.Path(name)
	meta, err := readSessionMetadata(dir)
	if err != nil {
		return err
	}

	model := req.Model
	if model.ChunkSize <= 0 {
		model = meta.ModelConfig()
	}
	// the index is written in one transaction, so a failure leaves both it and the metadata untouched
	if len(req.NewDocuments) > 0 {
		if err := m.buildIndex(ctx, dir, req.NewDocuments, model); err != nil {
			return err
		}
	}

	meta.Documents = req.Documents
	meta.DocumentContent = req.CombinedDocument.Content
	if req.CombinedDocument.Metadata.Type != "" {
		meta.ContentType = req.CombinedDocument.Metadata.Type
	}
	meta.Summary = req.CombinedSummary
	meta.Summaries = nonNil(req.Summaries)
	meta.ChatHistory = nonNil(req.ChatHistory)
	meta.Language = NormalizeLanguage(string(req.Language))
	meta.VideoURLs = documentSources(req.Documents)
	if len(meta.VideoURLs) > 0 {
		meta.VideoURL = meta.VideoURLs[0]
	}
	return writeSessionMetadata(dir, meta)
}

// Copy saves an existing session under a new name without re-embedding
func (m *SessionManager) Copy(ctx context.Context, src, dst string) error {
	if err := ValidateSessionName(src); err != nil {
		return err
	}
	if err := ValidateSessionName(dst); err != nil {
		return err
	}
	if src == dst {
		return fmt.Errorf("session %s cannot be copied onto itself", src)
	}

	meta, err := readSessionMetadata(m.Path(src))
	if err != nil {
		return err
	}

	fileLock, err := m.lock(ctx, dst)
	if err != nil {
		return err
	}
	defer func() { _ = fileLock.Unlock() }()

	dstDir := m.Path(dst)
	if err := os.RemoveAll(dstDir); err != nil {
		return fmt.Errorf("removing existing session %s: %w", dst, err)
	}
	if err := EnsureDirs(filepath.Join(dstDir, SessionVectorsDir)); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	srcIndex := filepath.Join(m.Path(src), SessionVectorsDir, VectorIndexFile)
	if FileExists(srcIndex) {
		store, err := OpenVectorStore(ctx, filepath.Dir(srcIndex), m.embeddingModel)
		if err != nil {
			return err
		}
		backupErr := store.Backup(ctx, filepath.Join(dstDir, SessionVectorsDir, VectorIndexFile))
		_ = store.Close()
		if backupErr != nil {
			return backupErr
		}
	}

	meta.SessionID = dst
	meta.PersistName = dst
	meta.CreatedAt = time.Now().Format(time.RFC3339)
	return writeSessionMetadata(dstDir, meta)
}

func (m *SessionManager) updateMetadata(ctx context.Context, name string, update func(*SessionMetadata)) error {
	if err := ValidateSessionName(name); err != nil {
		return err
	}

	fileLock, err := m.lock(ctx, name)
	if err != nil {
		return err
	}
	defer func() { _ = fileLock.Unlock() }()

	dir := m.Path(name)
	meta, err := readSessionMetadata(dir)
	if err != nil {
		return err
	}
	update(meta)
	return writeSessionMetadata(dir, meta)
}

func readSessionMetadata(dir string) (*SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, SessionMetadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, filepath.Base(dir))
		}
		return nil, fmt.Errorf("reading session metadata: %w", err)
	}

	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing session metadata: %w", err)
	}
	return &meta, nil
}

// writeSessionMetadata writes pretty-printed JSON through a temp file and rename
func writeSessionMetadata(dir string, meta *SessionMetadata) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("encoding session metadata: %w", err)
	}

	path := filepath.Join(dir, SessionMetadataFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing session metadata: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing session metadata: %w", err)
	}
	return nil
}

func documentSources(documents []Document) []string {
	sources := make([]string, len(documents))
	for i, doc := range documents {
		sources[i] = doc.Metadata.Source
	}
	return sources
}

// nonNil keeps empty lists as [] rather than null in metadata.json
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
