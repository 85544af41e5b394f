package internal

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	_ "modernc.org/sqlite"
)

// VectorIndexFile is the SQLite file inside a session's vectors directory
const VectorIndexFile = "index.db"

// Embedder turns texts into vectors
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchResult is a stored chunk with its similarity to the query
type SearchResult struct {
	Chunk
	Score float64
}

// VectorStore persists chunk embeddings in SQLite and answers similarity queries
type VectorStore struct {
	db        *sql.DB
	path      string
	model     string
	dimension int
}

const vectorSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	source TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT '',
	chunk_index INTEGER NOT NULL DEFAULT 0,
	embedding BLOB NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS store_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// OpenVectorStore opens or creates the index in dir for the given embedding model
func OpenVectorStore(ctx context.Context, dir, embeddingModel string) (*VectorStore, error) {
	if err := EnsureDirs(dir); err != nil {
		return nil, fmt.Errorf("creating vector directory: %w", err)
	}

	dbPath := filepath.Join(dir, VectorIndexFile)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, vectorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating vector schema: %w", err)
	}

	vs := &VectorStore{db: db, path: dbPath, model: embeddingModel}
	if err := vs.loadMeta(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return vs, nil
}

// loadMeta reads the recorded model and dimension, recording the model for new stores
func (vs *VectorStore) loadMeta(ctx context.Context) error {
	rows, err := vs.db.QueryContext(ctx, `SELECT key, value FROM store_meta`)
	if err != nil {
		return fmt.Errorf("reading store metadata: %w", err)
	}
	defer rows.Close()

	meta := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("scanning store metadata: %w", err)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading store metadata: %w", err)
	}

	if model, ok := meta["embedding_model"]; ok && model != "" {
		vs.model = model
	} else if err := vs.setMeta(ctx, vs.db, "embedding_model", vs.model); err != nil {
		return err
	}

	if dim, ok := meta["dimension"]; ok {
		n, err := strconv.Atoi(dim)
		if err != nil {
			return fmt.Errorf("invalid stored dimension %q: %w", dim, err)
		}
		vs.dimension = n
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (vs *VectorStore) setMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO store_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("writing store metadata %s: %w", key, err)
	}
	return nil
}

// EmbeddingModel returns the model the stored vectors were created with
func (vs *VectorStore) EmbeddingModel() string {
	return vs.model
}

// Dimension returns the vector length, or 0 for an empty store
func (vs *VectorStore) Dimension() int {
	return vs.dimension
}

// Add stores chunks with their embeddings in one transaction
func (vs *VectorStore) Add(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("got %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	dim := vs.dimension
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return fmt.Errorf("embedding %d is empty", i)
		}
		if dim == 0 {
			dim = len(vec)
		}
		if len(vec) != dim {
			return fmt.Errorf("embedding %d has dimension %d, store expects %d", i, len(vec), dim)
		}
	}

	tx, err := vs.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (content, source, kind, chunk_index, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.Content, chunk.Source, string(chunk.Type), chunk.Index, encodeVector(embeddings[i]), now); err != nil {
			return fmt.Errorf("inserting chunk %d: %w", i, err)
		}
	}

	if vs.dimension == 0 {
		if err := vs.setMeta(ctx, tx, "dimension", strconv.Itoa(dim)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunks: %w", err)
	}
	vs.dimension = dim
	return nil
}

// AddChunks embeds the chunk contents and stores them
func (vs *VectorStore) AddChunks(ctx context.Context, embedder Embedder, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding chunks: %w", err)
	}
	return vs.Add(ctx, chunks, embeddings)
}

// Search returns the k chunks most similar to query, best first; ties keep insertion order
func (vs *VectorStore) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	if vs.dimension != 0 && len(query) != vs.dimension {
		return nil, fmt.Errorf("query has dimension %d, store expects %d", len(query), vs.dimension)
	}

	rows, err := vs.db.QueryContext(ctx,
		`SELECT content, source, kind, chunk_index, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			kind string
			blob []byte
		)
		if err := rows.Scan(&r.Content, &r.Source, &kind, &r.Index, &blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, err
		}
		r.Type = DocumentKind(kind)
		r.Score = cosineSimilarity(query, vec)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of stored chunks
func (vs *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := vs.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

// Backup writes a compacted copy of the index to path, which must not exist
func (vs *VectorStore) Backup(ctx context.Context, path string) error {
	if _, err := vs.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("copying vector index to %s: %w", path, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (vs *VectorStore) Close() error {
	if vs == nil || vs.db == nil {
		return nil
	}
	return vs.db.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.New("corrupt embedding: length is not a multiple of 4")
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vec, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Retriever finds the chunks relevant to a question
type Retriever struct {
	store    *VectorStore
	embedder Embedder
	k        int
}

// NewRetriever returns a retriever yielding up to k chunks per question
func NewRetriever(store *VectorStore, embedder Embedder, k int) *Retriever {
	if k <= 0 {
		k = 4
	}
	return &Retriever{store: store, embedder: embedder, k: k}
}

// Retrieve embeds the question and returns the top-k chunks
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]SearchResult, error) {
	if r.embedder == nil {
		return nil, errors.New("retriever has no embedder")
	}
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("expected 1 question embedding, got %d", len(vectors))
	}
	return r.store.Search(ctx, vectors[0], r.k)
}
