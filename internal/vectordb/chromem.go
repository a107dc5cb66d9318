package vectordb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/docvault/internal/embeddings"
)

const addConcurrency = 4

// ChromemStore implements Store using an embedded chromem-go collection.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   embeddings.Embedder

	mu   sync.RWMutex
	dims int
}

// NewChromemStore opens the collection. With a non-empty persistDir every
// write is persisted to disk and existing data is loaded; otherwise the store
// is in-memory.
func NewChromemStore(embedder embeddings.Embedder, collection, persistDir string) (*ChromemStore, error) {
	var db *chromem.DB
	if persistDir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(persistDir, true)
		if err != nil {
			return nil, fmt.Errorf("open vector db at %s: %w", persistDir, err)
		}
	}

	col, err := db.GetOrCreateCollection(collection, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedder:   embedder,
	}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, documentID string, chunks []Chunk) error {
	if err := s.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		c.DocumentID = documentID
		docs[i] = chromem.Document{
			ID:        ChunkID(documentID, c.Index),
			Content:   c.Content,
			Metadata:  chunkMetadata(c),
			Embedding: c.Embedding,
		}
		if len(c.Embedding) > 0 {
			s.mu.Lock()
			s.dims = len(c.Embedding)
			s.mu.Unlock()
		}
	}

	if err := s.collection.AddDocuments(ctx, docs, addConcurrency); err != nil {
		return fmt.Errorf("add chunks of %s: %w", documentID, err)
	}
	return nil
}

func (s *ChromemStore) DeleteDocument(ctx context.Context, documentID string) error {
	if err := s.collection.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", documentID, err)
	}
	return nil
}

func (s *ChromemStore) QueryText(ctx context.Context, text string, n int) ([]Match, error) {
	n = s.clamp(n)
	if n == 0 {
		return nil, nil
	}
	results, err := s.collection.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	return toMatches(results), nil
}

func (s *ChromemStore) QueryEmbedding(ctx context.Context, vec []float32, n int) ([]Match, error) {
	n = s.clamp(n)
	if n == 0 {
		return nil, nil
	}
	results, err := s.collection.QueryEmbedding(ctx, vec, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	return toMatches(results), nil
}

// DocumentChunks walks the contiguous chunk IDs of documentID.
func (s *ChromemStore) DocumentChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	var chunks []Chunk
	for i := 0; ; i++ {
		doc, err := s.collection.GetByID(ctx, ChunkID(documentID, i))
		if err != nil {
			break
		}
		chunks = append(chunks, chunkFromMetadata(doc.ID, doc.Content, doc.Metadata, doc.Embedding))
	}
	return chunks, nil
}

// DocumentIDs scans the whole collection. chromem-go has no listing API, so
// this runs an exhaustive query with an arbitrary unit vector.
func (s *ChromemStore) DocumentIDs(ctx context.Context) ([]string, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	probe := make([]float32, s.dimensions())
	if len(probe) == 0 {
		return nil, fmt.Errorf("unknown embedding dimensions")
	}
	probe[0] = 1

	results, err := s.collection.QueryEmbedding(ctx, probe, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem scan: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, r := range results {
		id := r.Metadata["document_id"]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *ChromemStore) Count(_ context.Context) (int, error) {
	return s.collection.Count(), nil
}

func (s *ChromemStore) dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dims > 0 {
		return s.dims
	}
	return s.embedder.Dimensions()
}

// clamp bounds n to the collection size; chromem-go rejects larger values.
func (s *ChromemStore) clamp(n int) int {
	count := s.collection.Count()
	if n <= 0 || n > count {
		return count
	}
	return n
}

func toMatches(results []chromem.Result) []Match {
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{
			Chunk:      chunkFromMetadata(r.ID, r.Content, r.Metadata, r.Embedding),
			Similarity: r.Similarity,
		}
	}
	return matches
}
