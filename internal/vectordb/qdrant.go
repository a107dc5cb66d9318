package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/docvault/internal/embeddings"
)

const qdrantScrollPage = 256

// QdrantConfig locates a Qdrant collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantStore is a minimal REST client to Qdrant implementing Store.
// It assumes cosine distance and creates the collection on first write.
type QdrantStore struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	embedder   embeddings.Embedder

	mu    sync.Mutex
	ready bool
}

// NewQdrantStore creates a client. No request is made until first use.
func NewQdrantStore(cfg QdrantConfig, embedder embeddings.Embedder) *QdrantStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantStore{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		embedder:   embedder,
	}
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Score   float32        `json:"score,omitempty"`
}

// pointID maps a chunk ID to the UUID Qdrant requires as point ID.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docvault:"+chunkID)).String()
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{"key": "document_id", "match": map[string]any{"value": documentID}},
		},
	}
}

func (s *QdrantStore) Upsert(ctx context.Context, documentID string, chunks []Chunk) error {
	if err := s.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	// Qdrant cannot embed; fill in missing vectors first.
	var missing []string
	var missingIdx []int
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			missing = append(missing, c.Content)
			missingIdx = append(missingIdx, i)
		}
	}
	if len(missing) > 0 {
		vecs, err := s.embedder.Embed(ctx, missing)
		if err != nil {
			return fmt.Errorf("embed chunks of %s: %w", documentID, err)
		}
		for j, i := range missingIdx {
			chunks[i].Embedding = vecs[j]
		}
	}

	if err := s.ensureCollection(ctx, len(chunks[0].Embedding)); err != nil {
		return err
	}

	points := make([]qdrantPoint, len(chunks))
	for i, c := range chunks {
		id := ChunkID(documentID, c.Index)
		points[i] = qdrantPoint{
			ID:     pointID(id),
			Vector: c.Embedding,
			Payload: map[string]any{
				"chunk_id":    id,
				"document_id": documentID,
				"chunk_index": c.Index,
				"title":       c.Title,
				"text":        c.Content,
			},
		}
	}
	return s.do(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
}

func (s *QdrantStore) DeleteDocument(ctx context.Context, documentID string) error {
	err := s.do(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"),
		map[string]any{"filter": documentFilter(documentID)}, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

func (s *QdrantStore) QueryText(ctx context.Context, text string, n int) ([]Match, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}
	return s.QueryEmbedding(ctx, vecs[0], n)
}

func (s *QdrantStore) QueryEmbedding(ctx context.Context, vec []float32, n int) ([]Match, error) {
	if n <= 0 {
		n = 10
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        n,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []qdrantPoint `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &resp)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	matches := make([]Match, len(resp.Result))
	for i, p := range resp.Result {
		matches[i] = Match{Chunk: pointToChunk(p), Similarity: p.Score}
	}
	return matches, nil
}

func (s *QdrantStore) DocumentChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	points, err := s.scroll(ctx, documentFilter(documentID), true)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, len(points))
	for i, p := range points {
		chunks[i] = pointToChunk(p)
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

func (s *QdrantStore) DocumentIDs(ctx context.Context) ([]string, error) {
	points, err := s.scroll(ctx, nil, false)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var ids []string
	for _, p := range points {
		id, _ := p.Payload["document_id"].(string)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionPath("/points/count"), map[string]any{"exact": true}, &resp)
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *QdrantStore) scroll(ctx context.Context, filter map[string]any, withVector bool) ([]qdrantPoint, error) {
	var all []qdrantPoint
	var offset any
	for {
		req := map[string]any{
			"limit":        qdrantScrollPage,
			"with_payload": true,
			"with_vector":  withVector,
		}
		if filter != nil {
			req["filter"] = filter
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []qdrantPoint `json:"points"`
				NextPageOffset any           `json:"next_page_offset"`
			} `json:"result"`
		}
		err := s.do(ctx, http.MethodPost, s.collectionPath("/points/scroll"), req, &resp)
		if isNotFound(err) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, resp.Result.Points...)
		if resp.Result.NextPageOffset == nil {
			return all, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	if dimension <= 0 {
		return errors.New("invalid dimension")
	}

	err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, nil)
	if isNotFound(err) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		err = s.do(ctx, http.MethodPut, s.collectionPath(""), body, nil)
	}
	if err != nil {
		return fmt.Errorf("ensure collection %s: %w", s.collection, err)
	}
	s.ready = true
	return nil
}

func (s *QdrantStore) collectionPath(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

type qdrantStatusError struct {
	method string
	url    string
	status int
	body   string
}

func (e *qdrantStatusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %d %s", e.method, e.url, e.status, e.body)
}

func isNotFound(err error) bool {
	var se *qdrantStatusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (s *QdrantStore) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &qdrantStatusError{method: method, url: url, status: resp.StatusCode, body: string(msg)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func pointToChunk(p qdrantPoint) Chunk {
	c := Chunk{Embedding: p.Vector}
	c.ID, _ = p.Payload["chunk_id"].(string)
	c.DocumentID, _ = p.Payload["document_id"].(string)
	c.Title, _ = p.Payload["title"].(string)
	c.Content, _ = p.Payload["text"].(string)
	if v, ok := p.Payload["chunk_index"].(float64); ok {
		c.Index = int(v)
	}
	return c
}
