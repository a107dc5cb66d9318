package vectordb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Chunk is one embedded slice of a document. IDs have the form
// "{document_id}:{index}" and indices are contiguous from 0.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Title      string
	Content    string
	Embedding  []float32
}

// Match pairs a stored chunk with its cosine similarity to a query.
type Match struct {
	Chunk      Chunk
	Similarity float32
}

// Store is the vector index over document chunks.
type Store interface {
	// Upsert replaces every chunk of documentID with chunks.
	Upsert(ctx context.Context, documentID string, chunks []Chunk) error

	// DeleteDocument removes all chunks of documentID. Missing documents are not an error.
	DeleteDocument(ctx context.Context, documentID string) error

	// QueryText embeds text and returns up to n nearest chunks.
	QueryText(ctx context.Context, text string, n int) ([]Match, error)

	// QueryEmbedding returns up to n chunks nearest to vec.
	QueryEmbedding(ctx context.Context, vec []float32, n int) ([]Match, error)

	// DocumentChunks returns the stored chunks of documentID, embeddings included, in index order.
	DocumentChunks(ctx context.Context, documentID string) ([]Chunk, error)

	// DocumentIDs lists the distinct document IDs present in the store.
	DocumentIDs(ctx context.Context) ([]string, error)

	// Count returns the total number of chunks.
	Count(ctx context.Context) (int, error)
}

// ChunkID builds the stored ID of chunk index of documentID.
func ChunkID(documentID string, index int) string {
	return documentID + ":" + strconv.Itoa(index)
}

// ParseChunkID splits a chunk ID back into document ID and index.
func ParseChunkID(id string) (string, int, error) {
	i := strings.LastIndex(id, ":")
	if i <= 0 {
		return "", 0, fmt.Errorf("malformed chunk id %q", id)
	}
	idx, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed chunk id %q: %w", id, err)
	}
	return id[:i], idx, nil
}

func chunkMetadata(c Chunk) map[string]string {
	return map[string]string{
		"document_id": c.DocumentID,
		"chunk_index": strconv.Itoa(c.Index),
		"title":       c.Title,
	}
}

func chunkFromMetadata(id, content string, md map[string]string, embedding []float32) Chunk {
	idx, _ := strconv.Atoi(md["chunk_index"])
	return Chunk{
		ID:         id,
		DocumentID: md["document_id"],
		Index:      idx,
		Title:      md["title"],
		Content:    content,
		Embedding:  embedding,
	}
}
