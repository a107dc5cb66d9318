package embeddings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

// newEmbeddingServer answers every embeddings request with vectors whose
// first component is the input's position in the batch, listed in reverse.
func newEmbeddingServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var items []string
		for i := len(req.Input) - 1; i >= 0; i-- {
			items = append(items, fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,1]}`, i, i))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"object":"list","model":"text-embedding-3-small","data":[%s]}`, strings.Join(items, ","))
	}))
}

func TestOpenAIEmbedderBatchesAndOrders(t *testing.T) {
	var calls int32
	srv := newEmbeddingServer(t, &calls)
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	e := NewOpenAIEmbedderWithConfig(cfg, ModelTextEmbedding3Small)

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = fmt.Sprintf("text %d", i)
	}
	vecs, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 150 {
		t.Fatalf("got %d vectors, want 150", len(vecs))
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 batched requests, got %d", calls)
	}
	// Second batch restarts indices at 0.
	if vecs[0][0] != 0 || vecs[99][0] != 99 || vecs[100][0] != 0 || vecs[149][0] != 49 {
		t.Errorf("vectors out of order: %v %v %v %v", vecs[0], vecs[99], vecs[100], vecs[149])
	}
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder("key", ModelTextEmbedding3Small)
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("got %v, %v; want nil, nil", vecs, err)
	}
}

func TestDimensions(t *testing.T) {
	tests := []struct {
		model OpenAIModel
		want  int
	}{
		{ModelTextEmbedding3Small, 1536},
		{ModelTextEmbedding3Large, 3072},
		{ModelTextEmbeddingAda002, 1536},
	}
	for _, tt := range tests {
		if got := NewOpenAIEmbedder("k", tt.model).Dimensions(); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.model, got, tt.want)
		}
	}
}

func TestNewEmbedder(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	if _, err := NewEmbedder(Options{Type: "openai"}); err == nil {
		t.Error("expected error for missing OPENAI_API_KEY")
	}

	t.Setenv("AZURE_OPENAI_API_KEY", "key")
	if _, err := NewEmbedder(Options{Type: "azure"}); err == nil {
		t.Error("expected error for missing azure deployment")
	}
	e, err := NewEmbedder(Options{Type: "azure", AzureEndpoint: "https://x.openai.azure.com", AzureDeployment: "emb"})
	if err != nil {
		t.Fatalf("NewEmbedder: %v", err)
	}
	if e.Name() != "azure/emb" {
		t.Errorf("got %q, want %q", e.Name(), "azure/emb")
	}

	if _, err := NewEmbedder(Options{Type: "ollama"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestToChromemFunc(t *testing.T) {
	var calls int32
	srv := newEmbeddingServer(t, &calls)
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	fn := ToChromemFunc(NewOpenAIEmbedderWithConfig(cfg, ModelTextEmbedding3Small))

	vec, err := fn(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 2 {
		t.Errorf("got %d dims, want 2", len(vec))
	}
}
