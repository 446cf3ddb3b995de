package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/support-assistant/internal/core/domain"
)

func TestEmbedderReturnsVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-embed" || len(req.Input) != 1 {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "test-gen", "test-embed", nil))
	vector, err := embedder.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vector) != 3 {
		t.Fatalf("expected 3-dim vector, got %d", len(vector))
	}
}

func TestEmbedderRejectsEmptyText(t *testing.T) {
	embedder := NewEmbedder(New("http://localhost:0", "g", "e", nil))
	_, err := embedder.Embed(context.Background(), "   ")
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestGeneratorBuildsPromptWithContext(t *testing.T) {
	var gotPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotPrompt = req.Prompt
		_ = json.NewEncoder(w).Encode(map[string]any{"response": " generated text \n"})
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "test-gen", "test-embed", nil))
	contextEntries := []domain.QueryResult{
		{Entry: domain.KnowledgeEntry{ID: "1", Text: "Office hours are 9-5"}, Score: 0.6, Domain: "general"},
	}
	text, err := generator.Generate(context.Background(), "when are office hours?", contextEntries)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "generated text" {
		t.Fatalf("expected trimmed response, got %q", text)
	}
	if !strings.Contains(gotPrompt, "Office hours are 9-5") || !strings.Contains(gotPrompt, "when are office hours?") {
		t.Fatalf("prompt missing question or context: %q", gotPrompt)
	}
}

func TestGeneratorMapsFailureToGenerationUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusNotFound)
	}))
	defer server.Close()

	generator := NewGenerator(New(server.URL, "test-gen", "test-embed", nil))
	_, err := generator.Generate(context.Background(), "q", nil)
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
}
