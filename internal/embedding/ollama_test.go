package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "all-minilm" {
			t.Errorf("model: got %s", req.Model)
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{3, 4, 0}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "all-minilm", 3, 10)
	v, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 {
		t.Fatalf("dimensions: got %d", len(v))
	}
	// Normalized: 3-4-0 -> 0.6-0.8-0
	if v[0] < 0.59 || v[0] > 0.61 || v[1] < 0.79 || v[1] > 0.81 {
		t.Errorf("expected normalized vector, got %v", v)
	}

	// Second call for the same text is served from cache.
	if _, err := e.Embed(context.Background(), "some text"); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 HTTP call, got %d", calls)
	}
}

func TestOllamaEmbedder_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "missing", 3, 10)
	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("expected ErrEmbedding, got %v", err)
	}
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{1, 2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 3, 10)
	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("expected ErrEmbedding on dimension mismatch, got %v", err)
	}
}

func TestOllamaEmbedder_EmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 0, 10)
	_, err := e.Embed(context.Background(), "text")
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("an empty embedding must never be returned silently, got %v", err)
	}
}
