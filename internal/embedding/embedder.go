// Package embedding provides text embedding gateways: a remote Ollama client,
// a local ONNX model (requires CGO), and a deterministic mock for tests.
package embedding

import (
	"context"
	"errors"
)

// ErrEmbedding marks embedder gateway failures. Index builds abort on it;
// a failed embed never silently yields a zero vector.
var ErrEmbedding = errors.New("embedding failed")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
