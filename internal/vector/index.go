// Package vector provides an immutable, batch-built vector index with
// similarity search over corpus chunks.
package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
)

// Result is a single search hit.
type Result struct {
	Chunk models.Chunk
	Score float64
}

// Searcher is the query-side view of an index. Kept narrow so an
// approximate-nearest-neighbor implementation can substitute for the
// linear scan later.
type Searcher interface {
	Search(ctx context.Context, text string, k int) ([]Result, error)
	Size() int
}

// Index stores chunks with their embeddings. It is built once from a batch of
// chunks and never mutated afterwards, so concurrent reads need no locking.
// Re-indexing means building a new Index and swapping it in.
type Index struct {
	embedder   embedding.Embedder
	dimensions int
	chunks     []models.Chunk
	vectors    [][]float32
}

// Build embeds every chunk through embedder and constructs an index. The
// whole build aborts on the first embedding failure; a partial index is never
// returned. All embeddings must have the same dimensionality.
func Build(ctx context.Context, chunks []models.Chunk, embedder embedding.Embedder) (*Index, error) {
	idx := &Index{
		embedder: embedder,
		chunks:   make([]models.Chunk, len(chunks)),
		vectors:  make([][]float32, 0, len(chunks)),
	}
	copy(idx.chunks, chunks)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	if len(texts) == 0 {
		return idx, nil
	}

	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	idx.dimensions = len(vectors[0])
	for i, vec := range vectors {
		if len(vec) != idx.dimensions {
			return nil, fmt.Errorf("build index: chunk %d has dimension %d, expected %d", i, len(vec), idx.dimensions)
		}
		idx.vectors = append(idx.vectors, vec)
	}
	return idx, nil
}

// Search embeds text with the embedder the index was built with and returns
// the top-k chunks by similarity, sorted descending. Ties keep insertion
// order. An empty index returns an empty result, never an error. Fewer than k
// results are returned only when the index holds fewer than k chunks.
func (idx *Index) Search(ctx context.Context, text string, k int) ([]Result, error) {
	if k <= 0 || len(idx.chunks) == 0 {
		return nil, nil
	}
	query, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), idx.dimensions)
	}

	results := make([]Result, len(idx.chunks))
	for i, vec := range idx.vectors {
		results[i] = Result{Chunk: idx.chunks[i], Score: Cosine(query, vec)}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of indexed chunks.
func (idx *Index) Size() int {
	return len(idx.chunks)
}

// Dimensions returns the embedding dimensionality of the index, 0 when empty.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}
