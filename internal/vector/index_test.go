package vector

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

// stubEmbedder returns pre-set vectors per text and can be made to fail.
type stubEmbedder struct {
	vecs map[string][]float32
	err  error
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return []float32{1, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 2 }
func (s *stubEmbedder) Close() error    { return nil }

func chunksOf(texts ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = models.Chunk{Text: t, CorpusID: "c1"}
	}
	return chunks
}

func TestBuildAndSearch(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{
		"east":  {1, 0},
		"north": {0, 1},
		"both":  {1, 1},
		"query": {1, 0},
	}}
	idx, err := Build(context.Background(), chunksOf("east", "north", "both"), emb)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Fatalf("size: got %d", idx.Size())
	}

	results, err := idx.Search(context.Background(), "query", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.Text != "east" {
		t.Errorf("best match: got %q", results[0].Chunk.Text)
	}
	if results[0].Score < results[1].Score {
		t.Error("results should be sorted by descending score")
	}
	if math.Abs(results[0].Score-1.0) > 1e-6 {
		t.Errorf("identical vectors should score 1.0, got %f", results[0].Score)
	}
}

func TestSearch_FewerThanK(t *testing.T) {
	emb := &stubEmbedder{}
	idx, err := Build(context.Background(), chunksOf("a", "b"), emb)
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(context.Background(), "q", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected min(k, N)=2 results, got %d", len(results))
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	idx, err := Build(context.Background(), nil, &stubEmbedder{})
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatalf("empty index should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	// All chunks embed identically, so every score ties.
	emb := &stubEmbedder{}
	idx, err := Build(context.Background(), chunksOf("first", "second", "third"), emb)
	if err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(context.Background(), "q", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if results[i].Chunk.Text != w {
			t.Errorf("result %d: got %q, want %q (ties must keep insertion order)", i, results[i].Chunk.Text, w)
		}
	}
}

func TestBuild_EmbedderFailureAbortsWholeBuild(t *testing.T) {
	wantErr := errors.New("gateway down")
	idx, err := Build(context.Background(), chunksOf("a", "b"), &stubEmbedder{err: wantErr})
	if err == nil {
		t.Fatal("expected build to fail")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped gateway error, got %v", err)
	}
	if idx != nil {
		t.Error("no partial index may be returned on failure")
	}
}

func TestBuild_InconsistentDimensions(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{
		"a": {1, 0},
		"b": {1, 0, 0},
	}}
	if _, err := Build(context.Background(), chunksOf("a", "b"), emb); err == nil {
		t.Fatal("expected error for inconsistent embedding dimensionality")
	}
}

func TestSearch_EmbedderFailure(t *testing.T) {
	emb := &stubEmbedder{}
	idx, err := Build(context.Background(), chunksOf("a"), emb)
	if err != nil {
		t.Fatal(err)
	}
	emb.err = errors.New("gateway down")
	if _, err := idx.Search(context.Background(), "q", 1); err == nil {
		t.Fatal("expected search to surface embed failure")
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: got %f", got)
	}
	if got := Cosine([]float32{2, 0}, []float32{5, 0}); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("parallel vectors: got %f", got)
	}
	if got := Cosine([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched lengths: got %f", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector: got %f", got)
	}
}
