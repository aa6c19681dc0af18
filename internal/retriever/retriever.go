// Package retriever assembles generation context from corpus searches.
package retriever

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/corpus"
)

// NoContextMarker is the context text used when no selected corpus exists or
// none returned results. The model still sees the query; it just has nothing
// to ground the answer on.
const NoContextMarker = "no relevant information found"

// DefaultTopK is the per-corpus result count used when a query does not say.
const DefaultTopK = 3

// Passage is one retrieved chunk with its origin.
type Passage struct {
	CorpusID   string
	CorpusName string
	Text       string
	Score      float64
}

// ContextBundle is the assembled retrieval output for one query.
type ContextBundle struct {
	// Text is the prompt-ready context block. When Found is false it holds
	// NoContextMarker.
	Text     string
	Passages []Passage
	// Found reports whether at least one passage was retrieved.
	Found bool
}

// Retriever fans a query out over selected corpora and merges the hits into
// one context block.
type Retriever struct {
	registry *corpus.Registry
	topK     int
	logger   *zap.Logger
}

// New creates a Retriever. topK values below 1 fall back to DefaultTopK.
func New(registry *corpus.Registry, topK int, logger *zap.Logger) *Retriever {
	if topK < 1 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{registry: registry, topK: topK, logger: logger}
}

// Retrieve searches each selected corpus for the top passages and concatenates
// them in the caller's corpus order. An empty ids slice selects the default
// corpus. Unknown ids are skipped; if every id is unknown the bundle carries
// the no-context marker rather than an error. Search failures do propagate:
// answering from silently truncated context would be worse than failing.
func (r *Retriever) Retrieve(ctx context.Context, query string, ids []string) (*ContextBundle, error) {
	if len(ids) == 0 {
		ids = []string{r.registry.DefaultID()}
	}

	var passages []Passage
	for _, id := range ids {
		c, ok := r.registry.Get(id)
		if !ok {
			r.logger.Debug("skipping unknown corpus", zap.String("id", id))
			continue
		}
		results, err := c.Index.Search(ctx, query, r.topK)
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			passages = append(passages, Passage{
				CorpusID:   c.ID,
				CorpusName: c.Name,
				Text:       res.Chunk.Text,
				Score:      res.Score,
			})
		}
	}

	if len(passages) == 0 {
		return &ContextBundle{Text: NoContextMarker, Found: false}, nil
	}
	return &ContextBundle{Text: formatPassages(passages), Passages: passages, Found: true}, nil
}

// formatPassages renders passages into the prompt context block, each prefixed
// with the name of the corpus it came from.
func formatPassages(passages []Passage) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[source: ")
		b.WriteString(p.CorpusName)
		b.WriteString("]\n")
		b.WriteString(p.Text)
	}
	return b.String()
}
