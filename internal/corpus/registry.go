// Package corpus manages the lifecycle of named corpora, each owning one
// immutable vector index.
package corpus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// Corpus is a named body of text with its built index. Fields are never
// mutated after registration.
type Corpus struct {
	ID        string
	Name      string
	RawText   string
	Index     *vector.Index
	CreatedAt time.Time
}

// Registry maps corpus ids to corpora. It is shared across all concurrent
// requests: reads take the read lock, register/delete swap entries atomically
// under the write lock. Index builds run outside any lock, so a reader never
// observes a half-built corpus. Ids are random tokens and never reused within
// a process lifetime.
type Registry struct {
	embedder embedding.Embedder
	logger   *zap.Logger

	mu        sync.RWMutex
	corpora   map[string]*Corpus
	defaultID string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets a logger for debug output (corpus registered, deleted, etc.).
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty registry using embedder for all index builds.
func NewRegistry(embedder embedding.Embedder, opts ...RegistryOption) *Registry {
	r := &Registry{
		embedder: embedder,
		corpora:  make(map[string]*Corpus),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Bootstrap registers the default corpus. It must be called exactly once,
// before any request is served; the default corpus cannot be deleted and
// serves as the retrieval fallback when no corpus ids are selected.
func (r *Registry) Bootstrap(ctx context.Context, name, text string, profile chunker.Profile) error {
	r.mu.RLock()
	already := r.defaultID != ""
	r.mu.RUnlock()
	if already {
		return fmt.Errorf("default corpus already registered")
	}
	id, err := r.Register(ctx, name, text, profile)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.defaultID = id
	r.mu.Unlock()
	return nil
}

// Register chunks text, builds a vector index, and publishes the corpus under
// a fresh unguessable id. The corpus becomes visible to readers only after
// the build fully succeeds.
func (r *Registry) Register(ctx context.Context, name, text string, profile chunker.Profile) (string, error) {
	return r.register(ctx, uuid.New().String(), name, text, profile)
}

// Restore registers a corpus under a pre-existing id. Used only when
// rebuilding archived corpora at startup so ids survive restarts.
func (r *Registry) Restore(ctx context.Context, id, name, text string, profile chunker.Profile) error {
	if id == "" {
		return fmt.Errorf("restore requires an id")
	}
	r.mu.RLock()
	_, exists := r.corpora[id]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("corpus %s already registered", id)
	}
	_, err := r.register(ctx, id, name, text, profile)
	return err
}

func (r *Registry) register(ctx context.Context, id, name, text string, profile chunker.Profile) (string, error) {
	pieces := profile.Split(text)
	chunks := make([]models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = models.Chunk{Text: p, CorpusID: id}
	}

	// Chunking and embedding run outside the lock; registration of other
	// corpora and all reads proceed concurrently.
	idx, err := vector.Build(ctx, chunks, r.embedder)
	if err != nil {
		return "", fmt.Errorf("register corpus %q: %w", name, err)
	}

	c := &Corpus{
		ID:        id,
		Name:      name,
		RawText:   text,
		Index:     idx,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	r.corpora[id] = c
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Debug("corpus registered",
			zap.String("id", id),
			zap.String("name", name),
			zap.Int("chunks", idx.Size()),
		)
	}
	return id, nil
}

// Get returns the corpus for id. Absence is a normal negative result.
func (r *Registry) Get(id string) (*Corpus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.corpora[id]
	return c, ok
}

// Delete removes the corpus if present and not the default corpus, reporting
// whether removal occurred. Unknown and protected ids return false, never an
// error. Removal is a single atomic map delete; in-flight queries holding the
// old corpus finish against its immutable index.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.defaultID {
		return false
	}
	if _, ok := r.corpora[id]; !ok {
		return false
	}
	delete(r.corpora, id)
	if r.logger != nil {
		r.logger.Debug("corpus deleted", zap.String("id", id))
	}
	return true
}

// DefaultID returns the id of the default corpus, or "" before Bootstrap.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// List returns all corpora, default first, then by registration time.
func (r *Registry) List() []models.CorpusInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]models.CorpusInfo, 0, len(r.corpora))
	for _, c := range r.corpora {
		infos = append(infos, models.CorpusInfo{
			ID:        c.ID,
			Name:      c.Name,
			Chunks:    c.Index.Size(),
			Default:   c.ID == r.defaultID,
			CreatedAt: c.CreatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Default != infos[j].Default {
			return infos[i].Default
		}
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// Count returns the number of registered corpora.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.corpora)
}

// TotalChunks returns the number of indexed chunks across all corpora.
func (r *Registry) TotalChunks() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, c := range r.corpora {
		total += c.Index.Size()
	}
	return total
}
