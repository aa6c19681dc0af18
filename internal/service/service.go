// Package service ties retrieval, generation, extraction, and persistence
// together behind one application-level API. HTTP handlers and the CLI both
// sit on top of it.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/storage"
)

// UploadFile is one file of an upload batch, already read into memory.
type UploadFile struct {
	Filename string
	Content  []byte
}

// Service is the application core. All methods are safe for concurrent use.
type Service struct {
	registry     *corpus.Registry
	retriever    *retriever.Retriever
	orchestrator *generation.Orchestrator
	extractor    *extract.Extractor
	store        storage.Storage
	logger       *zap.Logger

	docProfile chunker.Profile

	// watched maps an absolute file path to the corpus it was indexed as,
	// so filesystem events can replace or remove the right corpus.
	mu      sync.Mutex
	watched map[string]string
}

// Option configures a Service.
type Option func(*Service)

// WithDocumentProfile overrides the chunking profile used for uploaded and
// watched documents.
func WithDocumentProfile(p chunker.Profile) Option {
	return func(s *Service) { s.docProfile = p }
}

// New creates a Service. store may be nil to run without the corpus archive.
func New(
	registry *corpus.Registry,
	ret *retriever.Retriever,
	orchestrator *generation.Orchestrator,
	extractor *extract.Extractor,
	store storage.Storage,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		registry:     registry,
		retriever:    ret,
		orchestrator: orchestrator,
		extractor:    extractor,
		store:        store,
		logger:       logger,
		docProfile:   chunker.DocumentProfile,
		watched:      make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat answers a query in one piece. The returned string is always
// displayable: retrieval and generation failures become readable error text,
// and an empty message short-circuits to the fallback answer without touching
// retrieval or the generation backend.
func (s *Service) Chat(ctx context.Context, message string, corpusIDs []string) string {
	if strings.TrimSpace(message) == "" {
		return generation.FallbackAnswer
	}
	bundle, err := s.retriever.Retrieve(ctx, message, corpusIDs)
	if err != nil {
		s.logger.Warn("retrieval failed", zap.Error(err))
		return fmt.Sprintf("Error processing your request: %v", err)
	}
	return s.orchestrator.Answer(ctx, bundle.Text, message)
}

// ChatStream answers a query as a fragment stream. The channel closes when
// the answer is complete or after a final error fragment.
func (s *Service) ChatStream(ctx context.Context, message string, corpusIDs []string) <-chan generation.Fragment {
	if strings.TrimSpace(message) == "" {
		out := make(chan generation.Fragment, 1)
		out <- generation.Fragment{Text: generation.FallbackAnswer}
		close(out)
		return out
	}
	bundle, err := s.retriever.Retrieve(ctx, message, corpusIDs)
	if err != nil {
		s.logger.Warn("retrieval failed", zap.Error(err))
		out := make(chan generation.Fragment, 1)
		out <- generation.Fragment{Err: err}
		close(out)
		return out
	}
	return s.orchestrator.AnswerStream(ctx, bundle.Text, message)
}

// Upload indexes each file as its own corpus. Files that cannot be indexed
// never fail the batch; they are reported in the skipped list with a reason.
func (s *Service) Upload(ctx context.Context, files []UploadFile) *models.UploadResponse {
	resp := &models.UploadResponse{}
	for _, f := range files {
		id, reason := s.indexFile(ctx, f)
		if reason != "" {
			resp.Skipped = append(resp.Skipped, models.SkippedFile{Filename: f.Filename, Reason: reason})
			continue
		}
		resp.Documents = append(resp.Documents, models.DocumentRef{ID: id, Filename: f.Filename})
	}
	return resp
}

// indexFile registers one file as a corpus, returning either its corpus id or
// a skip reason.
func (s *Service) indexFile(ctx context.Context, f UploadFile) (id, reason string) {
	ext := filepath.Ext(f.Filename)
	if !s.extractor.Supported(ext) {
		return "", fmt.Sprintf("unsupported file type %q", ext)
	}
	text, err := s.extractor.ExtractBytes(f.Content, ext)
	if err != nil {
		s.logger.Warn("extraction failed", zap.String("filename", f.Filename), zap.Error(err))
		return "", err.Error()
	}
	if strings.TrimSpace(text) == "" {
		return "", "no extractable text"
	}
	id, err = s.registry.Register(ctx, f.Filename, text, s.docProfile)
	if err != nil {
		s.logger.Warn("indexing failed", zap.String("filename", f.Filename), zap.Error(err))
		return "", err.Error()
	}
	s.archive(ctx, &models.CorpusRecord{ID: id, Name: f.Filename, Filename: f.Filename, Content: text})
	s.logger.Info("document indexed", zap.String("filename", f.Filename), zap.String("corpus_id", id))
	return id, ""
}

// archive persists a corpus record. Archive failures are logged, not
// propagated: the corpus is already live in memory.
func (s *Service) archive(ctx context.Context, rec *models.CorpusRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.CreateCorpus(ctx, rec); err != nil {
		s.logger.Warn("corpus archive failed", zap.String("corpus_id", rec.ID), zap.Error(err))
	}
}

// DeleteCorpus removes a corpus from the registry and the archive. It reports
// false for unknown ids and for the default corpus.
func (s *Service) DeleteCorpus(ctx context.Context, id string) bool {
	if !s.registry.Delete(id) {
		return false
	}
	if s.store != nil {
		if err := s.store.DeleteCorpus(ctx, id); err != nil {
			s.logger.Warn("corpus archive delete failed", zap.String("corpus_id", id), zap.Error(err))
		}
	}
	s.forgetPath(id)
	return true
}

// ListCorpora returns all live corpora, default first.
func (s *Service) ListCorpora() []models.CorpusInfo {
	return s.registry.List()
}

// Status reports live corpus and chunk counts.
func (s *Service) Status() models.StatusResponse {
	return models.StatusResponse{
		Status:  "ok",
		Corpora: s.registry.Count(),
		Chunks:  s.registry.TotalChunks(),
	}
}

// RegisterPath indexes a file from the filesystem, replacing any corpus
// previously registered for the same path. Used by the directory watcher.
func (s *Service) RegisterPath(ctx context.Context, path string) error {
	if !s.extractor.Supported(filepath.Ext(path)) {
		return nil
	}
	text, err := s.extractor.Extract(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	name := filepath.Base(path)
	id, err := s.registry.Register(ctx, name, text, s.docProfile)
	if err != nil {
		return err
	}
	s.archive(ctx, &models.CorpusRecord{ID: id, Name: name, Filename: name, SourcePath: path, Content: text})

	s.mu.Lock()
	old, replaced := s.watched[path]
	s.watched[path] = id
	s.mu.Unlock()

	if replaced {
		s.registry.Delete(old)
		if s.store != nil {
			if err := s.store.DeleteCorpus(ctx, old); err != nil {
				s.logger.Warn("corpus archive delete failed", zap.String("corpus_id", old), zap.Error(err))
			}
		}
	}
	s.logger.Info("path indexed", zap.String("path", path), zap.String("corpus_id", id))
	return nil
}

// RemovePath drops the corpus registered for path, if any.
func (s *Service) RemovePath(ctx context.Context, path string) {
	s.mu.Lock()
	id, ok := s.watched[path]
	if ok {
		delete(s.watched, path)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	s.registry.Delete(id)
	if s.store != nil {
		if err := s.store.DeleteCorpus(ctx, id); err != nil {
			s.logger.Warn("corpus archive delete failed", zap.String("corpus_id", id), zap.Error(err))
		}
	}
	s.logger.Info("path removed", zap.String("path", path), zap.String("corpus_id", id))
}

// forgetPath clears the watched-path entry pointing at id, if any.
func (s *Service) forgetPath(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, cid := range s.watched {
		if cid == id {
			delete(s.watched, path)
			return
		}
	}
}

// Restore rebuilds corpora from the archive. Each record is chunked and
// re-embedded from its raw text; a record that fails to rebuild is logged and
// skipped so one bad row cannot block startup.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	recs, err := s.store.ListCorpora(ctx)
	if err != nil {
		return fmt.Errorf("list archived corpora: %w", err)
	}
	restored := 0
	for _, rec := range recs {
		if err := s.registry.Restore(ctx, rec.ID, rec.Name, rec.Content, s.docProfile); err != nil {
			s.logger.Warn("corpus restore failed", zap.String("corpus_id", rec.ID), zap.Error(err))
			continue
		}
		if rec.SourcePath != "" {
			s.mu.Lock()
			s.watched[rec.SourcePath] = rec.ID
			s.mu.Unlock()
		}
		restored++
	}
	if restored > 0 {
		s.logger.Info("corpora restored from archive", zap.Int("count", restored))
	}
	return nil
}
