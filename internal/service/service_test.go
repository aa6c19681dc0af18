package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generation"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/storage"
)

func newTestService(t *testing.T, gen generation.Generator) *Service {
	t.Helper()
	reg := corpus.NewRegistry(embedding.NewMockEmbedder(8))
	if err := reg.Bootstrap(context.Background(), "Built-in knowledge", "The assistant answers questions from indexed documents.", chunker.BootstrapProfile); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "corpora.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return New(
		reg,
		retriever.New(reg, 3, zap.NewNop()),
		generation.NewOrchestrator(gen, zap.NewNop()),
		extract.NewExtractor(),
		store,
		zap.NewNop(),
	)
}

func TestChat(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{Reply: "an answer"})
	if got := s.Chat(context.Background(), "what is this?", nil); got != "an answer" {
		t.Errorf("got %q", got)
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{Err: context.DeadlineExceeded})
	// Generator would fail, but an empty message must never reach it.
	if got := s.Chat(context.Background(), "   ", nil); got != generation.FallbackAnswer {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestChatStream_MatchesBuffered(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{Reply: "streamed words here"})
	buffered := s.Chat(context.Background(), "question", nil)

	var b strings.Builder
	for f := range s.ChatStream(context.Background(), "question", nil) {
		if f.Err != nil {
			t.Fatal(f.Err)
		}
		b.WriteString(f.Text)
	}
	if b.String() != buffered {
		t.Errorf("streamed %q != buffered %q", b.String(), buffered)
	}
}

func TestUpload(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{})
	resp := s.Upload(context.Background(), []UploadFile{
		{Filename: "notes.txt", Content: []byte("The reset button is behind the left panel.")},
		{Filename: "image.png", Content: []byte{0x89, 0x50}},
		{Filename: "empty.txt", Content: []byte("   ")},
	})

	if len(resp.Documents) != 1 {
		t.Fatalf("expected 1 indexed document, got %d", len(resp.Documents))
	}
	if resp.Documents[0].Filename != "notes.txt" || resp.Documents[0].ID == "" {
		t.Errorf("document ref: %+v", resp.Documents[0])
	}
	if len(resp.Skipped) != 2 {
		t.Fatalf("expected 2 skipped files, got %d", len(resp.Skipped))
	}

	answer := s.Chat(context.Background(), "reset button", []string{resp.Documents[0].ID})
	if answer == "" {
		t.Error("uploaded corpus should be queryable")
	}
}

func TestDeleteCorpus(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{})
	resp := s.Upload(context.Background(), []UploadFile{
		{Filename: "doc.txt", Content: []byte("content")},
	})
	id := resp.Documents[0].ID

	if !s.DeleteCorpus(context.Background(), id) {
		t.Error("expected delete to succeed")
	}
	if s.DeleteCorpus(context.Background(), id) {
		t.Error("second delete must report false")
	}
	if s.DeleteCorpus(context.Background(), s.registry.DefaultID()) {
		t.Error("default corpus must not be deletable")
	}
}

func TestStatus(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{})
	st := s.Status()
	if st.Status != "ok" {
		t.Errorf("status: got %q", st.Status)
	}
	if st.Corpora != 1 || st.Chunks == 0 {
		t.Errorf("expected bootstrap corpus in counts, got %+v", st)
	}
}

func TestRegisterPath_ReplacesOnReindex(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{})
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("first version"), 0600); err != nil {
		t.Fatal(err)
	}

	if err := s.RegisterPath(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if s.registry.Count() != 2 {
		t.Fatalf("expected 2 corpora, got %d", s.registry.Count())
	}

	if err := os.WriteFile(path, []byte("second version"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterPath(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if s.registry.Count() != 2 {
		t.Errorf("re-indexing the same path must replace, not add; got %d corpora", s.registry.Count())
	}
}

func TestRegisterPath_UnsupportedExtensionIgnored(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{})
	dir := t.TempDir()
	path := filepath.Join(dir, "binary.exe")
	if err := os.WriteFile(path, []byte{0x00}, 0600); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterPath(context.Background(), path); err != nil {
		t.Fatalf("unsupported paths must be ignored silently: %v", err)
	}
	if s.registry.Count() != 1 {
		t.Errorf("no corpus should be registered, got %d", s.registry.Count())
	}
}

func TestRemovePath(t *testing.T) {
	s := newTestService(t, &generation.MockGenerator{})
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("content"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterPath(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	s.RemovePath(context.Background(), path)
	if s.registry.Count() != 1 {
		t.Errorf("corpus should be gone after RemovePath, got %d", s.registry.Count())
	}
	// Removing an untracked path is a no-op.
	s.RemovePath(context.Background(), path)
}

func TestRestore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpora.db")

	store1, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	reg1 := corpus.NewRegistry(embedding.NewMockEmbedder(8))
	if err := reg1.Bootstrap(context.Background(), "kb", "bootstrap text", chunker.BootstrapProfile); err != nil {
		t.Fatal(err)
	}
	s1 := New(reg1, retriever.New(reg1, 3, nil), generation.NewOrchestrator(&generation.MockGenerator{}, nil), extract.NewExtractor(), store1, zap.NewNop())

	resp := s1.Upload(context.Background(), []UploadFile{
		{Filename: "doc.txt", Content: []byte("persisted content")},
	})
	id := resp.Documents[0].ID
	if err := store1.Close(); err != nil {
		t.Fatal(err)
	}

	// Fresh process: new registry, same database.
	store2, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store2.Close() })
	reg2 := corpus.NewRegistry(embedding.NewMockEmbedder(8))
	if err := reg2.Bootstrap(context.Background(), "kb", "bootstrap text", chunker.BootstrapProfile); err != nil {
		t.Fatal(err)
	}
	s2 := New(reg2, retriever.New(reg2, 3, nil), generation.NewOrchestrator(&generation.MockGenerator{}, nil), extract.NewExtractor(), store2, zap.NewNop())

	if err := s2.Restore(context.Background()); err != nil {
		t.Fatal(err)
	}
	c, ok := reg2.Get(id)
	if !ok {
		t.Fatal("restored corpus must keep its id")
	}
	if c.Name != "doc.txt" {
		t.Errorf("restored name: got %q", c.Name)
	}
}
