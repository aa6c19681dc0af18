package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "corpora.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGetCorpus(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rec := &models.CorpusRecord{
		ID:       "abc-123",
		Name:     "manual.pdf",
		Filename: "manual.pdf",
		Content:  "extracted text of the manual",
	}
	if err := s.CreateCorpus(ctx, rec); err != nil {
		t.Fatalf("CreateCorpus: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreateCorpus should set CreatedAt")
	}

	got, err := s.GetCorpus(ctx, "abc-123")
	if err != nil {
		t.Fatalf("GetCorpus: %v", err)
	}
	if got.Name != "manual.pdf" || got.Content != "extracted text of the manual" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

func TestGetCorpus_NotFound(t *testing.T) {
	s := newTestStorage(t)
	if _, err := s.GetCorpus(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestDeleteCorpus(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.CreateCorpus(ctx, &models.CorpusRecord{ID: "x", Name: "n", Content: "c"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteCorpus(ctx, "x"); err != nil {
		t.Fatalf("DeleteCorpus: %v", err)
	}
	if _, err := s.GetCorpus(ctx, "x"); err == nil {
		t.Error("record should be gone after delete")
	}
	if err := s.DeleteCorpus(ctx, "x"); err != nil {
		t.Errorf("deleting an absent record must not error: %v", err)
	}
}

func TestListCorpora(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.CreateCorpus(ctx, &models.CorpusRecord{ID: id, Name: id, Content: id}); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := s.ListCorpora(ctx)
	if err != nil {
		t.Fatalf("ListCorpora: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}

	n, err := s.CountCorpora(ctx)
	if err != nil {
		t.Fatalf("CountCorpora: %v", err)
	}
	if n != 3 {
		t.Errorf("count: got %d", n)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpora.db")
	ctx := context.Background()

	s1, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.CreateCorpus(ctx, &models.CorpusRecord{ID: "keep", Name: "doc", Content: "text"}); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	got, err := s2.GetCorpus(ctx, "keep")
	if err != nil {
		t.Fatalf("record should survive reopen: %v", err)
	}
	if got.Content != "text" {
		t.Errorf("content: got %q", got.Content)
	}
}
