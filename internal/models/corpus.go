// Package models defines core data structures for corpora, chunks, and the chat API.
package models

import "time"

// Chunk is one indexed passage of a corpus. Immutable once created; owned by
// the vector index that indexed it.
type Chunk struct {
	Text     string `json:"text"`
	CorpusID string `json:"corpus_id"`
}

// CorpusInfo describes a registered corpus for listing and status output.
type CorpusInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Chunks    int       `json:"chunks"`
	Default   bool      `json:"default,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CorpusRecord is the archived form of an uploaded corpus: enough raw text to
// rebuild its index after a restart. The index itself is never persisted.
type CorpusRecord struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Filename   string    `json:"filename" db:"filename"`
	SourcePath string    `json:"source_path,omitempty" db:"source_path"`
	Content    string    `json:"-" db:"content"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
