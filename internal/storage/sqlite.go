// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS corpora (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		filename TEXT,
		source_path TEXT,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_corpora_created_at ON corpora(created_at);
	CREATE INDEX IF NOT EXISTS idx_corpora_source_path ON corpora(source_path);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateCorpus inserts a corpus record.
func (s *SQLiteStorage) CreateCorpus(ctx context.Context, rec *models.CorpusRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO corpora (id, name, filename, source_path, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Filename, rec.SourcePath, rec.Content, rec.CreatedAt,
	)
	return err
}

// GetCorpus returns a corpus record by id.
func (s *SQLiteStorage) GetCorpus(ctx context.Context, id string) (*models.CorpusRecord, error) {
	var rec models.CorpusRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, filename, source_path, content, created_at
		 FROM corpora WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.Name, &rec.Filename, &rec.SourcePath, &rec.Content, &rec.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("corpus not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteCorpus removes a corpus record by id.
func (s *SQLiteStorage) DeleteCorpus(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM corpora WHERE id = ?`, id)
	return err
}

// ListCorpora returns all corpus records in insertion order.
func (s *SQLiteStorage) ListCorpora(ctx context.Context) ([]*models.CorpusRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, filename, source_path, content, created_at
		 FROM corpora ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.CorpusRecord
	for rows.Next() {
		var rec models.CorpusRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Filename, &rec.SourcePath, &rec.Content, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// CountCorpora returns the number of archived corpora.
func (s *SQLiteStorage) CountCorpora(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM corpora`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
