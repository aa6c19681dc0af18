// Package storage defines the persistence interface for the corpus archive.
//
// The archive keeps raw corpus text so corpora survive restarts. Vector
// indexes are never persisted; they are rebuilt from the archived text on
// startup.
package storage

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Storage persists corpus records.
type Storage interface {
	CreateCorpus(ctx context.Context, rec *models.CorpusRecord) error
	GetCorpus(ctx context.Context, id string) (*models.CorpusRecord, error)
	DeleteCorpus(ctx context.Context, id string) error
	ListCorpora(ctx context.Context) ([]*models.CorpusRecord, error)
	CountCorpora(ctx context.Context) (int64, error)

	Close() error
}
