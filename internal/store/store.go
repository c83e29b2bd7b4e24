// Package store persists curated documents. Two backends: newline-delimited
// JSON files for local runs, MongoDB for shared corpora.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/model"
)

// DocumentStore is what the pipeline writes its verdicts to.
type DocumentStore interface {
	SaveAccepted(ctx context.Context, doc *model.Document) error
	SaveRejected(ctx context.Context, doc *model.Document) error
	Close(ctx context.Context) error
}

// Open builds the configured backend.
func Open(ctx context.Context, cfg model.StorageConfig, logger *zap.Logger) (DocumentStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", "jsonl":
		return NewJSONLStore(cfg.OutputDir, logger)
	case "mongodb":
		return NewMongoStore(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
