package store

import (
	"context"
	"errors"

	"github.com/avetisov/lexstream/internal/model"
	"github.com/avetisov/lexstream/internal/worker"
)

// AsyncWriter adapts a DocumentStore to the pipeline's sink with a worker
// pool in between, so slow store round-trips do not stall the scoring pass.
// Save errors surface at Flush rather than per document.
type AsyncWriter struct {
	store DocumentStore
	pool  *worker.Pool
}

// NewAsyncWriter starts workers goroutines writing to store.
func NewAsyncWriter(ctx context.Context, store DocumentStore, workers int) *AsyncWriter {
	return &AsyncWriter{
		store: store,
		pool:  worker.NewPool(ctx, workers),
	}
}

// Accept queues the accepted document for saving.
func (w *AsyncWriter) Accept(_ context.Context, doc *model.Document) error {
	w.pool.Submit(func(ctx context.Context) error {
		return w.store.SaveAccepted(ctx, doc)
	})
	return nil
}

// Reject queues the rejection record for saving.
func (w *AsyncWriter) Reject(_ context.Context, doc *model.Document) error {
	w.pool.Submit(func(ctx context.Context) error {
		return w.store.SaveRejected(ctx, doc)
	})
	return nil
}

// Flush waits for queued saves to finish and reports their errors joined.
// The writer must not be used after Flush.
func (w *AsyncWriter) Flush() error {
	return errors.Join(w.pool.Wait()...)
}
