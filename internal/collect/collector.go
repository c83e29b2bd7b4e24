// Package collect turns heterogeneous legal-corpus inputs into a single lazy
// stream of model.Document. Each source format has its own Collector; the
// factory picks one from a SourceConfig.
package collect

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/model"
)

var (
	// ErrUnsupportedSource is returned by the factory for an unregistered source type.
	ErrUnsupportedSource = errors.New("unsupported source type")

	// ErrInvalidConfig is returned by the factory when a required option is missing.
	ErrInvalidConfig = errors.New("invalid source configuration")

	// ErrSourceUnavailable means the configured path or URL cannot be opened.
	// Fatal: surfaced before any documents are yielded.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrNotConnected is returned by Collect when Connect was not called or failed.
	ErrNotConnected = errors.New("not connected to source")
)

// RecordError describes a single malformed record. Recoverable: the record is
// skipped and counted, the stream continues.
type RecordError struct {
	Source  string
	Locator string // file#line or file#record
	Err     error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("malformed record %s (%s): %v", e.Locator, e.Source, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Iterator is a lazy, finite, non-restartable cursor over documents.
// Next returns io.EOF once the source (or the collection limit) is exhausted;
// consuming the source again requires a fresh Collect call.
type Iterator interface {
	Next() (*model.Document, error)
	// Skipped reports how many malformed records were dropped so far.
	Skipped() int
	Close() error
}

// Collector reads documents from one configured source.
type Collector interface {
	Name() string

	// Connect verifies the source is reachable without reading document
	// bodies. Idempotent; safe to call repeatedly.
	Connect(ctx context.Context) error

	// Collect streams documents in source-native order. limit > 0 stops the
	// underlying read after that many emissions. Fails with ErrNotConnected
	// if Connect has not succeeded.
	Collect(ctx context.Context, limit int) (Iterator, error)

	// Metadata reports source-level facts gathered by Connect (file size,
	// last modified, content length).
	Metadata() map[string]string
}

// Constructor builds a collector from a validated SourceConfig.
type Constructor func(cfg model.SourceConfig, opts Options) (Collector, error)

// Options carries cross-cutting collaborators into collectors.
type Options struct {
	Logger  *zap.Logger
	Fetcher *Fetcher // used when cfg.URL is set; nil disables remote sources
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

var registry = map[model.SourceType]Constructor{
	model.SourceBulkExport: newBulkExport,
	model.SourceJSONL:      newJSONL,
	model.SourceDelimited:  newDelimited,
}

// Register adds a source type to the factory. New adapters extend this
// mapping; call sites stay untouched.
func Register(t model.SourceType, fn Constructor) {
	registry[t] = fn
}

// New creates a collector for cfg. Configuration problems are reported here,
// before any I/O happens.
func New(cfg model.SourceConfig, opts Options) (Collector, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: source name is required", ErrInvalidConfig)
	}
	ctor, ok := registry[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, cfg.Type)
	}
	return ctor(cfg, opts)
}
