// Package pipeline composes cleaning, scoring and deduplication into a
// single forward pass per document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/clean"
	"github.com/avetisov/lexstream/internal/collect"
	"github.com/avetisov/lexstream/internal/dedup"
	"github.com/avetisov/lexstream/internal/metrics"
	"github.com/avetisov/lexstream/internal/model"
	"github.com/avetisov/lexstream/internal/score"
)

// Sink receives the pipeline's verdicts. Implementations decide where
// accepted and rejected documents land.
type Sink interface {
	Accept(ctx context.Context, doc *model.Document) error
	Reject(ctx context.Context, doc *model.Document) error
}

// Stats are the running counters for one pipeline run.
type Stats struct {
	RunID            string                     `json:"run_id"`
	Source           string                     `json:"source"`
	Seen             int                        `json:"seen"`
	Accepted         int                        `json:"accepted"`
	Rejected         int                        `json:"rejected"`
	Malformed        int                        `json:"malformed"`
	RejectedByReason map[model.RejectReason]int `json:"rejected_by_reason"`
	StartedAt        time.Time                  `json:"started_at"`
	FinishedAt       time.Time                  `json:"finished_at"`
}

// Pipeline runs documents through clean -> score -> dedup and routes the
// verdict to a Sink. The dedup index is shared across Run calls so one
// Pipeline can curate several sources into one corpus.
type Pipeline struct {
	cleaner *clean.Cleaner
	scorer  *score.Scorer
	index   *dedup.Index
	met     *metrics.Metrics
	log     *zap.Logger
}

// New assembles a pipeline. index may be pre-loaded from a snapshot for
// incremental dedup; met may be nil to disable counter export.
func New(cfg *model.Config, index *dedup.Index, met *metrics.Metrics, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cleaner: clean.New(cfg.Cleaning),
		scorer:  score.New(cfg.Quality),
		index:   index,
		met:     met,
		log:     logger,
	}
}

// Index returns the dedup index, for snapshotting after a run.
func (p *Pipeline) Index() *dedup.Index { return p.index }

// Run drains the iterator through the pipeline. Each document gets exactly
// one verdict; malformed source records are counted from the iterator and
// never reach the sink. The returned stats are valid even when err != nil.
// source is the configured source name, used for stats and counter labels.
func (p *Pipeline) Run(ctx context.Context, source string, it collect.Iterator, sink Sink) (*Stats, error) {
	stats := &Stats{
		RunID:            uuid.NewString(),
		Source:           source,
		StartedAt:        time.Now().UTC(),
		RejectedByReason: map[model.RejectReason]int{},
	}
	defer func() {
		stats.Malformed = it.Skipped()
		stats.FinishedAt = time.Now().UTC()
		if p.met != nil && stats.Malformed > 0 {
			p.met.Malformed.WithLabelValues(stats.Source).Add(float64(stats.Malformed))
		}
		p.log.Info("run finished",
			zap.String("run_id", stats.RunID),
			zap.String("source", stats.Source),
			zap.Int("seen", stats.Seen),
			zap.Int("accepted", stats.Accepted),
			zap.Int("rejected", stats.Rejected),
			zap.Int("malformed", stats.Malformed),
			zap.Duration("elapsed", stats.FinishedAt.Sub(stats.StartedAt)))
	}()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		doc, err := it.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, fmt.Errorf("read source: %w", err)
		}

		stats.Seen++
		if p.met != nil {
			p.met.Seen.Inc()
		}

		if err := p.process(ctx, doc, sink, stats); err != nil {
			return stats, err
		}
	}
}

func (p *Pipeline) process(ctx context.Context, doc *model.Document, sink Sink, stats *Stats) error {
	doc.CleanedText = p.cleaner.Clean(doc.Text)
	if doc.CleanedText == "" {
		doc.Reject(model.RejectEmptyContent, "cleaning produced empty text")
		return p.reject(ctx, doc, sink, stats)
	}

	assessment := p.scorer.Assess(doc.CleanedText)
	doc.QualityMetrics = assessment.Metrics
	doc.QualityScore = assessment.Score
	if assessment.Reject != "" {
		doc.Reject(assessment.Reject, assessment.Detail)
		return p.reject(ctx, doc, sink, stats)
	}

	doc.Fingerprint = dedup.Fingerprint(doc.CleanedText)
	match, err := p.index.CheckAndAdd(doc.ID, doc.CleanedText)
	if err != nil {
		return fmt.Errorf("index %s: %w", doc.ID, err)
	}
	if match != nil {
		reason := model.RejectNearDuplicate
		detail := fmt.Sprintf("similarity %.3f to %s", match.Similarity, match.ID)
		if match.Exact {
			reason = model.RejectExactDuplicate
			detail = "identical to " + match.ID
		}
		doc.Reject(reason, detail)
		return p.reject(ctx, doc, sink, stats)
	}

	doc.Status = model.StatusAccepted
	stats.Accepted++
	if p.met != nil {
		p.met.Accepted.Inc()
	}
	p.log.Debug("accepted",
		zap.String("id", doc.ID),
		zap.Float64("score", doc.QualityScore))
	if err := sink.Accept(ctx, doc); err != nil {
		return fmt.Errorf("store accepted %s: %w", doc.ID, err)
	}
	return nil
}

func (p *Pipeline) reject(ctx context.Context, doc *model.Document, sink Sink, stats *Stats) error {
	stats.Rejected++
	stats.RejectedByReason[doc.RejectReason]++
	if p.met != nil {
		p.met.Rejected.WithLabelValues(string(doc.RejectReason)).Inc()
	}
	p.log.Debug("rejected",
		zap.String("id", doc.ID),
		zap.String("reason", string(doc.RejectReason)),
		zap.String("detail", doc.RejectDetail))
	if err := sink.Reject(ctx, doc); err != nil {
		return fmt.Errorf("store rejected %s: %w", doc.ID, err)
	}
	return nil
}
