package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/model"
)

// acceptedRecord is the dataset-facing shape of an accepted document. The
// raw text and intermediate metrics deliberately stay out of the corpus.
type acceptedRecord struct {
	ID           string            `json:"id"`
	CleanedText  string            `json:"cleaned_text"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	QualityScore float64           `json:"quality_score"`
	Fingerprint  string            `json:"dedup_fingerprint"`
}

// rejectedRecord is the audit-facing shape of a rejected document.
type rejectedRecord struct {
	ID           string             `json:"id"`
	RejectReason model.RejectReason `json:"rejection_reason"`
	RejectDetail string             `json:"rejection_detail,omitempty"`
}

// JSONLStore appends accepted and rejected documents to two files under an
// output directory.
type JSONLStore struct {
	mu       sync.Mutex
	accepted *bufio.Writer
	rejected *bufio.Writer
	files    []*os.File
	log      *zap.Logger
}

// NewJSONLStore creates dir if needed and opens accepted.jsonl and
// rejected.jsonl for appending.
func NewJSONLStore(dir string, logger *zap.Logger) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	s := &JSONLStore{log: logger}
	for _, name := range []string{"accepted.jsonl", "rejected.jsonl"} {
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.Close(context.Background())
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		s.files = append(s.files, f)
	}
	s.accepted = bufio.NewWriter(s.files[0])
	s.rejected = bufio.NewWriter(s.files[1])
	logger.Debug("jsonl store open", zap.String("dir", dir))
	return s, nil
}

// SaveAccepted appends the accepted record for doc.
func (s *JSONLStore) SaveAccepted(_ context.Context, doc *model.Document) error {
	return s.write(s.accepted, acceptedRecord{
		ID:           doc.ID,
		CleanedText:  doc.CleanedText,
		Metadata:     doc.Metadata,
		QualityScore: doc.QualityScore,
		Fingerprint:  doc.Fingerprint,
	})
}

// SaveRejected appends the rejection audit record for doc.
func (s *JSONLStore) SaveRejected(_ context.Context, doc *model.Document) error {
	return s.write(s.rejected, rejectedRecord{
		ID:           doc.ID,
		RejectReason: doc.RejectReason,
		RejectDetail: doc.RejectDetail,
	})
}

func (s *JSONLStore) write(w *bufio.Writer, record any) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close flushes and closes both files.
func (s *JSONLStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var first error
	for _, w := range []*bufio.Writer{s.accepted, s.rejected} {
		if w == nil {
			continue
		}
		if err := w.Flush(); err != nil && first == nil {
			first = err
		}
	}
	for _, f := range s.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
