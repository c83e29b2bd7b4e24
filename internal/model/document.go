package model

// SourceType identifies the input format a collector reads
type SourceType string

const (
	SourceBulkExport SourceType = "bulk_export" // directory of delimited export tables joined by id
	SourceJSONL      SourceType = "jsonl"       // one JSON object per line
	SourceDelimited  SourceType = "delimited"   // header-row tabular text
)

// Status tracks where a document is in the curation pass
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// RejectReason classifies why the pipeline dropped a document
type RejectReason string

const (
	RejectEmptyContent   RejectReason = "empty_content"    // cleaning yielded an empty or near-empty body
	RejectLowQuality     RejectReason = "low_quality"      // aggregate score below the configured minimum
	RejectLowAlnum       RejectReason = "low_alphanumeric" // near-zero alphanumeric ratio
	RejectNoSentences    RejectReason = "no_sentences"     // no sentence boundaries found
	RejectExactDuplicate RejectReason = "exact_duplicate"  // byte-identical cleaned text already indexed
	RejectNearDuplicate  RejectReason = "near_duplicate"   // shingle similarity above threshold
)

// Document is the normalized unit flowing through the curation pipeline.
// A document is mutated only by the stage currently holding it; stages never
// keep a reference after passing it downstream.
type Document struct {
	ID         string            `json:"id"`
	Text       string            `json:"text,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Source     string            `json:"source"` // configured source name
	SourceType SourceType        `json:"source_type"`
	Provenance string            `json:"provenance,omitempty"` // originating file/record locator, e.g. "opinions.csv#1042"

	// Fields below are assigned by pipeline stages.
	CleanedText    string             `json:"cleaned_text,omitempty"`
	QualityMetrics map[string]float64 `json:"quality_metrics,omitempty"`
	QualityScore   float64            `json:"quality_score"`
	Fingerprint    string             `json:"dedup_fingerprint,omitempty"` // sha256 of cleaned text
	Status         Status             `json:"status"`
	RejectReason   RejectReason       `json:"rejection_reason,omitempty"`
	RejectDetail   string             `json:"rejection_detail,omitempty"` // matched id or failing metric
}

// Reject marks the document rejected with a reason and supporting detail.
func (d *Document) Reject(reason RejectReason, detail string) {
	d.Status = StatusRejected
	d.RejectReason = reason
	d.RejectDetail = detail
}

// SourceConfig is the instantiation contract for a collector. It is built
// once per run, validated by the factory, and treated as immutable afterwards.
type SourceConfig struct {
	Type      SourceType        `json:"source_type" yaml:"type"`
	Name      string            `json:"name" yaml:"name"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	LocalPath string            `json:"local_path,omitempty" yaml:"local_path,omitempty"`
	Options   map[string]string `json:"options,omitempty" yaml:"options,omitempty"` // interpreted per adapter
}

// Option returns a per-adapter option value, or def when unset.
func (c SourceConfig) Option(key, def string) string {
	if v, ok := c.Options[key]; ok && v != "" {
		return v
	}
	return def
}
