package model

import "time"

// Config is the full runtime configuration for a curation run.
//
// Hierarchy (highest to lowest priority): CLI flags, LEXSTREAM_* environment
// variables, config file (~/.lexstream/config.yaml), DefaultConfig.
type Config struct {
	Cleaning    CleaningConfig    `yaml:"cleaning" mapstructure:"cleaning"`
	Quality     QualityConfig     `yaml:"quality" mapstructure:"quality"`
	Dedup       DedupConfig       `yaml:"dedup" mapstructure:"dedup"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Storage     StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Output      OutputConfig      `yaml:"output" mapstructure:"output"`
}

// CleaningConfig controls the text cleaner.
type CleaningConfig struct {
	StripHTML         bool `yaml:"strip_html" mapstructure:"strip_html"`
	RemoveURLs        bool `yaml:"remove_urls" mapstructure:"remove_urls"`
	RemoveEmails      bool `yaml:"remove_emails" mapstructure:"remove_emails"`
	RemoveBoilerplate bool `yaml:"remove_boilerplate" mapstructure:"remove_boilerplate"`
	MaxNewlineRun     int  `yaml:"max_newline_run" mapstructure:"max_newline_run"`
}

// QualityConfig holds the scoring weights and thresholds. The weights are
// applied by score.Scorer as a plain weighted sum; DefaultConfig carries the
// stock values.
type QualityConfig struct {
	MinScore           float64 `yaml:"min_score" mapstructure:"min_score"`
	MinLength          int     `yaml:"min_length" mapstructure:"min_length"`
	MinSentenceCount   int     `yaml:"min_sentence_count" mapstructure:"min_sentence_count"`
	MinAvgWordLength   float64 `yaml:"min_avg_word_length" mapstructure:"min_avg_word_length"`
	MaxAvgWordLength   float64 `yaml:"max_avg_word_length" mapstructure:"max_avg_word_length"`
	MaxRepetitionRatio float64 `yaml:"max_repetition_ratio" mapstructure:"max_repetition_ratio"`
	MinAlnumRatio      float64 `yaml:"min_alnum_ratio" mapstructure:"min_alnum_ratio"`

	WeightLength        float64 `yaml:"weight_length" mapstructure:"weight_length"`
	WeightWordLength    float64 `yaml:"weight_word_length" mapstructure:"weight_word_length"`
	WeightSentenceCount float64 `yaml:"weight_sentence_count" mapstructure:"weight_sentence_count"`
	WeightRepetition    float64 `yaml:"weight_repetition" mapstructure:"weight_repetition"`
	WeightAlnum         float64 `yaml:"weight_alnum" mapstructure:"weight_alnum"`
}

// DedupConfig controls the duplicate index.
type DedupConfig struct {
	ShingleSize int     `yaml:"shingle_size" mapstructure:"shingle_size"` // words per shingle
	Threshold   float64 `yaml:"threshold" mapstructure:"threshold"`       // Jaccard similarity cutoff
	IndexPath   string  `yaml:"index_path" mapstructure:"index_path"`     // snapshot for cross-run dedup, empty disables
}

// CacheConfig controls the remote-source fetch cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir     string        `yaml:"dir" mapstructure:"dir"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// StorageConfig selects where accepted and rejected documents go.
type StorageConfig struct {
	Backend    string `yaml:"backend" mapstructure:"backend"` // "jsonl" or "mongodb"
	OutputDir  string `yaml:"output_dir" mapstructure:"output_dir"`
	MongoURI   string `yaml:"mongo_uri" mapstructure:"mongo_uri"`
	Database   string `yaml:"database" mapstructure:"database"`
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// ConcurrencyConfig bounds the only concurrent stage: post-dedup store writes.
type ConcurrencyConfig struct {
	StoreWorkers int `yaml:"store_workers" mapstructure:"store_workers"`
}

// OutputConfig controls run reporting.
type OutputConfig struct {
	Verbose       bool   `yaml:"verbose" mapstructure:"verbose"`
	MetricsListen string `yaml:"metrics_listen" mapstructure:"metrics_listen"` // addr for /metrics, empty disables
}

// DefaultConfig returns the built-in defaults for every section.
func DefaultConfig() *Config {
	return &Config{
		Cleaning: CleaningConfig{
			StripHTML:         true,
			RemoveURLs:        true,
			RemoveEmails:      true,
			RemoveBoilerplate: true,
			MaxNewlineRun:     3,
		},
		Quality: QualityConfig{
			MinScore:           0.5,
			MinLength:          100,
			MinSentenceCount:   3,
			MinAvgWordLength:   3.0,
			MaxAvgWordLength:   15.0,
			MaxRepetitionRatio: 0.3,
			MinAlnumRatio:      0.7,

			WeightLength:        0.2,
			WeightWordLength:    0.1,
			WeightSentenceCount: 0.2,
			WeightRepetition:    0.2,
			WeightAlnum:         0.3,
		},
		Dedup: DedupConfig{
			ShingleSize: 3,
			Threshold:   0.80,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     defaultCacheDir(),
			TTL:     24 * time.Hour,
		},
		Storage: StorageConfig{
			Backend:    "jsonl",
			OutputDir:  "./lexstream-out",
			Database:   "lexstream",
			Collection: "documents",
		},
		Concurrency: ConcurrencyConfig{
			StoreWorkers: 4,
		},
		Output: OutputConfig{},
	}
}
