// Package score rates cleaned document text with a transparent weighted
// heuristic. Every metric that feeds the score is reported back to the
// caller so a rejection can always be traced to a number.
package score

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/avetisov/lexstream/internal/model"
)

// Metric names reported in Assessment.Metrics and stored on documents.
const (
	MetricTextLength      = "text_length"
	MetricWordCount       = "word_count"
	MetricAvgWordLength   = "avg_word_length"
	MetricSentenceCount   = "sentence_count"
	MetricRepetitionRatio = "repetition_ratio"
	MetricAlnumRatio      = "alphanumeric_ratio"
)

// Assessment is the result of scoring one document.
type Assessment struct {
	Metrics map[string]float64
	Score   float64
	Reject  model.RejectReason // empty when the document passes
	Detail  string
}

// Scorer computes quality assessments. It is stateless and safe for
// concurrent use.
type Scorer struct {
	cfg model.QualityConfig
}

// hardAlnumFloor is the unconditional rejection gate for text that is
// essentially not prose at all. MinAlnumRatio above it only shapes the
// sub-score.
const hardAlnumFloor = 0.05

// Sentences end with terminal punctuation followed by whitespace or EOF.
// Abbreviation splitting ("v.", "U.S.") overcounts slightly, which is
// acceptable for a coarse quality gate.
var sentenceEndRe = regexp.MustCompile(`[.!?]["')\]]*(\s|$)`)

// New creates a scorer from the quality config. Use
// model.DefaultConfig().Quality for the defaults.
func New(cfg model.QualityConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Assess scores cleaned text. The same input always yields the same
// assessment.
func (s *Scorer) Assess(text string) Assessment {
	words := strings.Fields(text)
	wordCount := len(words)

	avgWordLen := 0.0
	if wordCount > 0 {
		total := 0
		for _, w := range words {
			total += len([]rune(w))
		}
		avgWordLen = float64(total) / float64(wordCount)
	}

	sentences := countSentences(text)
	repetition := repetitionRatio(words)
	alnum := alnumRatio(text)

	metrics := map[string]float64{
		MetricTextLength:      float64(len([]rune(text))),
		MetricWordCount:       float64(wordCount),
		MetricAvgWordLength:   avgWordLen,
		MetricSentenceCount:   float64(sentences),
		MetricRepetitionRatio: repetition,
		MetricAlnumRatio:      alnum,
	}

	// Gibberish and sentence-free text are rejected outright rather than
	// scored: binary blobs and ASCII art can still accumulate a weighted
	// score, and these two gates are the reason they should not.
	if alnum < hardAlnumFloor {
		return Assessment{
			Metrics: metrics,
			Reject:  model.RejectLowAlnum,
			Detail:  fmt.Sprintf("alphanumeric ratio %.2f below %.2f", alnum, hardAlnumFloor),
		}
	}
	if sentences == 0 {
		return Assessment{
			Metrics: metrics,
			Reject:  model.RejectNoSentences,
			Detail:  "no sentence-terminal punctuation found",
		}
	}

	score := s.cfg.WeightLength*s.lengthScore(len([]rune(text))) +
		s.cfg.WeightWordLength*s.wordLengthScore(avgWordLen) +
		s.cfg.WeightSentenceCount*s.sentenceScore(sentences) +
		s.cfg.WeightRepetition*s.repetitionScore(repetition) +
		s.cfg.WeightAlnum*s.alnumScore(alnum)
	score = math.Min(math.Max(score, 0), 1)

	out := Assessment{Metrics: metrics, Score: score}
	if score < s.cfg.MinScore {
		out.Reject = model.RejectLowQuality
		out.Detail = fmt.Sprintf("score %.3f below %.2f", score, s.cfg.MinScore)
	}
	return out
}

// lengthScore: 1 at MinLength or above, linear below. min(len / min_length, 1)
func (s *Scorer) lengthScore(runes int) float64 {
	if s.cfg.MinLength <= 0 {
		return 1
	}
	return math.Min(float64(runes)/float64(s.cfg.MinLength), 1)
}

// wordLengthScore: 1 inside [min, max] average word length, falling linearly
// to 0 at half the min or double the max.
func (s *Scorer) wordLengthScore(avg float64) float64 {
	lo, hi := s.cfg.MinAvgWordLength, s.cfg.MaxAvgWordLength
	switch {
	case avg >= lo && avg <= hi:
		return 1
	case avg < lo:
		if lo <= 0 {
			return 1
		}
		return math.Max(0, (avg-lo/2)/(lo/2))
	default:
		return math.Max(0, (2*hi-avg)/hi)
	}
}

// sentenceScore: min(sentences / min_sentence_count, 1)
func (s *Scorer) sentenceScore(n int) float64 {
	if s.cfg.MinSentenceCount <= 0 {
		return 1
	}
	return math.Min(float64(n)/float64(s.cfg.MinSentenceCount), 1)
}

// repetitionScore: 1 at or below the allowed repetition ratio, falling
// linearly to 0 at full repetition.
func (s *Scorer) repetitionScore(ratio float64) float64 {
	max := s.cfg.MaxRepetitionRatio
	if ratio <= max {
		return 1
	}
	if max >= 1 {
		return 1
	}
	return math.Max(0, (1-ratio)/(1-max))
}

// alnumScore: min(ratio / min_alnum_ratio, 1)
func (s *Scorer) alnumScore(ratio float64) float64 {
	if s.cfg.MinAlnumRatio <= 0 {
		return 1
	}
	return math.Min(ratio/s.cfg.MinAlnumRatio, 1)
}

func countSentences(text string) int {
	return len(sentenceEndRe.FindAllStringIndex(text, -1))
}

// repetitionRatio is 1 - unique_words/total_words over lowercased words.
// 0 means every word is distinct, values near 1 mean the text is mostly
// the same words over and over.
func repetitionRatio(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	unique := map[string]struct{}{}
	for _, w := range words {
		unique[strings.ToLower(w)] = struct{}{}
	}
	return 1 - float64(len(unique))/float64(len(words))
}

// alnumRatio is the share of non-whitespace runes that are letters or
// digits. OCR noise and ASCII-art tables sit low on this ratio.
func alnumRatio(text string) float64 {
	alnum, total := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}
