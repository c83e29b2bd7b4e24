// Package dedup maintains a growing two-tier duplicate index over a corpus:
// exact matches on a content hash of the cleaned text, and near matches on
// Jaccard similarity over hashed word-shingle sets. The first document
// observed for any cluster is kept; later arrivals are reported as matches.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Match describes the already-indexed document a candidate collided with.
type Match struct {
	ID         string  // id of the retained original
	Similarity float64 // 1.0 for exact matches
	Exact      bool
}

// Index is the duplicate index. Safe for concurrent use, though the
// pipeline feeds it in stream order so first-wins stays deterministic.
type Index struct {
	mu          sync.Mutex
	shingleSize int
	threshold   float64

	exact    map[string]string              // content hash -> retained id
	docs     map[string]map[uint64]struct{} // retained id -> shingle set
	inverted map[uint64][]string            // shingle hash -> retained ids
	order    []string                       // insertion order, candidate tie-break
}

// snapshot is the wire form of a persisted index.
type snapshot struct {
	Version     int                 `json:"version"`
	ShingleSize int                 `json:"shingle_size"`
	Threshold   float64             `json:"threshold"`
	Exact       map[string]string   `json:"exact"`
	Docs        map[string][]uint64 `json:"docs"`
	Order       []string            `json:"order"`
}

const snapshotVersion = 1

// New creates an empty index. shingleSize is in words, threshold is the
// Jaccard similarity at and above which a candidate counts as a near
// duplicate.
func New(shingleSize int, threshold float64) *Index {
	if shingleSize < 1 {
		shingleSize = 3
	}
	return &Index{
		shingleSize: shingleSize,
		threshold:   threshold,
		exact:       map[string]string{},
		docs:        map[string]map[uint64]struct{}{},
		inverted:    map[uint64][]string{},
		order:       []string{},
	}
}

// Fingerprint returns the exact-tier content hash of cleaned text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// CheckAndAdd tests text against the index. On a hit it returns the match
// and leaves the index unchanged; on a miss it indexes the document under
// id and returns nil. A retained id resubmitted with different content is an
// id collision, which indicates a broken source adapter.
func (x *Index) CheckAndAdd(id, text string) (*Match, error) {
	fp := Fingerprint(text)
	shingles := x.shingles(text)

	x.mu.Lock()
	defer x.mu.Unlock()

	if orig, ok := x.exact[fp]; ok {
		return &Match{ID: orig, Similarity: 1.0, Exact: true}, nil
	}

	if _, ok := x.docs[id]; ok {
		return nil, fmt.Errorf("id collision: %q already indexed with different content", id)
	}

	if best, sim := x.nearest(shingles); best != "" && sim >= x.threshold {
		return &Match{ID: best, Similarity: sim}, nil
	}

	x.exact[fp] = id
	x.docs[id] = shingles
	for h := range shingles {
		x.inverted[h] = append(x.inverted[h], id)
	}
	x.order = append(x.order, id)
	return nil, nil
}

// Len reports how many documents the index retains.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.docs)
}

// nearest scans only documents sharing at least one shingle with the
// candidate and returns the highest-similarity one, earliest insertion
// winning ties. Caller holds the lock.
func (x *Index) nearest(shingles map[uint64]struct{}) (string, float64) {
	if len(shingles) == 0 {
		return "", 0
	}

	overlap := map[string]int{}
	for h := range shingles {
		for _, id := range x.inverted[h] {
			overlap[id]++
		}
	}
	if len(overlap) == 0 {
		return "", 0
	}

	bestID, bestSim := "", -1.0
	bestRank := len(x.order)
	for rank, id := range x.order {
		inter, ok := overlap[id]
		if !ok {
			continue
		}
		union := len(shingles) + len(x.docs[id]) - inter
		sim := 0.0
		if union > 0 {
			sim = float64(inter) / float64(union)
		}
		if sim > bestSim || (sim == bestSim && rank < bestRank) {
			bestID, bestSim, bestRank = id, sim, rank
		}
	}
	return bestID, bestSim
}

// shingles hashes every overlapping run of shingleSize lowercased words.
// Documents shorter than one shingle hash their whole word sequence, so
// tiny documents still land in the exact tier of similarity.
func (x *Index) shingles(text string) map[uint64]struct{} {
	words := strings.Fields(strings.ToLower(text))
	out := map[uint64]struct{}{}
	if len(words) == 0 {
		return out
	}
	n := x.shingleSize
	if len(words) < n {
		out[xxhash.Sum64String(strings.Join(words, " "))] = struct{}{}
		return out
	}
	for i := 0; i+n <= len(words); i++ {
		out[xxhash.Sum64String(strings.Join(words[i:i+n], " "))] = struct{}{}
	}
	return out
}

// Snapshot serializes the index so a later run can keep deduplicating
// against this corpus.
func (x *Index) Snapshot(w io.Writer) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	snap := snapshot{
		Version:     snapshotVersion,
		ShingleSize: x.shingleSize,
		Threshold:   x.threshold,
		Exact:       x.exact,
		Docs:        make(map[string][]uint64, len(x.docs)),
		Order:       x.order,
	}
	for id, set := range x.docs {
		hashes := make([]uint64, 0, len(set))
		for h := range set {
			hashes = append(hashes, h)
		}
		snap.Docs[id] = hashes
	}
	return json.NewEncoder(w).Encode(&snap)
}

// Restore replaces the index contents with a previously written snapshot.
// The snapshot's shingle size wins over the constructor's so similarity
// stays comparable with the run that produced it.
func (x *Index) Restore(r io.Reader) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode dedup snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported dedup snapshot version %d", snap.Version)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.shingleSize = snap.ShingleSize
	x.exact = snap.Exact
	if x.exact == nil {
		x.exact = map[string]string{}
	}
	x.docs = make(map[string]map[uint64]struct{}, len(snap.Docs))
	x.inverted = map[uint64][]string{}
	x.order = snap.Order
	for _, id := range snap.Order {
		set := make(map[uint64]struct{}, len(snap.Docs[id]))
		for _, h := range snap.Docs[id] {
			set[h] = struct{}{}
			x.inverted[h] = append(x.inverted[h], id)
		}
		x.docs[id] = set
	}
	return nil
}

// SnapshotFile writes the index snapshot atomically to path.
func (x *Index) SnapshotFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create dedup snapshot: %w", err)
	}
	if err := x.Snapshot(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close dedup snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// RestoreFile loads a snapshot from path. A missing file is not an error;
// the index simply starts empty.
func (x *Index) RestoreFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open dedup snapshot: %w", err)
	}
	defer f.Close()
	return x.Restore(f)
}
