package store

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/model"
)

func acceptedDoc(id string) *model.Document {
	return &model.Document{
		ID:          id,
		Text:        "raw <p>text</p> with noise",
		CleanedText: "Cleaned opinion text.",
		Metadata:    map[string]string{"court": "ca9"},
		Source:      "unit",
		SourceType:  model.SourceJSONL,
		QualityMetrics: map[string]float64{
			"text_length": 21,
		},
		QualityScore: 0.91,
		Fingerprint:  "abc123",
		Status:       model.StatusAccepted,
	}
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &obj))
		out = append(out, obj)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestJSONLStore_AcceptedRecordShape(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONLStore(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.SaveAccepted(context.Background(), acceptedDoc("op-1")))
	require.NoError(t, s.Close(context.Background()))

	lines := readLines(t, filepath.Join(dir, "accepted.jsonl"))
	require.Len(t, lines, 1)
	record := lines[0]

	require.Equal(t, "op-1", record["id"])
	require.Equal(t, "Cleaned opinion text.", record["cleaned_text"])
	require.Equal(t, 0.91, record["quality_score"])
	require.Equal(t, "abc123", record["dedup_fingerprint"])
	require.Equal(t, map[string]any{"court": "ca9"}, record["metadata"])

	// The dataset record carries exactly these fields: no raw text, no
	// intermediate metrics, no status bookkeeping.
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	require.Equal(t, []string{"cleaned_text", "dedup_fingerprint", "id", "metadata", "quality_score"}, keys)
}

func TestJSONLStore_RejectedRecordShape(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONLStore(dir, zap.NewNop())
	require.NoError(t, err)

	rejected := acceptedDoc("op-2")
	rejected.Reject(model.RejectNearDuplicate, "similarity 0.850 to op-1")
	require.NoError(t, s.SaveRejected(context.Background(), rejected))
	require.NoError(t, s.Close(context.Background()))

	lines := readLines(t, filepath.Join(dir, "rejected.jsonl"))
	require.Len(t, lines, 1)
	record := lines[0]

	require.Equal(t, "op-2", record["id"])
	require.Equal(t, "near_duplicate", record["rejection_reason"])
	require.Equal(t, "similarity 0.850 to op-1", record["rejection_detail"])
	require.NotContains(t, record, "cleaned_text")
}

func TestJSONLStore_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	for _, id := range []string{"op-1", "op-2"} {
		s, err := NewJSONLStore(dir, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, s.SaveAccepted(context.Background(), acceptedDoc(id)))
		require.NoError(t, s.Close(context.Background()))
	}

	lines := readLines(t, filepath.Join(dir, "accepted.jsonl"))
	require.Len(t, lines, 2)
	require.Equal(t, "op-1", lines[0]["id"])
	require.Equal(t, "op-2", lines[1]["id"])
}

func TestOpen_SelectsBackend(t *testing.T) {
	cfg := model.StorageConfig{Backend: "jsonl", OutputDir: t.TempDir()}
	s, err := Open(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &JSONLStore{}, s)
	require.NoError(t, s.Close(context.Background()))

	_, err = Open(context.Background(), model.StorageConfig{Backend: "etcd"}, zap.NewNop())
	require.Error(t, err)
}
