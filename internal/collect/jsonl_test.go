package collect

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avetisov/lexstream/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func jsonlConfig(path string, options map[string]string) model.SourceConfig {
	if options == nil {
		options = map[string]string{}
	}
	if _, ok := options["text_field"]; !ok {
		options["text_field"] = "text"
	}
	return model.SourceConfig{
		Type:      model.SourceJSONL,
		Name:      "test-jsonl",
		LocalPath: path,
		Options:   options,
	}
}

func drain(t *testing.T, it Iterator) []*model.Document {
	t.Helper()
	var docs []*model.Document
	for {
		doc, err := it.Next()
		if errors.Is(err, io.EOF) {
			return docs
		}
		require.NoError(t, err)
		docs = append(docs, doc)
	}
}

func TestJSONL_FieldMapping(t *testing.T) {
	path := writeFile(t, "corpus.jsonl",
		`{"id":"op-1","text":"The first opinion.","court":"ca9","year":1987}`+"\n"+
			`{"id":"op-2","text":"The second opinion.","court":"ca2","year":1990}`+"\n")

	col, err := New(jsonlConfig(path, map[string]string{"metadata_fields": "court"}), Options{})
	require.NoError(t, err)
	require.NoError(t, col.Connect(context.Background()))

	it, err := col.Collect(context.Background(), 0)
	require.NoError(t, err)
	defer it.Close()

	docs := drain(t, it)
	require.Len(t, docs, 2)

	require.Equal(t, "op-1", docs[0].ID)
	require.Equal(t, "The first opinion.", docs[0].Text)
	require.Equal(t, map[string]string{"court": "ca9"}, docs[0].Metadata)
	require.Equal(t, model.SourceJSONL, docs[0].SourceType)
	require.Equal(t, "test-jsonl", docs[0].Source)
	require.Equal(t, "corpus.jsonl#1", docs[0].Provenance)
}

func TestJSONL_AllFieldsAsMetadataByDefault(t *testing.T) {
	path := writeFile(t, "corpus.jsonl",
		`{"id":"op-1","text":"Body.","court":"scotus","year":2003,"sealed":false}`+"\n")

	col, err := New(jsonlConfig(path, nil), Options{})
	require.NoError(t, err)
	require.NoError(t, col.Connect(context.Background()))

	it, err := col.Collect(context.Background(), 0)
	require.NoError(t, err)
	defer it.Close()

	docs := drain(t, it)
	require.Len(t, docs, 1)
	require.Equal(t, map[string]string{
		"id":     "op-1",
		"court":  "scotus",
		"year":   "2003",
		"sealed": "false",
	}, docs[0].Metadata)
}

func TestJSONL_MalformedRecordsSkippedAndCounted(t *testing.T) {
	path := writeFile(t, "corpus.jsonl",
		`{"id":"a","text":"Good one."}`+"\n"+
			`{"id":"b","text": broken`+"\n"+
			"\n"+
			`{"id":"c","text":"Another good one."}`+"\n")

	col, err := New(jsonlConfig(path, nil), Options{})
	require.NoError(t, err)
	require.NoError(t, col.Connect(context.Background()))

	it, err := col.Collect(context.Background(), 0)
	require.NoError(t, err)
	defer it.Close()

	docs := drain(t, it)
	require.Len(t, docs, 2)
	require.Equal(t, "a", docs[0].ID)
	require.Equal(t, "c", docs[1].ID)

	// 4 lines total: emitted + skipped accounts for every one.
	require.Equal(t, 2, it.Skipped())
}

func TestJSONL_OversizedLineSkippedAndCounted(t *testing.T) {
	// The middle line blows past the per-record cap; it must be skipped like
	// any other malformed record, not abort the stream.
	huge := `{"id":"big","text":"` + strings.Repeat("x", maxRecordBytes) + `"}`
	path := writeFile(t, "corpus.jsonl",
		`{"id":"a","text":"Good one."}`+"\n"+
			huge+"\n"+
			`{"id":"c","text":"Another good one."}`+"\n")

	col, err := New(jsonlConfig(path, nil), Options{})
	require.NoError(t, err)
	require.NoError(t, col.Connect(context.Background()))

	it, err := col.Collect(context.Background(), 0)
	require.NoError(t, err)
	defer it.Close()

	docs := drain(t, it)
	require.Len(t, docs, 2)
	require.Equal(t, "a", docs[0].ID)
	require.Equal(t, "c", docs[1].ID)
	require.Equal(t, 1, it.Skipped())
}

func TestJSONL_LimitStopsReading(t *testing.T) {
	// A malformed line sits after the limit; if the iterator read past the
	// cap it would show up in Skipped.
	path := writeFile(t, "corpus.jsonl",
		`{"id":"a","text":"One."}`+"\n"+
			`{"id":"b","text":"Two."}`+"\n"+
			"this is not json\n")

	col, err := New(jsonlConfig(path, nil), Options{})
	require.NoError(t, err)
	require.NoError(t, col.Connect(context.Background()))

	it, err := col.Collect(context.Background(), 2)
	require.NoError(t, err)
	defer it.Close()

	docs := drain(t, it)
	require.Len(t, docs, 2)
	require.Equal(t, 0, it.Skipped())
}

func TestJSONL_DeterministicFallbackID(t *testing.T) {
	content := `{"text":"No id on this record."}` + "\n"
	path := writeFile(t, "corpus.jsonl", content)

	read := func() string {
		col, err := New(jsonlConfig(path, nil), Options{})
		require.NoError(t, err)
		require.NoError(t, col.Connect(context.Background()))
		it, err := col.Collect(context.Background(), 0)
		require.NoError(t, err)
		defer it.Close()
		docs := drain(t, it)
		require.Len(t, docs, 1)
		return docs[0].ID
	}

	first := read()
	require.Equal(t, "test-jsonl:corpus.jsonl#1", first)
	require.Equal(t, first, read())
}

func TestJSONL_NumericIDsKeepPrecision(t *testing.T) {
	path := writeFile(t, "corpus.jsonl",
		`{"id":9007199254740993,"text":"Big integer id."}`+"\n")

	col, err := New(jsonlConfig(path, nil), Options{})
	require.NoError(t, err)
	require.NoError(t, col.Connect(context.Background()))

	it, err := col.Collect(context.Background(), 0)
	require.NoError(t, err)
	defer it.Close()

	docs := drain(t, it)
	require.Len(t, docs, 1)
	require.Equal(t, "9007199254740993", docs[0].ID)
}

func TestJSONL_GzipTransparent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(`{"id":"z","text":"Compressed opinion."}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	col, err := New(jsonlConfig(path, nil), Options{})
	require.NoError(t, err)
	require.NoError(t, col.Connect(context.Background()))

	it, err := col.Collect(context.Background(), 0)
	require.NoError(t, err)
	defer it.Close()

	docs := drain(t, it)
	require.Len(t, docs, 1)
	require.Equal(t, "Compressed opinion.", docs[0].Text)
}

func TestJSONL_CollectRequiresConnect(t *testing.T) {
	path := writeFile(t, "corpus.jsonl", `{"id":"a","text":"x"}`+"\n")

	col, err := New(jsonlConfig(path, nil), Options{})
	require.NoError(t, err)

	_, err = col.Collect(context.Background(), 0)
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestJSONL_ConnectMissingFile(t *testing.T) {
	col, err := New(jsonlConfig(filepath.Join(t.TempDir(), "absent.jsonl"), nil), Options{})
	require.NoError(t, err)
	require.ErrorIs(t, col.Connect(context.Background()), ErrSourceUnavailable)
}
