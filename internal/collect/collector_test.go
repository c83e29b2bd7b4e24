package collect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avetisov/lexstream/internal/model"
)

func TestNew_UnsupportedSourceType(t *testing.T) {
	_, err := New(model.SourceConfig{Type: "parquet", Name: "x"}, Options{})
	require.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestNew_RequiresName(t *testing.T) {
	_, err := New(model.SourceConfig{Type: model.SourceJSONL}, Options{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_ValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		cfg  model.SourceConfig
	}{
		{
			name: "jsonl without text_field",
			cfg: model.SourceConfig{
				Type: model.SourceJSONL, Name: "x", LocalPath: "/tmp/x.jsonl",
			},
		},
		{
			name: "jsonl without path or url",
			cfg: model.SourceConfig{
				Type: model.SourceJSONL, Name: "x",
				Options: map[string]string{"text_field": "text"},
			},
		},
		{
			name: "delimited without text_column",
			cfg: model.SourceConfig{
				Type: model.SourceDelimited, Name: "x", LocalPath: "/tmp/x.csv",
			},
		},
		{
			name: "bulk export without directory",
			cfg: model.SourceConfig{
				Type: model.SourceBulkExport, Name: "x",
			},
		},
		{
			name: "remote jsonl without fetcher",
			cfg: model.SourceConfig{
				Type: model.SourceJSONL, Name: "x", URL: "https://example.com/x.jsonl",
				Options: map[string]string{"text_field": "text"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, Options{})
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestRegister_ExtendsFactory(t *testing.T) {
	const custom = model.SourceType("custom")
	Register(custom, func(cfg model.SourceConfig, opts Options) (Collector, error) {
		return &JSONLCollector{cfg: cfg}, nil
	})
	t.Cleanup(func() { delete(registry, custom) })

	col, err := New(model.SourceConfig{Type: custom, Name: "mine"}, Options{})
	require.NoError(t, err)
	require.Equal(t, "mine", col.Name())
}

func TestRecordError_Unwrap(t *testing.T) {
	inner := context.DeadlineExceeded
	err := &RecordError{Source: "s", Locator: "f#3", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "f#3")
	require.Contains(t, err.Error(), "s")
}
