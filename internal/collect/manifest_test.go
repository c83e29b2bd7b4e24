package collect

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avetisov/lexstream/internal/model"
)

func TestLoadManifest(t *testing.T) {
	path := writeFile(t, "sources.yaml", `
sources:
  - type: bulk_export
    name: courtlistener
    local_path: ./data/courtlistener
    options:
      text_column: plain_text
  - type: jsonl
    name: pile-of-law
    local_path: ./data/r_legaladvice.jsonl.xz
    options:
      text_field: text
      id_field: id
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Sources, 2)

	require.Equal(t, model.SourceBulkExport, m.Sources[0].Type)
	require.Equal(t, "courtlistener", m.Sources[0].Name)
	require.Equal(t, "plain_text", m.Sources[0].Option("text_column", ""))

	require.Equal(t, model.SourceJSONL, m.Sources[1].Type)
	require.Equal(t, "./data/r_legaladvice.jsonl.xz", m.Sources[1].LocalPath)
}

func TestLoadManifest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: "sources: []\n"},
		{name: "unnamed source", content: "sources:\n  - type: jsonl\n"},
		{
			name: "duplicate names",
			content: "sources:\n" +
				"  - {type: jsonl, name: corpus}\n" +
				"  - {type: delimited, name: corpus}\n",
		},
		{name: "not yaml", content: "{{{"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "sources.yaml", tt.content)
			_, err := LoadManifest(path)
			require.Error(t, err)
		})
	}
}

func TestLoadManifest_MissingFile(t *testing.T) {
	_, err := LoadManifest("/nonexistent/sources.yaml")
	require.Error(t, err)
}
