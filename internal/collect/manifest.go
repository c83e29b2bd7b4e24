package collect

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avetisov/lexstream/internal/model"
)

// Manifest is a YAML file listing the sources of one curation batch:
//
//	sources:
//	  - type: bulk_export
//	    name: courtlistener
//	    local_path: ./data/courtlistener
//	    options:
//	      text_column: plain_text
type Manifest struct {
	Sources []model.SourceConfig `yaml:"sources"`
}

// LoadManifest reads and validates a manifest file. Duplicate source names
// are rejected because run stats and malformed-record counters are keyed by
// name.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Sources) == 0 {
		return nil, fmt.Errorf("manifest %s lists no sources", path)
	}

	seen := map[string]bool{}
	for i, src := range m.Sources {
		if src.Name == "" {
			return nil, fmt.Errorf("manifest %s: source %d has no name", path, i)
		}
		if seen[src.Name] {
			return nil, fmt.Errorf("manifest %s: duplicate source name %q", path, src.Name)
		}
		seen[src.Name] = true
	}
	return &m, nil
}
