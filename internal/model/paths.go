package model

import (
	"os"
	"path/filepath"
)

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lexstream-cache"
	}
	return filepath.Join(home, ".lexstream", "cache")
}
