// Package cache backs the remote-source fetcher: HEAD metadata lives in the
// memory layer so repeated Connect calls stay cheap, downloaded payload
// locations survive process restarts via the disk layer.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is the minimal get/set contract shared by all layers.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a stable cache key from a source locator (URL or path).
func Key(locator string) string {
	sum := sha256.Sum256([]byte(locator))
	return "lexstream:v1:" + hex.EncodeToString(sum[:])
}
