package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/cache"
)

// Fetcher resolves URL-backed sources to local files. Remote corpora are bulk
// file downloads, fetched once into the cache directory and streamed from
// disk afterwards; this is not a crawler.
type Fetcher struct {
	client *http.Client
	cache  cache.Cache
	dir    string
	log    *zap.Logger
}

// NewFetcher creates a fetcher that downloads into dir and keeps HEAD
// metadata in c.
func NewFetcher(dir string, c cache.Cache, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  c,
		dir:    dir,
		log:    logger,
	}
}

// Head checks that the URL responds and returns its size/modification
// metadata. Results are cached so repeated Connect calls stay idempotent and
// cheap.
func (f *Fetcher) Head(ctx context.Context, url string) (map[string]string, error) {
	key := "head:" + cache.Key(url)
	if f.cache != nil {
		if raw, ok := f.cache.Get(key); ok {
			var meta map[string]string
			if err := json.Unmarshal(raw, &meta); err == nil {
				return meta, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HEAD %s: status %d", ErrSourceUnavailable, url, resp.StatusCode)
	}

	meta := map[string]string{}
	if v := resp.Header.Get("Content-Length"); v != "" {
		meta["content_length"] = v
	}
	if v := resp.Header.Get("Last-Modified"); v != "" {
		meta["last_modified"] = v
	}

	if f.cache != nil {
		if raw, err := json.Marshal(meta); err == nil {
			_ = f.cache.Set(key, raw, 0)
		}
	}
	return meta, nil
}

// Download fetches the URL payload into the cache directory once and returns
// the local path. An existing download is reused.
func (f *Fetcher) Download(ctx context.Context, url string) (string, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	path := filepath.Join(f.dir, cache.Key(url)+filepath.Ext(url))
	if _, err := os.Stat(path); err == nil {
		f.log.Debug("reusing downloaded source", zap.String("url", url), zap.String("path", path))
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: GET %s: status %d", ErrSourceUnavailable, url, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(f.dir, "download-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	f.log.Info("downloaded source", zap.String("url", url), zap.String("path", path))
	return path, nil
}
