package collect

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
)

// openSource opens a local source file, transparently decompressing .gz and
// .xz payloads (bulk legal exports ship in both).
func openSource(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	switch {
	case strings.HasSuffix(path, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: gzip header: %v", ErrSourceUnavailable, err)
		}
		return &wrappedReadCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil
	case strings.HasSuffix(path, ".xz"):
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: xz header: %v", ErrSourceUnavailable, err)
		}
		return &wrappedReadCloser{Reader: xr, closers: []io.Closer{f}}, nil
	default:
		return f, nil
	}
}

type wrappedReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (w *wrappedReadCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// statMetadata captures file-level facts for Collector.Metadata.
func statMetadata(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	return map[string]string{
		"file_size":     fmt.Sprintf("%d", info.Size()),
		"last_modified": info.ModTime().UTC().Format("2006-01-02T15:04:05Z"),
	}, nil
}
