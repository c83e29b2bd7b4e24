package collect

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/model"
)

// JSONLCollector reads one JSON object per line. The field-name mapping is
// configuration, not inference: "text_field" is required, "id_field" defaults
// to "id", "metadata_fields" is a comma list (empty means every non-text key).
type JSONLCollector struct {
	cfg       model.SourceConfig
	log       *zap.Logger
	fetcher   *Fetcher
	connected bool
	meta      map[string]string

	textField  string
	idField    string
	metaFields []string
}

func newJSONL(cfg model.SourceConfig, opts Options) (Collector, error) {
	if cfg.LocalPath == "" && cfg.URL == "" {
		return nil, fmt.Errorf("%w: jsonl source %q needs local_path or url", ErrInvalidConfig, cfg.Name)
	}
	textField := cfg.Option("text_field", "")
	if textField == "" {
		return nil, fmt.Errorf("%w: jsonl source %q needs a text_field option", ErrInvalidConfig, cfg.Name)
	}
	if cfg.URL != "" && opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: jsonl source %q is remote but no fetcher is configured", ErrInvalidConfig, cfg.Name)
	}
	return &JSONLCollector{
		cfg:        cfg,
		log:        opts.logger().With(zap.String("source", cfg.Name)),
		fetcher:    opts.Fetcher,
		meta:       map[string]string{},
		textField:  textField,
		idField:    cfg.Option("id_field", "id"),
		metaFields: splitFields(cfg.Option("metadata_fields", "")),
	}, nil
}

func (c *JSONLCollector) Name() string { return c.cfg.Name }

func (c *JSONLCollector) Connect(ctx context.Context) error {
	if c.cfg.URL != "" {
		meta, err := c.fetcher.Head(ctx, c.cfg.URL)
		if err != nil {
			return err
		}
		c.meta = meta
	} else {
		meta, err := statMetadata(c.cfg.LocalPath)
		if err != nil {
			return err
		}
		c.meta = meta
	}
	c.connected = true
	return nil
}

func (c *JSONLCollector) Metadata() map[string]string { return c.meta }

func (c *JSONLCollector) Collect(ctx context.Context, limit int) (Iterator, error) {
	if !c.connected {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, c.cfg.Name)
	}

	path := c.cfg.LocalPath
	if c.cfg.URL != "" {
		downloaded, err := c.fetcher.Download(ctx, c.cfg.URL)
		if err != nil {
			return nil, err
		}
		path = downloaded
	}

	r, err := openSource(path)
	if err != nil {
		return nil, err
	}

	return &jsonlIterator{
		c:    c,
		ctx:  ctx,
		rc:   r,
		br:   bufio.NewReaderSize(r, 64*1024),
		path: filepath.Base(path),
		lim:  limit,
	}, nil
}

// maxRecordBytes caps a single record; opinions run long but bounded.
// A line over the cap is a malformed record, not a fatal stream error.
const maxRecordBytes = 32 * 1024 * 1024

type jsonlIterator struct {
	c    *JSONLCollector
	ctx  context.Context
	rc   io.ReadCloser
	br   *bufio.Reader
	path string

	lim     int
	line    int
	emitted int
	skipped int
	done    bool
}

// readLine returns the next line without its newline. Lines over
// maxRecordBytes are drained to the next newline and reported oversized so
// the stream can skip them and continue.
func (it *jsonlIterator) readLine() (line []byte, oversized bool, err error) {
	var buf []byte
	for {
		chunk, err := it.br.ReadSlice('\n')
		if !oversized {
			buf = append(buf, chunk...)
			if len(buf) > maxRecordBytes {
				oversized = true
				buf = nil
			}
		}
		switch {
		case err == nil:
			return bytes.TrimSuffix(buf, []byte("\n")), oversized, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(buf) == 0 && !oversized {
				return nil, false, io.EOF
			}
			return buf, oversized, nil
		default:
			return nil, false, err
		}
	}
}

func (it *jsonlIterator) Next() (*model.Document, error) {
	for {
		// Limit is checked before touching the reader so records past the
		// cap are never read, not read-and-discarded.
		if it.done || (it.lim > 0 && it.emitted >= it.lim) {
			it.done = true
			return nil, io.EOF
		}
		if err := it.ctx.Err(); err != nil {
			return nil, err
		}
		lineBytes, oversized, err := it.readLine()
		if errors.Is(err, io.EOF) {
			it.done = true
			return nil, io.EOF
		}
		if err != nil {
			it.done = true
			return nil, fmt.Errorf("read %s: %w", it.path, err)
		}
		it.line++
		locator := fmt.Sprintf("%s#%d", it.path, it.line)

		if oversized {
			it.skip(locator, fmt.Errorf("record exceeds %d bytes", maxRecordBytes))
			continue
		}

		raw := bytes.TrimSpace(lineBytes)
		if len(raw) == 0 {
			it.skip(locator, fmt.Errorf("blank line"))
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			it.skip(locator, err)
			continue
		}

		doc := &model.Document{
			Source:     it.c.cfg.Name,
			SourceType: model.SourceJSONL,
			Provenance: locator,
			Status:     model.StatusPending,
			Metadata:   map[string]string{},
		}

		if v, ok := obj[it.c.textField]; ok {
			doc.Text = stringify(v)
		}
		if v, ok := obj[it.c.idField]; ok && stringify(v) != "" {
			doc.ID = stringify(v)
		} else {
			// Deterministic fallback keyed on the record locator so
			// reprocessing yields the same id.
			doc.ID = fmt.Sprintf("%s:%s", it.c.cfg.Name, locator)
		}

		if len(it.c.metaFields) == 0 {
			for k, v := range obj {
				if k == it.c.textField {
					continue
				}
				doc.Metadata[k] = stringify(v)
			}
		} else {
			for _, k := range it.c.metaFields {
				if v, ok := obj[k]; ok {
					doc.Metadata[k] = stringify(v)
				}
			}
		}

		it.emitted++
		return doc, nil
	}
}

func (it *jsonlIterator) skip(locator string, err error) {
	it.skipped++
	recErr := &RecordError{Source: it.c.cfg.Name, Locator: locator, Err: err}
	it.c.log.Warn("skipping malformed record", zap.Error(recErr))
}

func (it *jsonlIterator) Skipped() int { return it.skipped }

func (it *jsonlIterator) Close() error { return it.rc.Close() }

func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// stringify flattens a decoded JSON value into the string metadata model.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(raw)
	}
}
