package collect

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/model"
)

// DelimitedCollector reads header-row tabular text. Column-to-field mapping
// is explicit configuration: "text_column" is required, "id_column" defaults
// to "id", "metadata_columns" is a comma list (empty means every other
// column). Unknown columns are ignored; missing optional columns default to
// empty.
type DelimitedCollector struct {
	cfg       model.SourceConfig
	log       *zap.Logger
	fetcher   *Fetcher
	connected bool
	meta      map[string]string

	textCol  string
	idCol    string
	metaCols []string
	comma    rune
}

func newDelimited(cfg model.SourceConfig, opts Options) (Collector, error) {
	if cfg.LocalPath == "" && cfg.URL == "" {
		return nil, fmt.Errorf("%w: delimited source %q needs local_path or url", ErrInvalidConfig, cfg.Name)
	}
	textCol := cfg.Option("text_column", "")
	if textCol == "" {
		return nil, fmt.Errorf("%w: delimited source %q needs a text_column option", ErrInvalidConfig, cfg.Name)
	}
	if cfg.URL != "" && opts.Fetcher == nil {
		return nil, fmt.Errorf("%w: delimited source %q is remote but no fetcher is configured", ErrInvalidConfig, cfg.Name)
	}
	comma, err := parseDelimiter(cfg.Option("delimiter", ","))
	if err != nil {
		return nil, fmt.Errorf("%w: source %q: %v", ErrInvalidConfig, cfg.Name, err)
	}
	return &DelimitedCollector{
		cfg:      cfg,
		log:      opts.logger().With(zap.String("source", cfg.Name)),
		fetcher:  opts.Fetcher,
		meta:     map[string]string{},
		textCol:  textCol,
		idCol:    cfg.Option("id_column", "id"),
		metaCols: splitFields(cfg.Option("metadata_columns", "")),
		comma:    comma,
	}, nil
}

func parseDelimiter(s string) (rune, error) {
	switch s {
	case ",", "":
		return ',', nil
	case "\t", `\t`, "tab":
		return '\t', nil
	case ";":
		return ';', nil
	case "|":
		return '|', nil
	default:
		runes := []rune(s)
		if len(runes) != 1 {
			return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
		}
		return runes[0], nil
	}
}

func (c *DelimitedCollector) Name() string { return c.cfg.Name }

func (c *DelimitedCollector) Connect(ctx context.Context) error {
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

func (c *DelimitedCollector) Metadata() map[string]string { return c.meta }

func (c *DelimitedCollector) Collect(ctx context.Context, limit int) (Iterator, error) {
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

	rc, err := openSource(path)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(rc)
	cr.Comma = c.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("%w: read header of %s: %v", ErrSourceUnavailable, path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	if _, ok := cols[c.textCol]; !ok {
		rc.Close()
		return nil, fmt.Errorf("%w: %s has no %q column", ErrSourceUnavailable, path, c.textCol)
	}

	return &delimitedIterator{
		source:     c.cfg.Name,
		sourceType: model.SourceDelimited,
		log:        c.log,
		rc:         rc,
		cr:         cr,
		path:       filepath.Base(path),
		cols:       cols,
		textCol:    c.textCol,
		idCol:      c.idCol,
		metaCols:   c.metaCols,
		ctx:        ctx,
		lim:        limit,
	}, nil
}

// delimitedIterator is shared by the generic delimited collector and the
// bulk-export leaf stream, which differ only in how metadata is enriched.
type delimitedIterator struct {
	source     string
	sourceType model.SourceType
	log        *zap.Logger
	rc         io.ReadCloser
	cr         *csv.Reader
	path       string
	cols       map[string]int
	textCol    string
	idCol      string
	metaCols   []string

	// enrich, when set, merges joined parent metadata into the document.
	enrich func(row []string, doc *model.Document)

	ctx     context.Context
	lim     int
	record  int
	emitted int
	skipped int
	done    bool
}

func (it *delimitedIterator) Next() (*model.Document, error) {
	for {
		if it.done || (it.lim > 0 && it.emitted >= it.lim) {
			it.done = true
			return nil, io.EOF
		}
		if err := it.ctx.Err(); err != nil {
			return nil, err
		}

		row, err := it.cr.Read()
		if errors.Is(err, io.EOF) {
			it.done = true
			return nil, io.EOF
		}
		it.record++
		locator := fmt.Sprintf("%s#%d", it.path, it.record)
		if err != nil {
			// A single unparsable row is recoverable; the reader resumes at
			// the next record.
			it.skipped++
			it.log.Warn("skipping malformed record",
				zap.Error(&RecordError{Source: it.source, Locator: locator, Err: err}))
			continue
		}

		doc := &model.Document{
			Source:     it.source,
			SourceType: it.sourceType,
			Provenance: locator,
			Status:     model.StatusPending,
			Metadata:   map[string]string{},
			Text:       it.cell(row, it.textCol),
		}
		if id := it.cell(row, it.idCol); id != "" {
			doc.ID = id
		} else {
			doc.ID = fmt.Sprintf("%s:%s", it.source, locator)
		}

		if len(it.metaCols) == 0 {
			for name, idx := range it.cols {
				if name == it.textCol || idx >= len(row) || row[idx] == "" {
					continue
				}
				doc.Metadata[name] = row[idx]
			}
		} else {
			for _, name := range it.metaCols {
				if v := it.cell(row, name); v != "" {
					doc.Metadata[name] = v
				}
			}
		}

		if it.enrich != nil {
			it.enrich(row, doc)
		}

		it.emitted++
		return doc, nil
	}
}

func (it *delimitedIterator) cell(row []string, col string) string {
	idx, ok := it.cols[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func (it *delimitedIterator) Skipped() int { return it.skipped }

func (it *delimitedIterator) Close() error { return it.rc.Close() }
