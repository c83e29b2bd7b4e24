package collect

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/model"
)

// BulkExportCollector reads a directory of delimited export tables, in the
// CourtListener bulk layout: a leaf table of opinions joined to a parent
// table of case clusters by a foreign key. One leaf record becomes one
// document; the join only enriches metadata, so an unresolved foreign key
// degrades to partial metadata instead of failing the record.
//
// Options (defaults follow the CourtListener schema):
//
//	leaf_file       opinions.csv       table holding the document bodies
//	parent_file     clusters.csv       metadata table, "" disables the join
//	join_key        cluster_id         leaf column referencing the parent
//	parent_key      id                 parent column the join key matches
//	text_column     plain_text
//	id_column       id
//	metadata_columns                    leaf columns to carry (empty: all)
//	parent_columns  case_name,date_filed,citation_count,precedential_status
//	delimiter       ,
type BulkExportCollector struct {
	cfg       model.SourceConfig
	log       *zap.Logger
	connected bool
	meta      map[string]string

	leafFile   string
	parentFile string
	joinKey    string
	parentKey  string
	textCol    string
	idCol      string
	metaCols   []string
	parentCols []string
	comma      rune
}

func newBulkExport(cfg model.SourceConfig, opts Options) (Collector, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("%w: bulk export source %q needs a local_path directory", ErrInvalidConfig, cfg.Name)
	}
	comma, err := parseDelimiter(cfg.Option("delimiter", ","))
	if err != nil {
		return nil, fmt.Errorf("%w: source %q: %v", ErrInvalidConfig, cfg.Name, err)
	}
	return &BulkExportCollector{
		cfg:        cfg,
		log:        opts.logger().With(zap.String("source", cfg.Name)),
		meta:       map[string]string{},
		leafFile:   cfg.Option("leaf_file", "opinions.csv"),
		parentFile: cfg.Option("parent_file", "clusters.csv"),
		joinKey:    cfg.Option("join_key", "cluster_id"),
		parentKey:  cfg.Option("parent_key", "id"),
		textCol:    cfg.Option("text_column", "plain_text"),
		idCol:      cfg.Option("id_column", "id"),
		metaCols:   splitFields(cfg.Option("metadata_columns", "")),
		parentCols: splitFields(cfg.Option("parent_columns", "case_name,date_filed,citation_count,precedential_status")),
		comma:      comma,
	}, nil
}

func (c *BulkExportCollector) Name() string { return c.cfg.Name }

func (c *BulkExportCollector) Connect(ctx context.Context) error {
	info, err := os.Stat(c.cfg.LocalPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSourceUnavailable, c.cfg.LocalPath)
	}
	leafMeta, err := statMetadata(filepath.Join(c.cfg.LocalPath, c.leafFile))
	if err != nil {
		return err
	}
	c.meta = leafMeta
	c.connected = true
	return nil
}

func (c *BulkExportCollector) Metadata() map[string]string { return c.meta }

func (c *BulkExportCollector) Collect(ctx context.Context, limit int) (Iterator, error) {
	if !c.connected {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, c.cfg.Name)
	}

	// The parent table carries only per-case metadata, orders of magnitude
	// smaller than the opinion bodies, so it is loaded up front while the
	// leaf table streams.
	parents, err := c.loadParents(ctx)
	if err != nil {
		return nil, err
	}

	leafPath := filepath.Join(c.cfg.LocalPath, c.leafFile)
	rc, err := openSource(leafPath)
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
		return nil, fmt.Errorf("%w: read header of %s: %v", ErrSourceUnavailable, leafPath, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	if _, ok := cols[c.textCol]; !ok {
		rc.Close()
		return nil, fmt.Errorf("%w: %s has no %q column", ErrSourceUnavailable, leafPath, c.textCol)
	}

	it := &delimitedIterator{
		source:     c.cfg.Name,
		sourceType: model.SourceBulkExport,
		log:        c.log,
		rc:         rc,
		cr:         cr,
		path:       c.leafFile,
		cols:       cols,
		textCol:    c.textCol,
		idCol:      c.idCol,
		metaCols:   c.metaCols,
		ctx:        ctx,
		lim:        limit,
	}
	joinIdx, hasJoin := cols[c.joinKey]
	it.enrich = func(row []string, doc *model.Document) {
		if !hasJoin || joinIdx >= len(row) || row[joinIdx] == "" {
			return
		}
		parent, ok := parents[row[joinIdx]]
		if !ok {
			// Unresolved foreign key: keep the document with leaf metadata only.
			c.log.Debug("unresolved join key",
				zap.String("provenance", doc.Provenance),
				zap.String(c.joinKey, row[joinIdx]))
			return
		}
		for k, v := range parent {
			doc.Metadata[k] = v
		}
	}
	return it, nil
}

// loadParents reads the parent table into a join map keyed by parent_key,
// keeping only the configured parent columns. A missing parent file is not
// fatal: every leaf record then degrades to partial metadata.
func (c *BulkExportCollector) loadParents(ctx context.Context) (map[string]map[string]string, error) {
	parents := map[string]map[string]string{}
	if c.parentFile == "" || c.parentFile == "none" {
		return parents, nil
	}
	path := filepath.Join(c.cfg.LocalPath, c.parentFile)
	rc, err := openSource(path)
	if err != nil {
		c.log.Warn("parent table unavailable, documents will carry partial metadata",
			zap.String("file", c.parentFile), zap.Error(err))
		return parents, nil
	}
	defer rc.Close()

	cr := csv.NewReader(rc)
	cr.Comma = c.comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header of %s: %v", ErrSourceUnavailable, path, err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	keyIdx, ok := cols[c.parentKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no %q column", ErrSourceUnavailable, path, c.parentKey)
	}

	record := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		record++
		if err != nil {
			c.log.Warn("skipping malformed record",
				zap.Error(&RecordError{Source: c.cfg.Name, Locator: fmt.Sprintf("%s#%d", c.parentFile, record), Err: err}))
			continue
		}
		if keyIdx >= len(row) || row[keyIdx] == "" {
			continue
		}
		meta := map[string]string{}
		for _, name := range c.parentCols {
			if idx, ok := cols[name]; ok && idx < len(row) && row[idx] != "" {
				meta[name] = row[idx]
			}
		}
		parents[row[keyIdx]] = meta
	}
	return parents, nil
}
