package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/avetisov/lexstream/internal/cache"
	"github.com/avetisov/lexstream/internal/collect"
	"github.com/avetisov/lexstream/internal/model"
)

var sampleCount int

// sampleCmd represents the sample command
var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print raw documents from a source without curating them",
	Long: `Sample reads the first documents from a source and prints them as JSON,
one per line. Useful for checking field mappings before a full run.

Example:
  lexstream sample --type jsonl --path corpus.jsonl.gz --option text_field=text -n 5`,
	RunE: runSample,
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().StringVar(&sourceType, "type", "", "source type (bulk_export, jsonl, delimited)")
	sampleCmd.Flags().StringVar(&sourceName, "name", "", "source name")
	sampleCmd.Flags().StringVar(&sourcePath, "path", "", "local file or directory for the source")
	sampleCmd.Flags().StringVar(&sourceURL, "url", "", "remote URL for the source")
	sampleCmd.Flags().StringToStringVar(&sourceOptions, "option", nil, "source option as key=value, repeatable")
	sampleCmd.Flags().IntVarP(&sampleCount, "count", "n", 3, "documents to print")
}

func runSample(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	sources, err := resolveSources()
	if err != nil {
		return err
	}

	ctx := context.Background()
	opts := collect.Options{Logger: logger}
	if cfg.Cache.Enabled {
		layered := cache.NewLayered(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
		opts.Fetcher = collect.NewFetcher(cfg.Cache.Dir, layered, 5*time.Minute, logger)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, src := range sources {
		if err := sampleSource(ctx, src, opts, enc); err != nil {
			return err
		}
	}
	return nil
}

func sampleSource(ctx context.Context, src model.SourceConfig, opts collect.Options, enc *json.Encoder) error {
	col, err := collect.New(src, opts)
	if err != nil {
		return fmt.Errorf("source %s: %w", src.Name, err)
	}
	if err := col.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", src.Name, err)
	}
	it, err := col.Collect(ctx, sampleCount)
	if err != nil {
		return fmt.Errorf("collect %s: %w", src.Name, err)
	}
	defer func() { _ = it.Close() }()

	for {
		doc, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", src.Name, err)
		}
		if err := enc.Encode(doc); err != nil {
			return err
		}
	}
}
