package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avetisov/lexstream/internal/cache"
	"github.com/avetisov/lexstream/internal/collect"
	"github.com/avetisov/lexstream/internal/dedup"
	"github.com/avetisov/lexstream/internal/metrics"
	"github.com/avetisov/lexstream/internal/model"
	"github.com/avetisov/lexstream/internal/pipeline"
	"github.com/avetisov/lexstream/internal/store"
)

var (
	manifestPath  string
	sourceType    string
	sourceName    string
	sourcePath    string
	sourceURL     string
	sourceOptions map[string]string
	limit         int
	storeBackend  string
	outputDir     string
	mongoURI      string
	dedupIndex    string
	storeWorkers  int
	metricsListen string
	noCache       bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Curate one or more sources into the corpus",
	Long: `Run reads documents from the configured sources, cleans and scores each
one, drops duplicates against the growing corpus index, and writes accepted
documents and rejection records to the selected store.

Sources come either from a YAML manifest (--manifest) or from the
--type/--name/--path flags for a single source.

Example:
  lexstream run --manifest sources.yaml --limit 1000
  lexstream run --type jsonl --name pile-of-law --path ./r_legaladvice.jsonl.xz \
      --option text_field=text --option id_field=id
  lexstream run --type bulk_export --name courtlistener --path ./dump \
      --store mongodb --mongo-uri mongodb://localhost:27017`,
	RunE: runCurate,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML manifest listing sources")
	runCmd.Flags().StringVar(&sourceType, "type", "", "source type (bulk_export, jsonl, delimited)")
	runCmd.Flags().StringVar(&sourceName, "name", "", "source name, used in ids and counters")
	runCmd.Flags().StringVar(&sourcePath, "path", "", "local file or directory for the source")
	runCmd.Flags().StringVar(&sourceURL, "url", "", "remote URL for the source (downloaded through the cache)")
	runCmd.Flags().StringToStringVar(&sourceOptions, "option", nil, "source option as key=value, repeatable")
	runCmd.Flags().IntVar(&limit, "limit", 0, "stop each source after N records (0 = all)")
	runCmd.Flags().StringVar(&storeBackend, "store", "", "storage backend (jsonl, mongodb)")
	runCmd.Flags().StringVar(&outputDir, "out", "", "output directory for the jsonl backend")
	runCmd.Flags().StringVar(&mongoURI, "mongo-uri", "", "connection URI for the mongodb backend")
	runCmd.Flags().StringVar(&dedupIndex, "dedup-index", "", "dedup index snapshot to continue from and update")
	runCmd.Flags().IntVar(&storeWorkers, "workers", 0, "concurrent store writers")
	runCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the remote fetch cache")
}

func runCurate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)

	logger, err := newLogger(cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	sources, err := resolveSources()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	index := dedup.New(cfg.Dedup.ShingleSize, cfg.Dedup.Threshold)
	if cfg.Dedup.IndexPath != "" {
		if err := index.RestoreFile(cfg.Dedup.IndexPath); err != nil {
			return fmt.Errorf("restore dedup index: %w", err)
		}
		logger.Info("dedup index restored",
			zap.String("path", cfg.Dedup.IndexPath),
			zap.Int("documents", index.Len()))
	}

	registry := prometheus.NewRegistry()
	met := metrics.New(registry)
	if cfg.Output.MetricsListen != "" {
		serveMetrics(cfg.Output.MetricsListen, registry, logger)
	}

	st, err := store.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	writer := store.NewAsyncWriter(ctx, st, cfg.Concurrency.StoreWorkers)

	opts := collect.Options{Logger: logger}
	if cfg.Cache.Enabled {
		layered := cache.NewLayered(cfg.Cache.TTL, cfg.Cache.Dir, cfg.Cache.TTL)
		opts.Fetcher = collect.NewFetcher(cfg.Cache.Dir, layered, 5*time.Minute, logger)
	}

	p := pipeline.New(cfg, index, met, logger)

	var runErr error
	for _, src := range sources {
		if err := curateSource(ctx, p, src, opts, writer, logger); err != nil {
			runErr = err
			break
		}
	}

	if err := writer.Flush(); err != nil {
		logger.Error("store writes failed", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	if err := st.Close(context.Background()); err != nil && runErr == nil {
		runErr = err
	}

	if cfg.Dedup.IndexPath != "" {
		if err := index.SnapshotFile(cfg.Dedup.IndexPath); err != nil {
			logger.Error("snapshot dedup index", zap.Error(err))
			if runErr == nil {
				runErr = err
			}
		}
	}
	return runErr
}

func curateSource(ctx context.Context, p *pipeline.Pipeline, src model.SourceConfig, opts collect.Options, sink pipeline.Sink, logger *zap.Logger) error {
	col, err := collect.New(src, opts)
	if err != nil {
		return fmt.Errorf("source %s: %w", src.Name, err)
	}
	if err := col.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", src.Name, err)
	}
	logger.Info("source connected",
		zap.String("source", src.Name),
		zap.Any("metadata", col.Metadata()))

	it, err := col.Collect(ctx, limit)
	if err != nil {
		return fmt.Errorf("collect %s: %w", src.Name, err)
	}
	defer func() { _ = it.Close() }()

	stats, err := p.Run(ctx, src.Name, it, sink)
	printStats(stats)
	if err != nil {
		return fmt.Errorf("curate %s: %w", src.Name, err)
	}
	return nil
}

// applyRunFlags lets explicit flags win over the config file.
func applyRunFlags(cfg *model.Config) {
	if storeBackend != "" {
		cfg.Storage.Backend = storeBackend
	}
	if outputDir != "" {
		cfg.Storage.OutputDir = outputDir
	}
	if mongoURI != "" {
		cfg.Storage.MongoURI = mongoURI
	}
	if dedupIndex != "" {
		cfg.Dedup.IndexPath = dedupIndex
	}
	if storeWorkers > 0 {
		cfg.Concurrency.StoreWorkers = storeWorkers
	}
	if metricsListen != "" {
		cfg.Output.MetricsListen = metricsListen
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if verbose {
		cfg.Output.Verbose = true
	}
}

// resolveSources builds the source list from the manifest or single-source
// flags.
func resolveSources() ([]model.SourceConfig, error) {
	if manifestPath != "" {
		m, err := collect.LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		return m.Sources, nil
	}
	if sourceType == "" {
		return nil, fmt.Errorf("either --manifest or --type is required")
	}
	name := sourceName
	if name == "" {
		name = sourceType
	}
	return []model.SourceConfig{{
		Type:      model.SourceType(sourceType),
		Name:      name,
		LocalPath: sourcePath,
		URL:       sourceURL,
		Options:   sourceOptions,
	}}, nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}

func printStats(stats *pipeline.Stats) {
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return
	}
	fmt.Println(string(out))
}
