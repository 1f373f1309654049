// Package main is the tsumiki CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/tsumiki/internal/cli"
	"github.com/hyperjump/tsumiki/internal/config"
	"github.com/hyperjump/tsumiki/internal/embedding"
	"github.com/hyperjump/tsumiki/internal/indexer"
	"github.com/hyperjump/tsumiki/internal/inspect"
	"github.com/hyperjump/tsumiki/internal/loader"
	"github.com/hyperjump/tsumiki/internal/prune"
	"github.com/hyperjump/tsumiki/internal/server"
	"github.com/hyperjump/tsumiki/internal/splitter"
	"github.com/hyperjump/tsumiki/internal/storage"
	"github.com/hyperjump/tsumiki/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tsumiki/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	command, rest := args[0], args[1:]
	switch command {
	case "ingest":
		return runIngest(rest, stdout, stderr)
	case "peek":
		return runPeek(rest, stdout, stderr)
	case "delete":
		return runDelete(rest, stdout, stderr)
	case "status":
		return runStatus(rest, stdout, stderr)
	case "serve":
		return runServe(rest, stdout, stderr)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "tsumiki version %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

// options are the flags shared by every command. Zero values mean "keep the config value".
type options struct {
	configPath   string
	debug        bool
	output       string
	dataDir      string
	storeDir     string
	provider     string
	chunkSize    int
	chunkOverlap int
	dedupe       bool
	set          map[string]bool
}

func newFlagSet(name string, stderr io.Writer, withIngest bool) (*flag.FlagSet, *options) {
	o := &options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.configPath, "config", defaultConfigPath, "config file path")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.output, "output", "text", "output format: text or json")
	fs.StringVar(&o.storeDir, "store", "", "vector store directory (default from config)")
	if withIngest {
		fs.StringVar(&o.dataDir, "data", "", "directory with .txt and .pdf files (default from config)")
		fs.StringVar(&o.provider, "provider", "", "embedding provider: gemini, openai or mock")
		fs.IntVar(&o.chunkSize, "chunk-size", 0, "maximum characters per chunk")
		fs.IntVar(&o.chunkOverlap, "chunk-overlap", 0, "characters shared by consecutive chunks")
		fs.BoolVar(&o.dedupe, "dedupe", false, "derive chunk ids from content so re-ingesting replaces entries")
	}
	return fs, o
}

func parseFlags(fs *flag.FlagSet, o *options, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return nil
}

// setup loads the config, applies the environment and flags, validates, and builds the logger.
func setup(o *options) (*config.Config, *zap.Logger, cli.OutputFormat, error) {
	format, err := cli.ParseOutputFormat(o.output)
	if err != nil {
		return nil, nil, "", err
	}
	cfg, _, err := loadConfig(o.configPath)
	if err != nil {
		return nil, nil, "", err
	}
	config.ApplyEnv(cfg, os.LookupEnv)
	applyFlags(cfg, o)
	if err := cfg.Validate(); err != nil {
		return nil, nil, "", err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, format, nil
}

func applyFlags(cfg *config.Config, o *options) {
	if o.debug {
		cfg.Debug = true
	}
	if o.dataDir != "" {
		cfg.Data.Dir = o.dataDir
	}
	if o.storeDir != "" {
		cfg.Storage.Dir = o.storeDir
	}
	if o.provider != "" {
		config.SetProvider(cfg, o.provider)
		if key, ok := os.LookupEnv(cfg.Embedding.APIKeyEnv); ok && cfg.Embedding.APIKeyEnv != "" {
			cfg.Embedding.APIKey = key
		}
	}
	if o.set["chunk-size"] {
		cfg.Chunking.ChunkSize = o.chunkSize
	}
	if o.set["chunk-overlap"] {
		cfg.Chunking.ChunkOverlap = o.chunkOverlap
	}
	if o.set["dedupe"] {
		cfg.Ingest.Deduplicate = o.dedupe
	}
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newPipeline wires loader, splitter and embedder from cfg. The caller closes the embedder.
func newPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...indexer.PipelineOption) (*indexer.Pipeline, embedding.Embedder, error) {
	sp, err := splitter.New(cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap,
		splitter.WithSeparators(cfg.Chunking.Separators))
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embedding.New(ctx, cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embeddings: %w", err)
	}
	ld := loader.New(loader.WithLogger(logger), loader.WithExtensions(cfg.Data.Extensions))
	openStore := func() (storage.Store, error) { return storage.Open(cfg.Storage, storage.Create) }
	opts = append([]indexer.PipelineOption{
		indexer.WithPipelineLogger(logger),
		indexer.WithWriterOptions(
			indexer.WithBatchSize(cfg.Embedding.BatchSize),
			indexer.WithRateLimit(cfg.Embedding.RequestsPerSecond),
			indexer.WithRetry(cfg.Embedding.MaxRetries, 0, 0),
			indexer.WithDeduplicate(cfg.Ingest.Deduplicate),
		),
	}, opts...)
	return indexer.NewPipeline(ld, sp, embedder, openStore, opts...), embedder, nil
}

func runIngest(args []string, stdout, stderr io.Writer) int {
	fs, o := newFlagSet("ingest", stderr, true)
	if err := parseFlags(fs, o, args); err != nil {
		return flagExit(err)
	}
	cfg, logger, format, err := setup(o)
	if err != nil {
		return fail(stderr, err)
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	p, embedder, err := newPipeline(ctx, cfg, logger)
	if err != nil {
		return fail(stderr, err)
	}
	defer embedder.Close()

	if format == cli.OutputText {
		fmt.Fprintf(stdout, "Loading documents from '%s'...\n", cfg.Data.Dir)
	}
	res, err := p.Run(ctx, cfg.Data.Dir)
	if closeErr := p.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close store: %w", closeErr)
	}
	if err != nil {
		logger.Error("ingestion failed", zap.Error(err))
		return fail(stderr, err)
	}
	if err := cli.WriteIngestResult(stdout, res, format); err != nil {
		return fail(stderr, err)
	}
	return 0
}

// openExisting opens the configured store without creating it.
func openExisting(cfg *config.Config) (storage.Store, error) {
	s, err := storage.Open(cfg.Storage, storage.MustExist)
	if errors.Is(err, storage.ErrStoreNotFound) {
		return nil, fmt.Errorf("directory '%s' not found. Run ingestion first!", cfg.Storage.Dir)
	}
	return s, err
}

func runPeek(args []string, stdout, stderr io.Writer) int {
	fs, o := newFlagSet("peek", stderr, false)
	withVectors := fs.Bool("embeddings", true, "include the sample vector")
	preview := fs.Int("preview", inspect.DefaultPreviewChars, "characters of the sample text to show")
	if err := parseFlags(fs, o, args); err != nil {
		return flagExit(err)
	}
	cfg, logger, format, err := setup(o)
	if err != nil {
		return fail(stderr, err)
	}
	defer logger.Sync()

	store, err := openExisting(cfg)
	if err != nil {
		return fail(stderr, err)
	}
	defer store.Close()

	report, err := inspect.New(store).Inspect(context.Background(), inspect.Options{
		IncludeEmbeddings: *withVectors,
		PreviewChars:      *preview,
	})
	if err != nil {
		logger.Error("peek failed", zap.Error(err))
		return fail(stderr, err)
	}
	if err := cli.WritePeekReport(stdout, report, format); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func runStatus(args []string, stdout, stderr io.Writer) int {
	fs, o := newFlagSet("status", stderr, false)
	if err := parseFlags(fs, o, args); err != nil {
		return flagExit(err)
	}
	cfg, logger, format, err := setup(o)
	if err != nil {
		return fail(stderr, err)
	}
	defer logger.Sync()

	store, err := openExisting(cfg)
	if err != nil {
		return fail(stderr, err)
	}
	defer store.Close()

	report, err := inspect.New(store).Inspect(context.Background(), inspect.Options{Sources: true})
	if err != nil {
		logger.Error("status failed", zap.Error(err))
		return fail(stderr, err)
	}
	if err := cli.WriteStatus(stdout, report, format); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func runDelete(args []string, stdout, stderr io.Writer) int {
	fs, o := newFlagSet("delete", stderr, false)
	dryRun := fs.Bool("dry-run", false, "report matching chunks without deleting them")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: tsumiki delete [flags] <source> [flags]\n\n")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, o, args); err != nil {
		return flagExit(err)
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 1
	}
	target := fs.Arg(0)
	// flags may also follow the source
	if err := parseFlags(fs, o, fs.Args()[1:]); err != nil {
		return flagExit(err)
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return 1
	}
	cfg, logger, format, err := setup(o)
	if err != nil {
		return fail(stderr, err)
	}
	defer logger.Sync()

	store, err := openExisting(cfg)
	if err != nil {
		return fail(stderr, err)
	}
	res, err := prune.New(store, prune.WithLogger(logger), prune.WithDryRun(*dryRun)).
		Prune(context.Background(), target)
	if closeErr := store.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close store: %w", closeErr)
	}
	if err != nil {
		logger.Error("delete failed", zap.Error(err))
		return fail(stderr, err)
	}
	if err := cli.WritePruneResult(stdout, res, format); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func runServe(args []string, stdout, stderr io.Writer) int {
	fs, o := newFlagSet("serve", stderr, true)
	host := fs.String("host", "", "listen host (default from config)")
	port := fs.Int("port", 0, "listen port (default from config)")
	if err := parseFlags(fs, o, args); err != nil {
		return flagExit(err)
	}
	cfg, logger, _, err := setup(o)
	if err != nil {
		return fail(stderr, err)
	}
	defer logger.Sync()
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.Open(cfg.Storage, storage.Create)
	if err != nil {
		return fail(stderr, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	p, embedder, err := newPipeline(ctx, cfg, logger, indexer.WithSharedStore(store))
	if err != nil {
		return fail(stderr, err)
	}
	defer embedder.Close()

	srv := server.NewServer(p, store, cfg.Data.Dir, &cfg.Server, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	fmt.Fprintf(stdout, "Serving on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)

	select {
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
		return fail(stderr, err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func flagExit(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `tsumiki - document ingestion for a local vector store

Usage:
  tsumiki ingest [flags]            Load, split, embed and store the data directory
  tsumiki peek [flags]              Show the chunk count and the first stored chunk
  tsumiki status [flags]            Show store size and chunks per source
  tsumiki delete [flags] <source>   Delete every chunk ingested from <source>
  tsumiki serve [flags]             Start the HTTP API
  tsumiki version                   Show version
  tsumiki help                      Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/tsumiki/config.yaml, or ./config.yaml)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)
  --store string     Vector store directory

Ingest Flags:
  --data string          Data directory (default: data)
  --provider string      Embedding provider: gemini, openai or mock
  --chunk-size int       Maximum characters per chunk (default: 1000)
  --chunk-overlap int    Characters shared by consecutive chunks (default: 100)
  --dedupe               Replace chunks already ingested instead of appending duplicates

Peek Flags:
  --embeddings       Include the sample vector (default: true)
  --preview int      Characters of the sample text to show (default: 100)

Delete Flags:
  --dry-run          Report matches without deleting

Environment:
  GOOGLE_API_KEY / OPENAI_API_KEY are read from the environment or a .env file.
  TSUMIKI_DATA_DIR, TSUMIKI_STORE_DIR, TSUMIKI_CHUNK_SIZE, TSUMIKI_CHUNK_OVERLAP,
  TSUMIKI_EMBEDDING_PROVIDER, TSUMIKI_EMBEDDING_MODEL and TSUMIKI_DEBUG override the config.

Examples:
  tsumiki ingest
  tsumiki ingest --provider mock --data ./docs --store ./vs
  tsumiki peek --output json
  tsumiki delete data/sample.txt
  tsumiki serve --port 9000`)
}
