// Package main is the reelmatch CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reelmatch/internal/catalog"
	"github.com/hyperjump/reelmatch/internal/cli"
	"github.com/hyperjump/reelmatch/internal/config"
	"github.com/hyperjump/reelmatch/internal/fileid"
	"github.com/hyperjump/reelmatch/internal/keyword"
	"github.com/hyperjump/reelmatch/internal/metrics"
	"github.com/hyperjump/reelmatch/internal/models"
	"github.com/hyperjump/reelmatch/internal/poster"
	"github.com/hyperjump/reelmatch/internal/recommend"
	"github.com/hyperjump/reelmatch/internal/server"
	"github.com/hyperjump/reelmatch/internal/storage"
	"github.com/hyperjump/reelmatch/internal/watcher"
	"github.com/hyperjump/reelmatch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/reelmatch/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
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
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "similar":
		runSimilar()
	case "search":
		runSearch()
	case "poster":
		runPoster()
	case "import":
		runImport()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("reelmatch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// joinArgs joins positional args so multi-word titles work with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after the positional title to the front so that
// flag.Parse sees them ("reelmatch recommend The Matrix -output json").
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// setup loads config and builds a logger. Failures exit the process.
func setup(configPath string, debug bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func requireAPIKey(cfg *config.Config) {
	if err := cfg.Poster.RequireAPIKey(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := setup(*configPath, *debug)
	defer logger.Sync()
	requireAPIKey(cfg)

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("catalog_source", cfg.Catalog.Source),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	opts := []server.Option{server.WithArtifacts(artifactPaths(cfg)...)}
	if cfg.Catalog.WatchArtifacts {
		w := watcher.NewWatcher(artifactPaths(cfg), watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			defer w.Stop()
			opts = append(opts, server.WithStaleReporter(w))
		}
	}

	srv := server.NewServer(
		components.Service,
		components.Posters,
		components.Catalog,
		&cfg.Server,
		logger,
		opts...,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	title := joinArgs(fs.Args())
	if title == "" {
		fmt.Fprintln(os.Stderr, "Usage: reelmatch recommend [flags] <title>")
		os.Exit(1)
	}

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	requireAPIKey(cfg)

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	recs, err := components.Service.Recommend(ctx, title)
	if errors.Is(err, models.ErrNotFound) {
		cli.WriteNotFound(os.Stderr, title, components.Service.Suggest(ctx, title))
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, title, recs, cli.ParseOutputFormat(*output)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSimilar() {
	fs := flag.NewFlagSet("similar", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 10, "number of neighbours")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	title := joinArgs(fs.Args())
	if title == "" {
		fmt.Fprintln(os.Stderr, "Usage: reelmatch similar [flags] <title>")
		os.Exit(1)
	}

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	similar, err := components.Service.Similar(ctx, title, *k)
	if errors.Is(err, models.ErrNotFound) {
		cli.WriteNotFound(os.Stderr, title, components.Service.Suggest(ctx, title))
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Similar failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSimilar(os.Stdout, title, similar, cli.ParseOutputFormat(*output)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	fuzzy := fs.Bool("fuzzy", false, "typo-tolerant matching via the title index")
	limit := fs.Int("limit", 0, "maximum fuzzy results (default from config)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := joinArgs(fs.Args())

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	q := models.SearchQuery{Query: query, Fuzzy: *fuzzy, Limit: *limit}
	matches, err := components.Service.Search(ctx, q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, query, matches, cli.ParseOutputFormat(*output)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// runPoster resolves one poster without loading the catalog.
func runPoster() {
	fs := flag.NewFlagSet("poster", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	output := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: reelmatch poster [flags] <movie_id>")
		os.Exit(1)
	}
	movieID := fs.Arg(0)

	cfg, _, logger := setup(*configPath, *debug)
	defer logger.Sync()
	requireAPIKey(cfg)

	resolver := newResolver(cfg, logger)
	url := resolver.Resolve(context.Background(), movieID)
	check := models.PosterCheckResponse{MovieID: movieID, PosterURL: url, Success: !resolver.IsPlaceholder(url)}
	if err := cli.WritePosterCheck(os.Stdout, check, cli.ParseOutputFormat(*output)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// runImport copies the CSV and matrix artifacts into the SQLite catalog database.
func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	moviesPath := fs.String("movies", "", "movies CSV (default from config)")
	matrixPath := fs.String("similarity", "", "similarity matrix binary (default from config)")
	dbPath := fs.String("db", "", "catalog database to write (default from config)")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, false)
	defer logger.Sync()

	version, count, err := importCatalog(context.Background(),
		firstNonEmpty(*moviesPath, cfg.Catalog.MoviesPath),
		firstNonEmpty(*matrixPath, cfg.Catalog.SimilarityPath),
		firstNonEmpty(*dbPath, cfg.Catalog.DatabasePath),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		os.Exit(1)
	}
	logger.Info("catalog imported", zap.Int("movies", count), zap.String("version", version))
	fmt.Printf("Imported %d movies (catalog version %s)\n", count, version)
}

func importCatalog(ctx context.Context, moviesPath, matrixPath, dbPath string) (string, int, error) {
	c, err := catalog.LoadFiles(moviesPath, matrixPath)
	if err != nil {
		return "", 0, err
	}
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", 0, fmt.Errorf("create database dir: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return "", 0, err
	}
	defer store.Close()
	version, err := store.SaveCatalog(ctx, c.Movies(), c.Matrix())
	if err != nil {
		return "", 0, err
	}
	n, err := store.CountMovies(ctx)
	if err != nil {
		return "", 0, err
	}
	if int(n) != c.Len() {
		return "", 0, fmt.Errorf("import wrote %d movies, expected %d", n, c.Len())
	}
	return version, int(n), nil
}

// runInit writes a config file populated with defaults.
func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeDefaultConfig(*path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *path)
}

func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		}
	}
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return config.Save(path, &cfg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// artifactPaths lists the files the loaded catalog came from.
func artifactPaths(cfg *config.Config) []string {
	if cfg.Catalog.Source == config.SourceSQLite {
		return []string{cfg.Catalog.DatabasePath}
	}
	return []string{cfg.Catalog.MoviesPath, cfg.Catalog.SimilarityPath}
}

// Components holds initialized services.
type Components struct {
	Catalog *catalog.Catalog
	Store   storage.CatalogStore
	Titles  *keyword.BleveIndex
	Posters *poster.Resolver
	Service *recommend.Service
}

// Close releases the catalog store and title index.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Titles != nil {
		_ = c.Titles.Close()
	}
}

func newResolver(cfg *config.Config, logger *zap.Logger) *poster.Resolver {
	return poster.New(cfg.Poster, poster.NewHTTPClient(cfg.Poster), poster.WithLogger(logger))
}

// loadCatalog loads the catalog from the configured source. Missing or malformed
// artifacts are returned as errors so startup aborts.
func loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, storage.CatalogStore, error) {
	if cfg.Catalog.Source == config.SourceSQLite {
		if _, err := os.Stat(cfg.Catalog.DatabasePath); err != nil {
			return nil, nil, fmt.Errorf("catalog database: %w", err)
		}
		store, err := storage.NewSQLiteStorage(cfg.Catalog.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
		c, err := store.LoadCatalog(ctx)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return c, store, nil
	}
	c, err := catalog.LoadFiles(cfg.Catalog.MoviesPath, cfg.Catalog.SimilarityPath)
	if err != nil {
		return nil, nil, err
	}
	v, err := fileid.ArtifactVersion(cfg.Catalog.MoviesPath, cfg.Catalog.SimilarityPath)
	if err != nil {
		return nil, nil, err
	}
	return c.WithVersion(v), nil, nil
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c, store, err := loadCatalog(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	components := &Components{Catalog: c, Store: store}
	metrics.CatalogMovies.Set(float64(c.Len()))
	logger.Info("catalog loaded",
		zap.Int("movies", c.Len()),
		zap.String("version", c.Version()),
	)

	titles, err := keyword.NewBleveIndex(cfg.Catalog.SearchIndexPath, keyword.WithLogger(logger))
	if err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to initialize title index: %w", err)
	}
	components.Titles = titles
	if err := titles.Sync(ctx, c.Movies(), c.Version()); err != nil {
		components.Close()
		return nil, fmt.Errorf("failed to index titles: %w", err)
	}

	components.Posters = newResolver(cfg, logger)
	components.Service = recommend.NewService(c, components.Posters, recommend.Options{
		Limit:       cfg.Recommend.Limit,
		Workers:     cfg.Recommend.Workers,
		Fuzziness:   cfg.Search.Fuzziness,
		Suggestions:    cfg.Search.SuggestionCountOrDefault(),
		SuggestionPool: cfg.Search.SuggestionPool,
		SearchLimit:    cfg.Search.DefaultLimit,
		MaxSearchLimit: cfg.Search.MaxLimit,
	}, recommend.WithLogger(logger), recommend.WithTitleIndex(titles))
	return components, nil
}

func printUsage() {
	fmt.Println(`reelmatch - Movie recommendations from a precomputed similarity matrix

Usage:
  reelmatch server [flags]               Start the HTTP server
  reelmatch recommend [flags] <title>    Recommend movies with posters
  reelmatch similar [flags] <title>      List closest movies with scores (no posters)
  reelmatch search [flags] [query]       Search titles (substring, or --fuzzy)
  reelmatch poster [flags] <movie_id>    Resolve one poster URL
  reelmatch import [flags]               Copy CSV + matrix artifacts into the SQLite catalog
  reelmatch init [flags]                 Write a config file with defaults
  reelmatch version                      Show version
  reelmatch help                         Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/reelmatch/config.yaml,
                     or ./config.yaml when present)
  --output string    Output format: text or json (recommend, similar, search, poster)
  --debug            Enable debug logging

Search Flags:
  --fuzzy            Typo-tolerant matching
  --limit int        Maximum fuzzy results

Import Flags:
  --movies string      Movies CSV (default from config)
  --similarity string  Matrix binary (default from config)
  --db string          Database to write (default from config)

The metadata API key is read from poster.api_key or REELMATCH_TMDB_API_KEY and is
required by server, recommend, and poster.

Examples:
  reelmatch server
  reelmatch recommend The Dark Knight
  reelmatch recommend --output json "Avatar"
  reelmatch search --fuzzy avatr
  reelmatch poster tt0133093
  reelmatch import --db ./data/catalog.db`)
}
