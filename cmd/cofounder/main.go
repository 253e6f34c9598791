// Package main is the Co-Founder CLI entry point.
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
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/bucket"
	"github.com/analogtech/cofounder/internal/category"
	"github.com/analogtech/cofounder/internal/config"
	"github.com/analogtech/cofounder/internal/embedding"
	"github.com/analogtech/cofounder/internal/expert"
	"github.com/analogtech/cofounder/internal/extract"
	"github.com/analogtech/cofounder/internal/gemini"
	"github.com/analogtech/cofounder/internal/ingest"
	"github.com/analogtech/cofounder/internal/models"
	"github.com/analogtech/cofounder/internal/ocr"
	"github.com/analogtech/cofounder/internal/search"
	"github.com/analogtech/cofounder/internal/server"
	"github.com/analogtech/cofounder/internal/storage"
	"github.com/analogtech/cofounder/internal/watcher"
	"github.com/analogtech/cofounder/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/cofounder/config.yaml"

// loadConfig loads config from path. When path is the default, it first
// looks for config.yaml in the current directory (for development); if that
// exists it is used. The model API key is injected from the environment
// (optionally loaded from .env).
func loadConfig(path string) (*config.Config, string, error) {
	_ = godotenv.Load()

	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	cfg.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "serve":
		runServe()
	case "ingest":
		runIngest()
	case "reindex":
		runReindex()
	case "search":
		runSearch()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "missing":
		runMissing()
	case "purge":
		runPurge()
	case "update-map":
		runUpdateMap()
	case "watch":
		runWatch()
	case "diag":
		runDiag()
	case "version", "--version", "-v":
		fmt.Printf("cofounder version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds the wired application pieces. Not every command needs all
// of them; initializeComponents builds what the config allows and leaves the
// rest nil.
type Components struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    storage.Store
	Library  bucket.Store
	Gemini   *gemini.Client
	Embedder embedding.Embedder
	Engine   *search.Engine
	Expert   *expert.Expert
	Pipeline *ingest.Pipeline
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Library != nil {
		_ = c.Library.Close()
	}
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
}

// setup loads config, builds the logger, and wires components. requireKey
// marks commands that cannot run without the model API key.
func setup(configPath string, debugFlag, requireKey bool) *Components {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(requireKey); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return components
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var library bucket.Store
	switch cfg.Bucket.Provider {
	case "gcs":
		library, err = bucket.NewGCSStore(context.Background(), cfg.Bucket.Name, cfg.Bucket.Prefix)
	case "dir":
		library, err = bucket.NewDirStore(cfg.Bucket.Dir)
	}
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize library: %w", err)
	}

	client := gemini.NewClient(cfg.Model.APIBase, cfg.Model.APIKey, cfg.Model.Embedding, cfg.Model.Generation)

	var embedder embedding.Embedder
	if cfg.Model.APIKey != "" {
		embedder = embedding.NewRetryEmbedder(client, embedding.WithLogger(logger))
	} else {
		// Offline mode: deterministic embeddings, good enough for local
		// plumbing checks but not for real retrieval.
		logger.Warn("no API key set, using mock embeddings")
		embedder = embedding.NewMockEmbedder(768)
	}

	engine := search.NewEngine(store, embedder, cfg.Search.Threshold, cfg.Search.TopK, logger)

	var filter expert.Filter
	if cfg.Category.Enabled {
		m, mapErr := category.LoadMap(cfg.Category.MapPath)
		if mapErr != nil {
			logger.Warn("category map unavailable, searching unrestricted", zap.Error(mapErr))
		} else {
			filter = category.NewFilter(client, cfg.Model.Classification, m, cfg.Category.MaxVocabulary, logger)
		}
	}

	exp := expert.New(engine, filter, client, library, cfg.Search.BroadK, logger)

	transcriber := ocr.NewTranscriber(client, cfg.Ingest.OCR.BatchPages, cfg.Ingest.OCR.Retries,
		ocr.WithLogger(logger),
		ocr.WithRetryPause(time.Duration(cfg.Ingest.OCR.RetryPauseS)*time.Second),
	)
	chunker, err := ingest.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		_ = store.Close()
		_ = library.Close()
		return nil, fmt.Errorf("invalid chunking settings: %w", err)
	}
	pipeline := ingest.NewPipeline(
		library,
		extract.NewExtractor(cfg.Ingest.OCR.MinTextChars),
		transcriber,
		chunker,
		embedder,
		store,
		ingest.Pauses{
			PerChunk:    time.Duration(cfg.Ingest.ChunkPauseMS) * time.Millisecond,
			PerDocument: time.Duration(cfg.Ingest.DocumentPauseS) * time.Second,
			Cooldown:    time.Duration(cfg.Ingest.CooldownS) * time.Second,
		},
		logger,
	)

	return &Components{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Library:  library,
		Gemini:   client,
		Embedder: embedder,
		Engine:   engine,
		Expert:   exp,
		Pipeline: pipeline,
	}, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, true)
	defer c.Close()

	srv := server.NewServer(c.Expert, c.Engine, c.Store, c.Library, &c.Config.Server, c.Logger)

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Stop(shutdownCtx)
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		c.Logger.Fatal("server failed", zap.Error(err))
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	force := fs.Bool("force", false, "re-ingest documents that are already indexed")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, true)
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := c.Pipeline.Run(ctx, ingest.RunOptions{Force: *force, Targets: fs.Args()})
	if err != nil {
		c.Logger.Fatal("ingestion failed", zap.Error(err))
	}
	fmt.Printf("Indexed: %d  Skipped: %d  Failed: %d\n", report.Indexed, report.Skipped, len(report.Failed))
	for _, name := range report.Failed {
		fmt.Printf("  failed: %s\n", name)
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}

func runReindex() {
	fs := flag.NewFlagSet("reindex", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	translate := fs.Bool("translate", false, "translate OCR output")
	lang := fs.String("lang", "English", "translation target language")
	_ = fs.Parse(os.Args[2:])

	if len(fs.Args()) == 0 {
		fmt.Println("Usage: cofounder reindex [flags] <file> [file ...]")
		os.Exit(1)
	}

	c := setup(*configPath, *debug, true)
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	report, err := c.Pipeline.Reindex(ctx, fs.Args(), ocr.Options{Translate: *translate, TargetLang: *lang})
	if err != nil {
		c.Logger.Fatal("reindex failed", zap.Error(err))
	}
	fmt.Printf("Indexed: %d  Failed: %d\n", report.Indexed, len(report.Failed))
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	limit := fs.Int("limit", 0, "number of results (default from config)")
	_ = fs.Parse(os.Args[2:])

	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		fmt.Println("Usage: cofounder search [flags] <query>")
		os.Exit(1)
	}

	c := setup(*configPath, *debug, true)
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	var opts []search.QueryOption
	if *limit > 0 {
		opts = append(opts, search.WithLimit(*limit))
	}
	results := c.Engine.Search(ctx, query, opts...)
	if len(results) == 0 {
		fmt.Println("No results above the relevance threshold.")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s\n   %s\n\n", i+1, r.Score, r.FileName, utils.Truncate(r.Text, 200))
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	question := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(question) == "" {
		fmt.Println("Usage: cofounder ask [flags] <question>")
		os.Exit(1)
	}

	c := setup(*configPath, *debug, true)
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	answer, err := c.Expert.Ask(ctx, question, expert.AskOptions{})
	if err != nil {
		c.Logger.Fatal("ask failed", zap.Error(err))
	}
	if answer.SafetyBlocked {
		fmt.Println("The model declined to answer this question.")
		os.Exit(1)
	}
	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Printf("\n(drawn from: %s)\n", strings.Join(answer.Sources, ", "))
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, false)
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	docs, err := c.Store.CountDocuments(ctx)
	if err != nil {
		c.Logger.Fatal("count documents failed", zap.Error(err))
	}
	chunks, err := c.Store.CountChunks(ctx)
	if err != nil {
		c.Logger.Fatal("count chunks failed", zap.Error(err))
	}
	incomplete, err := c.Store.Incomplete(ctx)
	if err != nil {
		c.Logger.Fatal("incomplete query failed", zap.Error(err))
	}

	fmt.Printf("Documents indexed: %d\n", docs)
	fmt.Printf("Chunks stored:     %d\n", chunks)
	fmt.Printf("Search:            %s\n", c.Engine.Describe())
	if len(incomplete) > 0 {
		fmt.Printf("\nIncomplete documents (%d):\n", len(incomplete))
		for _, d := range incomplete {
			fmt.Printf("  %s: %d/%d chunks\n", d.FileName, d.IndexedChunks, d.ExpectedChunks)
		}
	}
}

// runMissing lists library documents that have no chunks in the store, the
// pre-ingestion counterpart of the status command's incomplete list.
func runMissing() {
	fs := flag.NewFlagSet("missing", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, false)
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	objects, err := c.Library.List(ctx)
	if err != nil {
		c.Logger.Fatal("list library failed", zap.Error(err))
	}
	if pattern := strings.Join(fs.Args(), " "); pattern != "" {
		objects = bucket.SearchNames(objects, pattern)
	}

	var missing []string
	skipped := map[string]int{}
	for _, obj := range objects {
		if models.FormatFromName(obj.Name) == models.FormatUnknown {
			ext := strings.ToLower(filepath.Ext(obj.Name))
			if ext == "" {
				ext = "(none)"
			}
			skipped[ext]++
			continue
		}
		indexed, err := c.Store.IsIndexed(ctx, obj.Name)
		if err != nil {
			c.Logger.Fatal("check indexed failed", zap.String("file", obj.Name), zap.Error(err))
		}
		if !indexed {
			missing = append(missing, obj.Name)
		}
	}
	if len(missing) == 0 {
		fmt.Println("All supported library documents are indexed.")
	} else {
		fmt.Printf("Not indexed (%d):\n", len(missing))
		for _, name := range missing {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(skipped) > 0 {
		exts := make([]string, 0, len(skipped))
		for ext := range skipped {
			exts = append(exts, ext)
		}
		sort.Strings(exts)
		fmt.Printf("Skipped unsupported extensions:\n")
		for _, ext := range exts {
			fmt.Printf("  %-8s %d\n", ext, skipped[ext])
		}
	}
}

func runPurge() {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	if len(fs.Args()) == 0 {
		fmt.Println("Usage: cofounder purge [flags] <file> [file ...]")
		os.Exit(1)
	}

	c := setup(*configPath, *debug, false)
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()

	for _, name := range fs.Args() {
		n, err := c.Store.DeleteByDocument(ctx, name)
		if err != nil {
			c.Logger.Fatal("purge failed", zap.String("file", name), zap.Error(err))
		}
		fmt.Printf("Purged %s (%d chunks)\n", name, n)
	}
}

// runUpdateMap merges curated document summaries from a markdown file into
// the category map.
func runUpdateMap() {
	fs := flag.NewFlagSet("update-map", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	mdPath := fs.String("descriptions", "library_descriptions.md", "markdown file with document descriptions")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, false)
	defer c.Close()

	mapPath := c.Config.Category.MapPath
	m, err := category.LoadMap(mapPath)
	if err != nil {
		c.Logger.Fatal("load category map failed", zap.Error(err))
	}
	markdown, err := os.ReadFile(*mdPath)
	if err != nil {
		c.Logger.Fatal("read descriptions failed", zap.Error(err))
	}

	updated := m.UpdateFromMarkdown(string(markdown))
	if err := m.Save(mapPath); err != nil {
		c.Logger.Fatal("save category map failed", zap.Error(err))
	}
	fmt.Printf("Updated %d entries in %s.\n", updated, mapPath)
}

// runWatch ingests continuously as the local library directory changes.
func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, true)
	defer c.Close()

	if c.Config.Bucket.Provider != "dir" {
		c.Logger.Fatal("watch mode requires the dir bucket provider")
	}

	ctx, cancel := signalContext()
	defer cancel()

	w := watcher.New(c.Config.Bucket.Dir, func(ctx context.Context) {
		report, err := c.Pipeline.Run(ctx, ingest.RunOptions{})
		if err != nil {
			c.Logger.Error("watch ingestion failed", zap.Error(err))
			return
		}
		if report.Indexed > 0 || len(report.Failed) > 0 {
			c.Logger.Info("watch ingestion finished",
				zap.Int("indexed", report.Indexed),
				zap.Int("failed", len(report.Failed)),
			)
		}
	}, c.Logger)

	// One full pass before watching, so a cold start catches up.
	if _, err := c.Pipeline.Run(ctx, ingest.RunOptions{}); err != nil {
		c.Logger.Fatal("initial ingestion failed", zap.Error(err))
	}
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		c.Logger.Fatal("watcher failed", zap.Error(err))
	}
}

// runDiag prints the effective wiring, for debugging a deployment.
func runDiag() {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	c := setup(*configPath, *debug, false)
	defer c.Close()

	cfg := c.Config
	fmt.Printf("cofounder %s\n\n", version)
	fmt.Printf("Database:        %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("Library:         %s", cfg.Bucket.Provider)
	if cfg.Bucket.Provider == "gcs" {
		fmt.Printf(" (%s/%s)", cfg.Bucket.Name, cfg.Bucket.Prefix)
	} else {
		fmt.Printf(" (%s)", cfg.Bucket.Dir)
	}
	fmt.Println()
	fmt.Printf("Embedding model: %s\n", cfg.Model.Embedding)
	fmt.Printf("Generation:      %s\n", cfg.Model.Generation)
	fmt.Printf("Classification:  %s\n", cfg.Model.Classification)
	fmt.Printf("API key:         %v\n", cfg.Model.APIKey != "")
	fmt.Printf("Chunking:        %d runes, %d overlap\n", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	fmt.Printf("Search:          %s\n", c.Engine.Describe())
	fmt.Printf("Category filter: %v (%s)\n", cfg.Category.Enabled, cfg.Category.MapPath)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	objects, err := c.Library.List(ctx)
	if err != nil {
		fmt.Printf("Library check:   FAILED (%v)\n", err)
		os.Exit(1)
	}
	fmt.Printf("Library check:   ok, %d objects\n", len(objects))
}

func printUsage() {
	fmt.Println(`cofounder - private-library knowledge engine

Usage:
  cofounder serve [flags]                  Start the HTTP API
  cofounder ingest [flags] [file ...]      Ingest the library (all files or the named ones)
  cofounder reindex [flags] <file> ...     Purge and re-ingest documents
  cofounder search [flags] <query>         Similarity search over indexed chunks
  cofounder ask [flags] <question>         Ask the expert a question
  cofounder status [flags]                 Show store counts and incomplete documents
  cofounder missing [flags] [pattern]      List library documents not yet indexed
  cofounder purge [flags] <file> ...       Remove documents from the knowledge store
  cofounder update-map [flags]             Merge curated descriptions into the category map
  cofounder watch [flags]                  Ingest continuously as the library directory changes
  cofounder diag [flags]                   Print the effective configuration
  cofounder version                        Show version
  cofounder help                           Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/cofounder/config.yaml,
                     falling back to ./config.yaml when present)
  --debug            Enable debug logging

Ingest Flags:
  --force            Re-ingest documents that are already indexed

Reindex Flags:
  --translate        Translate OCR output
  --lang string      Translation target language (default: English)

Search Flags:
  --limit int        Number of results (default from config)

Update-map Flags:
  --descriptions string   Markdown file with document descriptions
                          (default: library_descriptions.md)

Examples:
  cofounder ingest
  cofounder ingest --force annual-report.pdf
  cofounder search "customer acquisition cost benchmarks"
  cofounder ask "how should we structure the seed round?"
  cofounder reindex --translate --lang English scanned-book.pdf
  cofounder serve --debug`)
}
