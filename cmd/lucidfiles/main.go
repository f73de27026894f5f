// Command lucidfiles is the CLI entry point: start the HTTP server, index
// files and directories, run one-off searches and questions, and manage
// watched directories.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raghavvag/lucidfiles/internal/answer"
	"github.com/raghavvag/lucidfiles/internal/cache"
	"github.com/raghavvag/lucidfiles/internal/chunk"
	"github.com/raghavvag/lucidfiles/internal/cli"
	"github.com/raghavvag/lucidfiles/internal/config"
	"github.com/raghavvag/lucidfiles/internal/embedding"
	"github.com/raghavvag/lucidfiles/internal/extract"
	"github.com/raghavvag/lucidfiles/internal/indexer"
	"github.com/raghavvag/lucidfiles/internal/ocr"
	"github.com/raghavvag/lucidfiles/internal/registry"
	"github.com/raghavvag/lucidfiles/internal/search"
	"github.com/raghavvag/lucidfiles/internal/server"
	"github.com/raghavvag/lucidfiles/internal/vectorstore"
	"github.com/raghavvag/lucidfiles/internal/watch"
	"github.com/raghavvag/lucidfiles/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/lucidfiles/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "lucidfiles serve" from the project dir picks up the
// project's config (including debug) without a flag.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := cwd + "/config.yaml"
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
	}
	return config.Load(path)
}

// components holds every service wired from a Config; Close shuts them down
// one after another on exit.
type components struct {
	Registry    *registry.SQLiteRegistry
	Embedder    embedding.Embedder
	Store       vectorstore.Store
	Indexer     *indexer.Indexer
	Search      *search.Service
	Answerer    answer.Answerer
	EmbedCache  cache.Cache
	SearchCache cache.Cache
}

func (c *components) Close() {
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.EmbedCache != nil {
		_ = c.EmbedCache.Close()
	}
	if c.SearchCache != nil {
		_ = c.SearchCache.Close()
	}
}

func buildEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	switch cfg.Embedding.Backend {
	case "openai":
		return embedding.NewOpenAIEmbedder(cfg.Embedding.OpenAIAPIKey, cfg.Embedding.ModelID, cfg.Embedding.Dimensions)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		onnxEmbedder, err := embedding.NewONNXEmbedder(cfg.Embedding.ModelPath, cfg.Embedding.Dimensions, cfg.Embedding.MaxTokens)
		if err != nil {
			if logger != nil {
				logger.Warn("onnx embedder unavailable, falling back to mock embedder", zap.Error(err))
			}
			return embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		}
		return onnxEmbedder
	}
}

func buildCache(sizeMB, ttlSeconds int, redisURL string) cache.Cache {
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err == nil {
			client := redis.NewClient(opts)
			return cache.NewRedisCache(client, time.Duration(ttlSeconds)*time.Second)
		}
	}
	return cache.NewMemoryCache(int64(sizeMB)*1024*1024, time.Duration(ttlSeconds)*time.Second)
}

func buildOCREngine(cfg *config.Config) ocr.Engine {
	return ocr.NewTesseractEngine(ocr.Options{DPI: cfg.OCR.DPI, PSM: cfg.OCR.PSM, Lang: cfg.OCR.Lang})
}

func buildAnswerer(cfg *config.Config) answer.Answerer {
	if cfg.Answer.Enabled && cfg.Embedding.OpenAIAPIKey != "" {
		return answer.NewOpenAIAnswerer(cfg.Embedding.OpenAIAPIKey, cfg.Answer.Model)
	}
	return answer.NoopAnswerer{}
}

func initComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	reg, err := registry.Open(cfg.Registry.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	embedder := buildEmbedder(cfg, logger)
	embedCache := buildCache(cfg.Cache.EmbeddingSizeMB, cfg.Cache.EmbeddingTTLSecond, cfg.Cache.RedisURL)
	searchCache := buildCache(cfg.Cache.SearchSizeMB, cfg.Cache.SearchTTLSecond, cfg.Cache.RedisURL)
	embedSvc := embedding.NewService(embedder, embedCache, cfg.Embedding.ModelID)

	store, err := vectorstore.New(ctx, cfg.VectorStore, cfg.Embedding.Dimensions)
	if err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	extractor := extract.NewExtractor(buildOCREngine(cfg))
	chunker := chunk.New(cfg.Chunk.Size, cfg.Chunk.Overlap)

	dirIDFor := func(path string) (int64, error) {
		dirs, err := reg.ListDirectories(ctx)
		if err != nil {
			return 0, err
		}
		best := ""
		var bestID int64
		for _, d := range dirs {
			if strings.HasPrefix(path, d.Path) && len(d.Path) > len(best) {
				best, bestID = d.Path, d.ID
			}
		}
		if best == "" {
			return 0, fmt.Errorf("no registered directory owns %s", path)
		}
		return bestID, nil
	}

	idx := indexer.New(reg, embedSvc, store, extractor, chunker, searchCache, dirIDFor, cfg.Embedding.WorkerPool, logger)
	searchSvc := search.New(embedSvc, store, searchCache, cfg.Embedding.ModelID, logger)
	answerer := buildAnswerer(cfg)

	return &components{
		Registry:    reg,
		Embedder:    embedder,
		Store:       store,
		Indexer:     idx,
		Search:      searchSvc,
		Answerer:    answerer,
		EmbedCache:  embedCache,
		SearchCache: searchCache,
	}, nil
}

func main() {
	var configPath string
	var debug bool

	root := &cobra.Command{
		Use:     "lucidfiles",
		Short:   "Local semantic search over your filesystem",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "config file path")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(&configPath, &debug),
		newIndexCommand(&configPath, &debug),
		newSearchCommand(&configPath, &debug),
		newAskCommand(&configPath, &debug),
		newWatchCommand(&configPath, &debug),
		newStatusCommand(&configPath, &debug),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(configPath string, debug bool) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, logger, nil
}

func newServeCommand(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and directory watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			comps, err := initComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			var watchMgr *watch.Manager
			if len(cfg.Watch.Directories) > 0 {
				watchOpts := []watch.Option{WithDebounceFromConfig(cfg)}
				if cfg.Debug || *debug {
					watchOpts = append(watchOpts, watch.WithLogger(logger))
				}
				watchMgr = watch.New(cfg.Watch.Directories, cfg.Watch.Extensions, cfg.Watch.RecursiveOrDefault(), comps.Indexer, comps.Registry, watchOpts...)
				watchCtx, cancel := context.WithCancel(ctx)
				defer cancel()
				for _, dir := range cfg.Watch.Directories {
					if _, err := comps.Registry.AddDirectory(ctx, dir); err != nil {
						logger.Warn("register watch directory failed", zap.String("path", dir), zap.Error(err))
					}
				}
				if err := watchMgr.Start(watchCtx); err != nil {
					return fmt.Errorf("start watcher: %w", err)
				}
			}

			srv := server.New(comps.Indexer, comps.Search, comps.Answerer, comps.Registry, comps.Store, comps.Embedder, comps.EmbedCache, comps.SearchCache, watchMgr, cfg, logger)
			go func() {
				if err := srv.Start(); err != nil {
					logger.Fatal("server failed", zap.Error(err))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			<-sigChan

			logger.Info("shutting down")
			if watchMgr != nil {
				watchMgr.Stop()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

// WithDebounceFromConfig adapts cfg.Watch.DebounceMs into a watch.Option.
func WithDebounceFromConfig(cfg *config.Config) watch.Option {
	return watch.WithDebounce(time.Duration(cfg.Watch.DebounceMs) * time.Millisecond)
}

func newIndexCommand(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file-or-directory>",
		Short: "Index a single file or an entire directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			comps, err := initComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			path := args[0]
			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				if _, err := comps.Registry.AddDirectory(ctx, path); err != nil {
					return fmt.Errorf("register directory: %w", err)
				}
				result, err := comps.Indexer.IndexDirectory(ctx, path)
				if err != nil {
					return fmt.Errorf("index directory: %w", err)
				}
				fmt.Printf("indexed %d file(s), %d chunk(s); skipped %d, failed %d\n",
					result.FilesProcessed, result.ChunksWritten, result.FilesSkipped, result.FilesFailed)
				return nil
			}

			if _, err := comps.Registry.AddDirectory(ctx, filepath.Dir(path)); err != nil {
				return fmt.Errorf("register directory: %w", err)
			}
			result, err := comps.Indexer.IndexFile(ctx, path)
			if err != nil {
				return fmt.Errorf("index file: %w", err)
			}
			fmt.Printf("%s: %s (%d chunks)\n", path, result.Outcome, result.ChunksIndexed)
			return nil
		},
	}
}

func newSearchCommand(configPath *string, debug *bool) *cobra.Command {
	var topK int
	var format string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a semantic search query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			comps, err := initComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			query := strings.Join(args, " ")
			hits, err := comps.Search.Search(ctx, query, topK)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return cli.WriteSearchResults(os.Stdout, hits, cli.SearchOutputFormat(format))
		},
	}
	cmd.Flags().IntVar(&topK, "limit", 10, "number of results")
	cmd.Flags().StringVar(&format, "output", "text", "output format: text, compact, or json")
	return cmd
}

func newAskCommand(configPath *string, debug *bool) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question answered from indexed content",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *debug)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := context.Background()
			comps, err := initComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			question := strings.Join(args, " ")
			text, hits, err := answer.Ask(ctx, comps.Search, comps.Answerer, question, topK)
			if err != nil && !errors.Is(err, answer.ErrNotConfigured) {
				return fmt.Errorf("ask failed: %w", err)
			}
			if text == "" {
				fmt.Println("(no chat completion backend configured; showing retrieved chunks)")
				return cli.WriteSearchResults(os.Stdout, hits, cli.OutputText)
			}
			fmt.Println(text)
			return nil
		},
	}
	cmd.Flags().IntVar(&topK, "limit", 5, "number of chunks to retrieve as context")
	return cmd
}

func newWatchCommand(configPath *string, debug *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage watched directories",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *debug)
			if err != nil {
				return err
			}
			defer logger.Sync()
			reg, err := registry.Open(cfg.Registry.DatabasePath)
			if err != nil {
				return err
			}
			defer reg.Close()
			dirs, err := reg.ListDirectories(context.Background())
			if err != nil {
				return err
			}
			for _, d := range dirs {
				fmt.Println(d.Path)
			}
			return nil
		},
	})
	return cmd
}

func newStatusCommand(configPath *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show indexed file and directory counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*configPath, *debug)
			if err != nil {
				return err
			}
			defer logger.Sync()
			reg, err := registry.Open(cfg.Registry.DatabasePath)
			if err != nil {
				return err
			}
			defer reg.Close()

			ctx := context.Background()
			fileCount, err := reg.CountFiles(ctx)
			if err != nil {
				return err
			}
			dirs, err := reg.ListDirectories(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("files_indexed:        %d\n", fileCount)
			fmt.Printf("directories_watched:  %d\n", len(dirs))
			fmt.Printf("vector_store_kind:    %s\n", cfg.VectorStore.Kind)
			fmt.Printf("embedding_backend:    %s\n", cfg.Embedding.Backend)
			return nil
		},
	}
}
