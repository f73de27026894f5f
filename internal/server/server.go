// Package server provides lucidfiles' HTTP API: index/reindex/remove a
// file, index a directory, search, and a handful of operational endpoints.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/raghavvag/lucidfiles/internal/answer"
	"github.com/raghavvag/lucidfiles/internal/cache"
	"github.com/raghavvag/lucidfiles/internal/config"
	"github.com/raghavvag/lucidfiles/internal/indexer"
	"github.com/raghavvag/lucidfiles/internal/registry"
	"github.com/raghavvag/lucidfiles/internal/search"
	"github.com/raghavvag/lucidfiles/internal/vectorstore"
	"github.com/raghavvag/lucidfiles/internal/watch"
)

// ModelInfoProvider is the subset of the embedding backend the health
// endpoint reports on.
type ModelInfoProvider interface {
	Dimensions() int
}

// Registry is the subset of *registry.SQLiteRegistry the HTTP layer
// reads directly, beyond what the Indexer already wraps.
type Registry interface {
	AddDirectory(ctx context.Context, path string) (registry.Directory, error)
	GetDirectory(ctx context.Context, path string) (registry.Directory, error)
	ListDirectories(ctx context.Context) ([]registry.Directory, error)
	ListAllFiles(ctx context.Context, offset, limit int) ([]registry.FileRecord, error)
	CountFiles(ctx context.Context) (int64, error)
}

// Server is lucidfiles' HTTP API.
type Server struct {
	indexer        *indexer.Indexer
	search         *search.Service
	answerer       answer.Answerer
	reg            Registry
	store          vectorstore.Store
	embedder       ModelInfoProvider
	embeddingCache cache.Cache
	searchCache    cache.Cache
	watch          *watch.Manager
	cfg            *config.Config
	logger         *zap.Logger

	server *http.Server

	mu sync.Mutex
}

// New builds a Server from its dependencies.
func New(
	idx *indexer.Indexer,
	searchSvc *search.Service,
	answerer answer.Answerer,
	reg Registry,
	store vectorstore.Store,
	embedder ModelInfoProvider,
	embeddingCache cache.Cache,
	searchCache cache.Cache,
	watchMgr *watch.Manager,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		indexer:        idx,
		search:         searchSvc,
		answerer:       answerer,
		reg:            reg,
		store:          store,
		embedder:       embedder,
		embeddingCache: embeddingCache,
		searchCache:    searchCache,
		watch:          watchMgr,
		cfg:            cfg,
		logger:         logger,
	}
}

// Router builds the chi router for the API, wiring the spec's six core
// endpoints plus the supplemented operational surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	if s.cfg != nil && s.cfg.Sentry.DSN != "" {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}

	r.Post("/index-directory", s.handleIndexDirectory)
	r.Post("/index-file", s.handleIndexFile)
	r.Post("/reindex-file", s.handleReindexFile)
	r.Delete("/remove-file", s.handleRemoveFile)
	r.Post("/search", s.handleSearch)
	r.Post("/ask", s.handleAsk)
	r.Get("/health", s.handleHealth)

	r.Get("/debug/indexed-files", s.handleIndexedFiles)
	r.Get("/cache/stats", s.handleCacheStats)
	r.Post("/cache/clear", s.handleCacheClear)
	r.Get("/file-content", s.handleFileContent)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.mu.Lock()
	s.server = &http.Server{Addr: addr, Handler: s.Router()}
	srv := s.server
	s.mu.Unlock()
	s.logger.Info("starting server", zap.String("addr", addr))
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if dsn := s.cfg.Sentry.DSN; dsn != "" {
		sentry.Flush(2 * time.Second)
	}
	return srv.Shutdown(ctx)
}
