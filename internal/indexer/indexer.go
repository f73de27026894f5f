// Package indexer owns the file-to-points pipeline: parse, chunk, embed,
// upsert into the vector store, and keep the registry in sync.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raghavvag/lucidfiles/internal/apperror"
	"github.com/raghavvag/lucidfiles/internal/cache"
	"github.com/raghavvag/lucidfiles/internal/chunk"
	"github.com/raghavvag/lucidfiles/internal/extract"
	"github.com/raghavvag/lucidfiles/internal/fileid"
	"github.com/raghavvag/lucidfiles/internal/registry"
	"github.com/raghavvag/lucidfiles/internal/vectorstore"
)

// Embedder is the subset of embedding.Service the indexer needs; satisfied
// by *embedding.Service in production and a fake in tests.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Registry is the subset of *registry.SQLiteRegistry the indexer needs.
type Registry interface {
	GetFile(ctx context.Context, path string) (registry.FileRecord, error)
	UpsertFile(ctx context.Context, f registry.FileRecord) error
	RemoveFile(ctx context.Context, path string) error
}

// Result summarizes a single index_file/reindex_file call outcome, mirroring
// the response shape the HTTP layer returns. Every outcome except
// "parse-failed" reports ChunksIndexed > 0 when content was actually
// embedded; "parse-failed" is still a success response (chunksIndexed:0
// plus Warning) since the file itself, not the request, is at fault.
type Result struct {
	Outcome       string // "indexed" | "no-op" | "skipped" | "parse-failed" | "empty"
	ChunksIndexed int
	Warning       string
	Checksum      string
	Size          int64
	FilePath      string
	FileName      string
	FileType      string
	Reindexed     bool
}

// DirectoryResult aggregates an index_directory walk.
type DirectoryResult struct {
	TotalFiles     int
	FilesProcessed int
	ChunksWritten  int
	FilesSkipped   int
	FilesFailed    int
}

// RemoveResult summarizes a remove_file call.
type RemoveResult struct {
	ChunksRemoved int
	FilePath      string
	FileName      string
}

// Indexer wires the parser, chunker, embedding service, and vector store
// together, built around content-addressed point ids and a
// delete-by-file/upsert replace model.
type Indexer struct {
	registry    Registry
	embedder    Embedder
	store       vectorstore.Store
	extractor   *extract.Extractor
	chunker     *chunk.Chunker
	searchCache cache.Cache // invalidated wholesale on any successful mutation
	dirID       func(path string) (int64, error)
	locks       *pathLocks
	workerPool  int
	logger      *zap.Logger
}

// defaultWorkerPool is the in-flight file bound IndexDirectory falls back to
// when the caller does not set one, matching config.EmbeddingConfig's own
// worker_pool_size default.
const defaultWorkerPool = 8

// New builds an Indexer. dirIDFor resolves the owning registered directory's
// ID for a given absolute file path (used when upserting file records).
// workerPool bounds how many files IndexDirectory processes concurrently; a
// value <= 0 falls back to defaultWorkerPool.
func New(
	reg Registry,
	embedder Embedder,
	store vectorstore.Store,
	extractor *extract.Extractor,
	chunker *chunk.Chunker,
	searchCache cache.Cache,
	dirIDFor func(path string) (int64, error),
	workerPool int,
	logger *zap.Logger,
) *Indexer {
	if workerPool <= 0 {
		workerPool = defaultWorkerPool
	}
	return &Indexer{
		registry:    reg,
		embedder:    embedder,
		store:       store,
		extractor:   extractor,
		chunker:     chunker,
		searchCache: searchCache,
		dirID:       dirIDFor,
		locks:       newPathLocks(),
		workerPool:  workerPool,
		logger:      logger,
	}
}

// IndexFile implements index_file(path): steps 1-7 of the component
// design, short-circuiting on an unchanged digest.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (Result, error) {
	unlock := idx.locks.Lock(path)
	defer unlock()
	return idx.indexFileLocked(ctx, path, false)
}

// ReindexFile implements reindex_file(path): unconditional delete_by_file
// followed by the same steps as IndexFile.
func (idx *Indexer) ReindexFile(ctx context.Context, path string) (Result, error) {
	unlock := idx.locks.Lock(path)
	defer unlock()
	if err := idx.store.DeleteByFile(ctx, path); err != nil {
		return Result{}, err
	}
	return idx.indexFileLocked(ctx, path, true)
}

// RemoveFile implements remove_file(path): delete_by_file, drop the file
// record, invalidate the search cache.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (RemoveResult, error) {
	unlock := idx.locks.Lock(path)
	defer unlock()

	chunksRemoved, err := idx.store.CountByFile(ctx, path)
	if err != nil {
		return RemoveResult{}, err
	}
	if err := idx.store.DeleteByFile(ctx, path); err != nil {
		return RemoveResult{}, err
	}
	if err := idx.registry.RemoveFile(ctx, path); err != nil {
		return RemoveResult{}, err
	}
	idx.invalidateSearchCache()
	if idx.logger != nil {
		idx.logger.Debug("indexer removed file", zap.String("path", path))
	}
	return RemoveResult{
		ChunksRemoved: chunksRemoved,
		FilePath:      path,
		FileName:      filepath.Base(path),
	}, nil
}

func (idx *Indexer) indexFileLocked(ctx context.Context, path string, forceReindex bool) (Result, error) {
	fileName := filepath.Base(path)
	base := Result{FilePath: path, FileName: fileName, Reindexed: forceReindex}

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, apperror.New(apperror.KindNotFound, fmt.Errorf("stat %s: %w", path, err))
	}
	if !info.Mode().IsRegular() {
		return Result{}, apperror.Newf(apperror.KindInputValidation, "not a regular file: %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, apperror.New(apperror.KindNotFound, fmt.Errorf("read %s: %w", path, err))
	}
	digest := sha256Hex(content)
	base.Checksum = digest
	base.Size = info.Size()

	existing, err := idx.registry.GetFile(ctx, path)
	hasExisting := err == nil
	if !forceReindex && hasExisting && existing.Checksum == digest && existing.Status == registry.StatusIndexed {
		result := base
		result.Outcome = "no-op"
		return result, nil
	}

	extWithDot := strings.ToLower(filepath.Ext(path))
	ext := strings.TrimPrefix(extWithDot, ".")
	base.FileType = ext
	if !idx.extractor.Supported(extWithDot) {
		result := base
		result.Outcome = "skipped"
		return result, nil
	}

	extracted, err := idx.extractor.ExtractBytes(ctx, content, extWithDot)
	if err != nil {
		idx.markFailed(ctx, path, digest)
		result := base
		result.Outcome = "parse-failed"
		result.Warning = "parse failed: " + err.Error()
		return result, nil
	}
	if extracted.Unsupported {
		result := base
		result.Outcome = "skipped"
		return result, nil
	}

	text := chunk.Preprocess(extracted.Text)
	chunks := idx.chunker.Build(path, digest, text)

	dirID, err := idx.dirID(path)
	if err != nil {
		return Result{}, apperror.New(apperror.KindInputValidation, fmt.Errorf("resolve registered directory for %s: %w", path, err))
	}

	if len(chunks) == 0 {
		if err := idx.registry.UpsertFile(ctx, registry.FileRecord{
			Path: path, DirID: dirID, Checksum: digest, Status: registry.StatusIndexed, LastIndexed: time.Now(),
		}); err != nil {
			return Result{}, err
		}
		idx.invalidateSearchCache()
		result := base
		result.Outcome = "empty"
		return result, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		idx.markFailed(ctx, path, digest)
		return Result{}, apperror.New(apperror.KindEmbeddingFailure, err)
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		points[i] = vectorstore.Point{
			ID:     fileid.PointID(path, digest, c.ChunkIndex),
			Vector: embeddings[i],
			Payload: map[string]any{
				vectorstore.PayloadFilePath: path,
				"file_name":                fileName,
				"file_size":                info.Size(),
				"file_type":                ext,
				"chunk":                    c.Text,
				"chunk_index":              c.ChunkIndex,
				"chunk_size":               c.Length,
				"file_hash":                digest,
			},
		}
	}

	if hasExisting && existing.Checksum != digest {
		if err := idx.store.DeleteByFile(ctx, path); err != nil {
			return Result{}, apperror.New(apperror.KindVectorStoreFailure, err)
		}
	}
	if err := idx.store.Upsert(ctx, points); err != nil {
		idx.markFailed(ctx, path, digest)
		return Result{}, apperror.New(apperror.KindVectorStoreFailure, err)
	}

	if err := idx.registry.UpsertFile(ctx, registry.FileRecord{
		Path: path, DirID: dirID, Checksum: digest, Status: registry.StatusIndexed, LastIndexed: time.Now(),
	}); err != nil {
		return Result{}, err
	}
	idx.invalidateSearchCache()

	if idx.logger != nil {
		idx.logger.Debug("indexer indexed file", zap.String("path", path), zap.Int("chunks", len(points)))
	}
	result := base
	result.Outcome = "indexed"
	result.ChunksIndexed = len(points)
	return result, nil
}

func (idx *Indexer) markFailed(ctx context.Context, path, digest string) {
	dirID, err := idx.dirID(path)
	if err != nil {
		return
	}
	_ = idx.registry.UpsertFile(ctx, registry.FileRecord{
		Path: path, DirID: dirID, Checksum: digest, Status: registry.StatusFailed,
	})
}

func (idx *Indexer) invalidateSearchCache() {
	if idx.searchCache != nil {
		idx.searchCache.Clear()
	}
}

// IndexDirectory implements index_directory(root): walk the tree, then fan
// the regular files with a supported extension out across a bounded worker
// pool (sized by workerPool) so unrelated files index concurrently while
// pathLocks still serializes calls that land on the same path. Individual
// file failures never abort the walk.
func (idx *Indexer) IndexDirectory(ctx context.Context, root string) (DirectoryResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return DirectoryResult{}, apperror.New(apperror.KindInputValidation, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return DirectoryResult{}, apperror.New(apperror.KindNotFound, err)
	}
	if !info.IsDir() {
		return DirectoryResult{}, apperror.Newf(apperror.KindInputValidation, "not a directory: %s", absRoot)
	}

	var agg DirectoryResult
	var paths []string
	walkErr := filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		agg.TotalFiles++
		if !idx.extractor.Supported(strings.ToLower(filepath.Ext(path))) {
			agg.FilesSkipped++
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return agg, walkErr
	}
	if len(paths) == 0 {
		return agg, nil
	}

	poolSize := idx.workerPool
	if poolSize > len(paths) {
		poolSize = len(paths)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, poolSize)
	)
	for _, path := range paths {
		path := path
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			result, indexErr := idx.IndexFile(ctx, path)
			mu.Lock()
			defer mu.Unlock()
			if indexErr != nil {
				agg.FilesFailed++
				return
			}
			switch result.Outcome {
			case "skipped":
				agg.FilesSkipped++
			case "parse-failed":
				agg.FilesFailed++
			default:
				agg.FilesProcessed++
				agg.ChunksWritten += result.ChunksIndexed
			}
		}()
	}
	wg.Wait()
	return agg, nil
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
