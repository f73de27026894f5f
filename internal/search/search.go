// Package search implements the query pipeline: normalize, check the
// search cache, embed, query the vector store, and project hits into the
// response shape callers and the HTTP layer share.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/raghavvag/lucidfiles/internal/apperror"
	"github.com/raghavvag/lucidfiles/internal/cache"
	"github.com/raghavvag/lucidfiles/internal/vectorstore"
)

var errEmptyQuery = errors.New("query is empty after normalization")

// Hit is a single projected search result.
type Hit struct {
	Score     float64 `json:"score"`
	FilePath  string  `json:"file_path"`
	FileName  string  `json:"file_name"`
	Chunk     string  `json:"chunk"`
	ChunkIdx  int     `json:"chunk_index"`
	FileType  string  `json:"file_type"`
	FileSize  int64   `json:"file_size"`
	ChunkSize int     `json:"chunk_size"`
}

// Embedder is the subset of *embedding.Service the search pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service runs the search(query, top_k) pipeline: embed the query, search
// the vector store, project hits into results, with an up-front
// search-cache short circuit so repeated queries skip the embed/search
// round trip entirely.
type Service struct {
	embedder Embedder
	store    vectorstore.Store
	cache    cache.Cache
	modelID  string
	logger   *zap.Logger
}

// New builds a Service.
func New(embedder Embedder, store vectorstore.Store, searchCache cache.Cache, modelID string, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, store: store, cache: searchCache, modelID: modelID, logger: logger}
}

// Search implements the six-step pipeline from the component design.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, apperror.Newf(apperror.KindInputValidation, "top_k must be positive, got %d", topK)
	}
	normalized := normalizeQuery(query)
	if normalized == "" {
		return nil, apperror.New(apperror.KindInputValidation, errEmptyQuery)
	}

	key := cache.SearchKey(s.modelID, normalized, topK, "")
	if s.cache != nil {
		if raw, ok := s.cache.Get(key); ok {
			var hits []Hit
			if err := json.Unmarshal(raw, &hits); err == nil {
				return hits, nil
			}
		}
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, apperror.New(apperror.KindEmbeddingFailure, err)
	}

	scored, err := s.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, apperror.New(apperror.KindVectorStoreFailure, err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, sp := range scored {
		hits = append(hits, projectHit(sp))
	}

	if s.cache != nil {
		if raw, err := json.Marshal(hits); err == nil {
			s.cache.Set(key, raw)
		}
	}
	return hits, nil
}

func projectHit(sp vectorstore.ScoredPoint) Hit {
	h := Hit{Score: sp.Score}
	if v, ok := sp.Payload[vectorstore.PayloadFilePath].(string); ok {
		h.FilePath = v
	}
	if v, ok := sp.Payload["file_name"].(string); ok {
		h.FileName = v
	}
	if v, ok := sp.Payload["chunk"].(string); ok {
		h.Chunk = v
	}
	if v, ok := sp.Payload["file_type"].(string); ok {
		h.FileType = v
	}
	h.ChunkIdx = asInt(sp.Payload["chunk_index"])
	h.FileSize = asInt64(sp.Payload["file_size"])
	h.ChunkSize = asInt(sp.Payload["chunk_size"])
	return h
}

// asInt/asInt64 tolerate the numeric types JSON round-tripping and the
// different vectorstore backends (SQL drivers, Qdrant's JSON payload,
// the in-memory map) hand back for what was stored as a plain int.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
