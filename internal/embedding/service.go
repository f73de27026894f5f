package embedding

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/raghavvag/lucidfiles/internal/apperror"
	"github.com/raghavvag/lucidfiles/internal/cache"
)

// Service wraps an Embedder backend with a content-addressed cache, keyed on
// model identity plus exact text so switching models can never return a
// stale vector for the same string.
type Service struct {
	backend Embedder
	cache   cache.Cache
	modelID string
}

// NewService builds a caching front for backend. modelID should identify the
// backend+model combination precisely (e.g. "onnx:all-MiniLM-L6-v2" or
// "openai:text-embedding-3-small") since it is part of every cache key.
func NewService(backend Embedder, c cache.Cache, modelID string) *Service {
	return &Service{backend: backend, cache: c, modelID: modelID}
}

// Embed returns the embedding for text, serving from cache when present.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts, preserving input order. Cache hits are served
// directly; misses are aggregated into a single backend call and written
// back to the cache before returning.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	for i, t := range texts {
		key := cache.EmbeddingKey(s.modelID, t)
		if raw, ok := s.cache.Get(key); ok {
			vec, err := decodeVector(raw)
			if err == nil {
				results[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	if len(missTexts) > 0 {
		embedded, err := s.backend.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(embedded) != len(missTexts) {
			return nil, apperror.Newf(apperror.KindEmbeddingFailure,
				"backend returned %d embeddings for %d inputs", len(embedded), len(missTexts))
		}
		for j, idx := range missIdx {
			results[idx] = embedded[j]
			key := cache.EmbeddingKey(s.modelID, missTexts[j])
			s.cache.Set(key, encodeVector(embedded[j]))
		}
	}

	return results, nil
}

// Dimensions returns the backend's embedding dimension.
func (s *Service) Dimensions() int { return s.backend.Dimensions() }

// Close releases the backend. The cache is owned by the caller and is not
// closed here.
func (s *Service) Close() error { return s.backend.Close() }

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached embedding: length %d not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
