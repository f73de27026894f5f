package benchmark

import (
	"context"
	"testing"

	"github.com/raghavvag/lucidfiles/internal/cache"
	"github.com/raghavvag/lucidfiles/internal/embedding"
	"github.com/raghavvag/lucidfiles/internal/search"
	"github.com/raghavvag/lucidfiles/internal/vectorstore"
)

func BenchmarkMemoryStoreSearch(b *testing.B) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	_ = store.EnsureCollection(ctx, 384)

	points := make([]vectorstore.Point, 1000)
	for i := range points {
		vec := make([]float32, 384)
		vec[0] = float32(i) / 1000
		points[i] = vectorstore.Point{
			ID:     string(rune('a' + i%26)),
			Vector: vec,
			Payload: map[string]any{
				vectorstore.PayloadFilePath: "bench.txt",
				"chunk":                     "benchmark chunk text",
				"chunk_index":                i,
			},
		}
	}
	_ = store.Upsert(ctx, points)

	query := make([]float32, 384)
	query[0] = 1.0
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Search(ctx, query, 10)
	}
}

func BenchmarkMockEmbedder_Embed(b *testing.B) {
	e := embedding.NewMockEmbedder(384)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Embed(ctx, "benchmark query text for embedding")
	}
}

func BenchmarkSearch_Search(b *testing.B) {
	ctx := context.Background()
	store := vectorstore.NewMemoryStore()
	_ = store.EnsureCollection(ctx, 8)
	embedder := embedding.NewMockEmbedder(8)
	searchCache := cache.NewMemoryCache(1<<20, 0)
	svc := search.New(embedder, store, searchCache, "mock", nil)

	vec, _ := embedder.Embed(ctx, "bench content")
	_ = store.Upsert(ctx, []vectorstore.Point{{
		ID:     "p1",
		Vector: vec,
		Payload: map[string]any{
			vectorstore.PayloadFilePath: "bench.txt",
			"chunk":                     "bench content",
			"chunk_index":               0,
		},
	}})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		searchCache.Clear()
		_, _ = svc.Search(ctx, "bench content", 10)
	}
}
