// Package vectorstore abstracts the external vector database lucidfiles
// upserts chunk embeddings into and searches at query time. Two real
// backends (Qdrant over HTTP, Postgres/pgvector) and one in-process
// brute-force backend for tests share the Store interface.
package vectorstore

import "context"

// Point is a single chunk embedding ready to upsert. Payload mirrors the
// chunk plus file metadata, stored alongside the vector so search results
// carry enough context to answer without a second registry lookup.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a single search hit.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the external vector database contract. Implementations must
// treat Upsert as idempotent by ID so reindexing the same file with the
// same content never creates duplicate points.
type Store interface {
	// EnsureCollection creates the backing collection/table if it does not
	// already exist, sized for the given vector dimension.
	EnsureCollection(ctx context.Context, dimensions int) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// DeleteByFile removes every point whose payload's file_path matches.
	DeleteByFile(ctx context.Context, filePath string) error

	// Search returns the topK nearest points to query by cosine similarity.
	Search(ctx context.Context, query []float32, topK int) ([]ScoredPoint, error)

	// CountByFile returns how many points are currently stored for filePath.
	CountByFile(ctx context.Context, filePath string) (int, error)

	// ListByFile returns every point stored for filePath, in no particular
	// order; callers needing chunk order sort by the "chunk_index" payload
	// field themselves.
	ListByFile(ctx context.Context, filePath string) ([]ScoredPoint, error)

	Close() error
}

// PayloadFilePath is the payload key every backend filters DeleteByFile and
// CountByFile on.
const PayloadFilePath = "file_path"
