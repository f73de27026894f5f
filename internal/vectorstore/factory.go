package vectorstore

import (
	"context"
	"fmt"

	"github.com/raghavvag/lucidfiles/internal/config"
)

// New builds the configured Store and, for backends that need it, ensures
// the collection/table exists for the given vector dimension before
// returning.
func New(ctx context.Context, cfg config.VectorStoreConfig, dimensions int) (Store, error) {
	var store Store
	switch cfg.Kind {
	case "", "qdrant":
		store = NewQdrantStore(cfg.URL, cfg.APIKey, cfg.CollectionName)
	case "postgres":
		pg, err := NewPgvectorStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		store = pg
	case "memory":
		store = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown vector_store_kind: %q (supported: qdrant, postgres, memory)", cfg.Kind)
	}

	if err := store.EnsureCollection(ctx, dimensions); err != nil {
		return nil, err
	}
	return store, nil
}
