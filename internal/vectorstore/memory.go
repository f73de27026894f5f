package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore is a brute-force cosine-similarity store for tests and small
// datasets: a linear scan over in-memory vectors, with a payload map per
// point so DeleteByFile and CountByFile can filter without a separate
// registry.
type MemoryStore struct {
	mu         sync.RWMutex
	dimensions int
	ids        []string
	vectors    [][]float32
	payloads   []map[string]any
}

// NewMemoryStore returns an empty store. EnsureCollection fixes the
// dimension on first call; subsequent calls with a different dimension
// fail.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) EnsureCollection(ctx context.Context, dimensions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimensions != 0 && m.dimensions != dimensions {
		return fmt.Errorf("vectorstore: collection already has dimension %d, requested %d", m.dimensions, dimensions)
	}
	m.dimensions = dimensions
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		if m.dimensions != 0 && len(p.Vector) != m.dimensions {
			return fmt.Errorf("vectorstore: vector dimension %d, expected %d", len(p.Vector), m.dimensions)
		}
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		if idx := m.indexOfLocked(p.ID); idx >= 0 {
			m.vectors[idx] = vec
			m.payloads[idx] = p.Payload
			continue
		}
		m.ids = append(m.ids, p.ID)
		m.vectors = append(m.vectors, vec)
		m.payloads = append(m.payloads, p.Payload)
	}
	return nil
}

func (m *MemoryStore) indexOfLocked(id string) int {
	for i, existing := range m.ids {
		if existing == id {
			return i
		}
	}
	return -1
}

func (m *MemoryStore) DeleteByFile(ctx context.Context, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.ids))
	vectors := make([][]float32, 0, len(m.vectors))
	payloads := make([]map[string]any, 0, len(m.payloads))
	for i, p := range m.payloads {
		if fp, _ := p[PayloadFilePath].(string); fp == filePath {
			continue
		}
		ids = append(ids, m.ids[i])
		vectors = append(vectors, m.vectors[i])
		payloads = append(payloads, m.payloads[i])
	}
	m.ids, m.vectors, m.payloads = ids, vectors, payloads
	return nil
}

func (m *MemoryStore) Search(ctx context.Context, query []float32, topK int) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if topK <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	scored := make([]ScoredPoint, len(m.ids))
	for i, vec := range m.vectors {
		scored[i] = ScoredPoint{ID: m.ids[i], Score: cosine(query, vec), Payload: m.payloads[i]}
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

func (m *MemoryStore) CountByFile(ctx context.Context, filePath string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, p := range m.payloads {
		if fp, _ := p[PayloadFilePath].(string); fp == filePath {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListByFile(ctx context.Context, filePath string) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ScoredPoint
	for i, p := range m.payloads {
		if fp, _ := p[PayloadFilePath].(string); fp == filePath {
			out = append(out, ScoredPoint{ID: m.ids[i], Payload: p})
		}
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i] * b[i])
	}
	return math.Max(-1, math.Min(1, dot))
}
