package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raghavvag/lucidfiles/internal/apperror"
)

// QdrantStore is a net/http REST client against Qdrant's collection/points
// API: vectors.size/distance on collection create, PUT .../points for
// upsert, POST .../points/search, POST .../points/delete with a file_path
// match filter, POST .../points/count.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
}

// NewQdrantStore builds a client against a running Qdrant instance at
// baseURL (e.g. "http://localhost:6333").
func NewQdrantStore(baseURL, apiKey, collection string) *QdrantStore {
	return &QdrantStore{
		baseURL:    baseURL,
		apiKey:     apiKey,
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (q *QdrantStore) EnsureCollection(ctx context.Context, dimensions int) error {
	existing, err := q.getCollection(ctx)
	if err == nil {
		size, _ := existing["vectors"].(map[string]any)["size"].(float64)
		if int(size) != dimensions {
			return apperror.Newf(apperror.KindConfigurationFailure,
				"qdrant collection %q has vector size %v, configured dimension is %d", q.collection, size, dimensions)
		}
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	_, err = q.doWithRetry(ctx, http.MethodPut, "/collections/"+q.collection, body)
	if err != nil {
		return apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("create collection %q: %w", q.collection, err))
	}
	return nil
}

func (q *QdrantStore) getCollection(ctx context.Context) (map[string]any, error) {
	resp, err := q.doWithRetry(ctx, http.MethodGet, "/collections/"+q.collection, nil)
	if err != nil {
		return nil, err
	}
	result, _ := resp["result"].(map[string]any)
	config, _ := result["config"].(map[string]any)
	params, _ := config["params"].(map[string]any)
	return params, nil
}

func (q *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	wire := make([]map[string]any, len(points))
	for i, p := range points {
		wire[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": wire}
	_, err := q.doWithRetry(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", body)
	if err != nil {
		return apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("upsert %d points: %w", len(points), err))
	}
	return nil
}

func (q *QdrantStore) DeleteByFile(ctx context.Context, filePath string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": PayloadFilePath, "match": map[string]any{"value": filePath}},
			},
		},
	}
	_, err := q.doWithRetry(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete?wait=true", body)
	if err != nil {
		return apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("delete by file %q: %w", filePath, err))
	}
	return nil
}

func (q *QdrantStore) Search(ctx context.Context, query []float32, topK int) ([]ScoredPoint, error) {
	body := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
		"with_vectors": false,
	}
	resp, err := q.doWithRetry(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", body)
	if err != nil {
		return nil, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("search: %w", err))
	}
	rawHits, _ := resp["result"].([]any)
	hits := make([]ScoredPoint, 0, len(rawHits))
	for _, raw := range rawHits {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		score, _ := m["score"].(float64)
		payload, _ := m["payload"].(map[string]any)
		hits = append(hits, ScoredPoint{ID: id, Score: score, Payload: payload})
	}
	return hits, nil
}

func (q *QdrantStore) CountByFile(ctx context.Context, filePath string) (int, error) {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": PayloadFilePath, "match": map[string]any{"value": filePath}},
			},
		},
		"exact": true,
	}
	resp, err := q.doWithRetry(ctx, http.MethodPost, "/collections/"+q.collection+"/points/count", body)
	if err != nil {
		return 0, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("count by file %q: %w", filePath, err))
	}
	result, _ := resp["result"].(map[string]any)
	count, _ := result["count"].(float64)
	return int(count), nil
}

func (q *QdrantStore) ListByFile(ctx context.Context, filePath string) ([]ScoredPoint, error) {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": PayloadFilePath, "match": map[string]any{"value": filePath}},
			},
		},
		"limit":        10000,
		"with_payload": true,
		"with_vectors": false,
	}
	resp, err := q.doWithRetry(ctx, http.MethodPost, "/collections/"+q.collection+"/points/scroll", body)
	if err != nil {
		return nil, apperror.New(apperror.KindVectorStoreFailure, fmt.Errorf("scroll by file %q: %w", filePath, err))
	}
	result, _ := resp["result"].(map[string]any)
	rawPoints, _ := result["points"].([]any)
	out := make([]ScoredPoint, 0, len(rawPoints))
	for _, raw := range rawPoints {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		payload, _ := m["payload"].(map[string]any)
		out = append(out, ScoredPoint{ID: id, Payload: payload})
	}
	return out, nil
}

func (q *QdrantStore) Close() error { return nil }

// doWithRetry performs the HTTP request with up to 3 attempts and bounded
// exponential backoff.
func (q *QdrantStore) doWithRetry(ctx context.Context, method, path string, body any) (map[string]any, error) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * 200 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		result, err := q.do(ctx, method, path, body)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (q *QdrantStore) do(ctx context.Context, method, path string, body any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("qdrant returned %d: %s", resp.StatusCode, string(data))
	}
	if len(data) == 0 {
		return map[string]any{}, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed, nil
}
