package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/raghavvag/lucidfiles/internal/answer"
	"github.com/raghavvag/lucidfiles/internal/cache"
	"github.com/raghavvag/lucidfiles/internal/chunk"
	"github.com/raghavvag/lucidfiles/internal/config"
	"github.com/raghavvag/lucidfiles/internal/embedding"
	"github.com/raghavvag/lucidfiles/internal/extract"
	"github.com/raghavvag/lucidfiles/internal/indexer"
	"github.com/raghavvag/lucidfiles/internal/registry"
	"github.com/raghavvag/lucidfiles/internal/search"
	"github.com/raghavvag/lucidfiles/internal/vectorstore"
)

func newTestServer(t *testing.T) (*Server, *registry.SQLiteRegistry, string) {
	t.Helper()
	dir := t.TempDir()
	reg, err := registry.Open(filepath.Join(dir, "registry.db"))
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	store := vectorstore.NewMemoryStore()
	embedder := embedding.NewMockEmbedder(8)
	embeddingCache := cache.NewMemoryCache(1<<20, 0)
	searchCache := cache.NewMemoryCache(1<<20, 0)
	svc := embedding.NewService(embedder, embeddingCache, "mock")
	extractor := extract.NewExtractor(nil)
	chunker := chunk.New(20, 4)

	dirIDFor := func(path string) (int64, error) {
		d, err := reg.AddDirectory(context.Background(), filepath.Dir(path))
		if err != nil {
			return 0, err
		}
		return d.ID, nil
	}

	idx := indexer.New(reg, svc, store, extractor, chunker, searchCache, dirIDFor, 0, nil)
	searchSvc := search.New(svc, store, searchCache, "mock", nil)

	cfg := &config.Config{}
	srv := New(idx, searchSvc, answer.NoopAnswerer{}, reg, store, embedder, embeddingCache, searchCache, nil, cfg, nil)
	return srv, reg, dir
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleIndexFile_IndexesAndSearches(t *testing.T) {
	srv, _, dir := newTestServer(t)
	router := srv.Router()

	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("the quick brown fox jumps over the lazy dog"), 0644); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, router, http.MethodPost, "/index-file", fileRequest{Path: path})
	if rec.Code != http.StatusOK {
		t.Fatalf("index-file status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var indexResp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &indexResp); err != nil {
		t.Fatal(err)
	}
	if indexResp["success"] != true || indexResp["chunksIndexed"].(float64) == 0 {
		t.Errorf("expected successful index with chunks, got %+v", indexResp)
	}

	rec = doRequest(t, router, http.MethodPost, "/search", searchRequest{Query: "quick brown fox", TopK: 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var searchResp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &searchResp); err != nil {
		t.Fatal(err)
	}
	results, _ := searchResp["results"].([]any)
	if len(results) == 0 {
		t.Errorf("expected at least one search result, got %+v", searchResp)
	}
}

func TestHandleIndexFile_MissingPathIsBadRequest(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodPost, "/index-file", fileRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleHealth_ReportsCounts(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ready" {
		t.Errorf("unexpected health response: %+v", resp)
	}
	modelInfo, ok := resp["model_info"].(map[string]any)
	if !ok {
		t.Fatalf("expected model_info object, got %+v", resp)
	}
	if modelInfo["is_loaded"] != true {
		t.Errorf("expected is_loaded=true, got %+v", modelInfo)
	}
}

func TestHandleRemoveFile_DropsIndexedContent(t *testing.T) {
	srv, _, dir := newTestServer(t)
	router := srv.Router()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("content to remove through the http layer"), 0644); err != nil {
		t.Fatal(err)
	}
	doRequest(t, router, http.MethodPost, "/index-file", fileRequest{Path: path})

	rec := doRequest(t, router, http.MethodDelete, "/remove-file?path="+path, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove-file status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, router, http.MethodGet, "/file-content?path="+path, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for removed file content, got %d", rec.Code)
	}
}

func TestHandleCacheClear_ThenStatsOK(t *testing.T) {
	srv, _, dir := newTestServer(t)
	router := srv.Router()
	path := filepath.Join(dir, "doc.txt")
	_ = os.WriteFile(path, []byte("some content for the cache stats test case"), 0644)
	doRequest(t, router, http.MethodPost, "/index-file", fileRequest{Path: path})
	doRequest(t, router, http.MethodPost, "/search", searchRequest{Query: "some content", TopK: 3})

	rec := doRequest(t, router, http.MethodPost, "/cache/clear", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cache/clear status = %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/cache/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cache/stats status = %d", rec.Code)
	}
}
