package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/raghavvag/lucidfiles/internal/answer"
	"github.com/raghavvag/lucidfiles/internal/apperror"
	"github.com/raghavvag/lucidfiles/internal/indexer"
)

type indexDirectoryRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIndexDirectory(w http.ResponseWriter, r *http.Request) {
	var req indexDirectoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, apperror.Newf(apperror.KindInputValidation, "path is required"))
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, apperror.New(apperror.KindInputValidation, err))
		return
	}
	if _, err := s.reg.AddDirectory(r.Context(), abs); err != nil {
		s.respondError(w, err)
		return
	}
	if s.watch != nil {
		_ = s.watch.AddDirectory(r.Context(), abs, false)
	}

	result, err := s.indexer.IndexDirectory(r.Context(), abs)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"filesProcessed": result.FilesProcessed,
		"chunksIndexed":  result.ChunksWritten,
		"totalFiles":     result.TotalFiles,
		"directory":      abs,
	})
}

type fileRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleIndexFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, apperror.Newf(apperror.KindInputValidation, "path is required"))
		return
	}
	result, err := s.indexer.IndexFile(r.Context(), req.Path)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resultResponse(result))
}

type fileResponse struct {
	Success       bool   `json:"success"`
	Checksum      string `json:"checksum"`
	Size          int64  `json:"size"`
	ChunksIndexed int    `json:"chunksIndexed"`
	FilePath      string `json:"filePath"`
	FileName      string `json:"fileName"`
	FileType      string `json:"fileType"`
	Reindexed     bool   `json:"reindexed,omitempty"`
	Warning       string `json:"warning,omitempty"`
}

func resultResponse(result indexer.Result) fileResponse {
	return fileResponse{
		Success:       true,
		Checksum:      result.Checksum,
		Size:          result.Size,
		ChunksIndexed: result.ChunksIndexed,
		FilePath:      result.FilePath,
		FileName:      result.FileName,
		FileType:      result.FileType,
		Reindexed:     result.Reindexed,
		Warning:       result.Warning,
	}
}

func (s *Server) handleReindexFile(w http.ResponseWriter, r *http.Request) {
	var req fileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		s.respondError(w, apperror.Newf(apperror.KindInputValidation, "path is required"))
		return
	}
	result, err := s.indexer.ReindexFile(r.Context(), req.Path)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resultResponse(result))
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		var body fileRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, apperror.Newf(apperror.KindInputValidation, "path is required"))
		return
	}
	result, err := s.indexer.RemoveFile(r.Context(), path)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"chunksRemoved": result.ChunksRemoved,
		"filePath":      result.FilePath,
		"fileName":      result.FileName,
	})
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperror.Newf(apperror.KindInputValidation, "invalid request body"))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}
	topK = s.clampTopK(topK)
	hits, err := s.search.Search(r.Context(), req.Query, topK)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"query":         req.Query,
		"top_k":         topK,
		"results":       hits,
		"total_results": len(hits),
	})
}

// clampTopK enforces cfg.VectorStore.MaxTopK as an upper bound on any
// search request; a non-positive MaxTopK (the zero value of an
// un-defaulted config) leaves topK unclamped.
func (s *Server) clampTopK(topK int) int {
	if s.cfg == nil || s.cfg.VectorStore.MaxTopK <= 0 {
		return topK
	}
	if topK > s.cfg.VectorStore.MaxTopK {
		return s.cfg.VectorStore.MaxTopK
	}
	return topK
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		s.respondError(w, apperror.Newf(apperror.KindInputValidation, "question is required"))
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}
	topK = s.clampTopK(topK)
	hits, err := s.search.Search(r.Context(), req.Question, topK)
	if err != nil {
		s.respondError(w, err)
		return
	}
	contextText := answer.AssembleContext(hits)
	text, err := s.answerer.Answer(r.Context(), req.Question, contextText)
	if err != nil {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"answer":  "",
			"results": hits,
			"warning": err.Error(),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"answer": text, "results": hits})
}

// healthProbePath is an arbitrary key queried against the vector store to
// exercise connectivity without depending on any real indexed content.
const healthProbePath = "__lucidfiles_health_probe__"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	modelLoaded := s.embedder != nil
	vectorStoreReady := false
	if s.store != nil {
		if _, err := s.store.CountByFile(r.Context(), healthProbePath); err == nil {
			vectorStoreReady = true
		}
	}

	status := "ready"
	statusCode := http.StatusOK
	switch {
	case !modelLoaded:
		status = "model_not_loaded"
		statusCode = http.StatusInternalServerError
	case !vectorStoreReady:
		status = "vector_store_unreachable"
		statusCode = http.StatusInternalServerError
	}

	modelInfo := map[string]any{
		"model_name":      "",
		"vector_size":     0,
		"is_loaded":       modelLoaded,
		"collection_name": "",
	}
	if s.cfg != nil {
		modelInfo["model_name"] = s.cfg.Embedding.ModelID
		modelInfo["collection_name"] = s.cfg.VectorStore.CollectionName
	}
	if modelLoaded {
		modelInfo["vector_size"] = s.embedder.Dimensions()
	}

	resp := map[string]any{"status": status, "model_info": modelInfo}
	if count, err := s.reg.CountFiles(r.Context()); err == nil {
		resp["files_indexed"] = count
	}
	if dirs, err := s.reg.ListDirectories(r.Context()); err == nil {
		resp["directories_watched"] = len(dirs)
	}
	s.respondJSON(w, statusCode, resp)
}

func (s *Server) handleIndexedFiles(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	files, err := s.reg.ListAllFiles(r.Context(), offset, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"files": files, "offset": offset, "limit": limit})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{}
	if s.embeddingCache != nil {
		resp["embedding_cache"] = s.embeddingCache.Stats()
	}
	if s.searchCache != nil {
		resp["search_cache"] = s.searchCache.Stats()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.embeddingCache != nil {
		s.embeddingCache.Clear()
	}
	if s.searchCache != nil {
		s.searchCache.Clear()
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, apperror.Newf(apperror.KindInputValidation, "path is required"))
		return
	}
	points, err := s.store.ListByFile(r.Context(), path)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if len(points) == 0 {
		s.respondError(w, apperror.Newf(apperror.KindNotFound, "no indexed content for %s", path))
		return
	}
	sort.Slice(points, func(i, j int) bool {
		return asInt(points[i].Payload["chunk_index"]) < asInt(points[j].Payload["chunk_index"])
	})
	var content string
	for i, p := range points {
		if i > 0 {
			content += "\n"
		}
		if chunk, ok := p.Payload["chunk"].(string); ok {
			content += chunk
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"path": path, "content": content, "chunks": len(points)})
}

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

func pageParams(r *http.Request) (offset, limit int) {
	limit = 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			offset = n
		}
	}
	return offset, limit
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	kind := apperror.KindOf(err)
	if kind.Reportable() && s.logger != nil {
		s.logger.Error("request failed", zap.Error(err), zap.String("kind", kind.String()))
	}
	body := map[string]any{"error": err.Error()}
	if warning := apperror.WarningOf(err); warning != "" {
		body["warning"] = warning
	}
	s.respondJSON(w, kind.HTTPStatus(), body)
}
