package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Registry.DatabasePath == "" {
		cfg.Registry.DatabasePath = "/usr/local/var/lucidfiles/data/registry.db"
	}
	if cfg.Embedding.Backend == "" {
		cfg.Embedding.Backend = "onnx"
	}
	if cfg.Embedding.ModelID == "" {
		cfg.Embedding.ModelID = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/lucidfiles/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.WorkerPool == 0 {
		cfg.Embedding.WorkerPool = 8
	}
	if cfg.Chunk.Size == 0 {
		cfg.Chunk.Size = 800
	}
	if cfg.Chunk.Overlap == 0 {
		cfg.Chunk.Overlap = 120
	}
	if cfg.Cache.EmbeddingSizeMB == 0 {
		cfg.Cache.EmbeddingSizeMB = 512
	}
	if cfg.Cache.EmbeddingTTLSecond == 0 {
		cfg.Cache.EmbeddingTTLSecond = 3600
	}
	if cfg.Cache.SearchSizeMB == 0 {
		cfg.Cache.SearchSizeMB = 128
	}
	if cfg.Cache.SearchTTLSecond == 0 {
		cfg.Cache.SearchTTLSecond = 1800
	}
	if cfg.VectorStore.Kind == "" {
		cfg.VectorStore.Kind = "qdrant"
	}
	if cfg.VectorStore.URL == "" {
		cfg.VectorStore.URL = "http://localhost:6333"
	}
	if cfg.VectorStore.CollectionName == "" {
		cfg.VectorStore.CollectionName = "lucidfiles"
	}
	if cfg.VectorStore.MaxTopK == 0 {
		cfg.VectorStore.MaxTopK = 8
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{
			".txt", ".md", ".rst", ".log", ".csv", ".json",
			".py", ".js", ".ts", ".go",
			".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods",
			".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff",
		}
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 400
	}
	// Recursive defaults to true when unset (nil).
	if cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.OCR.DPI == 0 {
		cfg.OCR.DPI = 150
	}
	if cfg.OCR.PSM == 0 {
		cfg.OCR.PSM = 3 // fully automatic page segmentation, no OSD
	}
	if cfg.OCR.Lang == "" {
		cfg.OCR.Lang = "eng"
	}
	if cfg.Answer.Model == "" {
		cfg.Answer.Model = "gpt-4o-mini"
	}
}
