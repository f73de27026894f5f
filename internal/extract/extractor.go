// Package extract provides text extraction from various document formats,
// with an OCR fallback for image-only PDF pages and standalone images.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raghavvag/lucidfiles/internal/ocr"
)

// Result is a parser outcome: either Text was extracted, or the format is
// Unsupported (the caller should skip the file silently, not fail it).
type Result struct {
	Text        string
	Unsupported bool
}

// Extractor extracts plain text from document files, using engine for any
// format that requires OCR.
type Extractor struct {
	engine ocr.Engine
}

// NewExtractor returns a new Extractor backed by the given OCR engine.
func NewExtractor(engine ocr.Engine) *Extractor {
	return &Extractor{engine: engine}
}

var supportedExtensions = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".log": true, ".csv": true,
	".json": true, ".py": true, ".js": true, ".ts": true, ".go": true,
	".pdf": true, ".docx": true, ".odt": true,
	".xlsx": true, ".pptx": true, ".odp": true, ".ods": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true,
}

// Supported reports whether ext (including the leading dot, any case) has a
// registered parser.
func Supported(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// Supported reports whether ext (including the leading dot, any case) has a
// registered parser. Method form for callers holding an *Extractor.
func (e *Extractor) Supported(ext string) bool {
	return Supported(ext)
}

// Extract reads the file at path and returns its text content, or an
// Unsupported result if the extension has no registered parser. Any other
// failure is returned as an error (a ParseFailure at the caller).
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(ctx, content, ext)
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf") and is matched
// case-insensitively.
func (e *Extractor) ExtractBytes(ctx context.Context, content []byte, ext string) (Result, error) {
	ext = strings.ToLower(ext)
	if !Supported(ext) {
		return Result{Unsupported: true}, nil
	}
	switch ext {
	case ".pdf":
		text, err := extractPDF(ctx, content, e.engine)
		return Result{Text: text}, err
	case ".docx", ".odt":
		text, err := extractDOCX(content)
		return Result{Text: text}, err
	case ".xlsx":
		text, err := extractExcel(content)
		return Result{Text: text}, err
	case ".pptx":
		text, err := extractPPTX(content)
		return Result{Text: text}, err
	case ".odp":
		text, err := extractODP(content)
		return Result{Text: text}, err
	case ".ods":
		text, err := extractODS(content)
		return Result{Text: text}, err
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
		text, err := extractImage(ctx, content, ext, e.engine)
		return Result{Text: text}, err
	default:
		text, err := extractPlain(content)
		return Result{Text: text}, err
	}
}
