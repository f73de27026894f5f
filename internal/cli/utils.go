// Package cli provides terminal output helpers for lucidfiles' CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/raghavvag/lucidfiles/internal/search"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact is one result per line, for piping into other tools.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes search hits to w in the given format.
func WriteSearchResults(w io.Writer, hits []search.Hit, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	case OutputCompact:
		writeSearchResultsCompact(w, hits)
		return nil
	default:
		writeSearchResultsText(w, hits)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, hits []search.Hit) {
	fmt.Fprintf(w, "\nFound %d result(s)\n\n", len(hits))
	for i, hit := range hits {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s (score %.4f)\n", i+1, hit.FileName, hit.Score)
		fmt.Fprintf(w, "%s  chunk %d\n\n", hit.FilePath, hit.ChunkIdx)
		fmt.Fprintf(w, "%s\n\n", Truncate(hit.Chunk, 300))
	}
}

func writeSearchResultsCompact(w io.Writer, hits []search.Hit) {
	for _, hit := range hits {
		fmt.Fprintf(w, "%.4f\t%s:%d\t%s\n", hit.Score, hit.FilePath, hit.ChunkIdx, TruncateWords(hit.Chunk, 20))
	}
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
