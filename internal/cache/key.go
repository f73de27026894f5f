package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// EmbeddingKey fingerprints an embedding cache lookup: the exact input
// string plus the model identifier, so switching models never collides
// with a stale vector.
func EmbeddingKey(modelID, text string) string {
	h := sha256.Sum256([]byte(modelID + "\x00" + text))
	return hex.EncodeToString(h[:])
}

// SearchKey fingerprints a search-cache lookup: the normalized query,
// top_k, an optional filter string, and the model identifier.
func SearchKey(modelID, normalizedQuery string, topK int, filter string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%s\x00%d\x00%s", modelID, normalizedQuery, topK, filter)))
	return hex.EncodeToString(h[:])
}
