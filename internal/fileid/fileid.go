// Package fileid provides deterministic identifiers derived from a file's
// path, content digest, and chunk position, so that reindexing the same
// content always produces the same vector store point ids.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
)

const prefix = "file:"

// pointNamespace is the fixed namespace PointID derives chunk UUIDs under,
// keeping them deterministic across reindexes of the same content.
var pointNamespace = uuid.MustParse("6f1c1b0a-6e1e-4b1a-9c1d-2f6a7d6b9a10")

// FileDocID returns a stable registry key for the given absolute path.
// Same path always yields the same ID.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return prefix + hex.EncodeToString(hash[:])
}

// PointID derives the vector store point id for one chunk of one file
// version. It is a pure function of (path, digest, chunkIndex): reindexing
// unchanged content reproduces the same ids, so upserts overwrite
// themselves instead of accumulating orphans. The id is formatted as a
// UUID (deterministic, SHA1-derived via uuid.NewSHA1) since Qdrant point
// ids must be an unsigned integer or a UUID.
func PointID(absolutePath, digest string, chunkIndex int) string {
	normalized := filepath.Clean(absolutePath)
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(digest))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(chunkIndex)))
	return uuid.NewSHA1(pointNamespace, h.Sum(nil)).String()
}
