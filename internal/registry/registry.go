// Package registry is the local SQLite record of registered directories and
// the files discovered under them. It mirrors the vector store's contents
// closely enough to answer status queries without hitting the vector
// database, but the vector store remains the source of truth for chunk
// content.
package registry

import "time"

// Status is a file's position in the indexing lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusIndexed Status = "indexed"
	StatusFailed  Status = "failed"
)

// Directory is a registered root the watcher walks and monitors.
type Directory struct {
	ID      int64
	Path    string
	AddedAt time.Time
}

// FileRecord is one file discovered under a registered directory. The
// persisted schema is exactly path/dir_id/checksum/last_indexed/status;
// digest alone is enough to short-circuit a rescan (step 1 of index_file),
// so size and mtime are not tracked separately.
type FileRecord struct {
	Path        string
	DirID       int64
	Checksum    string
	Status      Status
	LastIndexed time.Time
}
