package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteRegistry persists directories and files in a two-table SQLite
// database (WAL mode, prepared statements) holding tracked-path metadata
// rather than document content.
type SQLiteRegistry struct {
	db *sql.DB
}

// Open creates or opens the registry database at dbPath, creating parent
// directories and the schema as needed.
func Open(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create registry directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize registry schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS directories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		added_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS files (
		path TEXT PRIMARY KEY,
		dir_id INTEGER NOT NULL,
		checksum TEXT,
		last_indexed TIMESTAMP,
		status TEXT NOT NULL DEFAULT 'pending',
		FOREIGN KEY (dir_id) REFERENCES directories(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_files_dir_id ON files(dir_id);
	CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);
	`
	_, err := db.Exec(schema)
	return err
}

// AddDirectory registers path, returning the existing record if it is
// already registered.
func (r *SQLiteRegistry) AddDirectory(ctx context.Context, path string) (Directory, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO directories (path) VALUES (?) ON CONFLICT(path) DO NOTHING`, path)
	if err != nil {
		return Directory{}, fmt.Errorf("insert directory: %w", err)
	}
	return r.GetDirectory(ctx, path)
}

// GetDirectory returns the directory record for path.
func (r *SQLiteRegistry) GetDirectory(ctx context.Context, path string) (Directory, error) {
	var d Directory
	err := r.db.QueryRowContext(ctx,
		`SELECT id, path, added_at FROM directories WHERE path = ?`, path,
	).Scan(&d.ID, &d.Path, &d.AddedAt)
	if err == sql.ErrNoRows {
		return Directory{}, fmt.Errorf("directory not registered: %s", path)
	}
	return d, err
}

// ListDirectories returns every registered directory.
func (r *SQLiteRegistry) ListDirectories(ctx context.Context) ([]Directory, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, path, added_at FROM directories ORDER BY added_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dirs []Directory
	for rows.Next() {
		var d Directory
		if err := rows.Scan(&d.ID, &d.Path, &d.AddedAt); err != nil {
			return nil, err
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// RemoveDirectory deletes a directory and, via ON DELETE CASCADE, every
// file record registered under it.
func (r *SQLiteRegistry) RemoveDirectory(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM directories WHERE path = ?`, path)
	return err
}

// UpsertFile inserts or updates a file record.
func (r *SQLiteRegistry) UpsertFile(ctx context.Context, f FileRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (path, dir_id, checksum, last_indexed, status)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			dir_id = excluded.dir_id,
			checksum = excluded.checksum,
			last_indexed = excluded.last_indexed,
			status = excluded.status`,
		f.Path, f.DirID, f.Checksum, nullTime(f.LastIndexed), string(f.Status),
	)
	return err
}

// GetFile returns the file record for path, or sql.ErrNoRows wrapped in a
// descriptive error when there isn't one.
func (r *SQLiteRegistry) GetFile(ctx context.Context, path string) (FileRecord, error) {
	var f FileRecord
	var status string
	var lastIndexed sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT path, dir_id, checksum, last_indexed, status FROM files WHERE path = ?`, path,
	).Scan(&f.Path, &f.DirID, &f.Checksum, &lastIndexed, &status)
	if err == sql.ErrNoRows {
		return FileRecord{}, fmt.Errorf("file not registered: %s: %w", path, err)
	}
	if err != nil {
		return FileRecord{}, err
	}
	f.Status = Status(status)
	if lastIndexed.Valid {
		f.LastIndexed = lastIndexed.Time
	}
	return f, nil
}

// FileExists reports whether path has a registry record, without the error
// noise of GetFile for a routine existence check.
func (r *SQLiteRegistry) FileExists(ctx context.Context, path string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM files WHERE path = ?`, path).Scan(&n)
	return n > 0, err
}

// ListFiles returns every file registered under dirID.
func (r *SQLiteRegistry) ListFiles(ctx context.Context, dirID int64) ([]FileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT path, dir_id, checksum, last_indexed, status FROM files WHERE dir_id = ? ORDER BY path`, dirID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

// ListAllFiles returns every file record, ordered by path, for diagnostic
// listing (paginated by the caller).
func (r *SQLiteRegistry) ListAllFiles(ctx context.Context, offset, limit int) ([]FileRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT path, dir_id, checksum, last_indexed, status FROM files ORDER BY path LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFiles(rows)
}

func scanFiles(rows *sql.Rows) ([]FileRecord, error) {
	var out []FileRecord
	for rows.Next() {
		var f FileRecord
		var status string
		var lastIndexed sql.NullTime
		if err := rows.Scan(&f.Path, &f.DirID, &f.Checksum, &lastIndexed, &status); err != nil {
			return nil, err
		}
		f.Status = Status(status)
		if lastIndexed.Valid {
			f.LastIndexed = lastIndexed.Time
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RemoveFile deletes a single file record.
func (r *SQLiteRegistry) RemoveFile(ctx context.Context, path string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, path)
	return err
}

// CountFiles returns the total number of registered files.
func (r *SQLiteRegistry) CountFiles(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&n)
	return n, err
}

// Close closes the underlying database connection.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
