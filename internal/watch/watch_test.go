package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raghavvag/lucidfiles/internal/indexer"
)

type fakeIndexer struct {
	mu        sync.Mutex
	indexed   []string
	reindexed []string
	removed   []string
}

func (f *fakeIndexer) IndexFile(ctx context.Context, path string) (indexer.Result, error) {
	f.mu.Lock()
	f.indexed = append(f.indexed, path)
	f.mu.Unlock()
	return indexer.Result{Outcome: "indexed"}, nil
}

func (f *fakeIndexer) ReindexFile(ctx context.Context, path string) (indexer.Result, error) {
	f.mu.Lock()
	f.reindexed = append(f.reindexed, path)
	f.mu.Unlock()
	return indexer.Result{Outcome: "indexed"}, nil
}

func (f *fakeIndexer) RemoveFile(ctx context.Context, path string) (indexer.RemoveResult, error) {
	f.mu.Lock()
	f.removed = append(f.removed, path)
	f.mu.Unlock()
	return indexer.RemoveResult{FilePath: path}, nil
}

func (f *fakeIndexer) snapshot() (indexed, reindexed, removed []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.indexed...), append([]string(nil), f.reindexed...), append([]string(nil), f.removed...)
}

// fakeRegistry reports a path as existing once it has been seen, letting
// tests exercise the create-vs-modify routing decision deterministically.
type fakeRegistry struct {
	mu    sync.Mutex
	known map[string]bool
}

func newFakeRegistry() *fakeRegistry { return &fakeRegistry{known: make(map[string]bool)} }

func (r *fakeRegistry) FileExists(ctx context.Context, path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known[path], nil
}

func (r *fakeRegistry) markKnown(path string) {
	r.mu.Lock()
	r.known[path] = true
	r.mu.Unlock()
}

func TestManager_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndexer{}
	reg := newFakeRegistry()

	m := New(nil, []string{".txt"}, true, idx, reg, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	if err := m.AddDirectory(ctx, dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := m.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}

	if err := m.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(m.Directories()) != 0 {
		t.Errorf("after remove: %v", m.Directories())
	}
}

func TestManager_CreateRoutesToIndexFile(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndexer{}
	reg := newFakeRegistry()

	m := New([]string{dir}, []string{".txt"}, true, idx, reg, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	fPath := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(fPath, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	indexed, _, _ := idx.snapshot()
	if len(indexed) < 1 {
		t.Errorf("expected at least one IndexFile call, got %v", indexed)
	}
}

func TestManager_ModifyRoutesToReindexFile(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndexer{}
	reg := newFakeRegistry()
	fPath := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(fPath, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	// Pre-register the path so the next write looks like a modify.
	reg.markKnown(fPath)

	m := New([]string{dir}, []string{".txt"}, true, idx, reg, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	if err := os.WriteFile(fPath, []byte("updated content"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	_, reindexed, _ := idx.snapshot()
	if len(reindexed) < 1 {
		t.Errorf("expected at least one ReindexFile call, got snapshot reindexed=%v", reindexed)
	}
}

func TestManager_DeleteWinsOverPendingModify(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndexer{}
	reg := newFakeRegistry()
	fPath := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(fPath, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	reg.markKnown(fPath)

	m := New(nil, []string{".txt"}, true, idx, reg, WithDebounce(200*time.Millisecond))

	// Exercise schedule() directly: a modify followed immediately by a
	// remove, within the debounce window, must fire as a remove only.
	m.schedule(context.Background(), fPath, actionReindex)
	m.schedule(context.Background(), fPath, actionRemove)
	time.Sleep(350 * time.Millisecond)

	_, reindexed, removed := idx.snapshot()
	if len(reindexed) != 0 {
		t.Errorf("expected the pending reindex to be superseded, got %v", reindexed)
	}
	if len(removed) != 1 {
		t.Errorf("expected exactly one remove dispatch, got %v", removed)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{".txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestManager_HandleNewDirectory_indexesFilesInNewFolder(t *testing.T) {
	dir := t.TempDir()
	idx := &fakeIndexer{}
	reg := newFakeRegistry()

	m := New([]string{dir}, []string{".txt", ".md"}, true, idx, reg, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := m.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	newFolder := filepath.Join(dir, "new-folder")
	if err := os.MkdirAll(newFolder, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(newFolder, "doc1.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(newFolder, "doc2.md"), []byte("world"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(newFolder, "ignore.xyz"), []byte("skip"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(600 * time.Millisecond)

	indexed, _, _ := idx.snapshot()
	txtFound, mdFound := false, false
	for _, p := range indexed {
		if strings.HasSuffix(p, "doc1.txt") {
			txtFound = true
		}
		if strings.HasSuffix(p, "doc2.md") {
			mdFound = true
		}
		if strings.HasSuffix(p, "ignore.xyz") {
			t.Errorf("ignore.xyz should not be indexed")
		}
	}
	if !txtFound || !mdFound {
		t.Errorf("expected doc1.txt and doc2.md to be indexed, got %v", indexed)
	}
}

func TestManager_Start_createsMissingRootDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "watch", "me")
	_ = os.RemoveAll(filepath.Join(base, "watch"))

	m := New([]string{root}, []string{".txt"}, true, &fakeIndexer{}, newFakeRegistry())
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}
