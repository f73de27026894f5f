// Package watch turns fsnotify filesystem events into index/reindex/remove
// operations, routing create and modify events to different Indexer methods
// instead of funneling both into one callback.
package watch

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/raghavvag/lucidfiles/internal/indexer"
)

const defaultDebounce = 400 * time.Millisecond

// action is the pending operation for a debounced path.
type action int

const (
	actionIndex action = iota
	actionReindex
	actionRemove
)

// Indexer is the subset of *indexer.Indexer the watcher drives.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (indexer.Result, error)
	ReindexFile(ctx context.Context, path string) (indexer.Result, error)
	RemoveFile(ctx context.Context, path string) (indexer.RemoveResult, error)
}

// FileExistsChecker reports whether a path already has a registry record,
// used to tell a filesystem create event from one fsnotify reports as
// Write (many editors save by create-then-rename).
type FileExistsChecker interface {
	FileExists(ctx context.Context, path string) (bool, error)
}

// Manager watches a set of registered directories and dispatches debounced
// create/modify/delete events to the Indexer.
type Manager struct {
	extensions []string
	recursive  bool
	debounce   time.Duration
	indexer    Indexer
	registry   FileExistsChecker
	logger     *zap.Logger

	mu          sync.Mutex
	roots       []string
	rootPaths   map[string][]string
	watcher     *fsnotify.Watcher
	debounceMap map[string]*pendingEvent
	started     bool
	done        chan struct{}
	stopOnce    sync.Once
}

type pendingEvent struct {
	timer  *time.Timer
	action action
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.logger = l } }

func WithDebounce(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// New builds a Manager. roots are initial directories to watch;
// extensions filters which files trigger events (empty = all).
func New(roots []string, extensions []string, recursive bool, indexer Indexer, registry FileExistsChecker, opts ...Option) *Manager {
	m := &Manager{
		extensions:  extensions,
		recursive:   recursive,
		debounce:    defaultDebounce,
		indexer:     indexer,
		registry:    registry,
		roots:       roots,
		rootPaths:   make(map[string][]string),
		debounceMap: make(map[string]*pendingEvent),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
// Starting an already-started Manager is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.watcher = w
	m.started = true
	for _, root := range m.roots {
		if err := m.addRootLocked(root); err != nil {
			_ = m.watcher.Close()
			m.watcher = nil
			m.started = false
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()
	go m.run(ctx)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-m.done:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleEvent(ctx, ev)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && m.logger != nil {
				m.logger.Debug("watch error", zap.Error(err))
			}
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	if !m.underRoot(path) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			m.handleNewDirectory(ctx, path)
			return
		}
		if os.IsNotExist(err) {
			// Tolerate events whose paths no longer exist by the time
			// they are processed.
			return
		}
		if !m.matchExtension(path) {
			return
		}
		exists, _ := m.registry.FileExists(ctx, path)
		if exists {
			m.schedule(ctx, path, actionReindex)
		} else {
			m.schedule(ctx, path, actionIndex)
		}
	case ev.Op&fsnotify.Remove != 0:
		if !m.matchExtension(path) {
			return
		}
		m.schedule(ctx, path, actionRemove)
	}
}

// schedule debounces path, keeping delete-wins semantics: once a remove is
// pending, a later create/modify within the window never overrides it.
func (m *Manager) schedule(ctx context.Context, path string, act action) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.debounceMap[path]; ok {
		if existing.action == actionRemove && act != actionRemove {
			existing.timer.Reset(m.debounce)
			return
		}
		existing.timer.Stop()
	}

	pe := &pendingEvent{action: act}
	pe.timer = time.AfterFunc(m.debounce, func() {
		m.mu.Lock()
		delete(m.debounceMap, path)
		m.mu.Unlock()
		m.fire(ctx, path, act)
	})
	m.debounceMap[path] = pe
}

func (m *Manager) fire(ctx context.Context, path string, act action) {
	var err error
	switch act {
	case actionIndex:
		_, err = m.indexer.IndexFile(ctx, path)
	case actionReindex:
		_, err = m.indexer.ReindexFile(ctx, path)
	case actionRemove:
		_, err = m.indexer.RemoveFile(ctx, path)
	}
	if err != nil && m.logger != nil {
		m.logger.Debug("watch dispatch failed", zap.String("path", path), zap.Error(err))
	}
}

func (m *Manager) handleNewDirectory(ctx context.Context, dirPath string) {
	m.mu.Lock()
	recursive := m.recursive
	watcher := m.watcher
	m.mu.Unlock()
	if watcher == nil {
		return
	}

	if recursive {
		_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				_ = watcher.Add(path)
			}
			return nil
		})
	} else {
		_ = watcher.Add(dirPath)
	}
	m.syncDirectory(ctx, dirPath)
}

func (m *Manager) underRoot(path string) bool {
	m.mu.Lock()
	roots := append([]string(nil), m.roots...)
	m.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		rootClean := filepath.Clean(root)
		if rootClean == clean || inDir(rootClean, clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (m *Manager) matchExtension(path string) bool {
	return matchExtension(path, m.extensions)
}

func matchExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if len(extensions) == 0 {
		return true
	}
	for _, e := range extensions {
		if strings.EqualFold(strings.TrimPrefix(e, "."), strings.TrimPrefix(ext, ".")) {
			return true
		}
	}
	return false
}

// AddDirectory starts watching root, syncing its existing files through
// index_file when syncExisting is true.
func (m *Manager) AddDirectory(ctx context.Context, root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.watcher == nil {
		m.mu.Unlock()
		return nil
	}
	for _, r := range m.roots {
		if filepath.Clean(r) == filepath.Clean(abs) {
			m.mu.Unlock()
			return nil
		}
	}
	if err := m.addRootLocked(abs); err != nil {
		m.mu.Unlock()
		return err
	}
	m.roots = append(m.roots, abs)
	m.mu.Unlock()

	if syncExisting {
		go m.syncDirectory(ctx, abs)
	}
	return nil
}

func (m *Manager) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	var paths []string
	add := func(path string, d fs.DirEntry) error {
		if !d.IsDir() {
			return nil
		}
		if err := m.watcher.Add(path); err != nil {
			return err
		}
		paths = append(paths, path)
		return nil
	}
	if m.recursive {
		if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			return add(path, d)
		}); err != nil {
			return err
		}
	} else {
		if err := m.watcher.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	m.rootPaths[root] = paths
	return nil
}

func (m *Manager) syncDirectory(ctx context.Context, root string) {
	m.mu.Lock()
	exts := append([]string(nil), m.extensions...)
	m.mu.Unlock()
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if matchExtension(path, exts) {
			_, indexErr := m.indexer.IndexFile(ctx, path)
			if indexErr != nil && m.logger != nil {
				m.logger.Debug("watch sync index failed", zap.String("path", path), zap.Error(indexErr))
			}
		}
		return nil
	})
}

// RemoveDirectory stops watching root. It does not remove indexed data.
func (m *Manager) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watcher == nil {
		return nil
	}
	idx := -1
	for i, r := range m.roots {
		if filepath.Clean(r) == abs {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for _, p := range m.rootPaths[abs] {
		_ = m.watcher.Remove(p)
	}
	delete(m.rootPaths, abs)
	m.roots = append(m.roots[:idx], m.roots[idx+1:]...)
	return nil
}

// Directories returns the currently watched root directories.
func (m *Manager) Directories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.roots...)
}

// Stop stops watching and releases resources. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started || m.watcher == nil {
		m.mu.Unlock()
		return
	}
	for path, pe := range m.debounceMap {
		pe.timer.Stop()
		delete(m.debounceMap, path)
	}
	_ = m.watcher.Close()
	m.watcher = nil
	m.started = false
	m.mu.Unlock()
	m.stopOnce.Do(func() { close(m.done) })
}
