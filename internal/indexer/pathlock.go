package indexer

import "sync"

// pathLocks serializes index_file/reindex_file/remove_file calls for the
// same path while letting different paths proceed concurrently, using a
// map of per-path mutexes created lazily on first use.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-path mutex for path, creating it if needed, and
// returns a function that releases it.
func (p *pathLocks) Lock(path string) func() {
	p.mu.Lock()
	m, ok := p.locks[path]
	if !ok {
		m = &sync.Mutex{}
		p.locks[path] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
