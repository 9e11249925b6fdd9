package ckg

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hazyhaar/goclode-mcp/internal/core"
)

// Registry hands out one shared *Index per project root, bounding the
// number of concurrently open SQLite handles with an LRU eviction policy.
// CKG handles outlive individual sessions that share the same root.
type Registry struct {
	mu         sync.Mutex
	storageDir string
	engine     *core.Engine
	cache      *lru.Cache[string, *Index]
}

// NewRegistry creates a registry that stores project databases under
// storageDir/ckg and records access times in engine for retention sweeps.
func NewRegistry(storageDir string, engine *core.Engine, maxOpen int) (*Registry, error) {
	r := &Registry{storageDir: storageDir, engine: engine}

	cache, err := lru.NewWithEvict[string, *Index](maxOpen, func(_ string, idx *Index) {
		idx.Close()
	})
	if err != nil {
		return nil, err
	}
	r.cache = cache
	return r, nil
}

// Get returns the index for root, opening and syncing it on first access.
func (r *Registry) Get(root string) (*Index, error) {
	hash := ProjectHash(root)

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.cache.Get(hash); ok {
		if r.engine != nil {
			_ = r.engine.TouchProject(hash, root, idx.dbPath)
		}
		return idx, nil
	}

	dbPath := filepath.Join(r.storageDir, "ckg", hash+".sqlite")
	idx, err := Open(root, dbPath)
	if err != nil {
		return nil, err
	}
	if err := idx.SyncCodebase(); err != nil {
		idx.Close()
		return nil, err
	}

	// Supplement the on-open sync with a best-effort live-resync watcher
	// for long-running sessions: fsnotify only observes root's immediate
	// entries (no recursive watch), so this catches new/changed top-level
	// files between syncs without replacing sync_codebase as the source
	// of truth.
	if r.engine != nil {
		if err := r.engine.WatchFile(root, func() {
			idx.SyncCodebase()
		}); err != nil {
			// Non-fatal: the index still works, just without live resync.
		}
	}

	r.cache.Add(hash, idx)
	if r.engine != nil {
		_ = r.engine.TouchProject(hash, root, dbPath)
	}
	return idx, nil
}

// Close shuts down every open index held by the registry. Purge triggers
// the cache's eviction callback for each entry, which closes its *Index.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}

// Sweep deletes on-disk databases for projects unaccessed within
// retention. It runs once at server start, before a Registry is created;
// it does not consult any Registry's cache of open handles.
func Sweep(storageDir string, engine *core.Engine, retention time.Duration) error {
	stale, err := engine.StaleProjects(retention)
	if err != nil {
		return err
	}
	for _, dbPath := range stale {
		if filepath.Dir(dbPath) != filepath.Join(storageDir, "ckg") {
			continue
		}
		_ = os.Remove(dbPath)
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")

		hash := strings.TrimSuffix(filepath.Base(dbPath), ".sqlite")
		_ = engine.ForgetProject(hash)
	}
	return nil
}
