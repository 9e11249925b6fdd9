// Package core provides the SQL-driven hot-reload engine underlying the
// tool server's operator-facing configuration and diagnostics. All tunable
// knobs (shell timeout, output caps, CKG retention) and the module/hook
// registry used by internal/diagnostics live in one SQLite database.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "modernc.org/sqlite"
)

// Engine is the core SQL engine with hot-reload capabilities.
type Engine struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	watchers []func(event string)
	ctx      context.Context
	cancel   context.CancelFunc

	configVersion int64
	reloadCh      chan struct{}
}

// NewEngine opens (creating if needed) the engine database at dbPath.
func NewEngine(dbPath string) (*Engine, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		db:       db,
		dbPath:   dbPath,
		ctx:      ctx,
		cancel:   cancel,
		reloadCh: make(chan struct{}, 1),
	}

	if err := e.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	go e.watchConfig()

	return e, nil
}

// DB returns the underlying connection for direct queries.
func (e *Engine) DB() *sql.DB { return e.db }

// Path returns the database file path.
func (e *Engine) Path() string { return e.dbPath }

func (e *Engine) initSchema() error {
	schema := `
	-- ============================================================
	-- CONFIG: Hot-reloadable configuration
	-- ============================================================
	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		type TEXT DEFAULT 'string' CHECK (type IN ('string', 'int', 'bool', 'json')),
		description TEXT,
		updated_at INTEGER DEFAULT (strftime('%s', 'now')),
		version INTEGER DEFAULT 1
	);

	CREATE TRIGGER IF NOT EXISTS config_version_bump
	AFTER UPDATE ON config
	BEGIN
		UPDATE config SET version = version + 1, updated_at = strftime('%s', 'now') WHERE key = NEW.key;
	END;

	-- ============================================================
	-- MODULES / MODULE_HOOKS: extensible diagnostics registry
	-- ============================================================
	CREATE TABLE IF NOT EXISTS modules (
		module_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		version TEXT DEFAULT '1.0.0',
		enabled INTEGER DEFAULT 1,
		priority INTEGER DEFAULT 100,
		config TEXT DEFAULT '{}',
		schema_sql TEXT,
		created_at INTEGER DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS module_hooks (
		hook_id TEXT PRIMARY KEY,
		module_id TEXT NOT NULL,
		event TEXT NOT NULL,
		handler TEXT NOT NULL,
		priority INTEGER DEFAULT 100,
		enabled INTEGER DEFAULT 1,
		config TEXT DEFAULT '{}',

		FOREIGN KEY(module_id) REFERENCES modules(module_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_hooks_event ON module_hooks(event, enabled, priority);

	-- ============================================================
	-- CKG_PROJECTS: access bookkeeping for CKG retention housekeeping
	-- ============================================================
	CREATE TABLE IF NOT EXISTS ckg_projects (
		project_hash TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		db_path TEXT NOT NULL,
		last_accessed_at INTEGER DEFAULT (strftime('%s', 'now'))
	);

	-- ============================================================
	-- SEED DATA
	-- ============================================================
	INSERT OR IGNORE INTO config (key, value, type, description) VALUES
	('shell_timeout_seconds', '60', 'int', 'Per-command shell timeout'),
	('shell_max_output_bytes', '131072', 'int', 'Per-stream shell output cap before truncation'),
	('text_edit_snippet_lines', '4', 'int', 'Lines of context either side of a text edit snippet'),
	('text_edit_view_max_bytes', '65536', 'int', 'Total rendered bytes before a file_editor view is truncated'),
	('ckg_retention_days', '30', 'int', 'Delete CKG databases unused for this many days'),
	('debug_mode', 'false', 'bool', 'Not read; internal/diagnostics always traces tool calls in memory');
	`

	_, err := e.db.Exec(schema)
	return err
}

func (e *Engine) watchConfig() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			var maxVersion int64
			if err := e.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM config").Scan(&maxVersion); err != nil {
				continue
			}
			if maxVersion > e.configVersion {
				e.configVersion = maxVersion
				e.notifyWatchers("config_changed")
				select {
				case e.reloadCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

// OnChange registers a callback invoked (in its own goroutine) when the
// config table's version rises; the event passed is always "config_changed".
func (e *Engine) OnChange(fn func(event string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watchers = append(e.watchers, fn)
}

func (e *Engine) notifyWatchers(event string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, fn := range e.watchers {
		go fn(event)
	}
}

// ReloadCh receives a value whenever config changes.
func (e *Engine) ReloadCh() <-chan struct{} { return e.reloadCh }

// GetConfig retrieves a config value.
func (e *Engine) GetConfig(key string) (string, error) {
	var value string
	err := e.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig sets a config value, triggering hot-reload.
func (e *Engine) SetConfig(key, value string) error {
	_, err := e.db.Exec(`
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = strftime('%s', 'now'), version = version + 1
	`, key, value)
	return err
}

// GetConfigBool retrieves a boolean config value.
func (e *Engine) GetConfigBool(key string) bool {
	val, _ := e.GetConfig(key)
	return val == "true" || val == "1"
}

// GetConfigInt retrieves an integer config value.
func (e *Engine) GetConfigInt(key string) int {
	val, _ := e.GetConfig(key)
	var i int
	fmt.Sscanf(val, "%d", &i)
	return i
}

// Close shuts the engine down, checkpointing the WAL first.
func (e *Engine) Close() error {
	e.cancel()
	_, _ = e.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return e.db.Close()
}

// WatchFile watches an external path (e.g. a config file) for writes.
func (e *Engine) WatchFile(path string, callback func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-e.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&fsnotify.Write == fsnotify.Write {
					callback()
				}
			case <-watcher.Errors:
			}
		}
	}()

	return watcher.Add(path)
}

// Exec executes a statement and returns rows affected.
func (e *Engine) Exec(query string, args ...interface{}) (int64, error) {
	result, err := e.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Query executes a query and returns rows.
func (e *Engine) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return e.db.Query(query, args...)
}

// QueryRow executes a query and returns a single row.
func (e *Engine) QueryRow(query string, args ...interface{}) *sql.Row {
	return e.db.QueryRow(query, args...)
}

// TouchProject records (or refreshes) a CKG project's last-accessed time,
// used by the retention sweep in internal/ckg.
func (e *Engine) TouchProject(projectHash, rootPath, dbPath string) error {
	_, err := e.db.Exec(`
		INSERT INTO ckg_projects (project_hash, root_path, db_path, last_accessed_at)
		VALUES (?, ?, ?, strftime('%s', 'now'))
		ON CONFLICT(project_hash) DO UPDATE SET last_accessed_at = strftime('%s', 'now')
	`, projectHash, rootPath, dbPath)
	return err
}

// StaleProjects returns db paths for CKG projects untouched for olderThan.
func (e *Engine) StaleProjects(olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	rows, err := e.db.Query("SELECT db_path FROM ckg_projects WHERE last_accessed_at <= ?", cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ForgetProject removes a project's bookkeeping row.
func (e *Engine) ForgetProject(projectHash string) error {
	_, err := e.db.Exec("DELETE FROM ckg_projects WHERE project_hash = ?", projectHash)
	return err
}
