// Package ckg implements the Code Knowledge Graph Index: a per-project
// SQLite store of function/class/method definitions kept in sync with
// the filesystem by content hashing and atomic per-file reindexing.
package ckg

import (
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/goclode-mcp/internal/ckg/extractors"
	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// FunctionHit is a search result row from the functions table.
type FunctionHit struct {
	Name           string
	FilePath       string
	Body           string
	StartLine      int
	EndLine        int
	ParentFunction string
	ParentClass    string
}

// ClassHit is a search result row from the classes table.
type ClassHit struct {
	Name      string
	FilePath  string
	Body      string
	StartLine int
	EndLine   int
	Fields    string
	Methods   string
}

// Index is one project's persistent syntactic index.
type Index struct {
	db     *sql.DB
	root   string
	dbPath string
}

// ProjectHash derives the stable identifier for root used to name its
// on-disk database file.
func ProjectHash(root string) string {
	sum := md5.Sum([]byte(filepath.Clean(root)))
	return hex.EncodeToString(sum[:])
}

// Open creates (if needed) and returns the index backing root, stored at dbPath.
func Open(root, dbPath string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ckg storage dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open ckg database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping ckg database: %w", err)
	}

	idx := &Index{db: db, root: root, dbPath: dbPath}
	if err := idx.initSchema(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS functions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		body TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		parent_function TEXT,
		parent_class TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(file_path);
	CREATE INDEX IF NOT EXISTS idx_functions_name ON functions(name);

	CREATE TABLE IF NOT EXISTS classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		body TEXT NOT NULL,
		start_line INTEGER NOT NULL,
		end_line INTEGER NOT NULL,
		fields TEXT,
		methods TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_classes_file ON classes(file_path);
	CREATE INDEX IF NOT EXISTS idx_classes_name ON classes(name);

	CREATE TABLE IF NOT EXISTS file_hashes (
		file_path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := idx.db.Exec(schema)
	return err
}

// Close closes the underlying database handle.
func (idx *Index) Close() error { return idx.db.Close() }

// Indexable reports whether path is eligible for CKG indexing: not under
// a hidden directory, not itself hidden, and of a supported extension.
func Indexable(relPath string) bool {
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return false
		}
	}
	return extractors.Supported(strings.ToLower(filepath.Ext(relPath)))
}

// SyncCodebase walks the project root, reindexing files whose content
// hash is missing or stale and forgetting ones deleted from disk.
func (idx *Index) SyncCodebase() error {
	onDisk := make(map[string]string) // path -> md5 hex

	err := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(idx.root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if rel != "." && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !Indexable(rel) {
			return nil
		}
		content, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil
		}
		sum := md5.Sum(content)
		onDisk[path] = hex.EncodeToString(sum[:])
		return nil
	})
	if err != nil {
		return toolerr.New(toolerr.DbError, "walk project root: %v", err)
	}

	known, err := idx.knownHashes()
	if err != nil {
		return err
	}

	for path, hash := range onDisk {
		if existing, ok := known[path]; !ok || existing != hash {
			if err := idx.OnFileChanged(path); err != nil {
				return err
			}
		}
	}
	for path := range known {
		if _, ok := onDisk[path]; !ok {
			if err := idx.RemoveFile(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (idx *Index) knownHashes() (map[string]string, error) {
	rows, err := idx.db.Query("SELECT file_path, hash FROM file_hashes")
	if err != nil {
		return nil, toolerr.New(toolerr.DbError, "query file_hashes: %v", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			continue
		}
		out[path] = hash
	}
	return out, nil
}

// OnFileChanged atomically reindexes one file: delete its prior rows,
// re-extract, insert, upsert its hash. On any error the transaction
// rolls back leaving the prior index state intact.
func (idx *Index) OnFileChanged(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return toolerr.New(toolerr.NotFound, "read %s: %v", path, err)
	}
	sum := md5.Sum(content)
	hash := hex.EncodeToString(sum[:])

	result, ok := extractors.Extract(path, content)
	if !ok {
		return nil
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return toolerr.New(toolerr.DbError, "begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM functions WHERE file_path = ?", path); err != nil {
		return toolerr.New(toolerr.DbError, "clear functions: %v", err)
	}
	if _, err := tx.Exec("DELETE FROM classes WHERE file_path = ?", path); err != nil {
		return toolerr.New(toolerr.DbError, "clear classes: %v", err)
	}

	for _, fn := range result.Functions {
		_, err := tx.Exec(`
			INSERT INTO functions (name, file_path, body, start_line, end_line, parent_function, parent_class)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			fn.Name, fn.FilePath, fn.Body, fn.StartLine, fn.EndLine,
			nullIfEmpty(fn.ParentFunction), nullIfEmpty(fn.ParentClass))
		if err != nil {
			return toolerr.New(toolerr.DbError, "insert function %s: %v", fn.Name, err)
		}
	}
	for _, cl := range result.Classes {
		_, err := tx.Exec(`
			INSERT INTO classes (name, file_path, body, start_line, end_line, fields, methods)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			cl.Name, cl.FilePath, cl.Body, cl.StartLine, cl.EndLine, cl.Fields, cl.Methods)
		if err != nil {
			return toolerr.New(toolerr.DbError, "insert class %s: %v", cl.Name, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO file_hashes (file_path, hash) VALUES (?, ?)
		ON CONFLICT(file_path) DO UPDATE SET hash = excluded.hash`, path, hash); err != nil {
		return toolerr.New(toolerr.DbError, "upsert hash: %v", err)
	}

	return tx.Commit()
}

// RemoveFile deletes all rows for path: functions, classes, and its hash.
func (idx *Index) RemoveFile(path string) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return toolerr.New(toolerr.DbError, "begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM functions WHERE file_path = ?", path); err != nil {
		return toolerr.New(toolerr.DbError, "remove functions: %v", err)
	}
	if _, err := tx.Exec("DELETE FROM classes WHERE file_path = ?", path); err != nil {
		return toolerr.New(toolerr.DbError, "remove classes: %v", err)
	}
	if _, err := tx.Exec("DELETE FROM file_hashes WHERE file_path = ?", path); err != nil {
		return toolerr.New(toolerr.DbError, "remove hash: %v", err)
	}
	return tx.Commit()
}

// SearchFunction finds standalone (non-method) functions by name.
func (idx *Index) SearchFunction(identifier string) ([]FunctionHit, error) {
	return idx.queryFunctions("SELECT name, file_path, body, start_line, end_line, parent_function, parent_class FROM functions WHERE name = ? AND parent_class IS NULL", identifier)
}

// SearchClassMethod finds methods (functions with a parent class) by name.
func (idx *Index) SearchClassMethod(identifier string) ([]FunctionHit, error) {
	return idx.queryFunctions("SELECT name, file_path, body, start_line, end_line, parent_function, parent_class FROM functions WHERE name = ? AND parent_class IS NOT NULL", identifier)
}

func (idx *Index) queryFunctions(query, identifier string) ([]FunctionHit, error) {
	rows, err := idx.db.Query(query, identifier)
	if err != nil {
		return nil, toolerr.New(toolerr.DbError, "search functions: %v", err)
	}
	defer rows.Close()

	var hits []FunctionHit
	for rows.Next() {
		var h FunctionHit
		var parentFunction, parentClass sql.NullString
		if err := rows.Scan(&h.Name, &h.FilePath, &h.Body, &h.StartLine, &h.EndLine, &parentFunction, &parentClass); err != nil {
			continue
		}
		h.ParentFunction = parentFunction.String
		h.ParentClass = parentClass.String
		hits = append(hits, h)
	}
	return hits, nil
}

// SearchClass finds classes by name.
func (idx *Index) SearchClass(identifier string) ([]ClassHit, error) {
	rows, err := idx.db.Query(
		"SELECT name, file_path, body, start_line, end_line, fields, methods FROM classes WHERE name = ?",
		identifier)
	if err != nil {
		return nil, toolerr.New(toolerr.DbError, "search classes: %v", err)
	}
	defer rows.Close()

	var hits []ClassHit
	for rows.Next() {
		var h ClassHit
		var fields, methods sql.NullString
		if err := rows.Scan(&h.Name, &h.FilePath, &h.Body, &h.StartLine, &h.EndLine, &fields, &methods); err != nil {
			continue
		}
		h.Fields, h.Methods = fields.String, methods.String
		hits = append(hits, h)
	}
	return hits, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
