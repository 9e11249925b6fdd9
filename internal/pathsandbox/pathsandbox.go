// Package pathsandbox resolves user-supplied paths against a session's
// current working directory and rejects anything that escapes the
// session's sandbox root. Every engine that touches the
// filesystem must route through Resolve; no engine opens a path it
// produced itself.
package pathsandbox

import (
	"path/filepath"
	"strings"

	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// Resolve canonicalizes input against cwd (if relative) and asserts the
// result is root or a strict descendant of root. root and cwd must
// already be absolute, clean paths.
func Resolve(root, cwd, input string) (string, error) {
	if input == "" {
		input = "."
	}

	candidate := input
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(cwd, candidate)
	}
	candidate = filepath.Clean(candidate)

	canonical, err := canonicalize(candidate)
	if err != nil {
		return "", toolerr.New(toolerr.PathEscape, "cannot resolve %q: %v", input, err)
	}

	canonRoot, err := canonicalize(root)
	if err != nil {
		return "", toolerr.New(toolerr.Internal, "sandbox root %q is invalid: %v", root, err)
	}

	if !within(canonRoot, canonical) {
		return "", toolerr.New(toolerr.PathEscape, "%q escapes sandbox root %q", input, root)
	}

	return canonical, nil
}

// canonicalize resolves symlinks where possible. Components that do not
// yet exist (e.g. a file about to be created) are left as-is past the
// deepest existing ancestor, so Resolve still works for file_editor.create.
func canonicalize(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return filepath.Clean(resolved), nil
	}

	// Walk up to the deepest existing ancestor, resolve that, then
	// reattach the remaining (not-yet-created) components.
	dir := filepath.Dir(p)
	base := filepath.Base(p)
	if dir == p {
		// Reached filesystem root without finding an existing ancestor.
		return filepath.Clean(p), nil
	}
	resolvedDir, derr := canonicalize(dir)
	if derr != nil {
		return "", derr
	}
	return filepath.Join(resolvedDir, base), nil
}

// within reports whether candidate equals root or is a descendant of it.
func within(root, candidate string) bool {
	if candidate == root {
		return true
	}
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
