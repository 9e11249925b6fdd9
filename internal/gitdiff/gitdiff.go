// Package gitdiff invokes the `git` subprocess to produce diffs, with
// an optional base-commit mode. It is a narrow read-only surface: no
// auto-commit, no undo, no repository mutation of any kind.
package gitdiff

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// Diff returns the diff between HEAD and the working tree for path (or
// the whole repo when path is empty).
func Diff(repoDir, path string) (string, error) {
	return DiffSince(repoDir, "", path)
}

// DiffSince returns the diff between baseCommit and HEAD for path (or
// the whole repo when path is empty). An empty baseCommit compares the
// working tree against HEAD.
func DiffSince(repoDir, baseCommit, path string) (string, error) {
	var args []string
	if baseCommit == "" {
		args = []string{"diff", "HEAD"}
	} else {
		args = []string{"diff", baseCommit + "..HEAD"}
	}
	if path != "" {
		args = append(args, "--", path)
	}
	return run(repoDir, args...)
}

// testPathMarkers are substrings that mark a diff --git header's path as
// belonging to a test tree. FilterTestHunks uses these to drop hunks
// that touch only test code; it is never applied automatically.
var testPathMarkers = []string{
	"_test.go", "/test/", "/tests/", "/__tests__/", "/spec/", "_spec.",
}

// FilterTestHunks removes hunks whose file header matches a typical test
// path pattern. It is off by default — callers opt in explicitly.
func FilterTestHunks(diff string) string {
	if diff == "" {
		return diff
	}
	lines := strings.Split(diff, "\n")
	var out []string
	skip := false
	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git ") {
			skip = isTestPath(line)
		}
		if !skip {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func isTestPath(diffGitHeader string) bool {
	for _, marker := range testPathMarkers {
		if strings.Contains(diffGitHeader, marker) {
			return true
		}
	}
	return false
}

func run(repoDir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = repoDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", toolerr.New(toolerr.GitError, "%s: %s", fmt.Sprintf("git %s", strings.Join(args, " ")), msg)
	}
	return stdout.String(), nil
}
