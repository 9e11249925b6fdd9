// Package navigator implements the navigator tool's subcommands:
// cd/pwd/ls/read/lock_cwd against a session's cwd and phase.
// ls and read are thin wrappers over internal/textedit's directory and
// file rendering; cd and lock_cwd mutate internal/session.State directly.
//
// Every path argument here has already been resolved through
// internal/pathsandbox by the dispatcher; this package never
// re-validates containment.
package navigator

import (
	"os"

	"github.com/hazyhaar/goclode-mcp/internal/session"
	"github.com/hazyhaar/goclode-mcp/internal/textedit"
	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// Result is the content returned from a subcommand invocation.
type Result struct {
	Content string
}

// Cd changes the session's cwd to the (already sandbox-resolved) path.
// Fails with NotADirectory if the target is not a directory.
func Cd(s *session.State, resolvedPath string) (Result, error) {
	info, err := os.Stat(resolvedPath)
	if err != nil {
		return Result{}, toolerr.New(toolerr.NotFound, "%s: %v", resolvedPath, err)
	}
	if !info.IsDir() {
		return Result{}, toolerr.New(toolerr.NotADirectory, "%s is not a directory", resolvedPath)
	}
	s.SetCwd(resolvedPath)
	return Result{Content: resolvedPath}, nil
}

// Pwd returns the session's current working directory.
func Pwd(s *session.State) Result {
	return Result{Content: s.Cwd()}
}

// Ls lists the (already sandbox-resolved) path up to 2 levels deep.
func Ls(resolvedPath string) (Result, error) {
	out, err := textedit.View(resolvedPath, 0, 0, 0)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: out}, nil
}

// Read renders the (already sandbox-resolved) path with 1-based line
// numbers, optionally restricted to viewRange ([start, end], end == -1
// meaning EOF).
func Read(resolvedPath string, viewRange [2]int, maxBytes int) (Result, error) {
	start, end := 1, -1
	if viewRange != [2]int{} {
		start, end = viewRange[0], viewRange[1]
	}
	out, err := textedit.View(resolvedPath, start, end, maxBytes)
	if err != nil {
		return Result{}, err
	}
	return Result{Content: out}, nil
}

// LockCwd transitions the session into Edit phase.
func LockCwd(s *session.State) Result {
	s.LockCwd()
	return Result{Content: "phase transitioned to Edit"}
}
