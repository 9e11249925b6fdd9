package navigator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/goclode-mcp/internal/pathsandbox"
	"github.com/hazyhaar/goclode-mcp/internal/session"
	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

func newTestState(t *testing.T) (*session.State, string) {
	t.Helper()
	root := t.TempDir()
	store := session.NewStore(root)
	return store.Get("sess-1"), root
}

// resolve mirrors the dispatcher's path-resolution step so subcommands
// receive the same canonical paths they see in production.
func resolve(t *testing.T, s *session.State, input string) string {
	t.Helper()
	p, err := pathsandbox.Resolve(s.Root, s.Cwd(), input)
	if err != nil {
		t.Fatalf("Resolve(%q) failed: %v", input, err)
	}
	return p
}

func TestCdChangesWorkingDirectory(t *testing.T) {
	s, root := newTestState(t)
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := Cd(s, resolve(t, s, "sub")); err != nil {
		t.Fatalf("Cd failed: %v", err)
	}
	if filepath.Base(s.Cwd()) != "sub" {
		t.Errorf("expected cwd to end in sub, got %q", s.Cwd())
	}
}

func TestCdRejectsFile(t *testing.T) {
	s, root := newTestState(t)
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644)

	_, err := Cd(s, resolve(t, s, "a.txt"))
	if err == nil {
		t.Fatal("expected NotADirectory error")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.NotADirectory {
		t.Errorf("expected NotADirectory, got %v", err)
	}
}

func TestCdEscapeRejectedAtResolution(t *testing.T) {
	s, _ := newTestState(t)

	_, err := pathsandbox.Resolve(s.Root, s.Cwd(), "../../etc")
	if err == nil {
		t.Fatal("expected PathEscape error")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.PathEscape {
		t.Errorf("expected PathEscape, got %v", err)
	}
}

func TestPwdReflectsCurrentCwd(t *testing.T) {
	s, _ := newTestState(t)
	if Pwd(s).Content != s.Cwd() {
		t.Errorf("expected pwd to be %q, got %q", s.Cwd(), Pwd(s).Content)
	}
}

func TestLsListsEntries(t *testing.T) {
	s, root := newTestState(t)
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644)

	res, err := Ls(resolve(t, s, ""))
	if err != nil {
		t.Fatalf("Ls failed: %v", err)
	}
	if !strings.Contains(res.Content, "a.txt") {
		t.Errorf("expected a.txt in listing, got %q", res.Content)
	}
}

func TestReadAppliesViewRange(t *testing.T) {
	s, root := newTestState(t)
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("one\ntwo\nthree"), 0o644)

	res, err := Read(resolve(t, s, "a.txt"), [2]int{2, 2}, 0)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(res.Content, "two") || strings.Contains(res.Content, "one") {
		t.Errorf("expected only line 2, got %q", res.Content)
	}
}

func TestLockCwdTransitionsPhase(t *testing.T) {
	s, _ := newTestState(t)
	if s.Phase() != session.Discovery {
		t.Fatal("expected session to start in Discovery")
	}
	LockCwd(s)
	if s.Phase() != session.Edit {
		t.Errorf("expected Edit phase after lock_cwd, got %v", s.Phase())
	}
}
