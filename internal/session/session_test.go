package session

import (
	"testing"

	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

func TestStoreGetCreatesStateAtRootInDiscovery(t *testing.T) {
	store := NewStore("/w")

	s := store.Get("sess-1")
	if s.Root != "/w" || s.Cwd() != "/w" {
		t.Errorf("expected root=cwd=/w, got root=%s cwd=%s", s.Root, s.Cwd())
	}
	if s.Phase() != Discovery {
		t.Errorf("expected initial phase Discovery, got %s", s.Phase())
	}
}

func TestStoreGetReturnsSameStateForSameID(t *testing.T) {
	store := NewStore("/w")

	a := store.Get("sess-1")
	a.SetCwd("/w/sub")
	b := store.Get("sess-1")

	if b.Cwd() != "/w/sub" {
		t.Error("expected Get to return the same state across calls")
	}
}

func TestLockCwdTransitionsToEditAndIsMonotonic(t *testing.T) {
	s := NewStore("/w").Get("sess-1")

	s.LockCwd()
	if s.Phase() != Edit {
		t.Fatalf("expected Edit after LockCwd, got %s", s.Phase())
	}

	s.LockCwd()
	if s.Phase() != Edit {
		t.Error("LockCwd should be idempotent once already in Edit")
	}
}

func TestCheckPhaseDeniesBashDuringDiscovery(t *testing.T) {
	err := CheckPhase("bash", OpWrite, Discovery)
	if err == nil {
		t.Fatal("expected bash to be denied during Discovery")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.PhaseViolation {
		t.Errorf("expected PhaseViolation, got %v", err)
	}

	if err := CheckPhase("bash", OpWrite, Edit); err != nil {
		t.Errorf("expected bash to be allowed during Edit, got %v", err)
	}
}

func TestCheckPhaseFileEditorViewAlwaysAllowed(t *testing.T) {
	if err := CheckPhase("file_editor", OpRead, Discovery); err != nil {
		t.Errorf("file_editor view should be allowed in Discovery, got %v", err)
	}
}

func TestCheckPhaseFileEditorWriteDeniedUntilEdit(t *testing.T) {
	if err := CheckPhase("file_editor", OpWrite, Discovery); err == nil {
		t.Fatal("expected file_editor write to be denied during Discovery")
	}
	if err := CheckPhase("file_editor", OpWrite, Edit); err != nil {
		t.Errorf("expected file_editor write to be allowed during Edit, got %v", err)
	}
}

func TestCheckPhaseJSONEditorWriteDeniedUntilEdit(t *testing.T) {
	if err := CheckPhase("json_editor", OpWrite, Discovery); err == nil {
		t.Fatal("expected json_editor write to be denied during Discovery")
	}
}

func TestCheckPhaseAlwaysAllowedTools(t *testing.T) {
	for _, tool := range []string{"navigator", "code_search", "sequential_thinking", "task_done", "git_diff"} {
		if err := CheckPhase(tool, OpWrite, Discovery); err != nil {
			t.Errorf("%s should always be allowed, got %v", tool, err)
		}
	}
}

func TestStoreCloseTerminatesSession(t *testing.T) {
	store := NewStore("/w")
	store.Get("sess-1").LockCwd()
	store.Close("sess-1")

	s := store.Get("sess-1")
	if s.Phase() != Discovery {
		t.Error("expected a fresh session after Close")
	}
}
