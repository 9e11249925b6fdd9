package shellengine

import (
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

func TestRunEchoCapturesStdoutAndExit(t *testing.T) {
	sh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sh.Close()

	res, err := sh.Run("/tmp", "echo hello", 2*time.Second, 4096)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "hello")
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
}

func TestRunCapturesStderrAndNonZeroExit(t *testing.T) {
	sh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sh.Close()

	res, err := sh.Run("/tmp", "echo oops 1>&2; exit 3", 2*time.Second, 4096)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Errorf("Stderr = %q, want %q", res.Stderr, "oops")
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestRunPersistsStateAcrossCalls(t *testing.T) {
	sh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sh.Close()

	if _, err := sh.Run("/tmp", "export GOCLODE_TEST_VAR=persisted", 2*time.Second, 4096); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res, err := sh.Run("/tmp", "echo $GOCLODE_TEST_VAR", 2*time.Second, 4096)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "persisted" {
		t.Errorf("exported var did not persist: got %q", res.Stdout)
	}
}

func TestRunRespectsWorkingDirectory(t *testing.T) {
	sh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sh.Close()

	res, err := sh.Run(t.TempDir(), "pwd", 2*time.Second, 4096)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if strings.TrimSpace(res.Stdout) == "" {
		t.Error("expected pwd output")
	}
}

func TestRunTimeoutMarksShellBroken(t *testing.T) {
	sh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sh.Close()

	_, err = sh.Run("/tmp", "sleep 5", 50*time.Millisecond, 4096)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CommandTimeout {
		t.Errorf("expected CommandTimeout, got %v", err)
	}
	if !sh.Broken() {
		t.Error("expected shell to be marked broken after timeout")
	}

	_, err = sh.Run("/tmp", "echo x", 2*time.Second, 4096)
	te, ok = toolerr.As(err)
	if !ok || te.Code != toolerr.ShellBroken {
		t.Errorf("expected ShellBroken on broken shell, got %v", err)
	}

	if err := sh.Restart(); err != nil {
		t.Fatalf("Restart failed: %v", err)
	}
	if sh.Broken() {
		t.Error("expected shell to be usable after Restart")
	}
	res, err := sh.Run("/tmp", "echo recovered", 2*time.Second, 4096)
	if err != nil {
		t.Fatalf("Run after restart failed: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "recovered" {
		t.Errorf("Stdout after restart = %q", res.Stdout)
	}
}

func TestRunTimeoutReturnsPartialOutput(t *testing.T) {
	sh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sh.Close()

	res, err := sh.Run("/tmp", "echo early; sleep 5", 500*time.Millisecond, 4096)
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.CommandTimeout {
		t.Fatalf("expected CommandTimeout, got %v", err)
	}
	if res == nil || !strings.Contains(res.Stdout, "early") {
		t.Errorf("expected partial output collected before the deadline, got %+v", res)
	}
}

func TestRunTruncatesOversizedOutput(t *testing.T) {
	sh, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sh.Close()

	res, err := sh.Run("/tmp", "yes | head -c 100000", 2*time.Second, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.StdoutTruncated {
		t.Error("expected stdout to be marked truncated")
	}
	if len(res.Stdout) > 10 {
		t.Errorf("expected stdout capped at 10 bytes, got %d", len(res.Stdout))
	}
}
