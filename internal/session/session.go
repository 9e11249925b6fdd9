// Package session implements the Session Store and phase gating: a
// process-wide mapping from opaque session identifier to session state,
// plus the phase-gating contract the Dispatcher applies before invoking
// any engine.
package session

import (
	"sync"

	"github.com/hazyhaar/goclode-mcp/internal/ckg"
	"github.com/hazyhaar/goclode-mcp/internal/shellengine"
	"github.com/hazyhaar/goclode-mcp/internal/thinking"
	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// Phase is a session's position in the Discovery -> Edit lifecycle.
// It only ever moves forward.
type Phase int

const (
	Discovery Phase = iota
	Edit
)

func (p Phase) String() string {
	if p == Edit {
		return "Edit"
	}
	return "Discovery"
}

// Operation distinguishes a read-only call from one that mutates state,
// for tools whose phase gating depends on which op is requested.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// State is one session's mutable state. Its zero value is never used
// directly; construct via Store.Get.
type State struct {
	mu sync.Mutex

	// callMu serializes tool calls against this session. It is distinct from mu,
	// which only ever guards the fields below for the duration of a single
	// accessor; Dispatcher holds callMu across an entire Dispatch call
	// while still calling Cwd/Phase/etc. internally, and mu is not
	// reentrant.
	callMu sync.Mutex

	ID    string
	Root  string
	cwd   string
	phase Phase

	shell *shellengine.Shell
	ckg   *ckg.Index

	Thoughts *thinking.Log
}

// Cwd returns the session's current working directory.
func (s *State) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

// SetCwd updates the session's working directory. Callers must have
// already validated containment via internal/pathsandbox.
func (s *State) SetCwd(cwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cwd = cwd
}

// Phase returns the session's current phase.
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LockCwd transitions the session into Edit phase. Idempotent: calling it
// again once already in Edit is a no-op, consistent with phase monotonicity.
func (s *State) LockCwd() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = Edit
}

// Lock serializes calls against this session, guarding the shell
// subprocess and any other single-owner resource during a tool call.
// It must not be the same mutex as the field accessors above: the
// Dispatcher holds this lock for an entire Dispatch call while still
// calling Cwd/Phase/etc. on the same State.
func (s *State) Lock()   { s.callMu.Lock() }
func (s *State) Unlock() { s.callMu.Unlock() }

// Shell returns the session's shell subprocess, spawning it lazily on
// first use. Callers must hold the session lock.
func (s *State) Shell() (*shellengine.Shell, error) {
	if s.shell == nil {
		sh, err := shellengine.New()
		if err != nil {
			return nil, err
		}
		s.shell = sh
	}
	return s.shell, nil
}

// RestartShell discards the current shell subprocess, if any, and spawns
// a fresh one. Callers must hold the session lock.
func (s *State) RestartShell() (*shellengine.Shell, error) {
	if s.shell != nil {
		if err := s.shell.Restart(); err == nil {
			return s.shell, nil
		}
		s.shell.Close()
		s.shell = nil
	}
	return s.Shell()
}

// CKG returns the project's CKG handle, obtaining it lazily from reg.
// Handles are shared across every session rooted at the same path.
func (s *State) CKG(reg *ckg.Registry) (*ckg.Index, error) {
	if s.ckg == nil {
		idx, err := reg.Get(s.Root)
		if err != nil {
			return nil, err
		}
		s.ckg = idx
	}
	return s.ckg, nil
}

// Close terminates the session's shell subprocess, if any. The CKG
// handle is owned by the registry and outlives the session.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shell != nil {
		s.shell.Close()
		s.shell = nil
	}
}

// Store is the process-wide sessionId -> *State map.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
	root     string
}

// NewStore creates a store whose sessions all sandbox to root.
func NewStore(root string) *Store {
	return &Store{sessions: make(map[string]*State), root: root}
}

// Get returns the state for id, creating it (rooted at the store's
// configured sandbox root, cwd == root, phase == Discovery) on first access.
func (st *Store) Get(id string) *State {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s
	}
	s := &State{
		ID:       id,
		Root:     st.root,
		cwd:      st.root,
		phase:    Discovery,
		Thoughts: thinking.NewLog(),
	}
	st.sessions[id] = s
	return s
}

// Close destroys the session named id, terminating its shell subprocess.
func (st *Store) Close(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		s.Close()
	}
}

// CloseAll terminates every session, for server shutdown.
func (st *Store) CloseAll() {
	st.mu.Lock()
	sessions := make([]*State, 0, len(st.sessions))
	for _, s := range st.sessions {
		sessions = append(sessions, s)
	}
	st.sessions = make(map[string]*State)
	st.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// CheckPhase applies the phase-gating table. tool is the dispatched
// tool name; op distinguishes a read from a write for the
// tools whose gating depends on it (file_editor, json_editor). Tools not
// mentioned here (navigator, code_search, sequential_thinking, task_done,
// git_diff) are allowed in every phase.
func CheckPhase(tool string, op Operation, phase Phase) error {
	switch tool {
	case "bash":
		if phase != Edit {
			return toolerr.New(toolerr.PhaseViolation, "bash is denied during Discovery; call navigator.lock_cwd first")
		}
	case "file_editor", "json_editor":
		if op == OpWrite && phase != Edit {
			return toolerr.New(toolerr.PhaseViolation, "%s mutation is denied during Discovery; call navigator.lock_cwd first", tool)
		}
	}
	return nil
}
