// Package thinking implements the append-only sequential-thinking
// scratchpad. One Log lives per session; nothing is persisted across
// sessions, and revisions/branches are new entries, never in-place
// mutations.
package thinking

import "sync"

// Thought is one entry in the log.
type Thought struct {
	Text               string `json:"thought"`
	Number             int    `json:"thought_number"`
	TotalThoughts      int    `json:"total_thoughts"`
	NextThoughtNeeded  bool   `json:"next_thought_needed"`
	IsRevision         bool   `json:"is_revision,omitempty"`
	RevisesThought     int    `json:"revises_thought,omitempty"`
	BranchFromThought  int    `json:"branch_from_thought,omitempty"`
	BranchID           string `json:"branch_id,omitempty"`
	NeedsMoreThoughts  bool   `json:"needs_more_thoughts,omitempty"`
}

// Log is an append-only history plus a branch-id -> branch-sequence map.
type Log struct {
	mu            sync.Mutex
	history       []Thought
	branches      map[string][]Thought
	totalThoughts int
}

// NewLog creates an empty thought log.
func NewLog() *Log {
	return &Log{branches: make(map[string][]Thought)}
}

// Result is returned after appending a thought.
type Result struct {
	Index           int      `json:"index"`
	BranchIDs       []string `json:"branch_ids"`
	HistoryLength   int      `json:"history_length"`
	TotalThoughts   int      `json:"total_thoughts"`
}

// Append validates and records a thought, growing TotalThoughts on
// demand when thought_number exceeds it.
func (l *Log) Append(t Thought) (Result, error) {
	if t.Number < 1 {
		return Result{}, errThoughtNumber
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if t.TotalThoughts > l.totalThoughts {
		l.totalThoughts = t.TotalThoughts
	}
	if t.Number > l.totalThoughts {
		l.totalThoughts = t.Number
	}
	t.TotalThoughts = l.totalThoughts

	l.history = append(l.history, t)

	if t.BranchID != "" {
		l.branches[t.BranchID] = append(l.branches[t.BranchID], t)
	}

	branchIDs := make([]string, 0, len(l.branches))
	for id := range l.branches {
		branchIDs = append(branchIDs, id)
	}

	return Result{
		Index:         len(l.history) - 1,
		BranchIDs:     branchIDs,
		HistoryLength: len(l.history),
		TotalThoughts: l.totalThoughts,
	}, nil
}

// History returns a copy of the main thought sequence.
func (l *Log) History() []Thought {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Thought, len(l.history))
	copy(out, l.history)
	return out
}

type thoughtErr string

func (e thoughtErr) Error() string { return string(e) }

const errThoughtNumber = thoughtErr("thought_number must be >= 1")
