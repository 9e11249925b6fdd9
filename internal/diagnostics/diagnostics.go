// Package diagnostics wires core.ModuleManager's hook registry into a
// tool-call tracer: a "debug" module subscribed to the Dispatcher's
// "tool_call" event, so an operator can inspect recent tool invocations
// via the --debug-repl console.
package diagnostics

import (
	"fmt"
	"time"

	"github.com/hazyhaar/goclode-mcp/internal/core"
)

// Tracer records one DebugEvent per dispatched tool call.
type Tracer struct {
	mm *core.ModuleManager
}

// NewTracer registers the "debug" module against engine and returns a
// Tracer that emits a "tool_call" hook event for every dispatch.
func NewTracer(engine *core.Engine) (*Tracer, error) {
	mm := core.NewModuleManager(engine)

	if err := mm.RegisterModule(&core.Module{
		ID:       "debug",
		Name:     "Tool Call Tracer",
		Version:  "1.0.0",
		Enabled:  true,
		Priority: 10,
		Config:   map[string]interface{}{},
	}); err != nil {
		return nil, fmt.Errorf("register debug module: %w", err)
	}
	if err := mm.RegisterHook(&core.Hook{
		ID:       "debug_tool_call",
		ModuleID: "debug",
		Event:    "tool_call",
		Handler:  "debug",
		Priority: 10,
		Enabled:  true,
	}); err != nil {
		return nil, fmt.Errorf("register tool_call hook: %w", err)
	}

	mm.EnableDebug()
	return &Tracer{mm: mm}, nil
}

// Now returns the call-start timestamp a dispatch passes back into
// Trace to compute the call's duration.
func Now() time.Time { return time.Now() }

// Trace records the outcome of one dispatched tool call.
func (t *Tracer) Trace(sessionID, tool string, success bool, errorCode string, start time.Time) {
	if t == nil {
		return
	}
	t.mm.Emit("tool_call", map[string]interface{}{
		"session_id": sessionID,
		"tool":       tool,
		"success":    success,
		"error_code": errorCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// Recent returns the most recently traced tool calls, newest last.
func (t *Tracer) Recent() []core.DebugEvent {
	if t == nil {
		return nil
	}
	return t.mm.GetDebugLog()
}

// Clear empties the trace ring buffer.
func (t *Tracer) Clear() {
	if t == nil {
		return
	}
	t.mm.ClearDebugLog()
}
