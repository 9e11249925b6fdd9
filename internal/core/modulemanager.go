// Package core - module/hook registry backing internal/diagnostics.
package core

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ModuleManager handles dynamic module loading and event hooks.
type ModuleManager struct {
	engine  *Engine
	modules map[string]*Module
	hooks   map[string][]*Hook
	mu      sync.RWMutex

	debugEnabled bool
	debugLog     []DebugEvent
	debugMu      sync.Mutex
}

// Module represents a loadable module.
type Module struct {
	ID        string                 `json:"module_id"`
	Name      string                 `json:"name"`
	Version   string                 `json:"version"`
	Enabled   bool                   `json:"enabled"`
	Priority  int                    `json:"priority"`
	Config    map[string]interface{} `json:"config"`
	SchemaSQL string                 `json:"schema_sql"`
	Hooks     []*Hook                `json:"hooks"`
}

// Hook represents an event hook registered by a module.
type Hook struct {
	ID       string                 `json:"hook_id"`
	ModuleID string                 `json:"module_id"`
	Event    string                 `json:"event"`
	Handler  string                 `json:"handler"`
	Priority int                    `json:"priority"`
	Enabled  bool                   `json:"enabled"`
	Config   map[string]interface{} `json:"config"`
}

// HookContext is passed to hook handlers.
type HookContext struct {
	Event     string
	Payload   map[string]interface{}
	Session   string
	Timestamp time.Time
	Debug     *DebugContext
}

// DebugContext tracks one traced call chain.
type DebugContext struct {
	TraceID    string
	ParentID   string
	StartTime  time.Time
	Events     []DebugEvent
	Assertions []DebugAssertion
}

// DebugEvent is one entry in the in-memory trace log.
type DebugEvent struct {
	ID        string                 `json:"id"`
	TraceID   string                 `json:"trace_id"`
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"` // trace, debug, info, warn, error
	Event     string                 `json:"event"`
	Module    string                 `json:"module"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	Duration  time.Duration          `json:"duration,omitempty"`
}

// DebugAssertion records an expected/actual comparison for a trace.
type DebugAssertion struct {
	ID        string    `json:"id"`
	TraceID   string    `json:"trace_id"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Expected  string    `json:"expected"`
	Actual    string    `json:"actual"`
	Passed    bool      `json:"passed"`
	Message   string    `json:"message"`
}

// HookHandler handles a hook event.
type HookHandler func(ctx *HookContext) error

var builtinHandlers = map[string]HookHandler{
	"log":         handleLog,
	"debug":       handleDebug,
	"test_assert": handleTestAssert,
}

// NewModuleManager creates a module manager backed by engine.
func NewModuleManager(engine *Engine) *ModuleManager {
	mm := &ModuleManager{
		engine:   engine,
		modules:  make(map[string]*Module),
		hooks:    make(map[string][]*Hook),
		debugLog: make([]DebugEvent, 0, 1000),
	}

	mm.reload()

	engine.OnChange(func(event string) {
		if event == "config_changed" || event == "module_changed" {
			mm.reload()
		}
	})

	return mm
}

func (mm *ModuleManager) reload() error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.modules = make(map[string]*Module)
	mm.hooks = make(map[string][]*Hook)

	rows, err := mm.engine.Query(`
		SELECT module_id, name, version, enabled, priority, config, schema_sql
		FROM modules WHERE enabled = 1 ORDER BY priority
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m Module
		var configJSON string
		var schemaSQL sql.NullString

		if err := rows.Scan(&m.ID, &m.Name, &m.Version, &m.Enabled, &m.Priority, &configJSON, &schemaSQL); err != nil {
			continue
		}

		json.Unmarshal([]byte(configJSON), &m.Config)
		if schemaSQL.Valid {
			m.SchemaSQL = schemaSQL.String
		}

		mm.modules[m.ID] = &m
	}

	hookRows, err := mm.engine.Query(`
		SELECT hook_id, module_id, event, handler, priority, enabled, config
		FROM module_hooks WHERE enabled = 1 ORDER BY priority
	`)
	if err != nil {
		return err
	}
	defer hookRows.Close()

	for hookRows.Next() {
		var h Hook
		var configJSON string

		if err := hookRows.Scan(&h.ID, &h.ModuleID, &h.Event, &h.Handler, &h.Priority, &h.Enabled, &configJSON); err != nil {
			continue
		}

		json.Unmarshal([]byte(configJSON), &h.Config)
		mm.hooks[h.Event] = append(mm.hooks[h.Event], &h)
	}

	return nil
}

// RegisterModule registers or updates a module, executing its schema SQL.
func (mm *ModuleManager) RegisterModule(m *Module) error {
	configJSON, _ := json.Marshal(m.Config)

	_, err := mm.engine.Exec(`
		INSERT INTO modules (module_id, name, version, enabled, priority, config, schema_sql)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(module_id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			enabled = excluded.enabled,
			priority = excluded.priority,
			config = excluded.config,
			schema_sql = excluded.schema_sql,
			updated_at = strftime('%s', 'now')
	`, m.ID, m.Name, m.Version, m.Enabled, m.Priority, string(configJSON), m.SchemaSQL)

	if err != nil {
		return err
	}

	if m.SchemaSQL != "" {
		if _, err := mm.engine.Exec(m.SchemaSQL); err != nil {
			return fmt.Errorf("execute module schema: %w", err)
		}
	}

	mm.reload()
	return nil
}

// RegisterHook registers or updates a hook for an event.
func (mm *ModuleManager) RegisterHook(h *Hook) error {
	if h.ID == "" {
		h.ID = uuid.New().String()
	}

	configJSON, _ := json.Marshal(h.Config)

	_, err := mm.engine.Exec(`
		INSERT INTO module_hooks (hook_id, module_id, event, handler, priority, enabled, config)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hook_id) DO UPDATE SET
			event = excluded.event,
			handler = excluded.handler,
			priority = excluded.priority,
			enabled = excluded.enabled,
			config = excluded.config
	`, h.ID, h.ModuleID, h.Event, h.Handler, h.Priority, h.Enabled, string(configJSON))

	if err != nil {
		return err
	}

	mm.reload()
	return nil
}

// Emit triggers all hooks registered for event, in priority order.
func (mm *ModuleManager) Emit(event string, payload map[string]interface{}) error {
	mm.mu.RLock()
	hooks := mm.hooks[event]
	mm.mu.RUnlock()

	if len(hooks) == 0 {
		return nil
	}

	var debugCtx *DebugContext
	traceID := ""
	if mm.debugEnabled {
		traceID = uuid.New().String()
		debugCtx = &DebugContext{
			TraceID:   traceID,
			StartTime: time.Now(),
		}
	}

	ctx := &HookContext{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
		Debug:     debugCtx,
	}

	for _, hook := range hooks {
		handler, ok := builtinHandlers[hook.Handler]
		if !ok {
			continue
		}

		start := time.Now()
		if err := handler(ctx); err != nil {
			mm.logDebug(DebugEvent{
				ID:        uuid.New().String(),
				TraceID:   traceID,
				Timestamp: time.Now(),
				Level:     "error",
				Event:     event,
				Module:    hook.ModuleID,
				Message:   fmt.Sprintf("Hook %s failed: %v", hook.Handler, err),
				Data:      payload,
				Duration:  time.Since(start),
			})
		} else {
			mm.logDebug(DebugEvent{
				ID:        uuid.New().String(),
				TraceID:   traceID,
				Timestamp: time.Now(),
				Level:     "debug",
				Event:     event,
				Module:    hook.ModuleID,
				Message:   fmt.Sprintf("Hook %s executed", hook.Handler),
				Data:      payload,
				Duration:  time.Since(start),
			})
		}
	}

	return nil
}

// EnableDebug turns on trace collection.
func (mm *ModuleManager) EnableDebug() { mm.debugEnabled = true }

// DisableDebug turns off trace collection.
func (mm *ModuleManager) DisableDebug() { mm.debugEnabled = false }

// GetDebugLog returns a copy of the in-memory trace ring buffer.
func (mm *ModuleManager) GetDebugLog() []DebugEvent {
	mm.debugMu.Lock()
	defer mm.debugMu.Unlock()
	log := make([]DebugEvent, len(mm.debugLog))
	copy(log, mm.debugLog)
	return log
}

// ClearDebugLog empties the trace ring buffer.
func (mm *ModuleManager) ClearDebugLog() {
	mm.debugMu.Lock()
	defer mm.debugMu.Unlock()
	mm.debugLog = mm.debugLog[:0]
}

// GetDebugLogJSON renders the trace log as indented JSON.
func (mm *ModuleManager) GetDebugLogJSON() string {
	log := mm.GetDebugLog()
	data, _ := json.MarshalIndent(log, "", "  ")
	return string(data)
}

func (mm *ModuleManager) logDebug(event DebugEvent) {
	if !mm.debugEnabled {
		return
	}

	mm.debugMu.Lock()
	defer mm.debugMu.Unlock()

	if len(mm.debugLog) >= 1000 {
		mm.debugLog = mm.debugLog[1:]
	}
	mm.debugLog = append(mm.debugLog, event)
}

// ============================================================
// Built-in hook handlers
// ============================================================

func handleLog(ctx *HookContext) error {
	data, _ := json.Marshal(ctx.Payload)
	fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", ctx.Timestamp.Format("15:04:05"), ctx.Event, string(data))
	return nil
}

func handleDebug(ctx *HookContext) error {
	if ctx.Debug == nil {
		return nil
	}

	event := DebugEvent{
		ID:        uuid.New().String(),
		TraceID:   ctx.Debug.TraceID,
		Timestamp: time.Now(),
		Level:     "debug",
		Event:     ctx.Event,
		Data:      ctx.Payload,
	}

	ctx.Debug.Events = append(ctx.Debug.Events, event)
	return nil
}

func handleTestAssert(ctx *HookContext) error {
	if ctx.Debug == nil {
		return nil
	}

	name, _ := ctx.Payload["assertion_name"].(string)
	expected, _ := ctx.Payload["expected"].(string)
	actual, _ := ctx.Payload["actual"].(string)

	assertion := DebugAssertion{
		ID:        uuid.New().String(),
		TraceID:   ctx.Debug.TraceID,
		Timestamp: time.Now(),
		Name:      name,
		Expected:  expected,
		Actual:    actual,
		Passed:    expected == actual,
	}

	if !assertion.Passed {
		assertion.Message = fmt.Sprintf("Assertion failed: expected %q, got %q", expected, actual)
	}

	ctx.Debug.Assertions = append(ctx.Debug.Assertions, assertion)
	return nil
}
