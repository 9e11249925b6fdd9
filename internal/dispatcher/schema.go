// Package dispatcher routes a (tool name, arguments) request to the
// right engine, applying phase gating, schema validation, and path
// resolution before the handler ever sees a path.
package dispatcher

import (
	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// argKind is the declared type of one tool argument.
type argKind int

const (
	kindString argKind = iota
	kindInt
	kindBool
	kindIntPair // a two-element array of ints, e.g. view_range
	kindAny     // json_editor's "value": any JSON type is accepted
)

// argSpec declares one parameter of a tool's schema.
type argSpec struct {
	name     string
	kind     argKind
	required bool
	enum     []string // non-empty restricts kindString to these values
}

// toolSpec is the full declared schema for one tool.
type toolSpec struct {
	name     string
	args     []argSpec
	pathArgs []string // argument names resolved through the path sandbox
}

func (t toolSpec) arg(name string) (argSpec, bool) {
	for _, a := range t.args {
		if a.name == name {
			return a, true
		}
	}
	return argSpec{}, false
}

// catalog is the fixed tool catalog the server exposes.
var catalog = map[string]toolSpec{
	"navigator": {
		name: "navigator",
		args: []argSpec{
			{name: "subcommand", kind: kindString, required: true, enum: []string{"cd", "pwd", "ls", "read", "lock_cwd"}},
			{name: "path", kind: kindString},
			{name: "view_range", kind: kindIntPair},
		},
		pathArgs: []string{"path"},
	},
	"bash": {
		name: "bash",
		args: []argSpec{
			{name: "command", kind: kindString},
			{name: "restart", kind: kindBool},
		},
	},
	"file_editor": {
		name: "file_editor",
		args: []argSpec{
			{name: "operation", kind: kindString, required: true, enum: []string{"view", "create", "replace", "insert"}},
			{name: "path", kind: kindString, required: true},
			{name: "file_text", kind: kindString},
			{name: "old_str", kind: kindString},
			{name: "new_str", kind: kindString},
			{name: "insert_line", kind: kindInt},
			{name: "view_range", kind: kindIntPair},
		},
		pathArgs: []string{"path"},
	},
	"json_editor": {
		name: "json_editor",
		args: []argSpec{
			{name: "operation", kind: kindString, required: true, enum: []string{"view", "set", "add", "remove"}},
			{name: "file_path", kind: kindString, required: true},
			{name: "json_path", kind: kindString},
			{name: "value", kind: kindAny},
			{name: "pretty_print", kind: kindBool},
		},
		pathArgs: []string{"file_path"},
	},
	"code_search": {
		name: "code_search",
		args: []argSpec{
			{name: "command", kind: kindString, required: true, enum: []string{"search_function", "search_class", "search_class_method"}},
			{name: "path", kind: kindString, required: true},
			{name: "identifier", kind: kindString, required: true},
			{name: "print_body", kind: kindBool},
		},
		pathArgs: []string{"path"},
	},
	"git_diff": {
		name: "git_diff",
		args: []argSpec{
			{name: "path", kind: kindString, required: true},
			{name: "base_commit", kind: kindString},
		},
		pathArgs: []string{"path"},
	},
	"sequential_thinking": {
		name: "sequential_thinking",
		args: []argSpec{
			{name: "thought", kind: kindString, required: true},
			{name: "thought_number", kind: kindInt, required: true},
			{name: "total_thoughts", kind: kindInt, required: true},
			{name: "next_thought_needed", kind: kindBool, required: true},
			{name: "is_revision", kind: kindBool},
			{name: "revises_thought", kind: kindInt},
			{name: "branch_from_thought", kind: kindInt},
			{name: "branch_id", kind: kindString},
			{name: "needs_more_thoughts", kind: kindBool},
		},
	},
	"task_done": {
		name: "task_done",
		args: []argSpec{},
	},
}

// validate checks args against spec's declared schema: unknown keys,
// missing required keys, wrong types, and enum membership all fail with
// BadArguments.
func validate(spec toolSpec, args map[string]any) error {
	for key := range args {
		if _, ok := spec.arg(key); !ok {
			return toolerr.New(toolerr.BadArguments, "%s: unknown argument %q", spec.name, key)
		}
	}

	for _, a := range spec.args {
		v, present := args[a.name]
		if !present {
			if a.required {
				return toolerr.New(toolerr.BadArguments, "%s: missing required argument %q", spec.name, a.name)
			}
			continue
		}
		if v == nil {
			continue
		}
		if err := checkKind(spec.name, a, v); err != nil {
			return err
		}
	}
	return nil
}

func checkKind(tool string, a argSpec, v any) error {
	switch a.kind {
	case kindString:
		s, ok := v.(string)
		if !ok {
			return toolerr.New(toolerr.BadArguments, "%s: %q must be a string", tool, a.name)
		}
		if len(a.enum) > 0 && !contains(a.enum, s) {
			return toolerr.New(toolerr.BadArguments, "%s: %q must be one of %v, got %q", tool, a.name, a.enum, s)
		}
	case kindInt:
		if _, ok := asInt(v); !ok {
			return toolerr.New(toolerr.BadArguments, "%s: %q must be an integer", tool, a.name)
		}
	case kindBool:
		if _, ok := v.(bool); !ok {
			return toolerr.New(toolerr.BadArguments, "%s: %q must be a boolean", tool, a.name)
		}
	case kindIntPair:
		arr, ok := v.([]any)
		if !ok || len(arr) != 2 {
			return toolerr.New(toolerr.BadArguments, "%s: %q must be a 2-element array of integers", tool, a.name)
		}
		for _, e := range arr {
			if _, ok := asInt(e); !ok {
				return toolerr.New(toolerr.BadArguments, "%s: %q must be a 2-element array of integers", tool, a.name)
			}
		}
	case kindAny:
		// json_editor's value accepts any JSON type.
	}
	return nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// asInt accepts a float64 (the JSON-decoded shape) or an int.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), n == float64(int(n))
	case int:
		return n, true
	default:
		return 0, false
	}
}

func stringArg(args map[string]any, name string) string {
	if v, ok := args[name].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, name string) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return false
}

func intArg(args map[string]any, name string) (int, bool) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, false
	}
	n, ok := asInt(v)
	return n, ok
}

func intPairArg(args map[string]any, name string) [2]int {
	v, ok := args[name]
	if !ok || v == nil {
		return [2]int{}
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return [2]int{}
	}
	a, _ := asInt(arr[0])
	b, _ := asInt(arr[1])
	return [2]int{a, b}
}

func unknownToolError(name string) error {
	return toolerr.New(toolerr.UnknownTool, "no such tool: %s", name)
}
