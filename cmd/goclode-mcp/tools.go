package main

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/goclode-mcp/internal/dispatcher"
)

// registerTools wires the fixed tool catalog onto srv,
// routing every call through d.Dispatch. The MCP SDK transport is the
// only thing this file is allowed to know about; no engine is imported
// here directly.
func registerTools(srv *mcp.Server, d *dispatcher.Dispatcher) {
	addTool(srv, d, "navigator", "Change/inspect the session's sandboxed working directory, list or read files, and lock into Edit phase. Subcommands: cd, pwd, ls, read, lock_cwd.", `{
		"type": "object",
		"properties": {
			"subcommand": {"type": "string", "enum": ["cd", "pwd", "ls", "read", "lock_cwd"]},
			"path": {"type": "string"},
			"view_range": {"type": "array", "items": {"type": "integer"}, "minItems": 2, "maxItems": 2}
		},
		"required": ["subcommand"]
	}`)

	addTool(srv, d, "bash", "Run a shell command in the session's persistent shell, rooted at its current working directory. Denied until navigator.lock_cwd has transitioned the session into Edit phase.", `{
		"type": "object",
		"properties": {
			"command": {"type": "string"},
			"restart": {"type": "boolean"}
		}
	}`)

	addTool(srv, d, "file_editor", "View, create, replace, or insert text in a sandboxed file. view is always allowed; create/replace/insert require Edit phase.", `{
		"type": "object",
		"properties": {
			"operation": {"type": "string", "enum": ["view", "create", "replace", "insert"]},
			"path": {"type": "string"},
			"file_text": {"type": "string"},
			"old_str": {"type": "string"},
			"new_str": {"type": "string"},
			"insert_line": {"type": "integer"},
			"view_range": {"type": "array", "items": {"type": "integer"}, "minItems": 2, "maxItems": 2}
		},
		"required": ["operation", "path"]
	}`)

	addTool(srv, d, "json_editor", "View or mutate a sandboxed JSON document via a JSONPath-subset expression. view is always allowed; set/add/remove require Edit phase.", `{
		"type": "object",
		"properties": {
			"operation": {"type": "string", "enum": ["view", "set", "add", "remove"]},
			"file_path": {"type": "string"},
			"json_path": {"type": "string"},
			"value": {},
			"pretty_print": {"type": "boolean"}
		},
		"required": ["operation", "file_path"]
	}`)

	addTool(srv, d, "code_search", "Search the project's Code Knowledge Graph for a function, class, or class method definition by exact name.", `{
		"type": "object",
		"properties": {
			"command": {"type": "string", "enum": ["search_function", "search_class", "search_class_method"]},
			"path": {"type": "string"},
			"identifier": {"type": "string"},
			"print_body": {"type": "boolean"}
		},
		"required": ["command", "path", "identifier"]
	}`)

	addTool(srv, d, "git_diff", "Return the git diff of a sandboxed repository path: against HEAD, or against a given base commit.", `{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"base_commit": {"type": "string"}
		},
		"required": ["path"]
	}`)

	addTool(srv, d, "sequential_thinking", "Append a thought to the session's append-only reasoning scratchpad, with optional revision and branch links.", `{
		"type": "object",
		"properties": {
			"thought": {"type": "string"},
			"thought_number": {"type": "integer"},
			"total_thoughts": {"type": "integer"},
			"next_thought_needed": {"type": "boolean"},
			"is_revision": {"type": "boolean"},
			"revises_thought": {"type": "integer"},
			"branch_from_thought": {"type": "integer"},
			"branch_id": {"type": "string"},
			"needs_more_thoughts": {"type": "boolean"}
		},
		"required": ["thought", "thought_number", "total_thoughts", "next_thought_needed"]
	}`)

	addTool(srv, d, "task_done", "Signal that the current task is complete.", `{"type": "object", "properties": {}}`)
}

// addTool registers one tool, translating its dispatcher.Result back
// into an mcp.CallToolResult.
func addTool(srv *mcp.Server, d *dispatcher.Dispatcher, name, description, schema string) {
	srv.AddTool(&mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: json.RawMessage(schema),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := parseArgs(req)
		if err != nil {
			return errContent(err.Error()), nil
		}
		res := d.Dispatch(sessionIDFor(req), name, args)
		return toolResult(res), nil
	})
}

func parseArgs(req *mcp.CallToolRequest) (map[string]any, error) {
	raw := req.Params.Arguments
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// sessionIDFor derives the opaque session identifier the Session Store
// keys on from the MCP transport's own session. One MCP client
// connection is one tool-server session.
func sessionIDFor(req *mcp.CallToolRequest) string {
	if req.Session != nil {
		return req.Session.ID()
	}
	return "default"
}

func toolResult(res dispatcher.Result) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: res.Content}},
		IsError: !res.Success,
	}
}

func errContent(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
