package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/goclode-mcp/internal/ckg"
	"github.com/hazyhaar/goclode-mcp/internal/diagnostics"
	"github.com/hazyhaar/goclode-mcp/internal/gitdiff"
	"github.com/hazyhaar/goclode-mcp/internal/jsonedit"
	"github.com/hazyhaar/goclode-mcp/internal/navigator"
	"github.com/hazyhaar/goclode-mcp/internal/pathsandbox"
	"github.com/hazyhaar/goclode-mcp/internal/session"
	"github.com/hazyhaar/goclode-mcp/internal/textedit"
	"github.com/hazyhaar/goclode-mcp/internal/thinking"
	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// Config holds the hot-reloadable knobs the dispatcher's handlers need.
// Callers typically source these from core.Engine's config table.
type Config struct {
	ShellTimeoutSeconds int
	ShellMaxOutputBytes int
	SnippetLines        int
	ViewMaxBytes        int
}

// Result is the structured response shape every call returns:
// success/content/error_code, never a raw panic or stack trace.
type Result struct {
	Success   bool   `json:"success"`
	Content   string `json:"content"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Dispatcher routes tool calls to their engines. It holds no per-call
// state of its own; all state lives in the Sessions store and the CKG
// registry, both shared across calls.
type Dispatcher struct {
	Sessions *session.Store
	CKG      *ckg.Registry
	Config   func() Config
	Diag     *diagnostics.Tracer
}

// New builds a Dispatcher. configFn is called fresh on every dispatch so
// hot-reloaded config from core.Engine takes effect without restarting
// the server.
func New(sessions *session.Store, reg *ckg.Registry, configFn func() Config, diag *diagnostics.Tracer) *Dispatcher {
	return &Dispatcher{Sessions: sessions, CKG: reg, Config: configFn, Diag: diag}
}

// Dispatch routes one (tool, arguments) call through schema validation,
// phase gating, and path resolution before invoking the tool's handler.
// It never returns a Go error: every failure is folded into Result.
func (d *Dispatcher) Dispatch(sessionID, tool string, args map[string]any) Result {
	start := diagnostics.Now()
	res := d.dispatch(sessionID, tool, args)
	if d.Diag != nil {
		d.Diag.Trace(sessionID, tool, res.Success, res.ErrorCode, start)
	}
	return res
}

func (d *Dispatcher) dispatch(sessionID, tool string, args map[string]any) Result {
	spec, ok := catalog[tool]
	if !ok {
		return errResult(unknownToolError(tool))
	}
	if err := validate(spec, args); err != nil {
		return errResult(err)
	}

	s := d.Sessions.Get(sessionID)
	s.Lock()
	defer s.Unlock()

	op := operationFor(tool, args)
	if err := session.CheckPhase(tool, op, s.Phase()); err != nil {
		return errResult(err)
	}

	resolved := make(map[string]string, len(spec.pathArgs))
	for _, name := range spec.pathArgs {
		raw := stringArg(args, name)
		p, err := pathsandbox.Resolve(s.Root, s.Cwd(), raw)
		if err != nil {
			return errResult(err)
		}
		resolved[name] = p
	}

	cfg := Config{ShellTimeoutSeconds: 60, ShellMaxOutputBytes: 131072, SnippetLines: 4, ViewMaxBytes: 65536}
	if d.Config != nil {
		cfg = d.Config()
	}

	switch tool {
	case "navigator":
		return d.dispatchNavigator(s, args, resolved, cfg)
	case "bash":
		return d.dispatchBash(s, args, cfg)
	case "file_editor":
		return d.dispatchFileEditor(s, args, resolved, cfg)
	case "json_editor":
		return d.dispatchJSONEditor(s, args, resolved)
	case "code_search":
		return d.dispatchCodeSearch(s, args, cfg)
	case "git_diff":
		return d.dispatchGitDiff(args, resolved)
	case "sequential_thinking":
		return d.dispatchThinking(s, args)
	case "task_done":
		return Result{Success: true, Content: "task marked done"}
	default:
		return errResult(unknownToolError(tool))
	}
}

// operationFor determines whether a call is read or write, for the tools
// whose phase gating depends on it.
func operationFor(tool string, args map[string]any) session.Operation {
	switch tool {
	case "file_editor", "json_editor":
		if stringArg(args, operationKey(tool)) == "view" {
			return session.OpRead
		}
		return session.OpWrite
	default:
		return session.OpRead
	}
}

func operationKey(tool string) string {
	return "operation"
}

func (d *Dispatcher) dispatchNavigator(s *session.State, args map[string]any, resolved map[string]string, cfg Config) Result {
	sub := stringArg(args, "subcommand")
	switch sub {
	case "cd":
		r, err := navigator.Cd(s, resolved["path"])
		return fromNavigator(r, err)
	case "pwd":
		return fromNavigator(navigator.Pwd(s), nil)
	case "ls":
		r, err := navigator.Ls(resolved["path"])
		return fromNavigator(r, err)
	case "read":
		vr := intPairArg(args, "view_range")
		r, err := navigator.Read(resolved["path"], vr, cfg.ViewMaxBytes)
		return fromNavigator(r, err)
	case "lock_cwd":
		return fromNavigator(navigator.LockCwd(s), nil)
	default:
		return errResult(toolerr.New(toolerr.BadArguments, "navigator: unknown subcommand %q", sub))
	}
}

func fromNavigator(r navigator.Result, err error) Result {
	if err != nil {
		return errResult(err)
	}
	return Result{Success: true, Content: r.Content}
}

func (d *Dispatcher) dispatchBash(s *session.State, args map[string]any, cfg Config) Result {
	command := stringArg(args, "command")
	restart := boolArg(args, "restart")
	if command == "" && !restart {
		return errResult(toolerr.New(toolerr.BadArguments, "bash: at least one of command or restart is required"))
	}

	if restart {
		if _, err := s.RestartShell(); err != nil {
			return errResult(err)
		}
		if command == "" {
			return Result{Success: true, Content: "shell restarted"}
		}
	}

	sh, err := s.Shell()
	if err != nil {
		return errResult(err)
	}

	timeout := time.Duration(secondsOr(cfg.ShellTimeoutSeconds, 60)) * time.Second
	res, err := sh.Run(s.Cwd(), command, timeout, cfg.ShellMaxOutputBytes)
	if err != nil {
		r := errResult(err)
		if res != nil && (res.Stdout != "" || res.Stderr != "") {
			r.Content = res.Stdout + res.Stderr + "\n" + r.Content
		}
		return r
	}

	content := res.Stdout
	if res.StdoutTruncated {
		content += truncationMarker
	}
	if res.Stderr != "" {
		content += "\n[stderr]\n" + res.Stderr
		if res.StderrTruncated {
			content += truncationMarker
		}
	}
	content += fmt.Sprintf("\n[exit %d]", res.ExitCode)
	return Result{Success: true, Content: content}
}

func (d *Dispatcher) dispatchFileEditor(s *session.State, args map[string]any, resolved map[string]string, cfg Config) Result {
	path := resolved["path"]
	op := stringArg(args, "operation")

	var (
		content string
		err     error
	)
	switch op {
	case "view":
		vr := intPairArg(args, "view_range")
		start, end := 1, -1
		if vr != [2]int{} {
			start, end = vr[0], vr[1]
		}
		content, err = textedit.View(path, start, end, cfg.ViewMaxBytes)
	case "create":
		err = textedit.Create(path, stringArg(args, "file_text"))
		if err == nil {
			content = fmt.Sprintf("created %s", path)
		}
	case "replace":
		content, err = textedit.Replace(path, stringArg(args, "old_str"), stringArg(args, "new_str"), cfg.SnippetLines)
	case "insert":
		line, _ := intArg(args, "insert_line")
		content, err = textedit.Insert(path, line, stringArg(args, "new_str"), cfg.SnippetLines)
	default:
		return errResult(toolerr.New(toolerr.BadArguments, "file_editor: unknown operation %q", op))
	}
	if err != nil {
		return errResult(err)
	}

	if op != "view" {
		d.notifyCKG(s, path)
	}
	return Result{Success: true, Content: content}
}

func (d *Dispatcher) dispatchJSONEditor(s *session.State, args map[string]any, resolved map[string]string) Result {
	path := resolved["file_path"]
	op := stringArg(args, "operation")
	pretty := boolArg(args, "pretty_print")
	jsonPath := stringArg(args, "json_path")

	var (
		content string
		err     error
	)
	switch op {
	case "view":
		doc, matches, verr := jsonedit.View(path, jsonPath, pretty)
		err = verr
		if err == nil {
			switch {
			case strings.TrimSpace(jsonPath) == "":
				content = doc
			case len(matches) == 0:
				return errResult(toolerr.New(toolerr.NotFound, "json_path %q matches nothing in %s", jsonPath, path))
			default:
				b, _ := json.MarshalIndent(matches, "", "  ")
				content = string(b)
			}
		}
	case "set":
		err = jsonedit.Set(path, jsonPath, args["value"], pretty)
		if err == nil {
			content = fmt.Sprintf("set %s", jsonPath)
		}
	case "add":
		err = jsonedit.Add(path, jsonPath, args["value"], pretty)
		if err == nil {
			content = fmt.Sprintf("added %s", jsonPath)
		}
	case "remove":
		err = jsonedit.Remove(path, jsonPath, pretty)
		if err == nil {
			content = fmt.Sprintf("removed %s", jsonPath)
		}
	default:
		return errResult(toolerr.New(toolerr.BadArguments, "json_editor: unknown operation %q", op))
	}
	if err != nil {
		return errResult(err)
	}

	if op != "view" {
		d.notifyCKG(s, path)
	}
	return Result{Success: true, Content: content}
}

func (d *Dispatcher) dispatchCodeSearch(s *session.State, args map[string]any, cfg Config) Result {
	idx, err := s.CKG(d.CKG)
	if err != nil {
		return errResult(err)
	}
	identifier := stringArg(args, "identifier")
	printBody := boolArg(args, "print_body")

	var b strings.Builder
	switch stringArg(args, "command") {
	case "search_function":
		hits, err := idx.SearchFunction(identifier)
		if err != nil {
			return errResult(err)
		}
		for _, h := range hits {
			renderFunctionHit(&b, h.Name, h.FilePath, h.StartLine, h.EndLine, "", h.Body, printBody, cfg.ViewMaxBytes)
		}
	case "search_class_method":
		hits, err := idx.SearchClassMethod(identifier)
		if err != nil {
			return errResult(err)
		}
		for _, h := range hits {
			renderFunctionHit(&b, h.Name, h.FilePath, h.StartLine, h.EndLine, h.ParentClass, h.Body, printBody, cfg.ViewMaxBytes)
		}
	case "search_class":
		hits, err := idx.SearchClass(identifier)
		if err != nil {
			return errResult(err)
		}
		for _, h := range hits {
			fmt.Fprintf(&b, "%s %s:%d-%d\n", h.Name, h.FilePath, h.StartLine, h.EndLine)
			if printBody {
				fmt.Fprintln(&b, truncateBody(h.Body, cfg.ViewMaxBytes))
			}
		}
	default:
		return errResult(toolerr.New(toolerr.BadArguments, "code_search: unknown command %q", stringArg(args, "command")))
	}

	if b.Len() == 0 {
		return Result{Success: true, Content: "no matches"}
	}
	return Result{Success: true, Content: b.String()}
}

func renderFunctionHit(b *strings.Builder, name, file string, start, end int, parentClass, body string, printBody bool, maxBytes int) {
	if parentClass != "" {
		fmt.Fprintf(b, "%s.%s %s:%d-%d\n", parentClass, name, file, start, end)
	} else {
		fmt.Fprintf(b, "%s %s:%d-%d\n", name, file, start, end)
	}
	if printBody {
		fmt.Fprintln(b, truncateBody(body, maxBytes))
	}
}

func truncateBody(body string, maxBytes int) string {
	if maxBytes <= 0 || len(body) <= maxBytes {
		return body
	}
	return body[:maxBytes] + "\n... [truncated]"
}

func (d *Dispatcher) dispatchGitDiff(args map[string]any, resolved map[string]string) Result {
	base := stringArg(args, "base_commit")
	out, err := gitdiff.DiffSince(resolved["path"], base, "")
	if err != nil {
		return errResult(err)
	}
	return Result{Success: true, Content: out}
}

func (d *Dispatcher) dispatchThinking(s *session.State, args map[string]any) Result {
	num, _ := intArg(args, "thought_number")
	total, _ := intArg(args, "total_thoughts")
	revises, _ := intArg(args, "revises_thought")
	branchFrom, _ := intArg(args, "branch_from_thought")

	t := thinking.Thought{
		Text:              stringArg(args, "thought"),
		Number:            num,
		TotalThoughts:     total,
		NextThoughtNeeded: boolArg(args, "next_thought_needed"),
		IsRevision:        boolArg(args, "is_revision"),
		RevisesThought:    revises,
		BranchFromThought: branchFrom,
		BranchID:          stringArg(args, "branch_id"),
		NeedsMoreThoughts: boolArg(args, "needs_more_thoughts"),
	}

	r, err := s.Thoughts.Append(t)
	if err != nil {
		return errResult(toolerr.New(toolerr.BadArguments, "%v", err))
	}

	b, _ := json.Marshal(r)
	return Result{Success: true, Content: string(b)}
}

// notifyCKG reindexes path after a successful write. Indexing failures
// are swallowed: an indexing error must not fail a filesystem write
// that has already happened, and the next sync will catch the file up.
func (d *Dispatcher) notifyCKG(s *session.State, path string) {
	if d.CKG == nil {
		return
	}
	idx, err := s.CKG(d.CKG)
	if err != nil {
		return
	}
	_ = idx.OnFileChanged(path)
}

func secondsOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

const truncationMarker = "\n... [output truncated]"

func errResult(err error) Result {
	if te, ok := toolerr.As(err); ok {
		msg := te.Message
		if len(te.Lines) > 0 {
			msg = fmt.Sprintf("%s (lines: %v)", msg, te.Lines)
		}
		return Result{Success: false, Content: msg, ErrorCode: string(te.Code)}
	}
	return Result{Success: false, Content: err.Error(), ErrorCode: string(toolerr.Internal)}
}
