// goclode-mcp exposes a fixed catalog of software-engineering tools
// (shell execution, file editing, JSON editing, structured code search,
// git diff, a thinking scratchpad, and a task-done signal) to MCP
// clients over stdio, HTTP, or SSE. It is the transport/bootstrap shell
// around the session, CKG, shell, and text/JSON-edit engines in
// internal/.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/goclode-mcp/internal/ckg"
	"github.com/hazyhaar/goclode-mcp/internal/core"
	"github.com/hazyhaar/goclode-mcp/internal/diagnostics"
	"github.com/hazyhaar/goclode-mcp/internal/dispatcher"
	"github.com/hazyhaar/goclode-mcp/internal/session"
)

const version = "0.1.0"

func main() {
	debugREPL := flag.Bool("debug-repl", false, "Start an operator console issuing raw tool calls against this server instead of serving MCP")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	root, err := sandboxRoot()
	if err != nil {
		log.Error("bad sandbox root", "error", err)
		os.Exit(1)
	}
	storageDir := envOr("GOCLODE_STORAGE_DIR", filepath.Join(root, ".goclode"))

	engine, err := core.NewEngine(filepath.Join(storageDir, "engine.db"))
	if err != nil {
		log.Error("open engine database", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	seedConfigFromEnv(engine)

	retentionDays := engine.GetConfigInt("ckg_retention_days")
	if err := ckg.Sweep(storageDir, engine, time.Duration(retentionDays)*24*time.Hour); err != nil {
		log.Warn("ckg retention sweep failed", "error", err)
	}

	reg, err := ckg.NewRegistry(storageDir, engine, 32)
	if err != nil {
		log.Error("open ckg registry", "error", err)
		os.Exit(1)
	}
	defer reg.Close()

	store := session.NewStore(root)
	defer store.CloseAll()

	tracer, err := diagnostics.NewTracer(engine)
	if err != nil {
		log.Error("start diagnostics tracer", "error", err)
		os.Exit(1)
	}

	d := dispatcher.New(store, reg, func() dispatcher.Config {
		return dispatcher.Config{
			ShellTimeoutSeconds: engine.GetConfigInt("shell_timeout_seconds"),
			ShellMaxOutputBytes: engine.GetConfigInt("shell_max_output_bytes"),
			SnippetLines:        engine.GetConfigInt("text_edit_snippet_lines"),
			ViewMaxBytes:        engine.GetConfigInt("text_edit_view_max_bytes"),
		}
	}, tracer)

	if *debugREPL {
		if err := runDebugREPL(d, tracer); err != nil {
			log.Error("debug repl", "error", err)
			os.Exit(1)
		}
		return
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: "goclode-mcp", Version: version}, nil)
	registerTools(srv, d)

	if err := serve(srv, log); err != nil {
		log.Error("serve", "error", err)
		os.Exit(1)
	}
}

// serve dispatches to the MCP transport selected by the TRANSPORT
// environment variable. Framing is entirely the SDK's concern.
func serve(srv *mcp.Server, log *slog.Logger) error {
	transport := envOr("TRANSPORT", "stdio")
	switch transport {
	case "stdio":
		log.Info("serving over stdio")
		return srv.Run(context.Background(), &mcp.StdioTransport{})
	case "http", "sse":
		addr := envOr("HOST", "127.0.0.1") + ":" + envOr("PORT", "8787")
		handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
		log.Info("serving over http", "addr", addr, "transport", transport)
		return http.ListenAndServe(addr, handler)
	default:
		return fmt.Errorf("unknown TRANSPORT %q", transport)
	}
}

func sandboxRoot() (string, error) {
	root := envOr("GOCLODE_ROOT", "")
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = cwd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("sandbox root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("sandbox root %s is not a directory", abs)
	}
	return abs, nil
}

// seedConfigFromEnv lets a handful of environment variables override the
// hot-reloadable defaults core.Engine seeded at schema init, without
// bypassing the config table as the single source of truth at runtime.
func seedConfigFromEnv(engine *core.Engine) {
	overrides := map[string]string{
		"SHELL_TIMEOUT_SECONDS":    "shell_timeout_seconds",
		"SHELL_MAX_OUTPUT_BYTES":   "shell_max_output_bytes",
		"TEXT_EDIT_VIEW_MAX_BYTES": "text_edit_view_max_bytes",
		"CKG_RETENTION_DAYS":       "ckg_retention_days",
	}
	for env, key := range overrides {
		if v := os.Getenv(env); v != "" {
			if _, err := strconv.Atoi(v); err == nil {
				engine.SetConfig(key, v)
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
