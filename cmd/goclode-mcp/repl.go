package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/hazyhaar/goclode-mcp/internal/diagnostics"
	"github.com/hazyhaar/goclode-mcp/internal/dispatcher"
)

// runDebugREPL is an operator console: it issues raw tool calls
// against the server's engines without a full MCP client, and shows
// the diagnostics tracer's recent calls. It is never on the MCP
// request path.
func runDebugREPL(d *dispatcher.Dispatcher, tracer *diagnostics.Tracer) error {
	historyDir := ".goclode"
	os.MkdirAll(historyDir, 0o755)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36mgoclode-debug>\033[0m ",
		HistoryFile:     historyDir + "/debug_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	const sessionID = "debug-repl"

	fmt.Println("goclode-mcp debug repl. Commands:")
	fmt.Println("  <tool> <json-args>   dispatch a tool call, e.g. navigator {\"subcommand\":\"pwd\"}")
	fmt.Println("  trace                show recent traced tool calls")
	fmt.Println("  exit                 quit")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "trace" {
			printTrace(tracer)
			continue
		}

		tool, args, err := parseREPLLine(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		res := d.Dispatch(sessionID, tool, args)
		printResult(res)
	}
}

func parseREPLLine(line string) (tool string, args map[string]any, err error) {
	parts := strings.SplitN(line, " ", 2)
	tool = parts[0]
	args = map[string]any{}
	if len(parts) == 1 {
		return tool, args, nil
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(parts[1])), &args); err != nil {
		return "", nil, fmt.Errorf("invalid json arguments: %w", err)
	}
	return tool, args, nil
}

func printResult(res dispatcher.Result) {
	if res.Success {
		fmt.Println(res.Content)
		return
	}
	fmt.Printf("error [%s]: %s\n", res.ErrorCode, res.Content)
}

func printTrace(tracer *diagnostics.Tracer) {
	for _, ev := range tracer.Recent() {
		data, _ := json.Marshal(ev.Data)
		fmt.Printf("%s %-5s %-12s %s\n", ev.Timestamp.Format("15:04:05"), ev.Level, ev.Event, string(data))
	}
}
