// Package shellengine implements the persistent, sentinel-framed shell
// subprocess behind the bash tool. One Shell is owned by exactly one
// session; it is never shared.
//
// Command boundaries are detected with a UUID-embedded sentinel rather
// than any line-oriented heuristic. After writing the user's command,
// the engine writes a `printf` of the sentinel plus exit code to stdout
// and a matching sentinel line to stderr. Because a POSIX shell executes
// statements written to its stdin strictly in order, and because each
// pipe preserves write order for its own fd, seeing the sentinel on a
// stream guarantees every byte the command itself wrote to that stream
// has already been delivered — this is true independently for stdout and
// stderr, which is why two sentinel writes are used instead of one.
package shellengine

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// Result is the outcome of one command execution.
type Result struct {
	Stdout          string
	Stderr          string
	ExitCode        int
	StdoutTruncated bool
	StderrTruncated bool
}

// Shell is a persistent `sh` subprocess plus sentinel-framing state.
type Shell struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	stderr *bufio.Reader
	broken bool
}

// New spawns a fresh shell subprocess.
func New() (*Shell, error) {
	return spawn()
}

func spawn() (*Shell, error) {
	cmd := exec.Command("/bin/sh")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("shell stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("shell stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("shell stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start shell: %w", err)
	}

	return &Shell{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdoutPipe),
		stderr: bufio.NewReader(stderrPipe),
	}, nil
}

// Broken reports whether the shell is known to be unusable (after a
// timeout or I/O failure) and must be restarted before the next command.
func (s *Shell) Broken() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

// Restart tears down the current subprocess (if any) and starts a new one.
func (s *Shell) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminate()

	fresh, err := spawn()
	if err != nil {
		s.broken = true
		return err
	}
	s.cmd, s.stdin, s.stdout, s.stderr = fresh.cmd, fresh.stdin, fresh.stdout, fresh.stderr
	s.broken = false
	return nil
}

// Close terminates the subprocess.
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminate()
}

func (s *Shell) terminate() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}
	_ = s.stdin.Close()
	_ = s.cmd.Process.Kill()
	_ = s.cmd.Wait()
}

// Run executes command with cwd prepended via `cd`, enforcing timeout and
// per-stream output caps. On timeout the shell is marked broken, the
// caller must Restart before the next Run, and whatever output was
// collected before the deadline is returned alongside the error.
func (s *Shell) Run(cwd, command string, timeout time.Duration, maxOutputBytes int) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken {
		return nil, toolerr.New(toolerr.ShellBroken, "shell is broken; restart required")
	}

	sentinel := "GOCLODE_SENTINEL_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	script := fmt.Sprintf("cd %s && %s\n", shQuote(cwd), command)
	stdoutMarker := fmt.Sprintf("\nprintf '%%s %%d\\n' %s \"$?\"\n", sentinel)
	stderrMarker := fmt.Sprintf("printf '%%s\\n' %s 1>&2\n", sentinel)

	if _, err := io.WriteString(s.stdin, script); err != nil {
		s.broken = true
		return nil, toolerr.New(toolerr.ShellBroken, "write command: %v", err)
	}
	if _, err := io.WriteString(s.stdin, stdoutMarker); err != nil {
		s.broken = true
		return nil, toolerr.New(toolerr.ShellBroken, "write sentinel: %v", err)
	}
	if _, err := io.WriteString(s.stdin, stderrMarker); err != nil {
		s.broken = true
		return nil, toolerr.New(toolerr.ShellBroken, "write sentinel: %v", err)
	}

	outCap := &capture{max: maxOutputBytes}
	errCap := &capture{max: maxOutputBytes}
	outCh := make(chan readResult, 1)
	errCh := make(chan readResult, 1)

	go func() { outCh <- readUntilSentinel(s.stdout, sentinel, outCap, true) }()
	go func() { errCh <- readUntilSentinel(s.stderr, sentinel, errCap, false) }()

	var outRes, errRes readResult
	haveOut, haveErr := false, false
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for !haveOut || !haveErr {
		select {
		case outRes = <-outCh:
			haveOut = true
		case errRes = <-errCh:
			haveErr = true
		case <-timer.C:
			s.broken = true
			s.terminate()
			// Partial output collected before the timeout is returned
			// alongside the error so the caller can surface it.
			stdout, outTrunc := outCap.snapshot()
			stderr, errTrunc := errCap.snapshot()
			partial := &Result{
				Stdout: stdout, Stderr: stderr,
				StdoutTruncated: outTrunc, StderrTruncated: errTrunc,
				ExitCode: -1,
			}
			return partial, toolerr.New(toolerr.CommandTimeout, "command timed out after %s", timeout)
		}
	}

	if outRes.err != nil || errRes.err != nil {
		s.broken = true
		if outRes.err == io.EOF && errRes.err == io.EOF {
			// The command ended the shell process itself (e.g. `exit N`):
			// its exit status is the command's. The shell stays broken.
			_ = s.cmd.Wait()
			if ps := s.cmd.ProcessState; ps != nil && ps.ExitCode() >= 0 {
				stdout, outTrunc := outCap.snapshot()
				stderr, errTrunc := errCap.snapshot()
				return &Result{
					Stdout: stdout, Stderr: stderr, ExitCode: ps.ExitCode(),
					StdoutTruncated: outTrunc, StderrTruncated: errTrunc,
				}, nil
			}
		}
		return nil, toolerr.New(toolerr.ShellBroken, "shell stream closed unexpectedly")
	}

	stdout, outTrunc := outCap.snapshot()
	stderr, errTrunc := errCap.snapshot()
	return &Result{
		Stdout:          stdout,
		Stderr:          stderr,
		ExitCode:        outRes.exitCode,
		StdoutTruncated: outTrunc,
		StderrTruncated: errTrunc,
	}, nil
}

type readResult struct {
	exitCode int
	err      error
}

// capture accumulates one stream's output up to max bytes. The reader
// goroutine appends under the lock; Run snapshots it on completion or
// timeout.
type capture struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	truncated bool
	max       int
}

func (c *capture) write(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.max > 0 && c.buf.Len() >= c.max {
		c.truncated = true
		return
	}
	if c.max > 0 {
		if remaining := c.max - c.buf.Len(); len(line) > remaining {
			c.buf.WriteString(line[:remaining])
			c.truncated = true
			return
		}
	}
	c.buf.WriteString(line)
}

func (c *capture) snapshot() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String(), c.truncated
}

// readUntilSentinel reads lines into c until one begins with sentinel.
// When parseExit is true, the integer following the sentinel on its line
// is parsed as the command's exit code.
func readUntilSentinel(r *bufio.Reader, sentinel string, c *capture, parseExit bool) readResult {
	for {
		line, err := r.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(trimmed, sentinel) {
			rr := readResult{}
			if parseExit {
				rest := strings.TrimSpace(strings.TrimPrefix(trimmed, sentinel))
				fields := strings.Fields(rest)
				if len(fields) > 0 {
					if code, cerr := strconv.Atoi(fields[0]); cerr == nil {
						rr.exitCode = code
					}
				}
			}
			return rr
		}

		if err != nil {
			c.write(line)
			return readResult{err: err}
		}
		c.write(line)
	}
}

// shQuote wraps p in single quotes for safe use as a `cd` argument.
func shQuote(p string) string {
	return "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
}
