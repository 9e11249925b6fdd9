// Package textedit implements the Text Edit Engine: file
// view/create/replace/insert with uniqueness and line-range semantics.
// Every path passed in must already have been resolved through
// internal/pathsandbox — this package never re-validates containment.
package textedit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// View renders path for display. start/end are 1-based and inclusive;
// end == -1 means "to EOF". start/end are ignored for directories.
func View(path string, start, end, maxBytes int) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", toolerr.New(toolerr.NotFound, "%s: %v", path, err)
	}

	if info.IsDir() {
		return viewDir(path, maxBytes)
	}
	return viewFile(path, start, end, maxBytes)
}

func viewFile(path string, start, end, maxBytes int) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", toolerr.New(toolerr.NotFound, "%s: %v", path, err)
	}

	lines := splitLines(string(content))
	if start < 1 {
		start = 1
	}
	if end == -1 {
		end = len(lines)
	} else if end > len(lines) {
		return "", toolerr.New(toolerr.OutOfRange, "end_line %d beyond EOF (%d lines)", end, len(lines))
	}
	if start > len(lines) {
		start = len(lines) + 1
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i, lines[i-1])
	}
	return truncate(b.String(), maxBytes), nil
}

// viewDir lists entries up to 2 levels deep, excluding hidden entries.
func viewDir(path string, maxBytes int) (string, error) {
	var b strings.Builder
	var walk func(dir string, depth int, prefix string) error
	walk = func(dir string, depth int, prefix string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return toolerr.New(toolerr.Internal, "list %s: %v", dir, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			suffix := ""
			if e.IsDir() {
				suffix = "/"
			}
			fmt.Fprintf(&b, "%s%s%s\n", prefix, e.Name(), suffix)

			if e.IsDir() && depth < 2 {
				if err := walk(filepath.Join(dir, e.Name()), depth+1, prefix+"  "); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(path, 1, ""); err != nil {
		return "", err
	}
	return truncate(b.String(), maxBytes), nil
}

// Create writes contents to a new file, creating parent directories as
// needed. Fails with AlreadyExists if the target already exists.
func Create(path, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return toolerr.New(toolerr.AlreadyExists, "%s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return toolerr.New(toolerr.Internal, "create parent dirs: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		return toolerr.New(toolerr.Internal, "write %s: %v", path, err)
	}
	return nil
}

// Replace performs an exact, case-sensitive, literal replacement of the
// sole occurrence of oldString with newString, returning a snippet of
// ±snippetLines lines of context around the edit.
func Replace(path, oldString, newString string, snippetLines int) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", toolerr.New(toolerr.NotFound, "%s: %v", path, err)
	}
	text := string(content)

	occurrences := strings.Count(text, oldString)
	switch {
	case occurrences == 0:
		return "", toolerr.New(toolerr.NotFound, "old_string not found in %s", path)
	case occurrences > 1:
		return "", toolerr.NotUniqueAt(occurrenceLines(text, oldString))
	}

	idx := strings.Index(text, oldString)
	newText := text[:idx] + newString + text[idx+len(oldString):]

	if err := os.WriteFile(path, []byte(newText), 0o644); err != nil {
		return "", toolerr.New(toolerr.Internal, "write %s: %v", path, err)
	}

	editLine := strings.Count(text[:idx], "\n") + 1
	return snippet(newText, editLine, snippetLines), nil
}

// Insert places newString as new lines after the given 1-based line
// number (0 means "at the top"). Fails with OutOfRange past EOF.
func Insert(path string, afterLine int, newString string, snippetLines int) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", toolerr.New(toolerr.NotFound, "%s: %v", path, err)
	}
	lines := splitLines(string(content))

	if afterLine < 0 || afterLine > len(lines) {
		return "", toolerr.New(toolerr.OutOfRange, "line %d out of range for %d-line file", afterLine, len(lines))
	}

	insertLines := splitLines(newString)
	out := make([]string, 0, len(lines)+len(insertLines))
	out = append(out, lines[:afterLine]...)
	out = append(out, insertLines...)
	out = append(out, lines[afterLine:]...)

	newText := strings.Join(out, "\n")
	if err := os.WriteFile(path, []byte(newText), 0o644); err != nil {
		return "", toolerr.New(toolerr.Internal, "write %s: %v", path, err)
	}

	return snippet(newText, afterLine+1, snippetLines), nil
}

func splitLines(s string) []string {
	if s == "" {
		return []string{""}
	}
	return strings.Split(s, "\n")
}

// occurrenceLines returns the 1-based line number of each occurrence of
// substr within text, for a NotUnique error.
func occurrenceLines(text, substr string) []int {
	var out []int
	offset := 0
	for {
		idx := strings.Index(text[offset:], substr)
		if idx == -1 {
			break
		}
		abs := offset + idx
		out = append(out, strings.Count(text[:abs], "\n")+1)
		offset = abs + len(substr)
	}
	return out
}

// snippet renders the window of ±n lines around centerLine (1-based),
// with line numbers, clamped to the file's bounds.
func snippet(text string, centerLine, n int) string {
	lines := splitLines(text)
	start := centerLine - n
	if start < 1 {
		start = 1
	}
	end := centerLine + n
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i, lines[i-1])
	}
	return b.String()
}

func truncate(s string, maxBytes int) string {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s
	}
	clipped := len(s) - maxBytes
	return fmt.Sprintf("%s\n... [truncated, %s clipped]", s[:maxBytes], humanize.Bytes(uint64(clipped)))
}
