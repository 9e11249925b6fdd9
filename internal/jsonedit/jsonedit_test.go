package jsonedit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestViewWholeDocument(t *testing.T) {
	path := writeFixture(t, `{"a":{"b":1}}`)

	doc, matches, err := View(path, "", true)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if matches != nil {
		t.Errorf("expected no matches for whole-document view, got %v", matches)
	}
	if !strings.Contains(doc, "\"b\": 1") {
		t.Errorf("expected pretty-printed document, got %q", doc)
	}
}

func TestViewWithPathReturnsMatch(t *testing.T) {
	path := writeFixture(t, `{"a":{"b":42}}`)

	_, matches, err := View(path, "$.a.b", false)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Value != "42" {
		t.Fatalf("expected match value 42, got %+v", matches)
	}
}

func TestViewRejectsInvalidJSON(t *testing.T) {
	path := writeFixture(t, `{not json`)

	_, _, err := View(path, "", false)
	if err == nil {
		t.Fatal("expected ParseError for invalid JSON")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.ParseError {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestSetReplacesExistingValue(t *testing.T) {
	path := writeFixture(t, `{"a":{"b":1}}`)

	if err := Set(path, "$.a.b", 99, false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "99") {
		t.Errorf("expected updated value in file, got %q", content)
	}
}

func TestSetFailsOnMissingPath(t *testing.T) {
	path := writeFixture(t, `{"a":{"b":1}}`)

	err := Set(path, "$.missing.key", 1, false)
	if err == nil {
		t.Fatal("expected NotFound error")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestAddKeyToExistingObject(t *testing.T) {
	path := writeFixture(t, `{"a":{}}`)

	if err := Add(path, "$.a.newKey", "hello", false); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if !strings.Contains(string(content), "newKey") {
		t.Errorf("expected new key written, got %q", content)
	}
}

func TestAddFailsWhenIntermediateMissing(t *testing.T) {
	path := writeFixture(t, `{"a":{}}`)

	err := Add(path, "$.missing.newKey", "hello", false)
	if err == nil {
		t.Fatal("expected NotFound for missing intermediate ancestor")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestAddAppendsToArray(t *testing.T) {
	path := writeFixture(t, `{"items":[1,2]}`)

	if err := Add(path, "$.items", 3, false); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	_, matches, err := View(path, "$.items", false)
	if err != nil {
		t.Fatalf("View failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Value != "[1,2,3]" {
		t.Errorf("expected items to become [1,2,3], got %+v", matches)
	}
}

func TestRemoveDeletesMatchedElement(t *testing.T) {
	path := writeFixture(t, `{"a":{"b":1,"c":2}}`)

	if err := Remove(path, "$.a.b", false); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if strings.Contains(string(content), "\"b\"") {
		t.Errorf("expected b to be removed, got %q", content)
	}
	if !strings.Contains(string(content), "\"c\"") {
		t.Errorf("expected c to survive, got %q", content)
	}
}

func TestRemoveFailsOnMissingPath(t *testing.T) {
	path := writeFixture(t, `{"a":1}`)

	err := Remove(path, "$.missing", false)
	if err == nil {
		t.Fatal("expected NotFound error")
	}
	te, ok := toolerr.As(err)
	if !ok || te.Code != toolerr.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}
