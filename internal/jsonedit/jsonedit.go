// Package jsonedit implements the JSON Edit Engine:
// JSONPath-subset-driven view/set/add/remove over a JSON document,
// loaded into memory, mutated, and written back. Supported path syntax
// is the dotted-with-bracket-index subset (`$.a`, `$.a.b[0]`); it is
// translated to gjson/sjson's native dot-and-index path syntax.
package jsonedit

import (
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/hazyhaar/goclode-mcp/internal/toolerr"
)

// Match is one located value from a view call.
type Match struct {
	Path  string
	Value string
}

// translate converts a `$.a.b[0].c` path into gjson/sjson's `a.b.0.c`
// dot-path form. An empty or "$" path means "the whole document".
func translate(jsonPath string) string {
	p := strings.TrimPrefix(strings.TrimSpace(jsonPath), "$")
	p = strings.TrimPrefix(p, ".")
	p = strings.ReplaceAll(p, "[", ".")
	p = strings.ReplaceAll(p, "]", "")
	return p
}

func splitParent(gpath string) (parent, last string) {
	idx := strings.LastIndex(gpath, ".")
	if idx == -1 {
		return "", gpath
	}
	return gpath[:idx], gpath[idx+1:]
}

// View returns the document (pretty-printed when requested) when
// jsonPath is empty, or the single match located at jsonPath.
func View(path, jsonPath string, prettyPrint bool) (string, []Match, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", nil, toolerr.New(toolerr.NotFound, "%s: %v", path, err)
	}
	if !gjson.ValidBytes(content) {
		return "", nil, toolerr.New(toolerr.ParseError, "%s is not valid JSON", path)
	}

	if strings.TrimSpace(jsonPath) == "" {
		return render(content, prettyPrint), nil, nil
	}

	gpath := translate(jsonPath)
	result := gjson.GetBytes(content, gpath)
	if !result.Exists() {
		return "", nil, nil
	}
	return "", []Match{{Path: jsonPath, Value: result.Raw}}, nil
}

// Set replaces the value at every match of jsonPath. Fails with NotFound
// if the path matches nothing.
func Set(path, jsonPath string, value any, prettyPrint bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return toolerr.New(toolerr.NotFound, "%s: %v", path, err)
	}
	doc := string(content)
	gpath := translate(jsonPath)

	if !gjson.Get(doc, gpath).Exists() {
		return toolerr.New(toolerr.NotFound, "json_path %q matches nothing in %s", jsonPath, path)
	}

	newDoc, err := sjson.Set(doc, gpath, value)
	if err != nil {
		return toolerr.New(toolerr.ParseError, "set %q: %v", jsonPath, err)
	}
	return writeBack(path, newDoc, prettyPrint)
}

// Add adds or overwrites an object key named by jsonPath's final segment,
// or appends to the array jsonPath targets. Intermediate ancestors must
// already exist.
func Add(path, jsonPath string, value any, prettyPrint bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return toolerr.New(toolerr.NotFound, "%s: %v", path, err)
	}
	doc := string(content)
	gpath := translate(jsonPath)

	target := gjson.Get(doc, gpath)
	if target.Exists() && target.IsArray() {
		newDoc, err := sjson.Set(doc, gpath+".-1", value)
		if err != nil {
			return toolerr.New(toolerr.ParseError, "append to %q: %v", jsonPath, err)
		}
		return writeBack(path, newDoc, prettyPrint)
	}

	parent, _ := splitParent(gpath)
	if parent != "" && !gjson.Get(doc, parent).Exists() {
		return toolerr.New(toolerr.NotFound, "intermediate path %q does not exist in %s", parent, path)
	}

	newDoc, err := sjson.Set(doc, gpath, value)
	if err != nil {
		return toolerr.New(toolerr.ParseError, "add %q: %v", jsonPath, err)
	}
	return writeBack(path, newDoc, prettyPrint)
}

// Remove deletes the matched element from its parent. Fails with
// NotFound if jsonPath matches nothing.
func Remove(path, jsonPath string, prettyPrint bool) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return toolerr.New(toolerr.NotFound, "%s: %v", path, err)
	}
	doc := string(content)
	gpath := translate(jsonPath)

	if !gjson.Get(doc, gpath).Exists() {
		return toolerr.New(toolerr.NotFound, "json_path %q matches nothing in %s", jsonPath, path)
	}

	newDoc, err := sjson.Delete(doc, gpath)
	if err != nil {
		return toolerr.New(toolerr.ParseError, "remove %q: %v", jsonPath, err)
	}
	return writeBack(path, newDoc, prettyPrint)
}

func render(content []byte, prettyPrint bool) string {
	if prettyPrint {
		return string(pretty.Pretty(content))
	}
	return string(pretty.Ugly(content))
}

func writeBack(path, doc string, prettyPrint bool) error {
	out := []byte(doc)
	if prettyPrint {
		out = pretty.Pretty(out)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return toolerr.New(toolerr.Internal, "write %s: %v", path, err)
	}
	return nil
}
