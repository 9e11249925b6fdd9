// Package extractors provides the per-language syntactic extractors for
// the Code Knowledge Graph. Each extractor walks a tree-sitter concrete
// syntax tree and emits function/class definitions with verbatim body
// text and 1-based line ranges. This is purely syntactic: no type
// resolution, no call graph, no semantic analysis.
package extractors

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// FunctionEntry is one row destined for the functions table.
type FunctionEntry struct {
	Name           string
	FilePath       string
	Body           string
	StartLine      int
	EndLine        int
	ParentFunction string
	ParentClass    string
}

// ClassEntry is one row destined for the classes table.
type ClassEntry struct {
	Name      string
	FilePath  string
	Body      string
	StartLine int
	EndLine   int
	Fields    string
	Methods   string
}

// Result holds everything one file's extraction produced.
type Result struct {
	Functions []FunctionEntry
	Classes   []ClassEntry
}

// languageFor maps a file extension to a tree-sitter grammar and the
// node-walking extractor for it. Unrecognized extensions return ok=false.
func languageFor(ext string) (*sitter.Language, func(*sitter.Node, string, []byte) Result, bool) {
	switch ext {
	case ".py":
		return python.GetLanguage(), extractPython, true
	case ".java":
		return java.GetLanguage(), extractJava, true
	case ".c", ".h":
		return c.GetLanguage(), extractC, true
	case ".cpp", ".cc", ".cxx", ".hpp", ".hh":
		return cpp.GetLanguage(), extractCPP, true
	case ".ts", ".tsx":
		return typescript.GetLanguage(), extractJSLike, true
	case ".js", ".jsx", ".mjs":
		return javascript.GetLanguage(), extractJSLike, true
	default:
		return nil, nil, false
	}
}

// Supported reports whether ext maps to a known language extractor.
func Supported(ext string) bool {
	_, _, ok := languageFor(ext)
	return ok
}

// Extract parses content for path and returns the definitions found.
// The second return value is false when the extension is unrecognized,
// in which case the file is skipped by the sync protocol.
func Extract(path string, content []byte) (Result, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, walker, ok := languageFor(ext)
	if !ok {
		return Result{}, false
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return Result{}, false
	}
	defer tree.Close()

	return walker(tree.RootNode(), path, content), true
}

func text(n *sitter.Node, content []byte) string {
	return n.Content(content)
}

// lines returns the 1-based inclusive [start, end] line range of n.
func lines(n *sitter.Node) (int, int) {
	return int(n.StartPoint().Row) + 1, int(n.EndPoint().Row) + 1
}

func childNames(n *sitter.Node, content []byte, nodeType, nameField string) []string {
	var names []string
	if n == nil {
		return names
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() != nodeType {
			continue
		}
		if nameNode := child.ChildByFieldName(nameField); nameNode != nil {
			names = append(names, text(nameNode, content))
		}
	}
	return names
}

// innermostDeclarator unwraps nested declarator nodes (pointer, array,
// function declarators) down to the declared identifier's text.
func innermostDeclarator(n *sitter.Node, content []byte) string {
	decl := n.ChildByFieldName("declarator")
	for decl != nil {
		if inner := decl.ChildByFieldName("declarator"); inner != nil {
			decl = inner
			continue
		}
		break
	}
	if decl == nil {
		return ""
	}
	return text(decl, content)
}

// pythonFields collects class-level attribute assignments from a class
// body block.
func pythonFields(body *sitter.Node, content []byte) []string {
	var names []string
	if body == nil {
		return names
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "expression_statement" {
			continue
		}
		for j := 0; j < int(stmt.NamedChildCount()); j++ {
			if assign := stmt.NamedChild(j); assign.Type() == "assignment" {
				if left := assign.ChildByFieldName("left"); left != nil {
					names = append(names, text(left, content))
				}
			}
		}
	}
	return names
}

// javaFields collects the variable names declared by field_declaration
// nodes directly in a class body.
func javaFields(body *sitter.Node, content []byte) []string {
	var names []string
	if body == nil {
		return names
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		decl := body.NamedChild(i)
		if decl.Type() != "field_declaration" {
			continue
		}
		for j := 0; j < int(decl.NamedChildCount()); j++ {
			if v := decl.NamedChild(j); v.Type() == "variable_declarator" {
				if nameNode := v.ChildByFieldName("name"); nameNode != nil {
					names = append(names, text(nameNode, content))
				}
			}
		}
	}
	return names
}

// cppClassMembers splits a class body's field_declaration nodes into
// data members and declared (not inline-defined) methods; inline
// function_definition members count as methods too.
func cppClassMembers(body *sitter.Node, content []byte) (fields, methods []string) {
	if body == nil {
		return nil, nil
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "field_declaration":
			decl := child.ChildByFieldName("declarator")
			if decl == nil {
				continue
			}
			name := innermostDeclarator(child, content)
			if name == "" {
				continue
			}
			if decl.Type() == "function_declarator" {
				methods = append(methods, name)
			} else {
				fields = append(fields, name)
			}
		case "function_definition":
			if name := innermostDeclarator(child, content); name != "" {
				methods = append(methods, name)
			}
		}
	}
	return fields, methods
}

// jsFields collects class field declarations: field_definition in
// JavaScript, public_field_definition in TypeScript.
func jsFields(body *sitter.Node, content []byte) []string {
	var names []string
	if body == nil {
		return names
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "field_definition", "public_field_definition":
			nameNode := child.ChildByFieldName("property")
			if nameNode == nil {
				nameNode = child.ChildByFieldName("name")
			}
			if nameNode != nil {
				names = append(names, text(nameNode, content))
			}
		}
	}
	return names
}

// --- Python -----------------------------------------------------------

func extractPython(root *sitter.Node, path string, content []byte) Result {
	var res Result

	var walk func(n *sitter.Node, parentClass, parentFunction string)
	walk = func(n *sitter.Node, parentClass, parentFunction string) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "function_definition":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := text(nameNode, content)
				start, end := lines(child)
				res.Functions = append(res.Functions, FunctionEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					ParentFunction: parentFunction, ParentClass: parentClass,
				})
				if body := child.ChildByFieldName("body"); body != nil {
					walk(body, parentClass, name)
				}
			case "class_definition":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := text(nameNode, content)
				start, end := lines(child)
				body := child.ChildByFieldName("body")
				methods := childNames(body, content, "function_definition", "name")
				res.Classes = append(res.Classes, ClassEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					Fields:  strings.Join(pythonFields(body, content), ","),
					Methods: strings.Join(methods, ","),
				})
				if body != nil {
					walk(body, name, "")
				}
			default:
				walk(child, parentClass, parentFunction)
			}
		}
	}
	walk(root, "", "")
	return res
}

// --- Java ---------------------------------------------------------------

func extractJava(root *sitter.Node, path string, content []byte) Result {
	var res Result

	var walk func(n *sitter.Node, parentClass string)
	walk = func(n *sitter.Node, parentClass string) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "class_declaration", "interface_declaration":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := text(nameNode, content)
				start, end := lines(child)
				body := child.ChildByFieldName("body")
				methods := childNames(body, content, "method_declaration", "name")
				res.Classes = append(res.Classes, ClassEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					Fields:  strings.Join(javaFields(body, content), ","),
					Methods: strings.Join(methods, ","),
				})
				if body != nil {
					walk(body, name)
				}
			case "method_declaration", "constructor_declaration":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := text(nameNode, content)
				start, end := lines(child)
				res.Functions = append(res.Functions, FunctionEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					ParentClass: parentClass,
				})
			default:
				walk(child, parentClass)
			}
		}
	}
	walk(root, "")
	return res
}

// --- C / C++ --------------------------------------------------------------

func extractC(root *sitter.Node, path string, content []byte) Result {
	return extractCFamily(root, path, content, false)
}

func extractCPP(root *sitter.Node, path string, content []byte) Result {
	return extractCFamily(root, path, content, true)
}

func extractCFamily(root *sitter.Node, path string, content []byte, cpp bool) Result {
	var res Result

	var walk func(n *sitter.Node, parentClass string)
	walk = func(n *sitter.Node, parentClass string) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "function_definition":
				name := innermostDeclarator(child, content)
				if name == "" {
					walk(child, parentClass)
					continue
				}
				start, end := lines(child)
				res.Functions = append(res.Functions, FunctionEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					ParentClass: parentClass,
				})
			case "class_specifier", "struct_specifier":
				if !cpp {
					walk(child, parentClass)
					continue
				}
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					walk(child, parentClass)
					continue
				}
				name := text(nameNode, content)
				start, end := lines(child)
				body := child.ChildByFieldName("body")
				fields, methods := cppClassMembers(body, content)
				res.Classes = append(res.Classes, ClassEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					Fields:  strings.Join(fields, ","),
					Methods: strings.Join(methods, ","),
				})
				if body != nil {
					walk(body, name)
				}
			default:
				walk(child, parentClass)
			}
		}
	}
	walk(root, "")
	return res
}

// --- JavaScript / TypeScript ---------------------------------------------

func extractJSLike(root *sitter.Node, path string, content []byte) Result {
	var res Result

	var walk func(n *sitter.Node, parentClass string)
	walk = func(n *sitter.Node, parentClass string) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "function_declaration":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := text(nameNode, content)
				start, end := lines(child)
				res.Functions = append(res.Functions, FunctionEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					ParentClass: parentClass,
				})
			case "class_declaration":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := text(nameNode, content)
				start, end := lines(child)
				body := child.ChildByFieldName("body")
				methods := childNames(body, content, "method_definition", "name")
				res.Classes = append(res.Classes, ClassEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					Fields:  strings.Join(jsFields(body, content), ","),
					Methods: strings.Join(methods, ","),
				})
				if body != nil {
					walk(body, name)
				}
			case "method_definition":
				nameNode := child.ChildByFieldName("name")
				if nameNode == nil {
					continue
				}
				name := text(nameNode, content)
				start, end := lines(child)
				res.Functions = append(res.Functions, FunctionEntry{
					Name: name, FilePath: path, Body: text(child, content),
					StartLine: start, EndLine: end,
					ParentClass: parentClass,
				})
			default:
				walk(child, parentClass)
			}
		}
	}
	walk(root, "")
	return res
}
