// Package parser builds a read-only syntax view of Python source using
// tree-sitter. Source is never executed; only its structure is inspected.
package parser

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

const maxSnippet = 40

// ParsePython parses Python source and collects every function definition
// and every syntax diagnostic in document order.
//
// A new tree-sitter parser is created per call: parsers are not safe for
// concurrent use, and no state is shared between calls.
func ParsePython(ctx context.Context, path string, source []byte) (*Module, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	defer tree.Close()

	mod := &Module{
		Path:        path,
		Definitions: make([]Definition, 0),
		Diagnostics: make([]Diagnostic, 0),
	}

	root := tree.RootNode()
	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	walkTree(cursor, func(n *sitter.Node) {
		switch {
		case n.IsMissing():
			mod.Diagnostics = append(mod.Diagnostics, diagnosticAt(n, fmt.Sprintf("missing %q", n.Type())))
		case n.Type() == "ERROR":
			mod.Diagnostics = append(mod.Diagnostics, diagnosticAt(n, fmt.Sprintf("unexpected %q", snippet(n.Content(source)))))
		case n.Type() == "function_definition":
			if def, ok := parseDefinition(n, source); ok {
				mod.Definitions = append(mod.Definitions, def)
			}
		}
		mod.Diagnostics = append(mod.Diagnostics, checkNode(n, source)...)
	})

	// The grammar can flag an error without leaving a visible node behind
	if root.HasError() && len(mod.Diagnostics) == 0 {
		mod.Diagnostics = append(mod.Diagnostics, diagnosticAt(root, "malformed module"))
	}

	// Module and block checks report ahead of their position in the walk
	slices.SortStableFunc(mod.Diagnostics, func(a, b Diagnostic) int {
		if a.Line != b.Line {
			return cmp.Compare(a.Line, b.Line)
		}
		return cmp.Compare(a.Column, b.Column)
	})

	return mod, nil
}

func parseDefinition(node *sitter.Node, source []byte) (Definition, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Definition{}, false
	}

	def := Definition{
		Name:   nameNode.Content(source),
		Kind:   KindSync,
		Line:   int(node.StartPoint().Row) + 1,
		Column: int(node.StartPoint().Column) + 1,
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if node.Child(i).Type() == "async" {
			def.Kind = KindAsync
			break
		}
	}

	for parent := node.Parent(); parent != nil; parent = parent.Parent() {
		switch parent.Type() {
		case "function_definition":
			def.Depth++
		case "class_definition":
			def.Depth++
			if def.Class == "" {
				if n := parent.ChildByFieldName("name"); n != nil {
					def.Class = n.Content(source)
				}
			}
		}
	}

	return def, true
}

// walkTree visits every node in depth-first pre-order
func walkTree(cursor *sitter.TreeCursor, fn func(*sitter.Node)) {
	for {
		fn(cursor.CurrentNode())

		if cursor.GoToFirstChild() {
			continue
		}

		for {
			if cursor.GoToNextSibling() {
				break
			}
			if !cursor.GoToParent() {
				return
			}
		}
	}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if utf8.RuneCountInString(s) > maxSnippet {
		s = string([]rune(s)[:maxSnippet]) + "..."
	}
	return s
}
