package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// tree-sitter recovers from several inputs that the Python compiler rejects
// without leaving an ERROR node behind. checkNode reports those.
func checkNode(n *sitter.Node, source []byte) []Diagnostic {
	switch n.Type() {
	case "module":
		return checkModule(n, source)
	case "block":
		return checkBlock(n, source)
	case "parameters":
		return checkParameters(n)
	case "print_statement":
		return []Diagnostic{diagnosticAt(n, `missing parentheses in call to "print"`)}
	case "exec_statement":
		return []Diagnostic{diagnosticAt(n, `missing parentheses in call to "exec"`)}
	case "expression_statement":
		return checkExpressionStatement(n)
	case "delete_statement":
		return checkDelete(n)
	}
	return nil
}

func checkModule(n *sitter.Node, source []byte) []Diagnostic {
	var diags []Diagnostic
	for _, stmt := range statements(n) {
		if startsLine(stmt, source) && stmt.StartPoint().Column != 0 {
			diags = append(diags, diagnosticAt(stmt, "unexpected indent"))
		}
	}
	return diags
}

func checkBlock(n *sitter.Node, source []byte) []Diagnostic {
	stmts := statements(n)
	if len(stmts) == 0 {
		return []Diagnostic{diagnosticAt(n, "expected an indented block")}
	}

	var diags []Diagnostic
	indent := -1
	for _, stmt := range stmts {
		if !startsLine(stmt, source) {
			continue
		}
		col := int(stmt.StartPoint().Column)
		switch {
		case indent < 0:
			indent = col
		case col > indent:
			diags = append(diags, diagnosticAt(stmt, "unexpected indent"))
		case col < indent:
			diags = append(diags, diagnosticAt(stmt, "unindent does not match the enclosing block"))
		}
	}
	return diags
}

// checkParameters rejects a required positional parameter after one with a
// default. Parameters after a bare * or *args are keyword-only and exempt.
func checkParameters(n *sitter.Node) []Diagnostic {
	seenDefault := false
	for i := 0; i < int(n.NamedChildCount()); i++ {
		param := n.NamedChild(i)
		switch param.Type() {
		case "default_parameter", "typed_default_parameter":
			seenDefault = true
		case "keyword_separator", "list_splat_pattern":
			return nil
		case "typed_parameter":
			// *args: T and **kwargs: T are typed too
			first := param.NamedChild(0)
			if first == nil {
				continue
			}
			switch first.Type() {
			case "list_splat_pattern":
				return nil
			case "identifier":
				if seenDefault {
					return []Diagnostic{diagnosticAt(param, "parameter without a default follows parameter with a default")}
				}
			}
		case "identifier":
			if seenDefault {
				return []Diagnostic{diagnosticAt(param, "parameter without a default follows parameter with a default")}
			}
		}
	}
	return nil
}

func checkExpressionStatement(n *sitter.Node) []Diagnostic {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "named_expression" {
			return []Diagnostic{diagnosticAt(child, "unparenthesized assignment expression")}
		}
	}
	return nil
}

func checkDelete(n *sitter.Node) []Diagnostic {
	var diags []Diagnostic
	for i := 0; i < int(n.NamedChildCount()); i++ {
		target := n.NamedChild(i)
		targets := []*sitter.Node{target}
		if target.Type() == "expression_list" {
			targets = targets[:0]
			for j := 0; j < int(target.NamedChildCount()); j++ {
				targets = append(targets, target.NamedChild(j))
			}
		}
		for _, t := range targets {
			if t.Type() == "call" {
				diags = append(diags, diagnosticAt(t, "cannot delete function call"))
			}
		}
	}
	return diags
}

// statements returns the named children of a module or block, leaving out
// comments and nodes already reported as errors.
func statements(n *sitter.Node) []*sitter.Node {
	var stmts []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "comment", "ERROR":
			continue
		}
		stmts = append(stmts, child)
	}
	return stmts
}

// startsLine reports whether only whitespace precedes n on its line. A
// statement after ";" or on the same line as its header does not.
func startsLine(n *sitter.Node, source []byte) bool {
	start := n.StartByte()
	lineStart := start - n.StartPoint().Column
	for _, b := range source[lineStart:start] {
		if b != ' ' && b != '\t' && b != '\f' {
			return false
		}
	}
	return true
}

func diagnosticAt(n *sitter.Node, message string) Diagnostic {
	return Diagnostic{
		Line:    int(n.StartPoint().Row) + 1,
		Column:  int(n.StartPoint().Column) + 1,
		Message: message,
	}
}
