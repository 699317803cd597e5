package parser

// Kind distinguishes ordinary from async function definitions
type Kind string

const (
	KindSync  Kind = "sync"
	KindAsync Kind = "async"
)

// Module is the structural view of one parsed Python source file
type Module struct {
	Path        string
	Definitions []Definition
	Diagnostics []Diagnostic
}

// Definition is a function definition found anywhere in a module
type Definition struct {
	Name   string
	Kind   Kind
	Line   int    // 1-based
	Column int    // 1-based
	Depth  int    // Number of enclosing function or class definitions
	Class  string // Nearest enclosing class, empty at module level
}

// Diagnostic describes one syntax problem reported by the grammar
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

// HasErrors reports whether the source failed to parse cleanly
func (m *Module) HasErrors() bool {
	return len(m.Diagnostics) > 0
}
