package phases

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound matches any NotFoundError via errors.Is
	ErrNotFound = errors.New("source file not found")

	// ErrInvalidSyntax matches any SyntaxError via errors.Is
	ErrInvalidSyntax = errors.New("invalid syntax")
)

// NotFoundError is returned when the source file is missing or unreadable
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("couldn't find the source file at %s: %v", e.Path, e.Err)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SyntaxError is returned when the source file exists but does not parse
type SyntaxError struct {
	Path   string
	Line   int
	Column int
	Detail string
}

func (e *SyntaxError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s exists, but contains invalid syntax: %s", e.Path, e.Detail)
	}
	return fmt.Sprintf("%s exists, but contains invalid syntax: %s (line %d, column %d)",
		e.Path, e.Detail, e.Line, e.Column)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrInvalidSyntax }
