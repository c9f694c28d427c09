package qasm

import (
	"fmt"

	"github.com/goqasm/goqasm/ast"
)

// ValidationError reports a semantic, type, or scope error. It carries the
// offending node and its source span for line/column reporting.
type ValidationError struct {
	Message string
	Node    ast.Statement
	Span    ast.Span
}

func (e *ValidationError) Error() string {
	if e.Span.IsSynthetic() {
		return e.Message
	}
	return fmt.Sprintf("%s (at bytes %d..%d)", e.Message, e.Span.Start, e.Span.End)
}

// NewValidationError builds a ValidationError for a statement.
func NewValidationError(node ast.Statement, format string, args ...any) *ValidationError {
	e := &ValidationError{Message: fmt.Sprintf(format, args...), Node: node}
	if node != nil {
		e.Span = node.StmtSpan()
	}
	return e
}

// UnrollError reports a lowering-specific failure.
type UnrollError struct {
	Message string
	Node    ast.Statement
	Span    ast.Span
}

func (e *UnrollError) Error() string {
	if e.Span.IsSynthetic() {
		return e.Message
	}
	return fmt.Sprintf("%s (at bytes %d..%d)", e.Message, e.Span.Start, e.Span.End)
}

// NewUnrollError builds an UnrollError for a statement.
func NewUnrollError(node ast.Statement, format string, args ...any) *UnrollError {
	e := &UnrollError{Message: fmt.Sprintf(format, args...), Node: node}
	if node != nil {
		e.Span = node.StmtSpan()
	}
	return e
}

// LoopLimitError reports that a loop exceeded the configured maximum
// iteration count.
type LoopLimitError struct {
	Message string
	Node    ast.Statement
	Span    ast.Span
}

func (e *LoopLimitError) Error() string { return e.Message }

// NewLoopLimitError builds a LoopLimitError for a loop statement.
func NewLoopLimitError(node ast.Statement, format string, args ...any) *LoopLimitError {
	e := &LoopLimitError{Message: fmt.Sprintf(format, args...), Node: node}
	if node != nil {
		e.Span = node.StmtSpan()
	}
	return e
}

// ParsingError wraps a failure surfaced from the external parser.
type ParsingError struct {
	Message string
	Err     error
}

func (e *ParsingError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ParsingError) Unwrap() error { return e.Err }
