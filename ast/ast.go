// Package ast defines the OpenQASM program tree shared between the external
// parser, the unrolling engine, and downstream serializers. Nodes are plain
// value trees: every statement and expression carries a source Span and
// supports deep cloning, so a subtree can be instantiated independently at
// every reuse site (loop iterations, gate inlining).
package ast

// ByteOffset is a byte position in source text.
type ByteOffset uint32

// Span represents a range in source text.
type Span struct {
	Start ByteOffset // inclusive
	End   ByteOffset // exclusive
}

// Synthetic is a span for compiler-generated constructs.
var Synthetic = Span{Start: 0, End: 0}

// NewSpan creates a new span.
func NewSpan(start, end ByteOffset) Span {
	return Span{Start: start, End: end}
}

// Len returns the length of the span in bytes.
func (s Span) Len() ByteOffset {
	return s.End - s.Start
}

// IsSynthetic returns true if this is a synthetic span.
func (s Span) IsSynthetic() bool {
	return s.Start == 0 && s.End == 0
}

// Program is a parsed OpenQASM program: a version string ("2.0" or "3.0")
// and an ordered statement list.
type Program struct {
	Version    string
	Statements []Statement
}

// Clone returns a deep copy of the program.
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	return &Program{
		Version:    p.Version,
		Statements: CloneStatements(p.Statements),
	}
}
