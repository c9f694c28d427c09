// Package goqasm provides semantic analysis and unrolling for OpenQASM
// 2.0 and 3.0 programs.
package goqasm

import "github.com/goqasm/goqasm/qasm"

// Type aliases for the public API - all types come from the qasm subpackage.

// Module is a validated or unrolled OpenQASM program with its register and
// depth bookkeeping.
type Module = qasm.Module

// Config is the full configuration surface of validation and unrolling.
type Config = qasm.Config

// Parser turns OpenQASM source text into a program tree.
type Parser = qasm.Parser

// PulseVisitor rewrites the statements of cal and defcal blocks.
type PulseVisitor = qasm.PulseVisitor

// Decomposer approximates rotations over a basis gate set.
type Decomposer = qasm.Decomposer

// ExternSignature declares the classical signature of an extern function.
type ExternSignature = qasm.ExternSignature

// ValidationError reports a semantic violation in the input program.
type ValidationError = qasm.ValidationError

// UnrollError reports a failure during lowering.
type UnrollError = qasm.UnrollError

// LoopLimitError reports a loop exceeding the configured iteration cap.
type LoopLimitError = qasm.LoopLimitError

// ParsingError wraps a failure surfaced from the external parser.
type ParsingError = qasm.ParsingError

// DefaultMaxLoopIters caps loop unrolling when no limit is configured.
const DefaultMaxLoopIters = qasm.DefaultMaxLoopIters

// DefaultConfig returns the baseline configuration.
var DefaultConfig = qasm.DefaultConfig
