// Package qasm defines the public surface of the unrolling engine: the
// module interface and lifecycle, configuration, the error taxonomy, and
// the contracts of external collaborators (parser, pulse sub-visitor,
// decomposition numerics).
package qasm

import (
	"github.com/goqasm/goqasm/ast"
)

// Parser turns OpenQASM source text into a program tree. The grammar and
// tokenizer live outside this system; this is the consuming contract.
type Parser interface {
	Parse(source string) (*ast.Program, error)
}

// PulseVisitor rewrites the statements of a cal or defcal block. The
// OpenPulse dialect is handled entirely behind this contract.
type PulseVisitor interface {
	VisitBasicBlock(stmts []ast.Statement, isDefCal bool) ([]ast.Statement, error)
}

// Decomposer approximates a rotation over the given basis gate set and
// returns the ordered primitive gate-name sequence. Numerics (Solovay-
// Kitaev, KAK) live outside this system behind this contract.
type Decomposer interface {
	DecomposeRotation(axis string, angle float64, basis []string, depth int, accuracy float64) ([]string, error)
}

// Module is a validated or unrolled OpenQASM program together with its
// register and depth bookkeeping.
//
// The lifecycle is a three-state machine: unset -> valid | invalid.
// Validate is idempotent and mutates no output AST. Unroll always re-runs
// the full pass; on failure the module becomes invalid, the partially
// built output is discarded, and every count query reports -1 until a
// later Validate or Unroll succeeds.
type Module interface {
	// Version returns the normalized version string, "2.0" or "3.0".
	Version() string

	// Validate runs the check-only pass. No-op if already valid.
	Validate() error

	// Unroll runs the full lowering pass, rebuilding the canonical
	// program from scratch.
	Unroll() error

	// QubitCount returns the number of declared qubits, or -1 if the
	// module is invalid.
	QubitCount() int

	// ClbitCount returns the number of declared classical bits, or -1 if
	// the module is invalid.
	ClbitCount() int

	// Depth unrolls a deep copy with cleared depth maps and returns the
	// circuit depth. The live module is never mutated.
	Depth() (int, error)

	// HasMeasurements reports whether the program measures any qubit.
	HasMeasurements() bool

	// HasBarriers reports whether the program contains barriers.
	HasBarriers() bool

	// QubitRegisters returns name -> size for declared qubit registers.
	QubitRegisters() map[string]int

	// ClbitRegisters returns name -> size for declared classical registers.
	ClbitRegisters() map[string]int

	// OriginalProgram returns the parse tree the module was built from.
	// It is never mutated by validation or unrolling.
	OriginalProgram() *ast.Program

	// UnrolledProgram returns the canonical program built by the last
	// successful Unroll, or nil.
	UnrolledProgram() *ast.Program

	// Copy returns an independent deep copy of the module.
	Copy() Module

	// Rebase rewrites the unrolled program onto the basis gate set using
	// the configured Decomposer. It is never invoked implicitly by Unroll.
	Rebase(basis []string) error

	// RemoveIdleQubits prunes registers and bits that no operation
	// touches, renumbering the survivors.
	RemoveIdleQubits() error
}
