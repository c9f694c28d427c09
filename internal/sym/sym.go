// Package sym defines the symbol and depth model: typed variables, qubit and
// classical-bit depth nodes, and the bit reference used throughout register
// and alias bookkeeping.
package sym

import (
	"github.com/goqasm/goqasm/ast"
)

// MaxArrayDimensions is the maximum number of dimensions an array variable
// may declare.
const MaxArrayDimensions = 7

// Variable is a declared name in some scope: a classical value, a qubit
// register, or an alias.
type Variable struct {
	Name     string
	Kind     ast.TypeKind
	Width    int   // bit-width; 0 means the default width
	Dims     []int // array dimensions, outermost first
	Value    any   // scalar (int64/float64/bool/complex128) or nested []any
	Span     ast.Span
	Constant bool
	IsQubit  bool
	IsAlias  bool
	Readonly bool
	Shadow   bool
}

// IsArray reports whether the variable has array dimensions.
func (v *Variable) IsArray() bool {
	return len(v.Dims) > 0
}

// BitRef identifies one physical bit as (register name, index).
type BitRef struct {
	Reg   string
	Index int
}

// QubitDepthNode tracks cumulative depth and operation counters for one
// physical qubit. Depth of a node is always at least one more than the
// depth of any node involved in the same operation before it was applied.
type QubitDepthNode struct {
	Ref             BitRef
	Depth           int
	NumGates        int
	NumMeasurements int
	NumResets       int
	NumBarriers     int
}

// TotalOps returns the number of operations this qubit participated in.
func (n *QubitDepthNode) TotalOps() int {
	return n.NumGates + n.NumMeasurements + n.NumResets + n.NumBarriers
}

// ClbitDepthNode tracks cumulative depth and measurement count for one
// classical bit.
type ClbitDepthNode struct {
	Ref             BitRef
	Depth           int
	NumMeasurements int
}

// TotalOps returns the number of operations this bit participated in.
func (n *ClbitDepthNode) TotalOps() int {
	return n.NumMeasurements
}

// AliasTarget is one resolved entry of an alias: the physical register bit
// backing (alias name, alias index).
type AliasTarget = BitRef

// Alias is a named view over a subset or permutation of a register's
// physical qubits. Aliases never own qubits.
type Alias struct {
	Name    string
	Targets []AliasTarget // alias index -> physical (register, index)
}

// Size returns the number of bits visible through the alias.
func (a *Alias) Size() int {
	return len(a.Targets)
}
