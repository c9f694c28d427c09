// Package testutil provides program builders and a compact statement
// renderer for tests.
package testutil

import (
	"github.com/goqasm/goqasm/ast"
)

// ProgramBuilder assembles test programs without going through a parser.
type ProgramBuilder struct {
	prog *ast.Program
}

// NewProgram starts a program with the given version ("2.0" or "3.0").
func NewProgram(version string) *ProgramBuilder {
	return &ProgramBuilder{prog: &ast.Program{Version: version}}
}

// Build returns the assembled program.
func (b *ProgramBuilder) Build() *ast.Program {
	return b.prog
}

// Stmt appends an arbitrary statement.
func (b *ProgramBuilder) Stmt(s ast.Statement) *ProgramBuilder {
	b.prog.Statements = append(b.prog.Statements, s)
	return b
}

// Qubits declares a qubit register.
func (b *ProgramBuilder) Qubits(name string, size int) *ProgramBuilder {
	return b.Stmt(&ast.QuantumDeclaration{Name: name, Size: ast.Int(int64(size))})
}

// Bits declares a classical bit register.
func (b *ProgramBuilder) Bits(name string, size int) *ProgramBuilder {
	return b.Stmt(&ast.ClassicalDeclaration{
		Type: ast.ClassicalType{Kind: ast.TypeBit, Width: ast.Int(int64(size))},
		Name: name,
	})
}

// Const declares a compile-time integer constant.
func (b *ProgramBuilder) Const(name string, value int64) *ProgramBuilder {
	return b.Stmt(&ast.ClassicalDeclaration{
		Type:     ast.ClassicalType{Kind: ast.TypeInt},
		Name:     name,
		Init:     ast.Int(value),
		Constant: true,
	})
}

// Gate appends a plain gate call.
func (b *ProgramBuilder) Gate(name string, operands ...ast.Expression) *ProgramBuilder {
	return b.Stmt(&ast.QuantumGate{Name: name, Qubits: operands})
}

// GateP appends a parameterized gate call.
func (b *ProgramBuilder) GateP(name string, params []ast.Expression, operands ...ast.Expression) *ProgramBuilder {
	return b.Stmt(&ast.QuantumGate{Name: name, Args: params, Qubits: operands})
}

// ModGate appends a gate call under modifiers.
func (b *ProgramBuilder) ModGate(mods []ast.GateModifier, name string, operands ...ast.Expression) *ProgramBuilder {
	return b.Stmt(&ast.QuantumGate{Modifiers: mods, Name: name, Qubits: operands})
}

// Measure appends `target = measure qubit`.
func (b *ProgramBuilder) Measure(qubit, target ast.Expression) *ProgramBuilder {
	return b.Stmt(&ast.QuantumMeasurement{Qubit: qubit, Target: target})
}

// Inv builds an inv modifier.
func Inv() ast.GateModifier {
	return ast.GateModifier{Kind: ast.ModInv}
}

// Pow builds a pow(k) modifier.
func Pow(k int64) ast.GateModifier {
	return ast.GateModifier{Kind: ast.ModPow, Arg: ast.Int(k)}
}

// Ctrl builds a ctrl(n) modifier.
func Ctrl(n int64) ast.GateModifier {
	return ast.GateModifier{Kind: ast.ModCtrl, Arg: ast.Int(n)}
}

// NegCtrl builds a negctrl(n) modifier.
func NegCtrl(n int64) ast.GateModifier {
	return ast.GateModifier{Kind: ast.ModNegCtrl, Arg: ast.Int(n)}
}
