package unroller

import (
	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/analyzer"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/qasm"
)

// resolveQubitOperand resolves one qubit operand expression to the ordered
// list of physical qubits it names. Resolution order: active function
// remap frames (innermost first), then aliases, then global registers, so
// nested-inlined gates always end at concrete global qubits.
func (v *Visitor) resolveQubitOperand(node ast.Statement, operand ast.Expression) ([]sym.BitRef, error) {
	name, ok := analyzer.OperandName(operand)
	if !ok {
		return nil, qasm.NewValidationError(node, "unsupported qubit operand form")
	}

	// Subroutine formal qubits resolve through the innermost frame that
	// declares them, then onward through the remaining outer frames.
	for i := len(v.remapFrames) - 1; i >= 0; i-- {
		frame := v.remapFrames[i]
		size, ok := frame.sizes[name]
		if !ok {
			continue
		}
		indices, err := v.eval.ResolveIndices(operand, name, size)
		if err != nil {
			return nil, qasm.NewValidationError(node, "%s", err.Error())
		}
		refs := make([]sym.BitRef, len(indices))
		for j, idx := range indices {
			mapped, ok := frame.bind[sym.BitRef{Reg: name, Index: idx}]
			if !ok {
				return nil, qasm.NewValidationError(node, "qubit %s[%d] is not bound in this call", name, idx)
			}
			refs[j] = v.mapThroughOuterFrames(mapped, i)
		}
		return refs, nil
	}

	if alias, ok := v.st.Aliases[name]; ok {
		indices, err := v.eval.ResolveIndices(operand, name, alias.Size())
		if err != nil {
			return nil, qasm.NewValidationError(node, "%s", err.Error())
		}
		refs := make([]sym.BitRef, len(indices))
		for j, idx := range indices {
			refs[j] = alias.Targets[idx]
		}
		return refs, nil
	}

	variable, found := v.scope.GetFromVisibleScope(name)
	if !found {
		return nil, qasm.NewValidationError(node, "undeclared qubit register %q", name)
	}
	if !variable.IsQubit {
		return nil, qasm.NewValidationError(node, "%q is not a qubit register", name)
	}
	size, ok := v.st.QubitRegs[name]
	if !ok {
		return nil, qasm.NewValidationError(node, "unknown qubit register %q", name)
	}
	indices, err := v.eval.ResolveIndices(operand, name, size)
	if err != nil {
		return nil, qasm.NewValidationError(node, "%s", err.Error())
	}
	refs := make([]sym.BitRef, len(indices))
	for j, idx := range indices {
		refs[j] = sym.BitRef{Reg: name, Index: idx}
	}
	return refs, nil
}

// mapThroughOuterFrames chases a physical ref through frames older than
// frameIdx, for calls whose actual arguments were themselves formals.
func (v *Visitor) mapThroughOuterFrames(ref sym.BitRef, frameIdx int) sym.BitRef {
	for i := frameIdx - 1; i >= 0; i-- {
		frame := v.remapFrames[i]
		if _, ok := frame.sizes[ref.Reg]; !ok {
			continue
		}
		if mapped, ok := frame.bind[ref]; ok {
			ref = mapped
		}
	}
	return ref
}

// resolveQubitOperands resolves a whole operand list, flattened in order.
func (v *Visitor) resolveQubitOperands(node ast.Statement, operands []ast.Expression) ([]sym.BitRef, error) {
	var refs []sym.BitRef
	for _, op := range operands {
		r, err := v.resolveQubitOperand(node, op)
		if err != nil {
			return nil, err
		}
		refs = append(refs, r...)
	}
	return refs, nil
}

// resolveClbitOperand resolves a classical-bit operand against the
// declared classical registers.
func (v *Visitor) resolveClbitOperand(node ast.Statement, operand ast.Expression) ([]sym.BitRef, error) {
	name, ok := analyzer.OperandName(operand)
	if !ok {
		return nil, qasm.NewValidationError(node, "unsupported classical operand form")
	}
	variable, found := v.scope.GetFromVisibleScope(name)
	if !found {
		return nil, qasm.NewValidationError(node, "undeclared classical register %q", name)
	}
	if variable.IsQubit || variable.Kind != ast.TypeBit {
		return nil, qasm.NewValidationError(node, "%q is not a classical bit register", name)
	}
	size, ok := v.st.ClbitRegs[name]
	if !ok {
		return nil, qasm.NewValidationError(node, "unknown classical register %q", name)
	}
	indices, err := v.eval.ResolveIndices(operand, name, size)
	if err != nil {
		return nil, qasm.NewValidationError(node, "%s", err.Error())
	}
	refs := make([]sym.BitRef, len(indices))
	for j, idx := range indices {
		refs[j] = sym.BitRef{Reg: name, Index: idx}
	}
	return refs, nil
}

// refExpr is the canonical single-bit reference for an unrolled operand.
func refExpr(ref sym.BitRef) ast.Expression {
	return &ast.IndexExpr{
		Collection: &ast.Identifier{Name: ref.Reg},
		Index:      &ast.IntLiteral{Value: int64(ref.Index)},
	}
}

func refExprs(refs []sym.BitRef) []ast.Expression {
	out := make([]ast.Expression, len(refs))
	for i, r := range refs {
		out[i] = refExpr(r)
	}
	return out
}

// checkDuplicateRefs rejects the same physical bit appearing twice in one
// operation.
func checkDuplicateRefs(node ast.Statement, what string, refs []sym.BitRef) error {
	seen := make(map[sym.BitRef]struct{}, len(refs))
	for _, r := range refs {
		if _, dup := seen[r]; dup {
			return qasm.NewValidationError(node, "duplicate qubit %s[%d] in %s", r.Reg, r.Index, what)
		}
		seen[r] = struct{}{}
	}
	return nil
}
