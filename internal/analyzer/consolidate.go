package analyzer

import (
	"fmt"

	"github.com/goqasm/goqasm/ast"
)

// ConsolidateOffsets assigns each named register a contiguous offset into
// one flat device register. Registers are laid out in the given order; the
// combined size must not exceed the device capacity.
func ConsolidateOffsets(order []string, sizes map[string]int, capacity int) (map[string]int, int, error) {
	offsets := make(map[string]int, len(order))
	total := 0
	for _, name := range order {
		size, ok := sizes[name]
		if !ok {
			return nil, 0, fmt.Errorf("unknown register %q in consolidation order", name)
		}
		offsets[name] = total
		total += size
	}
	if total > capacity {
		return nil, 0, fmt.Errorf("program uses %d qubits, device provides %d", total, capacity)
	}
	return offsets, total, nil
}

// RemapQubitRefs rewrites every already-unrolled qubit reference in the
// statement list in place to (deviceReg, offset+local index). Statements are
// expected in canonical form: qubit operands are single-index expressions.
func RemapQubitRefs(stmts []ast.Statement, deviceReg string, offsets map[string]int) {
	for _, s := range stmts {
		switch x := s.(type) {
		case *ast.QuantumGate:
			remapOperands(x.Qubits, deviceReg, offsets)
		case *ast.QuantumPhase:
			remapOperands(x.Qubits, deviceReg, offsets)
		case *ast.QuantumMeasurement:
			x.Qubit = remapOperand(x.Qubit, deviceReg, offsets)
		case *ast.QuantumReset:
			x.Qubit = remapOperand(x.Qubit, deviceReg, offsets)
		case *ast.QuantumBarrier:
			remapOperands(x.Qubits, deviceReg, offsets)
		case *ast.Branch:
			RemapQubitRefs(x.Then, deviceReg, offsets)
			RemapQubitRefs(x.Else, deviceReg, offsets)
		case *ast.Box:
			RemapQubitRefs(x.Body, deviceReg, offsets)
		}
	}
}

func remapOperands(operands []ast.Expression, deviceReg string, offsets map[string]int) {
	for i, op := range operands {
		operands[i] = remapOperand(op, deviceReg, offsets)
	}
}

func remapOperand(op ast.Expression, deviceReg string, offsets map[string]int) ast.Expression {
	ix, ok := op.(*ast.IndexExpr)
	if !ok {
		return op
	}
	name, ok := collectionName(ix)
	if !ok {
		return op
	}
	offset, ok := offsets[name]
	if !ok {
		return op
	}
	lit, ok := ix.Index.(*ast.IntLiteral)
	if !ok {
		return op
	}
	return &ast.IndexExpr{
		Collection: &ast.Identifier{Name: deviceReg},
		Index:      &ast.IntLiteral{Value: lit.Value + int64(offset)},
		Span:       ix.Span,
	}
}
