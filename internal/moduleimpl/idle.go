package moduleimpl

import (
	"fmt"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/sym"
)

// RemoveIdleQubits drops every qubit no operation touches, renumbering the
// survivors within their registers. Registers left empty disappear
// entirely.
func (m *qasmModule) RemoveIdleQubits() error {
	if m.unrolled == nil {
		if err := m.Unroll(); err != nil {
			return err
		}
	}
	st := m.st
	if st == nil {
		return fmt.Errorf("module is invalid")
	}

	remap := make(map[sym.BitRef]sym.BitRef)
	newSizes := make(map[string]int)
	var newOrder []string
	for _, reg := range st.QubitRegOrder {
		used := 0
		for i := 0; i < st.QubitRegs[reg]; i++ {
			ref := sym.BitRef{Reg: reg, Index: i}
			if n, ok := st.QubitDepths[ref]; ok && n.TotalOps() > 0 {
				remap[ref] = sym.BitRef{Reg: reg, Index: used}
				used++
			}
		}
		if used > 0 {
			newSizes[reg] = used
			newOrder = append(newOrder, reg)
		}
	}

	m.unrolled.Statements = rewriteForIdleRemoval(m.unrolled.Statements, newSizes, remap)

	newDepths := make(map[sym.BitRef]*sym.QubitDepthNode, len(remap))
	for old, nref := range remap {
		n := st.QubitDepths[old]
		n.Ref = nref
		newDepths[nref] = n
	}
	st.QubitDepths = newDepths
	st.QubitRegs = newSizes
	st.QubitRegOrder = newOrder
	st.Aliases = map[string]*sym.Alias{}

	base := 0
	st.RegBase = make(map[string]int, len(newOrder))
	for _, reg := range newOrder {
		st.RegBase[reg] = base
		base += newSizes[reg]
	}
	st.TotalQubits = base
	return nil
}

func rewriteForIdleRemoval(stmts []ast.Statement, sizes map[string]int, remap map[sym.BitRef]sym.BitRef) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for _, s := range stmts {
		switch x := s.(type) {
		case *ast.QuantumDeclaration:
			size, keep := sizes[x.Name]
			if !keep {
				continue
			}
			x.Size = &ast.IntLiteral{Value: int64(size)}
			out = append(out, x)
		case *ast.QuantumGate:
			remapIdleOperands(x.Qubits, remap)
			out = append(out, x)
		case *ast.QuantumPhase:
			remapIdleOperands(x.Qubits, remap)
			out = append(out, x)
		case *ast.QuantumMeasurement:
			x.Qubit = remapIdleOperand(x.Qubit, remap)
			out = append(out, x)
		case *ast.QuantumReset:
			x.Qubit = remapIdleOperand(x.Qubit, remap)
			out = append(out, x)
		case *ast.QuantumBarrier:
			remapIdleOperands(x.Qubits, remap)
			out = append(out, x)
		case *ast.Branch:
			x.Then = rewriteForIdleRemoval(x.Then, sizes, remap)
			x.Else = rewriteForIdleRemoval(x.Else, sizes, remap)
			out = append(out, x)
		case *ast.Box:
			x.Body = rewriteForIdleRemoval(x.Body, sizes, remap)
			out = append(out, x)
		default:
			out = append(out, s)
		}
	}
	return out
}

func remapIdleOperands(operands []ast.Expression, remap map[sym.BitRef]sym.BitRef) {
	for i, op := range operands {
		operands[i] = remapIdleOperand(op, remap)
	}
}

func remapIdleOperand(op ast.Expression, remap map[sym.BitRef]sym.BitRef) ast.Expression {
	ix, ok := op.(*ast.IndexExpr)
	if !ok {
		return op
	}
	ident, ok := ix.Collection.(*ast.Identifier)
	if !ok {
		return op
	}
	lit, ok := ix.Index.(*ast.IntLiteral)
	if !ok {
		return op
	}
	nref, ok := remap[sym.BitRef{Reg: ident.Name, Index: int(lit.Value)}]
	if !ok {
		return op
	}
	return &ast.IndexExpr{
		Collection: &ast.Identifier{Name: nref.Reg},
		Index:      &ast.IntLiteral{Value: int64(nref.Index)},
		Span:       ix.Span,
	}
}
