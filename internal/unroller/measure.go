package unroller

import (
	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/qasm"
)

func (v *Visitor) visitMeasurement(s *ast.QuantumMeasurement) error {
	qubits, err := v.resolveQubitOperand(s, s.Qubit)
	if err != nil {
		return err
	}
	if err := checkDuplicateRefs(s, "measurement", qubits); err != nil {
		return err
	}

	var clbits []sym.BitRef
	if s.Target != nil {
		clbits, err = v.resolveClbitOperand(s, s.Target)
		if err != nil {
			return err
		}
		if err := checkDuplicateRefs(s, "measurement target", clbits); err != nil {
			return err
		}
		if len(clbits) != len(qubits) {
			return qasm.NewValidationError(s, "measurement maps %d qubits onto %d classical bits", len(qubits), len(clbits))
		}
	}

	v.st.HasMeasure = true
	for i, q := range qubits {
		out := &ast.QuantumMeasurement{Qubit: refExpr(q), Span: s.Span}
		if clbits != nil {
			out.Target = refExpr(clbits[i])
		}
		v.emit(out)
	}
	// Emission is per qubit, but the depth update is one atomic layer over
	// everything the statement touches.
	v.updateDepths(opMeasure, qubits, clbits)
	return nil
}

func (v *Visitor) visitReset(s *ast.QuantumReset) error {
	qubits, err := v.resolveQubitOperand(s, s.Qubit)
	if err != nil {
		return err
	}
	if err := checkDuplicateRefs(s, "reset", qubits); err != nil {
		return err
	}
	for _, q := range qubits {
		v.emit(&ast.QuantumReset{Qubit: refExpr(q), Span: s.Span})
	}
	v.updateDepths(opReset, qubits, nil)
	return nil
}

// visitBarrier synchronizes the named qubits, or every declared qubit when
// called bare. A barrier is one depth layer regardless of how it is
// printed.
func (v *Visitor) visitBarrier(s *ast.QuantumBarrier) error {
	var refs []sym.BitRef
	if len(s.Qubits) == 0 {
		for _, reg := range v.st.QubitRegOrder {
			size := v.st.QubitRegs[reg]
			for i := 0; i < size; i++ {
				refs = append(refs, sym.BitRef{Reg: reg, Index: i})
			}
		}
		if len(refs) == 0 {
			return qasm.NewValidationError(s, "barrier before any qubit declaration")
		}
	} else {
		var err error
		refs, err = v.resolveQubitOperands(s, s.Qubits)
		if err != nil {
			return err
		}
		if err := checkDuplicateRefs(s, "barrier", refs); err != nil {
			return err
		}
	}

	v.st.HasBarriers = true
	v.updateDepths(opBarrier, refs, nil)
	if v.cfg.UnrollBarriers {
		for _, r := range refs {
			v.emit(&ast.QuantumBarrier{Qubits: []ast.Expression{refExpr(r)}, Span: s.Span})
		}
		return nil
	}
	v.emit(&ast.QuantumBarrier{Qubits: refExprs(refs), Span: s.Span})
	return nil
}
