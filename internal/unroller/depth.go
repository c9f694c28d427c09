package unroller

import (
	"github.com/goqasm/goqasm/internal/sym"
)

// Depth accounting. Every operation is applied as one atomic unit: the new
// depth of every touched node is the maximum previous depth among all of
// them plus one, so a node's depth equals the longest causal chain of
// operations touching it.

type opKind int

const (
	opGate opKind = iota
	opMeasure
	opReset
	opBarrier
)

func (v *Visitor) qubitNode(ref sym.BitRef) *sym.QubitDepthNode {
	n, ok := v.st.QubitDepths[ref]
	if !ok {
		n = &sym.QubitDepthNode{Ref: ref}
		v.st.QubitDepths[ref] = n
	}
	return n
}

func (v *Visitor) clbitNode(ref sym.BitRef) *sym.ClbitDepthNode {
	n, ok := v.st.ClbitDepths[ref]
	if !ok {
		n = &sym.ClbitDepthNode{Ref: ref}
		v.st.ClbitDepths[ref] = n
	}
	return n
}

// updateDepths applies one operation over the given qubits and classical
// bits atomically.
func (v *Visitor) updateDepths(kind opKind, qubits []sym.BitRef, clbits []sym.BitRef) {
	qnodes := make([]*sym.QubitDepthNode, len(qubits))
	cnodes := make([]*sym.ClbitDepthNode, len(clbits))

	max := 0
	for i, ref := range qubits {
		n := v.qubitNode(ref)
		qnodes[i] = n
		if n.Depth > max {
			max = n.Depth
		}
	}
	for i, ref := range clbits {
		n := v.clbitNode(ref)
		cnodes[i] = n
		if n.Depth > max {
			max = n.Depth
		}
	}

	depth := max + 1
	for _, n := range qnodes {
		n.Depth = depth
		switch kind {
		case opGate:
			n.NumGates++
		case opMeasure:
			n.NumMeasurements++
		case opReset:
			n.NumResets++
		case opBarrier:
			n.NumBarriers++
		}
		v.recordQubitTouch(n)
	}
	for _, n := range cnodes {
		n.Depth = depth
		if kind == opMeasure {
			n.NumMeasurements++
		}
		v.recordClbitTouch(n)
	}
}

func (v *Visitor) recordQubitTouch(n *sym.QubitDepthNode) {
	for _, rec := range v.touchRecorders {
		rec.qubits[n] = struct{}{}
	}
}

func (v *Visitor) recordClbitTouch(n *sym.ClbitDepthNode) {
	for _, rec := range v.touchRecorders {
		rec.clbits[n] = struct{}{}
	}
}

// withTouchRecorder runs fn while collecting every depth node it touches.
func (v *Visitor) withTouchRecorder(fn func() error) (*touchSet, error) {
	rec := newTouchSet()
	v.touchRecorders = append(v.touchRecorders, rec)
	err := fn()
	v.touchRecorders = v.touchRecorders[:len(v.touchRecorders)-1]
	return rec, err
}

// raiseToUniformDepth lifts every touched node to the single maximum depth
// observed across the set. Used after branching constructs: both arms end
// at the same wall-clock layer.
func raiseToUniformDepth(rec *touchSet) {
	max := 0
	for n := range rec.qubits {
		if n.Depth > max {
			max = n.Depth
		}
	}
	for n := range rec.clbits {
		if n.Depth > max {
			max = n.Depth
		}
	}
	for n := range rec.qubits {
		n.Depth = max
	}
	for n := range rec.clbits {
		n.Depth = max
	}
}
