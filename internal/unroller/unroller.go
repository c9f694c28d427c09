// Package unroller implements the statement visitor that validates and
// lowers OpenQASM programs: control-flow unrolling, gate-modifier
// resolution, recursive inlining of custom gates and subroutines, and the
// per-bit depth accounting.
package unroller

import (
	"log/slog"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/analyzer"
	"github.com/goqasm/goqasm/internal/scope"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/internal/types"
	"github.com/goqasm/goqasm/qasm"
)

// ReservedPrefix marks register names the engine reserves for itself
// (the consolidation device register lives under it).
const ReservedPrefix = "__"

// State is the register and depth bookkeeping a module owns. A fresh
// State is built on every validate/unroll run and committed only on
// success.
type State struct {
	QubitRegs     map[string]int
	QubitRegOrder []string
	ClbitRegs     map[string]int
	ClbitRegOrder []string

	// RegBase maps a qubit register to its first sequential global label.
	RegBase map[string]int

	QubitDepths map[sym.BitRef]*sym.QubitDepthNode
	ClbitDepths map[sym.BitRef]*sym.ClbitDepthNode

	Aliases map[string]*sym.Alias

	TotalQubits int
	TotalClbits int

	HasMeasure  bool
	HasBarriers bool
}

// NewState returns empty bookkeeping.
func NewState() *State {
	return &State{
		QubitRegs:   map[string]int{},
		ClbitRegs:   map[string]int{},
		RegBase:     map[string]int{},
		QubitDepths: map[sym.BitRef]*sym.QubitDepthNode{},
		ClbitDepths: map[sym.BitRef]*sym.ClbitDepthNode{},
		Aliases:     map[string]*sym.Alias{},
	}
}

// Clone deep-copies the state.
func (s *State) Clone() *State {
	out := NewState()
	for k, v := range s.QubitRegs {
		out.QubitRegs[k] = v
	}
	for k, v := range s.ClbitRegs {
		out.ClbitRegs[k] = v
	}
	for k, v := range s.RegBase {
		out.RegBase[k] = v
	}
	out.QubitRegOrder = append([]string(nil), s.QubitRegOrder...)
	out.ClbitRegOrder = append([]string(nil), s.ClbitRegOrder...)
	for k, v := range s.QubitDepths {
		node := *v
		out.QubitDepths[k] = &node
	}
	for k, v := range s.ClbitDepths {
		node := *v
		out.ClbitDepths[k] = &node
	}
	for k, v := range s.Aliases {
		out.Aliases[k] = &sym.Alias{
			Name:    v.Name,
			Targets: append([]sym.AliasTarget(nil), v.Targets...),
		}
	}
	out.TotalQubits = s.TotalQubits
	out.TotalClbits = s.TotalClbits
	out.HasMeasure = s.HasMeasure
	out.HasBarriers = s.HasBarriers
	return out
}

// MaxDepth returns the largest depth over all qubit and classical nodes.
func (s *State) MaxDepth() int {
	max := 0
	for _, n := range s.QubitDepths {
		if n.Depth > max {
			max = n.Depth
		}
	}
	for _, n := range s.ClbitDepths {
		if n.Depth > max {
			max = n.Depth
		}
	}
	return max
}

// flow is the control-flow signal a statement visit propagates. Break and
// continue unwind exactly one loop level; return unwinds to the enclosing
// subroutine call. They are not errors.
type flow int

const (
	flowNone flow = iota
	flowBreak
	flowContinue
	flowReturn
)

// remapFrame binds a subroutine's formal qubits to physical qubits for the
// duration of one call.
type remapFrame struct {
	sizes map[string]int
	bind  map[sym.BitRef]sym.BitRef
}

// Visitor walks the statement list depth-first, validating everything and
// (unless check-only) appending canonical statements to the output.
type Visitor struct {
	st    *State
	cfg   *qasm.Config
	log   types.Logger
	scope *scope.Manager
	eval  *analyzer.Evaluator

	checkOnly bool
	qasm2     bool

	out []ast.Statement

	gateDefs map[string]*ast.GateDefinition
	subDefs  map[string]*ast.SubroutineDefinition

	// inlining tracks gate and subroutine names currently being expanded,
	// for recursion detection.
	inlining map[string]struct{}

	remapFrames []*remapFrame

	// returnValue holds the value of the return statement that ended the
	// innermost subroutine body; returnType is that subroutine's declared
	// return type.
	returnValue any
	returnType  *ast.ClassicalType

	// touchRecorders collect depth nodes touched inside branch arms so a
	// branching construct can raise them to one uniform depth.
	touchRecorders []*touchSet
}

type touchSet struct {
	qubits map[*sym.QubitDepthNode]struct{}
	clbits map[*sym.ClbitDepthNode]struct{}
}

func newTouchSet() *touchSet {
	return &touchSet{
		qubits: map[*sym.QubitDepthNode]struct{}{},
		clbits: map[*sym.ClbitDepthNode]struct{}{},
	}
}

// Run executes one full visitor pass over the program. It returns the
// canonical statement list (nil in check-only mode).
func Run(prog *ast.Program, st *State, cfg *qasm.Config, logger types.Logger, checkOnly bool) ([]ast.Statement, error) {
	v := &Visitor{
		st:        st,
		cfg:       cfg,
		log:       logger,
		scope:     scope.NewManager(),
		checkOnly: checkOnly,
		qasm2:     prog.Version == "2.0",
		gateDefs:  map[string]*ast.GateDefinition{},
		subDefs:   map[string]*ast.SubroutineDefinition{},
		inlining:  map[string]struct{}{},
	}
	v.eval = &analyzer.Evaluator{
		Lookup:          v.scope.GetFromVisibleScope,
		ExternFunctions: externNames(cfg),
	}

	for _, stmt := range prog.Statements {
		f, err := v.visitStatement(stmt)
		if err != nil {
			return nil, err
		}
		if f != flowNone {
			return nil, qasm.NewValidationError(stmt, "%s outside of its enclosing construct", flowName(f))
		}
	}
	if checkOnly {
		return nil, nil
	}
	return v.out, nil
}

func externNames(cfg *qasm.Config) map[string]struct{} {
	if len(cfg.ExternFunctions) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(cfg.ExternFunctions))
	for name := range cfg.ExternFunctions {
		out[name] = struct{}{}
	}
	return out
}

func flowName(f flow) string {
	switch f {
	case flowBreak:
		return "break"
	case flowContinue:
		return "continue"
	case flowReturn:
		return "return"
	}
	return "control flow"
}

// visitStatement dispatches on the statement kind. Unsupported kinds fail
// with a ValidationError rather than a panic.
func (v *Visitor) visitStatement(s ast.Statement) (flow, error) {
	if v.log.TraceEnabled() {
		v.log.Trace("visit statement", slog.String("kind", stmtKind(s)))
	}
	if v.qasm2 && !allowedInQasm2(s) {
		return flowNone, qasm.NewValidationError(s, "%s statements are not supported in OpenQASM 2.0", stmtKind(s))
	}

	switch x := s.(type) {
	case *ast.Include:
		return v.visitInclude(x)
	case *ast.QuantumDeclaration:
		return v.visitQuantumDeclaration(x)
	case *ast.ClassicalDeclaration:
		return v.visitClassicalDeclaration(x)
	case *ast.IODeclaration:
		return v.visitIODeclaration(x)
	case *ast.GateDefinition:
		return v.visitGateDefinition(x)
	case *ast.QuantumGate:
		return flowNone, v.visitQuantumGate(x)
	case *ast.QuantumPhase:
		return flowNone, v.visitQuantumPhase(x)
	case *ast.QuantumMeasurement:
		return flowNone, v.visitMeasurement(x)
	case *ast.QuantumReset:
		return flowNone, v.visitReset(x)
	case *ast.QuantumBarrier:
		return flowNone, v.visitBarrier(x)
	case *ast.Branch:
		return v.visitBranch(x)
	case *ast.ForLoop:
		return v.visitForLoop(x)
	case *ast.WhileLoop:
		return v.visitWhileLoop(x)
	case *ast.SwitchStatement:
		return v.visitSwitch(x)
	case *ast.AliasStatement:
		return flowNone, v.visitAlias(x)
	case *ast.SubroutineDefinition:
		return flowNone, v.visitSubroutineDefinition(x)
	case *ast.ExpressionStatement:
		return flowNone, v.visitExpressionStatement(x)
	case *ast.Assignment:
		return flowNone, v.visitAssignment(x)
	case *ast.ReturnStatement:
		return v.visitReturn(x)
	case *ast.BreakStatement:
		if !v.scope.InContext(scope.CtxBlock) {
			return flowNone, qasm.NewValidationError(s, "break outside of a loop")
		}
		return flowBreak, nil
	case *ast.ContinueStatement:
		if !v.scope.InContext(scope.CtxBlock) {
			return flowNone, qasm.NewValidationError(s, "continue outside of a loop")
		}
		return flowContinue, nil
	case *ast.Box:
		return v.visitBox(x)
	case *ast.CalBlock:
		return flowNone, v.visitCalBlock(x.Body, false, x)
	case *ast.DefCalBlock:
		return flowNone, v.visitCalBlock(x.Body, true, x)
	}
	return flowNone, qasm.NewValidationError(s, "unsupported statement kind %s", stmtKind(s))
}

// visitBlock visits a statement list, stopping on the first non-trivial
// control-flow signal.
func (v *Visitor) visitBlock(stmts []ast.Statement) (flow, error) {
	for _, s := range stmts {
		f, err := v.visitStatement(s)
		if err != nil {
			return flowNone, err
		}
		if f != flowNone {
			return f, nil
		}
	}
	return flowNone, nil
}

// emit appends a canonical statement to the output unless in check-only
// mode.
func (v *Visitor) emit(s ast.Statement) {
	if v.checkOnly {
		return
	}
	v.out = append(v.out, s)
}

// emitBuffered redirects emission into a fresh buffer for the duration of
// fn and returns what was collected. Validation side effects still apply.
func (v *Visitor) emitBuffered(fn func() (flow, error)) ([]ast.Statement, flow, error) {
	saved := v.out
	v.out = nil
	f, err := fn()
	buf := v.out
	v.out = saved
	return buf, f, err
}

func stmtKind(s ast.Statement) string {
	switch s.(type) {
	case *ast.Include:
		return "include"
	case *ast.QuantumDeclaration:
		return "qubit declaration"
	case *ast.ClassicalDeclaration:
		return "classical declaration"
	case *ast.IODeclaration:
		return "io declaration"
	case *ast.GateDefinition:
		return "gate definition"
	case *ast.QuantumGate:
		return "gate call"
	case *ast.QuantumPhase:
		return "gphase"
	case *ast.QuantumMeasurement:
		return "measurement"
	case *ast.QuantumReset:
		return "reset"
	case *ast.QuantumBarrier:
		return "barrier"
	case *ast.Branch:
		return "branch"
	case *ast.ForLoop:
		return "for loop"
	case *ast.WhileLoop:
		return "while loop"
	case *ast.SwitchStatement:
		return "switch"
	case *ast.AliasStatement:
		return "alias"
	case *ast.SubroutineDefinition:
		return "subroutine definition"
	case *ast.ExpressionStatement:
		return "expression"
	case *ast.Assignment:
		return "assignment"
	case *ast.ReturnStatement:
		return "return"
	case *ast.BreakStatement:
		return "break"
	case *ast.ContinueStatement:
		return "continue"
	case *ast.Box:
		return "box"
	case *ast.CalBlock:
		return "cal"
	case *ast.DefCalBlock:
		return "defcal"
	}
	return "unknown"
}

// allowedInQasm2 whitelists the statement kinds OpenQASM 2.0 understands.
func allowedInQasm2(s ast.Statement) bool {
	switch x := s.(type) {
	case *ast.Include, *ast.QuantumDeclaration, *ast.GateDefinition,
		*ast.QuantumGate, *ast.QuantumPhase, *ast.QuantumMeasurement,
		*ast.QuantumReset, *ast.QuantumBarrier, *ast.Branch:
		return true
	case *ast.ClassicalDeclaration:
		return x.Type.Kind == ast.TypeBit
	}
	return false
}
