package unroller

import (
	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/gates"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/qasm"
)

// ctrlEntry is one operand peeled off by a ctrl/negctrl modifier.
type ctrlEntry struct {
	operand ast.Expression
	neg     bool
}

// processModifiers walks the modifier list left to right, folding pow/inv
// into a signed integer exponent and peeling ctrl/negctrl operands off the
// front of the operand list.
func (v *Visitor) processModifiers(node ast.Statement, mods []ast.GateModifier, operands []ast.Expression) (int64, []ctrlEntry, []ast.Expression, error) {
	exponent := int64(1)
	var ctrls []ctrlEntry

	for _, m := range mods {
		switch m.Kind {
		case ast.ModPow:
			if m.Arg == nil {
				return 0, nil, nil, qasm.NewValidationError(node, "pow modifier requires an exponent")
			}
			k, err := v.eval.EvalInt(m.Arg)
			if err != nil {
				return 0, nil, nil, qasm.NewValidationError(node, "pow exponent: %s", err.Error())
			}
			exponent *= k
		case ast.ModInv:
			exponent = -exponent
		case ast.ModCtrl, ast.ModNegCtrl:
			count := int64(1)
			if m.Arg != nil {
				var err error
				count, err = v.eval.EvalInt(m.Arg)
				if err != nil {
					return 0, nil, nil, qasm.NewValidationError(node, "%s count: %s", m.Kind, err.Error())
				}
			}
			if count <= 0 {
				return 0, nil, nil, qasm.NewValidationError(node, "%s count must be positive, got %d", m.Kind, count)
			}
			if int64(len(operands)) < count {
				return 0, nil, nil, qasm.NewValidationError(node, "%s(%d) needs more qubit operands than provided", m.Kind, count)
			}
			for i := int64(0); i < count; i++ {
				ctrls = append(ctrls, ctrlEntry{operand: operands[0], neg: m.Kind == ast.ModNegCtrl})
				operands = operands[1:]
			}
		}
	}
	return exponent, ctrls, operands, nil
}

// resolveCtrls resolves control entries to physical refs, keeping the
// subset that are negative controls.
func (v *Visitor) resolveCtrls(node ast.Statement, ctrls []ctrlEntry) (all []sym.BitRef, neg []sym.BitRef, err error) {
	for _, c := range ctrls {
		refs, err := v.resolveQubitOperand(node, c.operand)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, refs...)
		if c.neg {
			neg = append(neg, refs...)
		}
	}
	return all, neg, nil
}

func (v *Visitor) visitQuantumGate(s *ast.QuantumGate) error {
	exponent, ctrls, targets, err := v.processModifiers(s, s.Modifiers, s.Qubits)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return qasm.NewValidationError(s, "gate %q has no target qubits", s.Name)
	}

	ctrlRefs, negRefs, err := v.resolveCtrls(s, ctrls)
	if err != nil {
		return err
	}

	// pow(0) erases the gate; operands are still validated.
	if exponent == 0 {
		_, err := v.resolveQubitOperands(s, targets)
		return err
	}

	switch {
	case v.cfg.IsExternalGate(s.Name):
		return v.applyExternalGate(s, exponent, ctrlRefs, negRefs, targets)
	case v.gateDefs[s.Name] != nil:
		return v.applyCustomGate(s, exponent, ctrlRefs, negRefs, targets)
	default:
		return v.applyPrimitiveGate(s, exponent, ctrlRefs, negRefs, targets)
	}
}

// evalArgs evaluates classical gate arguments once, at the call site.
func (v *Visitor) evalArgs(node ast.Statement, args []ast.Expression) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		val, err := v.eval.EvalFloat(a)
		if err != nil {
			return nil, qasm.NewValidationError(node, "gate argument %d: %s", i, err.Error())
		}
		out[i] = val
	}
	return out, nil
}

func floatLits(vals []float64) []ast.Expression {
	if len(vals) == 0 {
		return nil
	}
	out := make([]ast.Expression, len(vals))
	for i, f := range vals {
		out[i] = &ast.FloatLiteral{Value: f}
	}
	return out
}

// broadcastTuples forms the qubit tuples a gate is applied to. With one
// operand per formal qubit the operands zip together (registers broadcast
// against single qubits); a single wide operand is chunked into
// consecutive tuples of the gate's arity.
func (v *Visitor) broadcastTuples(node ast.Statement, operands []ast.Expression, arity int) ([][]sym.BitRef, error) {
	resolved := make([][]sym.BitRef, len(operands))
	for i, op := range operands {
		refs, err := v.resolveQubitOperand(node, op)
		if err != nil {
			return nil, err
		}
		resolved[i] = refs
	}

	if len(operands) == arity {
		length := 1
		for _, refs := range resolved {
			if len(refs) != 1 {
				if length != 1 && len(refs) != length {
					return nil, qasm.NewValidationError(node, "mismatched register sizes in broadcast")
				}
				length = len(refs)
			}
		}
		tuples := make([][]sym.BitRef, length)
		for j := 0; j < length; j++ {
			tuple := make([]sym.BitRef, arity)
			for i, refs := range resolved {
				if len(refs) == 1 {
					tuple[i] = refs[0]
				} else {
					tuple[i] = refs[j]
				}
			}
			tuples[j] = tuple
		}
		return tuples, nil
	}

	var flat []sym.BitRef
	for _, refs := range resolved {
		flat = append(flat, refs...)
	}
	if len(flat)%arity != 0 {
		return nil, qasm.NewValidationError(node, "gate expects multiples of %d qubits, got %d", arity, len(flat))
	}
	tuples := make([][]sym.BitRef, 0, len(flat)/arity)
	for i := 0; i < len(flat); i += arity {
		tuples = append(tuples, flat[i:i+arity])
	}
	return tuples, nil
}

// emitX applies an X gate to each ref, used for the negctrl sandwich.
func (v *Visitor) emitX(refs []sym.BitRef) {
	for _, r := range refs {
		v.emit(&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{refExpr(r)}})
		v.updateDepths(opGate, []sym.BitRef{r}, nil)
	}
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// applyPrimitiveGate lowers a table gate: ladder the controls onto a
// native controlled form, broadcast, choose the inverse expansion when the
// exponent is negative, repeat by its magnitude, and wrap negative
// controls in an X sandwich.
func (v *Visitor) applyPrimitiveGate(s *ast.QuantumGate, exponent int64, ctrlRefs, negRefs []sym.BitRef, targets []ast.Expression) error {
	name, err := gates.Controlled(s.Name, len(ctrlRefs))
	if err != nil {
		return qasm.NewValidationError(s, "%s", err.Error())
	}
	entry, ok := gates.Lookup(name)
	if !ok {
		return qasm.NewValidationError(s, "unknown gate %q", s.Name)
	}

	args, err := v.evalArgs(s, s.Args)
	if err != nil {
		return err
	}
	// The ladder from u to cu introduces cu's trailing global-phase
	// parameter.
	if name == "cu" && len(args) == entry.Params-1 {
		args = append(args, 0)
	}
	if len(args) != entry.Params {
		return qasm.NewValidationError(s, "gate %q expects %d parameters, got %d", name, entry.Params, len(args))
	}

	baseArity := entry.Qubits - len(ctrlRefs)
	if baseArity <= 0 {
		return qasm.NewValidationError(s, "too many controls for gate %q", s.Name)
	}
	tuples, err := v.broadcastTuples(s, targets, baseArity)
	if err != nil {
		return err
	}

	emitName, emitArgs := name, args
	if exponent < 0 {
		emitName, emitArgs, err = gates.Inverse(name, args)
		if err != nil {
			return qasm.NewValidationError(s, "%s", err.Error())
		}
	}

	for _, tuple := range tuples {
		full := append(append([]sym.BitRef{}, ctrlRefs...), tuple...)
		if err := checkDuplicateRefs(s, "gate call", full); err != nil {
			return err
		}
	}

	v.emitX(negRefs)
	for rep := int64(0); rep < abs64(exponent); rep++ {
		for _, tuple := range tuples {
			full := append(append([]sym.BitRef{}, ctrlRefs...), tuple...)
			v.emit(&ast.QuantumGate{
				Name:   emitName,
				Args:   floatLits(emitArgs),
				Qubits: refExprs(full),
				Span:   s.Span,
			})
			v.updateDepths(opGate, full, nil)
		}
	}
	v.emitX(negRefs)
	return nil
}

// applyCustomGate inlines a user-defined gate: formal qubits and
// parameters are substituted into a fresh clone of the body, recursion is
// rejected, and modifiers propagate onto every inner call.
func (v *Visitor) applyCustomGate(s *ast.QuantumGate, exponent int64, ctrlRefs, negRefs []sym.BitRef, targets []ast.Expression) error {
	def := v.gateDefs[s.Name]
	if _, busy := v.inlining[s.Name]; busy {
		return qasm.NewValidationError(s, "recursive definition of gate %q", s.Name)
	}
	if len(s.Args) != len(def.Params) {
		return qasm.NewValidationError(s, "gate %q expects %d parameters, got %d", s.Name, len(def.Params), len(s.Args))
	}
	args, err := v.evalArgs(s, s.Args)
	if err != nil {
		return err
	}

	tuples, err := v.broadcastTuples(s, targets, len(def.Qubits))
	if err != nil {
		return err
	}
	for _, tuple := range tuples {
		full := append(append([]sym.BitRef{}, ctrlRefs...), tuple...)
		if err := checkDuplicateRefs(s, "gate call", full); err != nil {
			return err
		}
	}

	paramMap := make(map[string]ast.Expression, len(def.Params))
	for i, p := range def.Params {
		paramMap[p] = &ast.FloatLiteral{Value: args[i]}
	}
	ctrlExprs := refExprs(ctrlRefs)

	v.inlining[s.Name] = struct{}{}
	defer delete(v.inlining, s.Name)

	v.emitX(negRefs)
	for rep := int64(0); rep < abs64(exponent); rep++ {
		for _, tuple := range tuples {
			qubitMap := make(map[string]ast.Expression, len(def.Qubits))
			for i, q := range def.Qubits {
				qubitMap[q] = refExpr(tuple[i])
			}

			body := ast.CloneStatements(def.Body)
			if exponent < 0 {
				reverseStatements(body)
			}
			for _, inner := range body {
				prepared, err := v.prepareInlined(s, inner, qubitMap, paramMap, exponent < 0, len(ctrlRefs), ctrlExprs)
				if err != nil {
					return err
				}
				if _, err := v.visitStatement(prepared); err != nil {
					return err
				}
			}
		}
	}
	v.emitX(negRefs)
	return nil
}

// prepareInlined rewrites one statement of a gate body for the call site:
// formals substituted, inv and ctrl modifiers propagated.
func (v *Visitor) prepareInlined(call ast.Statement, inner ast.Statement, qubitMap, paramMap map[string]ast.Expression, inverted bool, ctrlCount int, ctrlExprs []ast.Expression) (ast.Statement, error) {
	switch x := inner.(type) {
	case *ast.QuantumGate:
		substituteGate(x, qubitMap, paramMap)
		var mods []ast.GateModifier
		if ctrlCount > 0 {
			mods = append(mods, ast.GateModifier{Kind: ast.ModCtrl, Arg: &ast.IntLiteral{Value: int64(ctrlCount)}})
			x.Qubits = append(ast.CloneExpressions(ctrlExprs), x.Qubits...)
		}
		if inverted {
			mods = append(mods, ast.GateModifier{Kind: ast.ModInv})
		}
		x.Modifiers = append(mods, x.Modifiers...)
		return x, nil
	case *ast.QuantumPhase:
		substitutePhase(x, qubitMap, paramMap)
		var mods []ast.GateModifier
		if ctrlCount > 0 {
			mods = append(mods, ast.GateModifier{Kind: ast.ModCtrl, Arg: &ast.IntLiteral{Value: int64(ctrlCount)}})
			x.Qubits = append(ast.CloneExpressions(ctrlExprs), x.Qubits...)
		}
		if inverted {
			mods = append(mods, ast.GateModifier{Kind: ast.ModInv})
		}
		x.Modifiers = append(mods, x.Modifiers...)
		return x, nil
	case *ast.QuantumBarrier:
		for i, q := range x.Qubits {
			x.Qubits[i] = substituteExpr(q, qubitMap)
		}
		return x, nil
	}
	return nil, qasm.NewValidationError(call, "unsupported statement in gate body")
}

func reverseStatements(stmts []ast.Statement) {
	for i, j := 0, len(stmts)-1; i < j; i, j = i+1, j-1 {
		stmts[i], stmts[j] = stmts[j], stmts[i]
	}
}

func substituteGate(g *ast.QuantumGate, qubitMap, paramMap map[string]ast.Expression) {
	for i, a := range g.Args {
		g.Args[i] = substituteExpr(a, paramMap)
	}
	for i := range g.Modifiers {
		if g.Modifiers[i].Arg != nil {
			g.Modifiers[i].Arg = substituteExpr(g.Modifiers[i].Arg, paramMap)
		}
	}
	for i, q := range g.Qubits {
		g.Qubits[i] = substituteExpr(q, qubitMap)
	}
}

func substitutePhase(g *ast.QuantumPhase, qubitMap, paramMap map[string]ast.Expression) {
	if g.Arg != nil {
		g.Arg = substituteExpr(g.Arg, paramMap)
	}
	for i := range g.Modifiers {
		if g.Modifiers[i].Arg != nil {
			g.Modifiers[i].Arg = substituteExpr(g.Modifiers[i].Arg, paramMap)
		}
	}
	for i, q := range g.Qubits {
		g.Qubits[i] = substituteExpr(q, qubitMap)
	}
}

// substituteExpr replaces identifier leaves found in the map, descending
// through composite expressions.
func substituteExpr(e ast.Expression, subst map[string]ast.Expression) ast.Expression {
	if e == nil || len(subst) == 0 {
		return e
	}
	switch x := e.(type) {
	case *ast.Identifier:
		if repl, ok := subst[x.Name]; ok {
			return repl.CloneExpr()
		}
	case *ast.UnaryExpr:
		x.Operand = substituteExpr(x.Operand, subst)
	case *ast.BinaryExpr:
		x.Left = substituteExpr(x.Left, subst)
		x.Right = substituteExpr(x.Right, subst)
	case *ast.CallExpr:
		for i, a := range x.Args {
			x.Args[i] = substituteExpr(a, subst)
		}
	case *ast.CastExpr:
		x.Operand = substituteExpr(x.Operand, subst)
	case *ast.IndexExpr:
		x.Collection = substituteExpr(x.Collection, subst)
		x.Index = substituteExpr(x.Index, subst)
	}
	return e
}

// applyExternalGate keeps an opaque gate as a single modified call, still
// broadcast and repeated like any other gate.
func (v *Visitor) applyExternalGate(s *ast.QuantumGate, exponent int64, ctrlRefs, negRefs []sym.BitRef, targets []ast.Expression) error {
	var arity, params int
	if def, ok := v.gateDefs[s.Name]; ok {
		arity, params = len(def.Qubits), len(def.Params)
	} else if entry, ok := gates.Lookup(s.Name); ok {
		arity, params = entry.Qubits, entry.Params
	} else {
		return qasm.NewValidationError(s, "external gate %q is not declared", s.Name)
	}
	if len(s.Args) != params {
		return qasm.NewValidationError(s, "gate %q expects %d parameters, got %d", s.Name, params, len(s.Args))
	}
	args, err := v.evalArgs(s, s.Args)
	if err != nil {
		return err
	}

	tuples, err := v.broadcastTuples(s, targets, arity)
	if err != nil {
		return err
	}
	for _, tuple := range tuples {
		full := append(append([]sym.BitRef{}, ctrlRefs...), tuple...)
		if err := checkDuplicateRefs(s, "gate call", full); err != nil {
			return err
		}
	}

	var mods []ast.GateModifier
	if len(ctrlRefs) > 0 {
		mods = append(mods, ast.GateModifier{Kind: ast.ModCtrl, Arg: &ast.IntLiteral{Value: int64(len(ctrlRefs))}})
	}
	if exponent < 0 {
		mods = append(mods, ast.GateModifier{Kind: ast.ModInv})
	}

	v.emitX(negRefs)
	for rep := int64(0); rep < abs64(exponent); rep++ {
		for _, tuple := range tuples {
			full := append(append([]sym.BitRef{}, ctrlRefs...), tuple...)
			var cloned []ast.GateModifier
			if len(mods) > 0 {
				cloned = make([]ast.GateModifier, len(mods))
				for i, m := range mods {
					cloned[i] = m.Clone()
				}
			}
			v.emit(&ast.QuantumGate{
				Modifiers: cloned,
				Name:      s.Name,
				Args:      floatLits(args),
				Qubits:    refExprs(full),
				Span:      s.Span,
			})
			v.updateDepths(opGate, full, nil)
		}
	}
	v.emitX(negRefs)
	return nil
}

func (v *Visitor) visitGateDefinition(s *ast.GateDefinition) (flow, error) {
	if !v.scope.InGlobal() {
		return flowNone, qasm.NewValidationError(s, "gate definitions are only allowed at global scope")
	}
	if _, exists := v.gateDefs[s.Name]; exists {
		return flowNone, qasm.NewValidationError(s, "redefinition of gate %q", s.Name)
	}
	if v.scope.CheckInScope(s.Name) {
		return flowNone, qasm.NewValidationError(s, "gate %q collides with a declared variable", s.Name)
	}
	seen := map[string]struct{}{}
	for _, q := range s.Qubits {
		if _, dup := seen[q]; dup {
			return flowNone, qasm.NewValidationError(s, "duplicate formal qubit %q in gate %q", q, s.Name)
		}
		seen[q] = struct{}{}
	}
	v.gateDefs[s.Name] = s.CloneStmt().(*ast.GateDefinition)

	// Definitions of opaque gates survive in the output so a serializer
	// can still print the calls against them.
	if v.cfg.IsExternalGate(s.Name) {
		v.emit(s.CloneStmt())
	}
	return flowNone, nil
}

func (v *Visitor) visitQuantumPhase(s *ast.QuantumPhase) error {
	exponent, ctrls, rest, err := v.processModifiers(s, s.Modifiers, s.Qubits)
	if err != nil {
		return err
	}
	if s.Arg == nil {
		return qasm.NewValidationError(s, "gphase requires an angle argument")
	}
	angle, err := v.eval.EvalFloat(s.Arg)
	if err != nil {
		return qasm.NewValidationError(s, "gphase angle: %s", err.Error())
	}
	// gphase(a)^k == gphase(k*a), and the inverse negates the angle, so
	// the whole exponent folds into the angle.
	angle *= float64(exponent)

	if len(ctrls) == 0 {
		var refs []sym.BitRef
		if len(rest) > 0 {
			refs, err = v.resolveQubitOperands(s, rest)
			if err != nil {
				return err
			}
			v.updateDepths(opGate, refs, nil)
		}
		v.emit(&ast.QuantumPhase{
			Arg:    &ast.FloatLiteral{Value: angle},
			Qubits: refExprs(refs),
			Span:   s.Span,
		})
		return nil
	}

	// A controlled global phase is a phase gate on the last control, with
	// the remaining controls still controlling.
	if len(rest) > 0 {
		return qasm.NewValidationError(s, "controlled gphase takes no extra qubit operands")
	}
	last := ctrls[len(ctrls)-1]
	var mods []ast.GateModifier
	for _, c := range ctrls[:len(ctrls)-1] {
		kind := ast.ModCtrl
		if c.neg {
			kind = ast.ModNegCtrl
		}
		mods = append(mods, ast.GateModifier{Kind: kind, Arg: &ast.IntLiteral{Value: 1}})
	}
	operands := make([]ast.Expression, 0, len(ctrls))
	for _, c := range ctrls[:len(ctrls)-1] {
		operands = append(operands, c.operand)
	}
	operands = append(operands, last.operand)

	synth := &ast.QuantumGate{
		Modifiers: mods,
		Name:      "p",
		Args:      []ast.Expression{&ast.FloatLiteral{Value: angle}},
		Qubits:    operands,
		Span:      s.Span,
	}
	if !last.neg {
		return v.visitQuantumGate(synth)
	}
	lastRefs, err := v.resolveQubitOperand(s, last.operand)
	if err != nil {
		return err
	}
	v.emitX(lastRefs)
	if err := v.visitQuantumGate(synth); err != nil {
		return err
	}
	v.emitX(lastRefs)
	return nil
}
