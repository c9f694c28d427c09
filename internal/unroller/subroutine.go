package unroller

import (
	"strings"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/scope"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/qasm"
)

func (v *Visitor) visitSubroutineDefinition(s *ast.SubroutineDefinition) error {
	if !v.scope.InGlobal() {
		return qasm.NewValidationError(s, "subroutine definitions are only allowed at global scope")
	}
	if strings.HasPrefix(s.Name, ReservedPrefix) {
		return qasm.NewValidationError(s, "name %q uses the reserved prefix %q", s.Name, ReservedPrefix)
	}
	if _, exists := v.subDefs[s.Name]; exists {
		return qasm.NewValidationError(s, "redefinition of subroutine %q", s.Name)
	}
	if _, exists := v.gateDefs[s.Name]; exists {
		return qasm.NewValidationError(s, "subroutine %q collides with a gate definition", s.Name)
	}
	if v.scope.CheckInScope(s.Name) {
		return qasm.NewValidationError(s, "subroutine %q collides with a declared variable", s.Name)
	}
	seen := map[string]struct{}{}
	for _, p := range s.Params {
		if p.Name == "" {
			return qasm.NewValidationError(s, "subroutine %q has an unnamed parameter", s.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return qasm.NewValidationError(s, "duplicate parameter %q in subroutine %q", p.Name, s.Name)
		}
		seen[p.Name] = struct{}{}
	}
	v.subDefs[s.Name] = s.CloneStmt().(*ast.SubroutineDefinition)
	return nil
}

// visitExpressionStatement handles statement-position expressions, which
// in practice are subroutine and extern calls.
func (v *Visitor) visitExpressionStatement(s *ast.ExpressionStatement) error {
	if call, ok := s.Expr.(*ast.CallExpr); ok {
		if _, isSub := v.subDefs[call.Name]; isSub {
			_, err := v.callSubroutine(s, call)
			return err
		}
		if sig, isExtern := v.cfg.ExternFunctions[call.Name]; isExtern {
			if len(call.Args) != len(sig.ArgTypes) {
				return qasm.NewValidationError(s, "extern %q expects %d arguments, got %d", call.Name, len(sig.ArgTypes), len(call.Args))
			}
			return nil
		}
		return qasm.NewValidationError(s, "call to undefined subroutine %q", call.Name)
	}
	if _, err := v.eval.Eval(s.Expr); err != nil {
		return qasm.NewValidationError(s, "expression statement: %s", err.Error())
	}
	return nil
}

// boundQubitParam is one qubit formal resolved against its actual.
type boundQubitParam struct {
	name string
	refs []sym.BitRef
}

// callSubroutine inlines one subroutine call. Classical arguments bind by
// value, array references bind by reference, and qubit arguments bind by
// identity through a remap frame.
func (v *Visitor) callSubroutine(node ast.Statement, call *ast.CallExpr) (any, error) {
	def := v.subDefs[call.Name]
	if _, busy := v.inlining[call.Name]; busy {
		return nil, qasm.NewValidationError(node, "recursive call to subroutine %q", call.Name)
	}
	if len(call.Args) != len(def.Params) {
		return nil, qasm.NewValidationError(node, "subroutine %q expects %d arguments, got %d", call.Name, len(def.Params), len(call.Args))
	}

	// Actuals resolve in the caller's context, before the callee scope
	// exists.
	var qubitBinds []boundQubitParam
	type classicalBind struct {
		param ast.SubroutineParam
		value any
	}
	type arrayBind struct {
		param    ast.SubroutineParam
		backing  *sym.Variable
		readonly bool
	}
	var classicalBinds []classicalBind
	var arrayBinds []arrayBind
	var allQubitRefs []sym.BitRef

	for i, p := range def.Params {
		actual := call.Args[i]
		switch p.Kind {
		case ast.ParamQubit:
			refs, err := v.resolveQubitOperand(node, actual)
			if err != nil {
				return nil, err
			}
			want := 1
			if p.Size != nil {
				n, err := v.eval.EvalInt(p.Size)
				if err != nil {
					return nil, qasm.NewValidationError(node, "size of parameter %q: %s", p.Name, err.Error())
				}
				want = int(n)
			}
			if len(refs) != want {
				return nil, qasm.NewValidationError(node, "parameter %q of %q expects %d qubits, got %d", p.Name, call.Name, want, len(refs))
			}
			qubitBinds = append(qubitBinds, boundQubitParam{name: p.Name, refs: refs})
			allQubitRefs = append(allQubitRefs, refs...)

		case ast.ParamArrayRef:
			ident, ok := actual.(*ast.Identifier)
			if !ok {
				return nil, qasm.NewValidationError(node, "array parameter %q requires an array variable argument", p.Name)
			}
			backing, found := v.scope.GetFromVisibleScope(ident.Name)
			if !found {
				return nil, qasm.NewValidationError(node, "undeclared array %q", ident.Name)
			}
			if len(backing.Dims) == 0 {
				return nil, qasm.NewValidationError(node, "%q is not an array", ident.Name)
			}
			if backing.Kind != p.Type.Kind {
				return nil, qasm.NewValidationError(node, "array parameter %q expects element type %s, got %s", p.Name, p.Type.Kind, backing.Kind)
			}
			if len(p.Type.Dimensions) > 0 {
				if len(backing.Dims) != len(p.Type.Dimensions) {
					return nil, qasm.NewValidationError(node, "array parameter %q expects %d dimensions, got %d", p.Name, len(p.Type.Dimensions), len(backing.Dims))
				}
				for d, de := range p.Type.Dimensions {
					want, err := v.eval.EvalInt(de)
					if err != nil {
						return nil, qasm.NewValidationError(node, "dimension %d of parameter %q: %s", d, p.Name, err.Error())
					}
					if int64(backing.Dims[d]) < want {
						return nil, qasm.NewValidationError(node, "array parameter %q needs dimension %d of size %d, got %d", p.Name, d, want, backing.Dims[d])
					}
				}
			}
			arrayBinds = append(arrayBinds, arrayBind{param: p, backing: backing, readonly: !p.Mutable})

		default:
			val, err := v.eval.Eval(actual)
			if err != nil {
				// Run-time classical values pass through as unknown.
				val = nil
			}
			classicalBinds = append(classicalBinds, classicalBind{param: p, value: val})
		}
	}

	// The same physical qubit must not reach a call through two formals.
	if err := checkDuplicateRefs(node, "subroutine call", allQubitRefs); err != nil {
		return nil, err
	}

	pop := v.scope.Enter(scope.CtxFunction)
	defer pop()

	frame := &remapFrame{sizes: map[string]int{}, bind: map[sym.BitRef]sym.BitRef{}}
	for _, b := range qubitBinds {
		frame.sizes[b.name] = len(b.refs)
		for i, ref := range b.refs {
			frame.bind[sym.BitRef{Reg: b.name, Index: i}] = ref
		}
	}
	for _, b := range classicalBinds {
		err := v.scope.AddVarInScope(&sym.Variable{
			Name:  b.param.Name,
			Kind:  b.param.Type.Kind,
			Value: b.value,
			Span:  b.param.Span,
		})
		if err != nil {
			return nil, qasm.NewValidationError(node, "%s", err.Error())
		}
	}
	for _, b := range arrayBinds {
		// The backing slice is shared: mutable writes land in the caller.
		err := v.scope.AddVarInScope(&sym.Variable{
			Name:     b.param.Name,
			Kind:     b.backing.Kind,
			Width:    b.backing.Width,
			Dims:     b.backing.Dims,
			Value:    b.backing.Value,
			Readonly: b.readonly,
			Span:     b.param.Span,
		})
		if err != nil {
			return nil, qasm.NewValidationError(node, "%s", err.Error())
		}
	}

	v.remapFrames = append(v.remapFrames, frame)
	v.inlining[call.Name] = struct{}{}
	savedReturn, savedType := v.returnValue, v.returnType
	v.returnValue = nil
	v.returnType = def.ReturnType

	f, err := v.visitBlock(ast.CloneStatements(def.Body))

	result := v.returnValue
	v.returnValue, v.returnType = savedReturn, savedType
	delete(v.inlining, call.Name)
	v.remapFrames = v.remapFrames[:len(v.remapFrames)-1]

	if err != nil {
		return nil, err
	}
	if f == flowBreak || f == flowContinue {
		return nil, qasm.NewValidationError(node, "%s escapes the body of subroutine %q", flowName(f), call.Name)
	}
	if def.ReturnType != nil && f != flowReturn {
		return nil, qasm.NewValidationError(node, "subroutine %q must return a value", call.Name)
	}
	return result, nil
}

// subroutineCallValue routes initializers and assignments whose
// right-hand side is a subroutine call through the inliner. The second
// result reports whether the expression was such a call.
func (v *Visitor) subroutineCallValue(node ast.Statement, e ast.Expression) (any, bool, error) {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return nil, false, nil
	}
	if _, isSub := v.subDefs[call.Name]; !isSub {
		return nil, false, nil
	}
	val, err := v.callSubroutine(node, call)
	return val, true, err
}

func (v *Visitor) visitReturn(s *ast.ReturnStatement) (flow, error) {
	if !v.scope.InContext(scope.CtxFunction) {
		return flowNone, qasm.NewValidationError(s, "return outside of a subroutine")
	}
	v.returnValue = nil
	if s.Value != nil {
		if m, ok := s.Value.(*ast.MeasureExpr); ok {
			meas := &ast.QuantumMeasurement{Qubit: m.Target, Span: s.Span}
			if err := v.visitMeasurement(meas); err != nil {
				return flowNone, err
			}
			return flowReturn, nil
		}
		if v.returnType == nil {
			return flowNone, qasm.NewValidationError(s, "return value in a subroutine with no declared return type")
		}
		val, err := v.eval.Eval(s.Value)
		if err != nil {
			return flowNone, qasm.NewValidationError(s, "return value: %s", err.Error())
		}
		ret := &sym.Variable{Name: "return value", Kind: v.returnType.Kind, Span: s.Span}
		if v.returnType.Width != nil {
			w, werr := v.eval.EvalInt(v.returnType.Width)
			if werr != nil {
				return flowNone, qasm.NewValidationError(s, "return type width: %s", werr.Error())
			}
			ret.Width = int(w)
		}
		val, err = coerceScalar(s, ret, val)
		if err != nil {
			return flowNone, err
		}
		v.returnValue = val
	}
	return flowReturn, nil
}

// visitBox validates and unrolls the box body, then re-wraps it so timing
// passes downstream still see the boundary.
func (v *Visitor) visitBox(s *ast.Box) (flow, error) {
	if s.Duration != nil {
		d, err := v.eval.EvalFloat(s.Duration)
		if err != nil {
			return flowNone, qasm.NewValidationError(s, "box duration: %s", err.Error())
		}
		if d < 0 {
			return flowNone, qasm.NewValidationError(s, "box duration must be non-negative")
		}
	}
	if len(s.Body) == 0 {
		return flowNone, qasm.NewValidationError(s, "box requires a non-empty body")
	}

	pop := v.scope.Enter(scope.CtxBox)
	buf, f, err := v.emitBuffered(func() (flow, error) { return v.visitBlock(s.Body) })
	pop()
	if err != nil {
		return flowNone, err
	}
	if f != flowNone {
		return flowNone, qasm.NewValidationError(s, "%s escapes the box boundary", flowName(f))
	}

	var dur ast.Expression
	if s.Duration != nil {
		dur = s.Duration.CloneExpr()
	}
	v.emit(&ast.Box{Duration: dur, Body: buf, Span: s.Span})
	return flowNone, nil
}

// visitCalBlock hands calibration bodies to the configured pulse visitor
// and otherwise passes them through opaque.
func (v *Visitor) visitCalBlock(body []ast.Statement, isDefCal bool, node ast.Statement) error {
	out := node.CloneStmt()
	if v.cfg.Pulse != nil {
		rewritten, err := v.cfg.Pulse.VisitBasicBlock(ast.CloneStatements(body), isDefCal)
		if err != nil {
			return qasm.NewValidationError(node, "calibration block: %s", err.Error())
		}
		switch x := out.(type) {
		case *ast.CalBlock:
			x.Body = rewritten
		case *ast.DefCalBlock:
			x.Body = rewritten
		}
	}
	v.emit(out)
	return nil
}
