package unroller

import (
	"strings"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/analyzer"
	"github.com/goqasm/goqasm/internal/scope"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/qasm"
)

func (v *Visitor) isClbitRegister(name string) bool {
	_, ok := v.st.ClbitRegs[name]
	return ok
}

func (v *Visitor) visitBranch(s *ast.Branch) (flow, error) {
	if s.Condition == nil {
		return flowNone, qasm.NewValidationError(s, "branch has no condition")
	}

	// A condition with no run-time register dependency folds at compile
	// time: only the chosen arm is visited.
	if !analyzer.DependsOnRegister(s.Condition, v.isClbitRegister) {
		taken, err := v.eval.EvalBool(s.Condition)
		if err != nil {
			return flowNone, qasm.NewValidationError(s, "branch condition: %s", err.Error())
		}
		arm := s.Then
		if !taken {
			arm = s.Else
		}
		return v.visitNestedBlock(arm)
	}

	cond, err := v.eval.DecomposeCondition(s.Condition, v.isClbitRegister)
	if err != nil {
		return flowNone, qasm.NewValidationError(s, "%s", err.Error())
	}
	if v.qasm2 {
		if len(s.Else) > 0 {
			return flowNone, qasm.NewValidationError(s, "else branches are not supported in OpenQASM 2.0")
		}
		if cond.BitIndex >= 0 || cond.Op != "==" {
			return flowNone, qasm.NewValidationError(s, "OpenQASM 2.0 conditions must compare a whole register with ==")
		}
	}

	size, ok := v.st.ClbitRegs[cond.Register]
	if !ok {
		return flowNone, qasm.NewValidationError(s, "undeclared classical register %q in condition", cond.Register)
	}
	if cond.BitIndex >= size {
		return flowNone, qasm.NewValidationError(s, "bit index %d out of range for register %q of size %d", cond.BitIndex, cond.Register, size)
	}

	// Comparisons a register of this width can never satisfy (or never
	// fail) are decided statically, before either arm is visited.
	if cond.BitIndex < 0 {
		if decided, taken := staticRegisterCompare(cond.Op, cond.RHS, size); decided {
			arm := s.Then
			if !taken {
				arm = s.Else
			}
			return v.visitNestedBlock(arm)
		}
	}

	var thenBuf, elseBuf []ast.Statement
	rec, err := v.withTouchRecorder(func() error {
		var f flow
		var err error
		thenBuf, f, err = v.emitBuffered(func() (flow, error) { return v.visitNestedBlock(s.Then) })
		if err != nil {
			return err
		}
		if f != flowNone {
			return qasm.NewValidationError(s, "%s under a run-time condition cannot be unrolled", flowName(f))
		}
		elseBuf, f, err = v.emitBuffered(func() (flow, error) { return v.visitNestedBlock(s.Else) })
		if err != nil {
			return err
		}
		if f != flowNone {
			return qasm.NewValidationError(s, "%s under a run-time condition cannot be unrolled", flowName(f))
		}
		return nil
	})
	if err != nil {
		return flowNone, err
	}

	// The condition's bits gate both arms, so they join the uniform raise.
	lo, hi := 0, size-1
	if cond.BitIndex >= 0 {
		lo, hi = cond.BitIndex, cond.BitIndex
	}
	for i := lo; i <= hi; i++ {
		n := v.clbitNode(sym.BitRef{Reg: cond.Register, Index: i})
		v.recordClbitTouch(n)
		rec.clbits[n] = struct{}{}
	}
	raiseToUniformDepth(rec)

	if len(thenBuf) == 0 && len(elseBuf) == 0 {
		return flowNone, nil
	}

	if cond.BitIndex >= 0 {
		onOne, onZero := thenBuf, elseBuf
		if !cond.RHSBool {
			onOne, onZero = elseBuf, thenBuf
		}
		v.emit(bitBranch(s.Span, cond.Register, cond.BitIndex, onOne, onZero))
		return flowNone, nil
	}

	for _, stmt := range v.cascade(s.Span, cond, size, thenBuf, elseBuf) {
		v.emit(stmt)
	}
	return flowNone, nil
}

// visitNestedBlock visits statements inside a fresh block scope.
func (v *Visitor) visitNestedBlock(stmts []ast.Statement) (flow, error) {
	pop := v.scope.Enter(scope.CtxBlock)
	defer pop()
	return v.visitBlock(stmts)
}

// staticRegisterCompare decides comparisons that are independent of the
// register's run-time value given its width.
func staticRegisterCompare(op string, rhs int64, size int) (decided, taken bool) {
	maxVal := int64(1)<<uint(size) - 1
	if size >= 63 {
		maxVal = int64(1)<<62 - 1 + int64(1)<<62
	}
	switch op {
	case "==":
		if rhs < 0 || rhs > maxVal {
			return true, false
		}
	case "!=":
		if rhs < 0 || rhs > maxVal {
			return true, true
		}
	case ">=":
		if rhs <= 0 {
			return true, true
		}
		if rhs > maxVal {
			return true, false
		}
	case ">":
		if rhs < 0 {
			return true, true
		}
		if rhs >= maxVal {
			return true, false
		}
	case "<":
		if rhs <= 0 {
			return true, false
		}
		if rhs > maxVal {
			return true, true
		}
	case "<=":
		if rhs < 0 {
			return true, false
		}
		if rhs >= maxVal {
			return true, true
		}
	}
	return false, false
}

// bitBranch is the canonical single-bit branch: `if (c[i] == 1)`.
func bitBranch(span ast.Span, reg string, index int, onOne, onZero []ast.Statement) *ast.Branch {
	return &ast.Branch{
		Condition: &ast.BinaryExpr{
			Left:  refExpr(sym.BitRef{Reg: reg, Index: index}),
			Op:    "==",
			Right: &ast.IntLiteral{Value: 1},
		},
		Then: onOne,
		Else: onZero,
		Span: span,
	}
}

// cascade lowers a whole-register comparison to nested single-bit
// branches. Every comparator reduces to == or >=; < family forms swap the
// arms of their >= counterpart.
func (v *Visitor) cascade(span ast.Span, cond *analyzer.Condition, size int, thenBuf, elseBuf []ast.Statement) []ast.Statement {
	reg := cond.Register
	switch cond.Op {
	case "==":
		return cascadeEq(span, reg, size-1, cond.RHS, thenBuf, elseBuf)
	case "!=":
		return cascadeEq(span, reg, size-1, cond.RHS, elseBuf, thenBuf)
	case ">=":
		return cascadeGe(span, reg, size-1, cond.RHS, thenBuf, elseBuf)
	case ">":
		return cascadeGe(span, reg, size-1, cond.RHS+1, thenBuf, elseBuf)
	case "<":
		return cascadeGe(span, reg, size-1, cond.RHS, elseBuf, thenBuf)
	case "<=":
		return cascadeGe(span, reg, size-1, cond.RHS+1, elseBuf, thenBuf)
	}
	return nil
}

// cascadeEq tests bits most-significant first; any mismatch falls through
// to the else body.
func cascadeEq(span ast.Span, reg string, i int, value int64, then, els []ast.Statement) []ast.Statement {
	if i < 0 {
		return ast.CloneStatements(then)
	}
	inner := cascadeEq(span, reg, i-1, value, then, els)
	if value>>uint(i)&1 == 1 {
		return []ast.Statement{bitBranch(span, reg, i, inner, ast.CloneStatements(els))}
	}
	return []ast.Statement{bitBranch(span, reg, i, ast.CloneStatements(els), inner)}
}

// cascadeGe tests `reg >= value` most-significant bit first. Once every
// remaining value bit is zero the comparison cannot fail, so the then body
// is emitted without further branching.
func cascadeGe(span ast.Span, reg string, i int, value int64, then, els []ast.Statement) []ast.Statement {
	mask := int64(1)<<uint(i+1) - 1
	if i < 0 || value&mask == 0 {
		return ast.CloneStatements(then)
	}
	inner := cascadeGe(span, reg, i-1, value, then, els)
	if value>>uint(i)&1 == 1 {
		// The value has this bit set: the register must too.
		return []ast.Statement{bitBranch(span, reg, i, inner, ast.CloneStatements(els))}
	}
	// Register bit set while the value's is clear: already greater.
	return []ast.Statement{bitBranch(span, reg, i, ast.CloneStatements(then), inner)}
}

func (v *Visitor) visitForLoop(s *ast.ForLoop) (flow, error) {
	if s.VarName == "" {
		return flowNone, qasm.NewValidationError(s, "for loop has no loop variable")
	}
	if strings.HasPrefix(s.VarName, ReservedPrefix) {
		return flowNone, qasm.NewValidationError(s, "name %q uses the reserved prefix %q", s.VarName, ReservedPrefix)
	}

	next, count, err := v.forIterator(s)
	if err != nil {
		return flowNone, err
	}
	if count > v.cfg.MaxLoopIters {
		return flowNone, qasm.NewLoopLimitError(s, "for loop iterates %d times, limit is %d", count, v.cfg.MaxLoopIters)
	}

	for {
		val, ok := next()
		if !ok {
			break
		}
		f, err := v.runLoopIteration(s.Body, func() error {
			return v.scope.AddVarInScope(&sym.Variable{
				Name:     s.VarName,
				Kind:     ast.TypeInt,
				Value:    val,
				Constant: true,
				Span:     s.Span,
			})
		})
		if err != nil {
			return flowNone, err
		}
		if f == flowBreak {
			break
		}
		if f == flowReturn {
			return flowReturn, nil
		}
	}
	return flowNone, nil
}

// forIterator returns a value generator and the total iteration count for
// the loop's iterable.
func (v *Visitor) forIterator(s *ast.ForLoop) (func() (int64, bool), int64, error) {
	switch it := s.Iterable.(type) {
	case *ast.RangeExpr:
		if it.Start == nil || it.End == nil {
			return nil, 0, qasm.NewValidationError(s, "for loop ranges need explicit start and end")
		}
		start, err := v.eval.EvalInt(it.Start)
		if err != nil {
			return nil, 0, qasm.NewValidationError(s, "range start: %s", err.Error())
		}
		end, err := v.eval.EvalInt(it.End)
		if err != nil {
			return nil, 0, qasm.NewValidationError(s, "range end: %s", err.Error())
		}
		step := int64(1)
		if it.Step != nil {
			step, err = v.eval.EvalInt(it.Step)
			if err != nil {
				return nil, 0, qasm.NewValidationError(s, "range step: %s", err.Error())
			}
		}
		if step == 0 {
			return nil, 0, qasm.NewValidationError(s, "range step must be non-zero")
		}
		var count int64
		if step > 0 && end >= start {
			count = (end-start)/step + 1
		} else if step < 0 && end <= start {
			count = (start-end)/(-step) + 1
		}
		cur := start
		emitted := int64(0)
		return func() (int64, bool) {
			if emitted >= count {
				return 0, false
			}
			val := cur
			cur += step
			emitted++
			return val, true
		}, count, nil

	case *ast.DiscreteSet:
		values := make([]int64, len(it.Values))
		for i, e := range it.Values {
			val, err := v.eval.EvalInt(e)
			if err != nil {
				return nil, 0, qasm.NewValidationError(s, "set element %d: %s", i, err.Error())
			}
			values[i] = val
		}
		idx := 0
		return func() (int64, bool) {
			if idx >= len(values) {
				return 0, false
			}
			val := values[idx]
			idx++
			return val, true
		}, int64(len(values)), nil
	}
	return nil, 0, qasm.NewValidationError(s, "for loops iterate over ranges or discrete sets")
}

// runLoopIteration executes one iteration: fresh block scope, loop
// variable bound, body deep-cloned before the visit.
func (v *Visitor) runLoopIteration(body []ast.Statement, bind func() error) (flow, error) {
	pop := v.scope.Enter(scope.CtxBlock)
	defer pop()
	if bind != nil {
		if err := bind(); err != nil {
			return flowNone, err
		}
	}
	return v.visitBlock(ast.CloneStatements(body))
}

func (v *Visitor) visitWhileLoop(s *ast.WhileLoop) (flow, error) {
	if s.Condition == nil {
		return flowNone, qasm.NewValidationError(s, "while loop has no condition")
	}
	var iters int64
	for {
		taken, err := v.eval.EvalBool(s.Condition)
		if err != nil {
			return flowNone, qasm.NewValidationError(s, "while condition must be evaluable at compile time: %s", err.Error())
		}
		if !taken {
			return flowNone, nil
		}
		iters++
		if iters > v.cfg.MaxLoopIters {
			return flowNone, qasm.NewLoopLimitError(s, "while loop exceeded %d iterations", v.cfg.MaxLoopIters)
		}
		f, err := v.runLoopIteration(s.Body, nil)
		if err != nil {
			return flowNone, err
		}
		if f == flowBreak {
			return flowNone, nil
		}
		if f == flowReturn {
			return flowReturn, nil
		}
	}
}

func (v *Visitor) visitSwitch(s *ast.SwitchStatement) (flow, error) {
	if _, isCast := s.Target.(*ast.CastExpr); isCast {
		return flowNone, qasm.NewValidationError(s, "switch target must be a plain integer expression, not a cast")
	}
	target, err := v.eval.EvalInt(s.Target)
	if err != nil {
		return flowNone, qasm.NewValidationError(s, "switch target must be evaluable at compile time: %s", err.Error())
	}

	seen := map[int64]struct{}{}
	var match []ast.Statement
	matched := false
	for ci, c := range s.Cases {
		if len(c.Values) == 0 {
			return flowNone, qasm.NewValidationError(s, "switch case %d has no values", ci)
		}
		for _, ve := range c.Values {
			val, err := v.eval.EvalInt(ve)
			if err != nil {
				return flowNone, qasm.NewValidationError(s, "switch case value: %s", err.Error())
			}
			if _, dup := seen[val]; dup {
				return flowNone, qasm.NewValidationError(s, "duplicate switch case value %d", val)
			}
			seen[val] = struct{}{}
			if val == target && !matched {
				matched = true
				match = c.Body
			}
		}
	}
	if !matched {
		match = s.Default
	}
	if len(match) == 0 {
		return flowNone, nil
	}
	if err := checkSwitchBody(s, match); err != nil {
		return flowNone, err
	}
	return v.visitNestedBlock(match)
}

// checkSwitchBody rejects the statement kinds a case body may not
// introduce: a case runs in a plain block scope and cannot add program
// structure.
func checkSwitchBody(node ast.Statement, body []ast.Statement) error {
	for _, st := range body {
		switch st.(type) {
		case *ast.QuantumDeclaration:
			return qasm.NewValidationError(node, "switch case bodies cannot declare qubits")
		case *ast.ClassicalDeclaration, *ast.IODeclaration:
			return qasm.NewValidationError(node, "switch case bodies cannot declare classical variables")
		case *ast.GateDefinition:
			return qasm.NewValidationError(node, "switch case bodies cannot define gates")
		case *ast.SubroutineDefinition:
			return qasm.NewValidationError(node, "switch case bodies cannot define subroutines")
		}
	}
	return nil
}
