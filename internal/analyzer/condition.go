package analyzer

import (
	"fmt"

	"github.com/goqasm/goqasm/ast"
)

// Condition is a branch condition normalized to a single classical
// register test. BitIndex is -1 when the whole register is compared.
type Condition struct {
	Register string
	BitIndex int
	Op       string // "==", ">=", "<=", ">", "<"
	RHS      int64
	RHSBool  bool // meaningful only for single-bit tests
}

// IsRegisterFunc reports whether a name refers to a classical bit register.
type IsRegisterFunc func(name string) bool

// DependsOnRegister reports whether any identifier in the expression names
// a classical register whose contents are only known at runtime.
func DependsOnRegister(e ast.Expression, isReg IsRegisterFunc) bool {
	switch x := e.(type) {
	case nil:
		return false
	case *ast.Identifier:
		return isReg(x.Name)
	case *ast.IndexExpr:
		if name, ok := collectionName(x); ok && isReg(name) {
			return true
		}
		return DependsOnRegister(x.Index, isReg)
	case *ast.UnaryExpr:
		return DependsOnRegister(x.Operand, isReg)
	case *ast.BinaryExpr:
		return DependsOnRegister(x.Left, isReg) || DependsOnRegister(x.Right, isReg)
	case *ast.CastExpr:
		return DependsOnRegister(x.Operand, isReg)
	case *ast.CallExpr:
		for _, a := range x.Args {
			if DependsOnRegister(a, isReg) {
				return true
			}
		}
		return false
	case *ast.MeasureExpr:
		return true
	}
	return false
}

var comparators = map[string]struct{}{
	"==": {}, "!=": {}, ">=": {}, "<=": {}, ">": {}, "<": {},
}

// DecomposeCondition normalizes a register-dependent branch condition into
// (optional bit index, register, comparator, RHS). Supported shapes:
//
//	c          -> c > 0   (any bit set)
//	!c         -> c == 0
//	c[i]       -> bit test, true
//	!c[i]      -> bit test, false
//	c <op> K   -> register comparison against a compile-time constant
//	c[i] == K  -> bit test against a constant
//
// Nested registers, discrete sets, and ranges in conditions are rejected.
func (ev *Evaluator) DecomposeCondition(e ast.Expression, isReg IsRegisterFunc) (*Condition, error) {
	switch x := e.(type) {
	case *ast.Identifier:
		if !isReg(x.Name) {
			return nil, fmt.Errorf("condition does not test a classical register")
		}
		return &Condition{Register: x.Name, BitIndex: -1, Op: ">", RHS: 0}, nil

	case *ast.IndexExpr:
		return ev.decomposeBitTest(x, isReg, true)

	case *ast.UnaryExpr:
		if x.Op != "!" {
			return nil, fmt.Errorf("unsupported operator %q in branch condition", x.Op)
		}
		switch operand := x.Operand.(type) {
		case *ast.Identifier:
			if !isReg(operand.Name) {
				return nil, fmt.Errorf("condition does not test a classical register")
			}
			return &Condition{Register: operand.Name, BitIndex: -1, Op: "==", RHS: 0}, nil
		case *ast.IndexExpr:
			return ev.decomposeBitTest(operand, isReg, false)
		}
		return nil, fmt.Errorf("unsupported negated condition shape")

	case *ast.BinaryExpr:
		if _, ok := comparators[x.Op]; !ok {
			return nil, fmt.Errorf("unsupported comparator %q in branch condition", x.Op)
		}
		lhs := x.Left
		rhsVal, err := ev.Eval(x.Right)
		if err != nil {
			return nil, fmt.Errorf("branch comparison right-hand side: %w", err)
		}
		switch lv := lhs.(type) {
		case *ast.Identifier:
			if !isReg(lv.Name) {
				return nil, fmt.Errorf("condition does not test a classical register")
			}
			rhs, err := AsInt(rhsVal)
			if err != nil {
				return nil, err
			}
			return &Condition{Register: lv.Name, BitIndex: -1, Op: x.Op, RHS: rhs}, nil
		case *ast.IndexExpr:
			if x.Op != "==" && x.Op != "!=" {
				return nil, fmt.Errorf("single-bit conditions support only == and !=, got %q", x.Op)
			}
			cond, err := ev.decomposeBitTest(lv, isReg, true)
			if err != nil {
				return nil, err
			}
			want, err := AsBool(rhsVal)
			if err != nil {
				return nil, err
			}
			if x.Op == "!=" {
				want = !want
			}
			cond.RHSBool = want
			return cond, nil
		}
		return nil, fmt.Errorf("unsupported comparison left-hand side in branch condition")
	}
	return nil, fmt.Errorf("unsupported branch condition shape")
}

func (ev *Evaluator) decomposeBitTest(x *ast.IndexExpr, isReg IsRegisterFunc, want bool) (*Condition, error) {
	name, ok := collectionName(x)
	if !ok || !isReg(name) {
		return nil, fmt.Errorf("condition does not test a classical register")
	}
	switch x.Index.(type) {
	case *ast.RangeExpr:
		return nil, fmt.Errorf("range indices are not supported in branch conditions")
	case *ast.DiscreteSet:
		return nil, fmt.Errorf("discrete sets are not supported in branch conditions")
	}
	if _, nested := x.Collection.(*ast.IndexExpr); nested {
		return nil, fmt.Errorf("nested register indices are not supported in branch conditions")
	}
	i, err := ev.EvalInt(x.Index)
	if err != nil {
		return nil, err
	}
	return &Condition{Register: name, BitIndex: int(i), Op: "==", RHSBool: want}, nil
}
