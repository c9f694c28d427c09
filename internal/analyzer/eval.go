// Package analyzer provides the transform utilities consumed by the
// unroller: compile-time expression evaluation, qubit/bit range resolution,
// branch-condition decomposition, and qubit consolidation.
package analyzer

import (
	"fmt"
	"math"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/sym"
)

// LookupFunc resolves a name to its variable under current visibility.
type LookupFunc func(name string) (*sym.Variable, bool)

// Evaluator computes compile-time values of expressions against the
// variables visible in the current scope.
type Evaluator struct {
	Lookup LookupFunc

	// ExternFunctions names functions whose values are unknowable at
	// compile time; evaluating a call to one fails with a dedicated error.
	ExternFunctions map[string]struct{}
}

// constants available without declaration.
var namedConstants = map[string]float64{
	"pi":    math.Pi,
	"π":     math.Pi,
	"tau":   2 * math.Pi,
	"τ":     2 * math.Pi,
	"euler": math.E,
	"ℇ":     math.E,
}

// Eval evaluates an expression to an int64, float64, or bool.
func (ev *Evaluator) Eval(e ast.Expression) (any, error) {
	switch x := e.(type) {
	case *ast.IntLiteral:
		return x.Value, nil
	case *ast.FloatLiteral:
		return x.Value, nil
	case *ast.BoolLiteral:
		return x.Value, nil
	case *ast.BitstringLiteral:
		return int64(x.Value), nil
	case *ast.DurationLiteral:
		return x.Value, nil

	case *ast.Identifier:
		if c, ok := namedConstants[x.Name]; ok {
			return c, nil
		}
		v, ok := ev.Lookup(x.Name)
		if !ok {
			return nil, fmt.Errorf("undeclared identifier %q", x.Name)
		}
		if v.IsQubit {
			return nil, fmt.Errorf("qubit register %q used in classical expression", x.Name)
		}
		if v.Value == nil {
			return nil, fmt.Errorf("value of %q is not known at compile time", x.Name)
		}
		return v.Value, nil

	case *ast.IndexExpr:
		return ev.evalIndexed(x)

	case *ast.UnaryExpr:
		return ev.evalUnary(x)

	case *ast.BinaryExpr:
		return ev.evalBinary(x)

	case *ast.CallExpr:
		return ev.evalCall(x)

	case *ast.CastExpr:
		val, err := ev.Eval(x.Operand)
		if err != nil {
			return nil, err
		}
		return castValue(x.Type.Kind, val)

	case *ast.MeasureExpr:
		return nil, fmt.Errorf("measurement result is not known at compile time")
	}
	return nil, fmt.Errorf("unsupported expression in compile-time context")
}

// EvalInt evaluates an expression that must yield an integer.
func (ev *Evaluator) EvalInt(e ast.Expression) (int64, error) {
	val, err := ev.Eval(e)
	if err != nil {
		return 0, err
	}
	return AsInt(val)
}

// EvalFloat evaluates an expression that must yield a number.
func (ev *Evaluator) EvalFloat(e ast.Expression) (float64, error) {
	val, err := ev.Eval(e)
	if err != nil {
		return 0, err
	}
	return AsFloat(val)
}

// EvalBool evaluates an expression that must yield a truth value.
func (ev *Evaluator) EvalBool(e ast.Expression) (bool, error) {
	val, err := ev.Eval(e)
	if err != nil {
		return false, err
	}
	return AsBool(val)
}

func (ev *Evaluator) evalIndexed(x *ast.IndexExpr) (any, error) {
	name, ok := collectionName(x)
	if !ok {
		return nil, fmt.Errorf("unsupported indexed expression")
	}
	v, found := ev.Lookup(name)
	if !found {
		return nil, fmt.Errorf("undeclared identifier %q", name)
	}
	if v.IsQubit {
		return nil, fmt.Errorf("qubit register %q used in classical expression", name)
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("%q is not an array", name)
	}
	indices, err := ev.flattenIndices(x)
	if err != nil {
		return nil, err
	}
	if len(indices) != len(v.Dims) {
		return nil, fmt.Errorf("array %q expects %d indices, got %d", name, len(v.Dims), len(indices))
	}
	cur := v.Value
	for d, idxExpr := range indices {
		i, err := ev.EvalInt(idxExpr)
		if err != nil {
			return nil, err
		}
		if i < 0 || i >= int64(v.Dims[d]) {
			return nil, fmt.Errorf("index %d out of bounds for dimension %d of %q", i, d, name)
		}
		elems, ok := cur.([]any)
		if !ok {
			return nil, fmt.Errorf("value of %q is not known at compile time", name)
		}
		cur = elems[i]
	}
	if cur == nil {
		return nil, fmt.Errorf("value of %q is not known at compile time", name)
	}
	return cur, nil
}

// flattenIndices unwraps nested IndexExpr chains a[1][2] into the ordered
// per-dimension index expressions.
func (ev *Evaluator) flattenIndices(x *ast.IndexExpr) ([]ast.Expression, error) {
	var chain []ast.Expression
	cur := ast.Expression(x)
	for {
		ix, ok := cur.(*ast.IndexExpr)
		if !ok {
			break
		}
		chain = append([]ast.Expression{ix.Index}, chain...)
		cur = ix.Collection
	}
	return chain, nil
}

func collectionName(x *ast.IndexExpr) (string, bool) {
	cur := ast.Expression(x)
	for {
		switch c := cur.(type) {
		case *ast.IndexExpr:
			cur = c.Collection
		case *ast.Identifier:
			return c.Name, true
		default:
			return "", false
		}
	}
}

func (ev *Evaluator) evalUnary(x *ast.UnaryExpr) (any, error) {
	val, err := ev.Eval(x.Operand)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "-":
		switch v := val.(type) {
		case int64:
			return -v, nil
		case float64:
			return -v, nil
		}
		return nil, fmt.Errorf("operator - requires a numeric operand")
	case "!":
		b, err := AsBool(val)
		if err != nil {
			return nil, err
		}
		return !b, nil
	case "~":
		i, err := AsInt(val)
		if err != nil {
			return nil, err
		}
		return ^i, nil
	}
	return nil, fmt.Errorf("unsupported unary operator %q", x.Op)
}

func (ev *Evaluator) evalBinary(x *ast.BinaryExpr) (any, error) {
	left, err := ev.Eval(x.Left)
	if err != nil {
		return nil, err
	}

	// Short-circuit logical operators.
	switch x.Op {
	case "&&", "||":
		lb, err := AsBool(left)
		if err != nil {
			return nil, err
		}
		if x.Op == "&&" && !lb {
			return false, nil
		}
		if x.Op == "||" && lb {
			return true, nil
		}
		return ev.EvalBool(x.Right)
	}

	right, err := ev.Eval(x.Right)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case "+", "-", "*", "/", "%", "**":
		return evalArith(x.Op, left, right)
	case "==", "!=", "<", "<=", ">", ">=":
		return evalCompare(x.Op, left, right)
	case "&", "|", "^", "<<", ">>":
		li, err := AsInt(left)
		if err != nil {
			return nil, err
		}
		ri, err := AsInt(right)
		if err != nil {
			return nil, err
		}
		switch x.Op {
		case "&":
			return li & ri, nil
		case "|":
			return li | ri, nil
		case "^":
			return li ^ ri, nil
		case "<<":
			return li << uint(ri), nil
		case ">>":
			return li >> uint(ri), nil
		}
	}
	return nil, fmt.Errorf("unsupported binary operator %q", x.Op)
}

func evalArith(op string, left, right any) (any, error) {
	li, lok := left.(int64)
	ri, rok := right.(int64)
	if lok && rok {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "/":
			if ri == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return li / ri, nil
		case "%":
			if ri == 0 {
				return nil, fmt.Errorf("division by zero")
			}
			return li % ri, nil
		case "**":
			if ri >= 0 {
				out := int64(1)
				for i := int64(0); i < ri; i++ {
					out *= li
				}
				return out, nil
			}
			return math.Pow(float64(li), float64(ri)), nil
		}
	}
	lf, err := AsFloat(left)
	if err != nil {
		return nil, err
	}
	rf, err := AsFloat(right)
	if err != nil {
		return nil, err
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		return math.Mod(lf, rf), nil
	case "**":
		return math.Pow(lf, rf), nil
	}
	return nil, fmt.Errorf("unsupported arithmetic operator %q", op)
}

func evalCompare(op string, left, right any) (any, error) {
	if lb, lok := left.(bool); lok {
		rb, err := AsBool(right)
		if err != nil {
			return nil, err
		}
		switch op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		}
		return nil, fmt.Errorf("operator %q not defined on booleans", op)
	}
	lf, err := AsFloat(left)
	if err != nil {
		return nil, err
	}
	rf, err := AsFloat(right)
	if err != nil {
		return nil, err
	}
	switch op {
	case "==":
		return lf == rf, nil
	case "!=":
		return lf != rf, nil
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	}
	return nil, fmt.Errorf("unsupported comparison operator %q", op)
}

// builtin math functions usable in compile-time expressions.
func (ev *Evaluator) evalCall(x *ast.CallExpr) (any, error) {
	if _, extern := ev.ExternFunctions[x.Name]; extern {
		return nil, fmt.Errorf("extern function %q is not evaluable at compile time", x.Name)
	}
	unary := map[string]func(float64) float64{
		"sin":     math.Sin,
		"cos":     math.Cos,
		"tan":     math.Tan,
		"arcsin":  math.Asin,
		"arccos":  math.Acos,
		"arctan":  math.Atan,
		"exp":     math.Exp,
		"ln":      math.Log,
		"sqrt":    math.Sqrt,
		"floor":   math.Floor,
		"ceiling": math.Ceil,
	}
	if fn, ok := unary[x.Name]; ok {
		if len(x.Args) != 1 {
			return nil, fmt.Errorf("function %q expects 1 argument, got %d", x.Name, len(x.Args))
		}
		arg, err := ev.EvalFloat(x.Args[0])
		if err != nil {
			return nil, err
		}
		return fn(arg), nil
	}
	if x.Name == "mod" {
		if len(x.Args) != 2 {
			return nil, fmt.Errorf("function mod expects 2 arguments, got %d", len(x.Args))
		}
		a, err := ev.EvalFloat(x.Args[0])
		if err != nil {
			return nil, err
		}
		b, err := ev.EvalFloat(x.Args[1])
		if err != nil {
			return nil, err
		}
		return math.Mod(a, b), nil
	}
	return nil, fmt.Errorf("function %q is not evaluable at compile time", x.Name)
}

func castValue(kind ast.TypeKind, val any) (any, error) {
	switch kind {
	case ast.TypeInt, ast.TypeUint, ast.TypeBit:
		return AsInt(val)
	case ast.TypeFloat, ast.TypeAngle, ast.TypeDuration:
		return AsFloat(val)
	case ast.TypeBool:
		return AsBool(val)
	}
	return nil, fmt.Errorf("cannot cast to %s at compile time", kind)
}

// AsInt converts an evaluated value to int64.
func AsInt(val any) (int64, error) {
	switch v := val.(type) {
	case int64:
		return v, nil
	case float64:
		if v == math.Trunc(v) {
			return int64(v), nil
		}
		return 0, fmt.Errorf("expected an integer, got %v", v)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expected an integer value")
}

// AsFloat converts an evaluated value to float64.
func AsFloat(val any) (float64, error) {
	switch v := val.(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("expected a numeric value")
}

// AsBool converts an evaluated value to bool.
func AsBool(val any) (bool, error) {
	switch v := val.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	}
	return false, fmt.Errorf("expected a boolean value")
}
