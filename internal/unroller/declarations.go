package unroller

import (
	"errors"
	"strings"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/analyzer"
	"github.com/goqasm/goqasm/internal/scope"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/qasm"
)

// knownIncludes are the standard library files accepted without resolution.
var knownIncludes = map[string]struct{}{
	"qelib1.inc":   {},
	"stdgates.inc": {},
}

func (v *Visitor) visitInclude(s *ast.Include) (flow, error) {
	if !v.scope.InGlobal() {
		return flowNone, qasm.NewValidationError(s, "include is only allowed at global scope")
	}
	if _, ok := knownIncludes[s.Path]; !ok {
		return flowNone, qasm.NewValidationError(s, "unknown include %q", s.Path)
	}
	v.emit(s.CloneStmt())
	return flowNone, nil
}

func (v *Visitor) visitQuantumDeclaration(s *ast.QuantumDeclaration) (flow, error) {
	if !v.scope.InGlobal() {
		return flowNone, qasm.NewValidationError(s, "qubit declarations are only allowed at global scope")
	}
	if strings.HasPrefix(s.Name, ReservedPrefix) {
		return flowNone, qasm.NewValidationError(s, "register name %q uses the reserved prefix %q", s.Name, ReservedPrefix)
	}

	size := 1
	if s.Size != nil {
		n, err := v.eval.EvalInt(s.Size)
		if err != nil {
			return flowNone, qasm.NewValidationError(s, "qubit register size: %s", err.Error())
		}
		if n <= 0 {
			return flowNone, qasm.NewValidationError(s, "qubit register %q must have positive size, got %d", s.Name, n)
		}
		size = int(n)
	}

	err := v.scope.AddVarInScope(&sym.Variable{
		Name:    s.Name,
		IsQubit: true,
		Span:    s.Span,
	})
	if errors.Is(err, scope.ErrRedeclared) {
		return flowNone, qasm.NewValidationError(s, "redeclaration of %q", s.Name)
	}

	// Sequential global labels: this register's bits follow all earlier
	// declarations, one depth node per physical bit.
	v.st.RegBase[s.Name] = v.st.TotalQubits
	v.st.QubitRegs[s.Name] = size
	v.st.QubitRegOrder = append(v.st.QubitRegOrder, s.Name)
	v.st.TotalQubits += size
	for i := 0; i < size; i++ {
		ref := sym.BitRef{Reg: s.Name, Index: i}
		v.st.QubitDepths[ref] = &sym.QubitDepthNode{Ref: ref}
	}

	v.emit(&ast.QuantumDeclaration{
		Name: s.Name,
		Size: &ast.IntLiteral{Value: int64(size)},
		Span: s.Span,
	})
	return flowNone, nil
}

func (v *Visitor) visitClassicalDeclaration(s *ast.ClassicalDeclaration) (flow, error) {
	if strings.HasPrefix(s.Name, ReservedPrefix) {
		return flowNone, qasm.NewValidationError(s, "name %q uses the reserved prefix %q", s.Name, ReservedPrefix)
	}

	variable := &sym.Variable{
		Name:     s.Name,
		Kind:     s.Type.Kind,
		Span:     s.Span,
		Constant: s.Constant,
	}

	if s.Type.Width != nil {
		w, err := v.eval.EvalInt(s.Type.Width)
		if err != nil {
			return flowNone, qasm.NewValidationError(s, "width of %q: %s", s.Name, err.Error())
		}
		if w <= 0 {
			return flowNone, qasm.NewValidationError(s, "width of %q must be positive, got %d", s.Name, w)
		}
		variable.Width = int(w)
	}

	if s.Type.IsArray() {
		if len(s.Type.Dimensions) > sym.MaxArrayDimensions {
			return flowNone, qasm.NewValidationError(s, "array %q exceeds %d dimensions", s.Name, sym.MaxArrayDimensions)
		}
		for _, d := range s.Type.Dimensions {
			n, err := v.eval.EvalInt(d)
			if err != nil {
				return flowNone, qasm.NewValidationError(s, "dimensions of %q: %s", s.Name, err.Error())
			}
			if n <= 0 {
				return flowNone, qasm.NewValidationError(s, "array %q dimension must be positive, got %d", s.Name, n)
			}
			variable.Dims = append(variable.Dims, int(n))
		}
	}

	initInlined := false
	if s.Init != nil {
		if val, isCall, err := v.subroutineCallValue(s, s.Init); isCall {
			if err != nil {
				return flowNone, err
			}
			if val != nil {
				val, err = coerceScalar(s, variable, val)
				if err != nil {
					return flowNone, err
				}
			}
			variable.Value = val
			initInlined = true
		} else {
			val, err := v.evalInit(s, variable, s.Init)
			if err != nil {
				if s.Constant {
					return flowNone, err
				}
				// Runtime-initialized variables carry no compile-time value.
				val = nil
			}
			variable.Value = val
		}
	} else if s.Constant {
		return flowNone, qasm.NewValidationError(s, "constant %q must be initialized", s.Name)
	}

	if err := v.scope.AddVarInScope(variable); err != nil {
		return flowNone, qasm.NewValidationError(s, "redeclaration of %q", s.Name)
	}

	// A bit array declared at global scope is a classical register with
	// one depth node per bit.
	if s.Type.Kind == ast.TypeBit && v.scope.InGlobal() {
		size := 1
		if variable.Width > 0 {
			size = variable.Width
		}
		v.st.ClbitRegs[s.Name] = size
		v.st.ClbitRegOrder = append(v.st.ClbitRegOrder, s.Name)
		v.st.TotalClbits += size
		for i := 0; i < size; i++ {
			ref := sym.BitRef{Reg: s.Name, Index: i}
			v.st.ClbitDepths[ref] = &sym.ClbitDepthNode{Ref: ref}
		}
	}

	out := s.CloneStmt().(*ast.ClassicalDeclaration)
	if initInlined {
		// The call was inlined above; the declaration keeps no stale
		// initializer expression.
		out.Init = nil
	}
	v.emit(out)
	return flowNone, nil
}

// evalInit evaluates a declaration initializer, including nested array
// literals checked against the declared dimensions.
func (v *Visitor) evalInit(node ast.Statement, variable *sym.Variable, init ast.Expression) (any, error) {
	if variable.IsArray() {
		lit, ok := init.(*ast.ArrayLiteral)
		if !ok {
			return nil, qasm.NewValidationError(node, "array %q must be initialized with an array literal", variable.Name)
		}
		return v.evalArrayLiteral(node, variable, lit, 0)
	}
	val, err := v.eval.Eval(init)
	if err != nil {
		return nil, qasm.NewValidationError(node, "initializer of %q: %s", variable.Name, err.Error())
	}
	return coerceScalar(node, variable, val)
}

func (v *Visitor) evalArrayLiteral(node ast.Statement, variable *sym.Variable, lit *ast.ArrayLiteral, dim int) (any, error) {
	if dim >= len(variable.Dims) {
		return nil, qasm.NewValidationError(node, "too many nesting levels in initializer of %q", variable.Name)
	}
	if len(lit.Values) != variable.Dims[dim] {
		return nil, qasm.NewValidationError(node, "initializer of %q has %d elements for dimension of size %d",
			variable.Name, len(lit.Values), variable.Dims[dim])
	}
	out := make([]any, len(lit.Values))
	for i, el := range lit.Values {
		if nested, ok := el.(*ast.ArrayLiteral); ok {
			val, err := v.evalArrayLiteral(node, variable, nested, dim+1)
			if err != nil {
				return nil, err
			}
			out[i] = val
			continue
		}
		if dim != len(variable.Dims)-1 {
			return nil, qasm.NewValidationError(node, "initializer of %q is missing a nesting level", variable.Name)
		}
		val, err := v.eval.Eval(el)
		if err != nil {
			return nil, qasm.NewValidationError(node, "initializer of %q: %s", variable.Name, err.Error())
		}
		coerced, err := coerceScalar(node, variable, val)
		if err != nil {
			return nil, err
		}
		out[i] = coerced
	}
	return out, nil
}

// coerceScalar converts an evaluated value to the variable's declared
// type, checking the bit-width where one is declared.
func coerceScalar(node ast.Statement, variable *sym.Variable, val any) (any, error) {
	switch variable.Kind {
	case ast.TypeInt, ast.TypeUint:
		i, err := analyzer.AsInt(val)
		if err != nil {
			return nil, qasm.NewValidationError(node, "value of %q: %s", variable.Name, err.Error())
		}
		if variable.Width > 0 && variable.Width < 64 {
			limit := int64(1) << uint(variable.Width-1)
			if variable.Kind == ast.TypeUint {
				limit = int64(1) << uint(variable.Width)
				if i < 0 || i >= limit {
					return nil, qasm.NewValidationError(node, "value %d does not fit uint[%d] %q", i, variable.Width, variable.Name)
				}
			} else if i < -limit || i >= limit {
				return nil, qasm.NewValidationError(node, "value %d does not fit int[%d] %q", i, variable.Width, variable.Name)
			}
		}
		return i, nil
	case ast.TypeBit:
		i, err := analyzer.AsInt(val)
		if err != nil {
			return nil, qasm.NewValidationError(node, "value of %q: %s", variable.Name, err.Error())
		}
		width := variable.Width
		if width == 0 {
			width = 1
		}
		if width < 64 && (i < 0 || i >= int64(1)<<uint(width)) {
			return nil, qasm.NewValidationError(node, "value %d does not fit bit[%d] %q", i, width, variable.Name)
		}
		return i, nil
	case ast.TypeFloat, ast.TypeAngle, ast.TypeDuration, ast.TypeStretch:
		f, err := analyzer.AsFloat(val)
		if err != nil {
			return nil, qasm.NewValidationError(node, "value of %q: %s", variable.Name, err.Error())
		}
		return f, nil
	case ast.TypeBool:
		b, err := analyzer.AsBool(val)
		if err != nil {
			return nil, qasm.NewValidationError(node, "value of %q: %s", variable.Name, err.Error())
		}
		return b, nil
	case ast.TypeComplex:
		return val, nil
	}
	return nil, qasm.NewValidationError(node, "cannot assign to %q of type %s", variable.Name, variable.Kind)
}

func (v *Visitor) visitIODeclaration(s *ast.IODeclaration) (flow, error) {
	if !v.scope.InGlobal() {
		return flowNone, qasm.NewValidationError(s, "io declarations are only allowed at global scope")
	}
	variable := &sym.Variable{
		Name: s.Name,
		Kind: s.Type.Kind,
		Span: s.Span,
	}
	if s.Type.Width != nil {
		w, err := v.eval.EvalInt(s.Type.Width)
		if err != nil {
			return flowNone, qasm.NewValidationError(s, "width of %q: %s", s.Name, err.Error())
		}
		variable.Width = int(w)
	}
	if err := v.scope.AddVarInScope(variable); err != nil {
		return flowNone, qasm.NewValidationError(s, "redeclaration of %q", s.Name)
	}
	v.emit(s.CloneStmt())
	return flowNone, nil
}

func (v *Visitor) visitAssignment(s *ast.Assignment) error {
	// `c = measure q` is a measurement, not a classical assignment.
	if m, ok := s.Value.(*ast.MeasureExpr); ok {
		if s.Op != "=" {
			return qasm.NewValidationError(s, "measurement results support only plain assignment")
		}
		return v.visitMeasurement(&ast.QuantumMeasurement{
			Qubit:  m.Target,
			Target: s.Target,
			Span:   s.Span,
		})
	}

	name, ok := analyzer.OperandName(s.Target)
	if !ok {
		return qasm.NewValidationError(s, "unsupported assignment target")
	}
	variable, found := v.scope.GetFromVisibleScope(name)
	if !found {
		return qasm.NewValidationError(s, "assignment to undeclared variable %q", name)
	}
	if variable.IsQubit {
		return qasm.NewValidationError(s, "cannot assign to qubit register %q", name)
	}
	if variable.Constant {
		return qasm.NewValidationError(s, "cannot assign to constant %q", name)
	}
	if variable.Readonly {
		return qasm.NewValidationError(s, "cannot assign to readonly array %q", name)
	}

	// A subroutine call on the right-hand side is inlined here; the
	// assignment itself does not survive into the output.
	if val, isCall, err := v.subroutineCallValue(s, s.Value); isCall {
		if err != nil {
			return err
		}
		if s.Op != "=" {
			return qasm.NewValidationError(s, "subroutine results support only plain assignment")
		}
		if val != nil {
			val, err = coerceScalar(s, variable, val)
			if err != nil {
				return err
			}
		}
		variable.Value = val
		return nil
	}

	rhs := s.Value
	if s.Op != "=" {
		// Compound assignment folds into the evaluated value below.
		rhs = &ast.BinaryExpr{
			Op:    strings.TrimSuffix(s.Op, "="),
			Left:  s.Target,
			Right: s.Value,
			Span:  s.Span,
		}
	}

	if _, isIndexed := s.Target.(*ast.IndexExpr); isIndexed {
		if err := v.assignElement(s, variable, rhs); err != nil {
			return err
		}
	} else {
		val, err := v.eval.Eval(rhs)
		if err != nil {
			// The right-hand side is runtime-only; the compile-time value
			// becomes unknown.
			variable.Value = nil
		} else {
			coerced, cerr := coerceScalar(s, variable, val)
			if cerr != nil {
				return cerr
			}
			variable.Value = coerced
		}
	}

	v.emit(s.CloneStmt())
	return nil
}

// assignElement updates one array element in place when both the indices
// and the value are compile-time known.
func (v *Visitor) assignElement(s *ast.Assignment, variable *sym.Variable, rhs ast.Expression) error {
	if !variable.IsArray() {
		return qasm.NewValidationError(s, "%q is not an array", variable.Name)
	}
	target := s.Target.(*ast.IndexExpr)
	var indices []int
	cur := ast.Expression(target)
	for {
		ix, ok := cur.(*ast.IndexExpr)
		if !ok {
			break
		}
		i, err := v.eval.EvalInt(ix.Index)
		if err != nil {
			// Unknown index invalidates the whole compile-time value.
			variable.Value = nil
			return nil
		}
		indices = append([]int{int(i)}, indices...)
		cur = ix.Collection
	}
	if len(indices) != len(variable.Dims) {
		return qasm.NewValidationError(s, "array %q expects %d indices, got %d", variable.Name, len(variable.Dims), len(indices))
	}
	for d, idx := range indices {
		if idx < 0 || idx >= variable.Dims[d] {
			return qasm.NewValidationError(s, "index %d out of bounds for dimension %d of %q", idx, d, variable.Name)
		}
	}
	val, err := v.eval.Eval(rhs)
	if err != nil {
		variable.Value = nil
		return nil
	}
	coerced, err := coerceScalar(s, variable, val)
	if err != nil {
		return err
	}
	elems, ok := variable.Value.([]any)
	if !ok {
		return nil
	}
	for d := 0; d < len(indices)-1; d++ {
		next, ok := elems[indices[d]].([]any)
		if !ok {
			return nil
		}
		elems = next
	}
	elems[indices[len(indices)-1]] = coerced
	return nil
}
