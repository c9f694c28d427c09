package ast

// Expression is a value-producing node: literals, identifiers, index and
// range forms, arithmetic, and call-like expressions.
type Expression interface {
	ExprSpan() Span
	CloneExpr() Expression
	expression()
}

// IntLiteral is a signed integer literal.
type IntLiteral struct {
	Value int64
	Span  Span
}

func (e *IntLiteral) ExprSpan() Span { return e.Span }
func (*IntLiteral) expression()      {}

// FloatLiteral is a floating-point literal.
type FloatLiteral struct {
	Value float64
	Span  Span
}

func (e *FloatLiteral) ExprSpan() Span { return e.Span }
func (*FloatLiteral) expression()      {}

// BoolLiteral is a boolean literal.
type BoolLiteral struct {
	Value bool
	Span  Span
}

func (e *BoolLiteral) ExprSpan() Span { return e.Span }
func (*BoolLiteral) expression()      {}

// BitstringLiteral is a fixed-width binary literal, e.g. "101".
type BitstringLiteral struct {
	Value uint64
	Width int
	Span  Span
}

func (e *BitstringLiteral) ExprSpan() Span { return e.Span }
func (*BitstringLiteral) expression()      {}

// DurationLiteral is a timing literal with its unit, e.g. 100ns.
type DurationLiteral struct {
	Value float64
	Unit  string
	Span  Span
}

func (e *DurationLiteral) ExprSpan() Span { return e.Span }
func (*DurationLiteral) expression()      {}

// Identifier is a bare name reference.
type Identifier struct {
	Name string
	Span Span
}

func (e *Identifier) ExprSpan() Span { return e.Span }
func (*Identifier) expression()      {}

// IndexExpr subscripts a collection: q[0], c[1:3], q[{0, 2}].
type IndexExpr struct {
	Collection Expression
	Index      Expression
	Span       Span
}

func (e *IndexExpr) ExprSpan() Span { return e.Span }
func (*IndexExpr) expression()      {}

// RangeExpr is a [start:end] or [start:step:end] slice. Step may be nil.
// Both endpoints are inclusive.
type RangeExpr struct {
	Start Expression
	End   Expression
	Step  Expression
	Span  Span
}

func (e *RangeExpr) ExprSpan() Span { return e.Span }
func (*RangeExpr) expression()      {}

// DiscreteSet is an explicit index set, e.g. {0, 2, 5}.
type DiscreteSet struct {
	Values []Expression
	Span   Span
}

func (e *DiscreteSet) ExprSpan() Span { return e.Span }
func (*DiscreteSet) expression()      {}

// UnaryExpr applies a prefix operator: -, !, ~.
type UnaryExpr struct {
	Op      string
	Operand Expression
	Span    Span
}

func (e *UnaryExpr) ExprSpan() Span { return e.Span }
func (*UnaryExpr) expression()      {}

// BinaryExpr applies an infix operator.
type BinaryExpr struct {
	Op    string
	Left  Expression
	Right Expression
	Span  Span
}

func (e *BinaryExpr) ExprSpan() Span { return e.Span }
func (*BinaryExpr) expression()      {}

// CallExpr invokes a subroutine, extern, or builtin function.
type CallExpr struct {
	Name string
	Args []Expression
	Span Span
}

func (e *CallExpr) ExprSpan() Span { return e.Span }
func (*CallExpr) expression()      {}

// MeasureExpr is a `measure q` expression form.
type MeasureExpr struct {
	Target Expression
	Span   Span
}

func (e *MeasureExpr) ExprSpan() Span { return e.Span }
func (*MeasureExpr) expression()      {}

// CastExpr converts a value to a classical type.
type CastExpr struct {
	Type    ClassicalType
	Operand Expression
	Span    Span
}

func (e *CastExpr) ExprSpan() Span { return e.Span }
func (*CastExpr) expression()      {}

// ArrayLiteral is a nested brace initializer for array declarations.
type ArrayLiteral struct {
	Values []Expression
	Span   Span
}

func (e *ArrayLiteral) ExprSpan() Span { return e.Span }
func (*ArrayLiteral) expression()      {}

// Ident is shorthand for an identifier expression with a synthetic span.
func Ident(name string) *Identifier {
	return &Identifier{Name: name}
}

// Int is shorthand for an integer literal with a synthetic span.
func Int(v int64) *IntLiteral {
	return &IntLiteral{Value: v}
}

// Bit is shorthand for the canonical single-bit reference reg[index].
func Bit(reg string, index int64) *IndexExpr {
	return &IndexExpr{Collection: Ident(reg), Index: Int(index)}
}
