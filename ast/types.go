package ast

// TypeKind identifies the base classical type of a declaration.
type TypeKind int

const (
	TypeBit TypeKind = iota
	TypeInt
	TypeUint
	TypeFloat
	TypeAngle
	TypeBool
	TypeComplex
	TypeDuration
	TypeStretch
)

var typeKindNames = [...]string{
	TypeBit:      "bit",
	TypeInt:      "int",
	TypeUint:     "uint",
	TypeFloat:    "float",
	TypeAngle:    "angle",
	TypeBool:     "bool",
	TypeComplex:  "complex",
	TypeDuration: "duration",
	TypeStretch:  "stretch",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "unknown"
}

// ClassicalType is a classical type expression. Width is nil for the
// default width. A non-empty Dimensions list makes this an array type of
// the base kind, e.g. array[int[32], 3, 4].
type ClassicalType struct {
	Kind       TypeKind
	Width      Expression
	Dimensions []Expression
	Span       Span
}

// IsArray reports whether the type has array dimensions.
func (t *ClassicalType) IsArray() bool {
	return len(t.Dimensions) > 0
}

// Clone returns a deep copy of the type.
func (t ClassicalType) Clone() ClassicalType {
	out := ClassicalType{Kind: t.Kind, Span: t.Span}
	if t.Width != nil {
		out.Width = t.Width.CloneExpr()
	}
	if t.Dimensions != nil {
		out.Dimensions = CloneExpressions(t.Dimensions)
	}
	return out
}
