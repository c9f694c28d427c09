package ast

// Statement is a single program statement. The unroller dispatches on the
// concrete type; unhandled kinds are a validation error, not a panic.
type Statement interface {
	StmtSpan() Span
	CloneStmt() Statement
	statement()
}

// QuantumDeclaration declares a qubit register. Size nil means one qubit.
type QuantumDeclaration struct {
	Name string
	Size Expression
	Span Span
}

func (s *QuantumDeclaration) StmtSpan() Span { return s.Span }
func (*QuantumDeclaration) statement()       {}

// ClassicalDeclaration declares a classical variable, optionally constant
// and optionally initialized.
type ClassicalDeclaration struct {
	Type     ClassicalType
	Name     string
	Init     Expression
	Constant bool
	Span     Span
}

func (s *ClassicalDeclaration) StmtSpan() Span { return s.Span }
func (*ClassicalDeclaration) statement()       {}

// IODirection distinguishes input and output declarations.
type IODirection int

const (
	IOInput IODirection = iota
	IOOutput
)

// IODeclaration is an `input`/`output` classical declaration.
type IODeclaration struct {
	Direction IODirection
	Type      ClassicalType
	Name      string
	Span      Span
}

func (s *IODeclaration) StmtSpan() Span { return s.Span }
func (*IODeclaration) statement()       {}

// GateDefinition defines a custom gate over formal parameters and qubits.
type GateDefinition struct {
	Name   string
	Params []string
	Qubits []string
	Body   []Statement
	Span   Span
}

func (s *GateDefinition) StmtSpan() Span { return s.Span }
func (*GateDefinition) statement()       {}

// ModifierKind enumerates gate-call modifiers.
type ModifierKind int

const (
	ModInv ModifierKind = iota
	ModPow
	ModCtrl
	ModNegCtrl
)

func (k ModifierKind) String() string {
	switch k {
	case ModInv:
		return "inv"
	case ModPow:
		return "pow"
	case ModCtrl:
		return "ctrl"
	case ModNegCtrl:
		return "negctrl"
	}
	return "unknown"
}

// GateModifier annotates a gate call. Arg is the pow exponent or the
// ctrl/negctrl count; nil means 1 for control counts.
type GateModifier struct {
	Kind ModifierKind
	Arg  Expression
	Span Span
}

// Clone returns a deep copy of the modifier.
func (m GateModifier) Clone() GateModifier {
	out := GateModifier{Kind: m.Kind, Span: m.Span}
	if m.Arg != nil {
		out.Arg = m.Arg.CloneExpr()
	}
	return out
}

// QuantumGate is a gate call: modifiers, name, classical arguments, and
// qubit operands (identifiers or index expressions).
type QuantumGate struct {
	Modifiers []GateModifier
	Name      string
	Args      []Expression
	Qubits    []Expression
	Span      Span
}

func (s *QuantumGate) StmtSpan() Span { return s.Span }
func (*QuantumGate) statement()       {}

// QuantumPhase is a `gphase(angle)` statement, optionally controlled.
type QuantumPhase struct {
	Modifiers []GateModifier
	Arg       Expression
	Qubits    []Expression
	Span      Span
}

func (s *QuantumPhase) StmtSpan() Span { return s.Span }
func (*QuantumPhase) statement()       {}

// QuantumMeasurement measures a qubit operand into a classical target.
// Target may be nil for a bare `measure q;` statement.
type QuantumMeasurement struct {
	Qubit  Expression
	Target Expression
	Span   Span
}

func (s *QuantumMeasurement) StmtSpan() Span { return s.Span }
func (*QuantumMeasurement) statement()       {}

// QuantumReset resets a qubit operand to |0>.
type QuantumReset struct {
	Qubit Expression
	Span  Span
}

func (s *QuantumReset) StmtSpan() Span { return s.Span }
func (*QuantumReset) statement()       {}

// QuantumBarrier orders operations across the named qubits.
type QuantumBarrier struct {
	Qubits []Expression
	Span   Span
}

func (s *QuantumBarrier) StmtSpan() Span { return s.Span }
func (*QuantumBarrier) statement()       {}

// Branch is an if/else statement.
type Branch struct {
	Condition Expression
	Then      []Statement
	Else      []Statement
	Span      Span
}

func (s *Branch) StmtSpan() Span { return s.Span }
func (*Branch) statement()       {}

// ForLoop iterates a loop variable over a range or discrete set.
type ForLoop struct {
	VarType  *ClassicalType
	VarName  string
	Iterable Expression
	Body     []Statement
	Span     Span
}

func (s *ForLoop) StmtSpan() Span { return s.Span }
func (*ForLoop) statement()       {}

// WhileLoop re-evaluates its condition before each pass.
type WhileLoop struct {
	Condition Expression
	Body      []Statement
	Span      Span
}

func (s *WhileLoop) StmtSpan() Span { return s.Span }
func (*WhileLoop) statement()       {}

// SwitchCase is one `case v1, v2: { ... }` arm.
type SwitchCase struct {
	Values []Expression
	Body   []Statement
	Span   Span
}

// SwitchStatement selects the first case matching the target value.
type SwitchStatement struct {
	Target  Expression
	Cases   []SwitchCase
	Default []Statement
	Span    Span
}

func (s *SwitchStatement) StmtSpan() Span { return s.Span }
func (*SwitchStatement) statement()       {}

// AliasStatement binds a name to a view over existing qubits:
// `let a = q[1:3];`.
type AliasStatement struct {
	Name   string
	Target Expression
	Span   Span
}

func (s *AliasStatement) StmtSpan() Span { return s.Span }
func (*AliasStatement) statement()       {}

// ParamKind distinguishes subroutine parameter binding modes.
type ParamKind int

const (
	ParamClassical ParamKind = iota // bound by value
	ParamQubit                      // bound by physical identity
	ParamArrayRef                   // bound by reference/view
)

// SubroutineParam is a formal parameter of a subroutine definition.
// Size is the declared qubit-register size for ParamQubit (nil means one
// qubit). Mutable applies to ParamArrayRef: false means readonly.
type SubroutineParam struct {
	Kind    ParamKind
	Name    string
	Type    ClassicalType
	Size    Expression
	Mutable bool
	Span    Span
}

// SubroutineDefinition defines a `def` subroutine.
type SubroutineDefinition struct {
	Name       string
	Params     []SubroutineParam
	ReturnType *ClassicalType
	Body       []Statement
	Span       Span
}

func (s *SubroutineDefinition) StmtSpan() Span { return s.Span }
func (*SubroutineDefinition) statement()       {}

// ExpressionStatement is a bare expression statement, typically a
// subroutine or extern call.
type ExpressionStatement struct {
	Expr Expression
	Span Span
}

func (s *ExpressionStatement) StmtSpan() Span { return s.Span }
func (*ExpressionStatement) statement()       {}

// Assignment assigns to a classical variable or element. Op is "=" or a
// compound form like "+=".
type Assignment struct {
	Target Expression
	Op     string
	Value  Expression
	Span   Span
}

func (s *Assignment) StmtSpan() Span { return s.Span }
func (*Assignment) statement()       {}

// ReturnStatement exits the enclosing subroutine.
type ReturnStatement struct {
	Value Expression
	Span  Span
}

func (s *ReturnStatement) StmtSpan() Span { return s.Span }
func (*ReturnStatement) statement()       {}

// BreakStatement exits the innermost loop.
type BreakStatement struct {
	Span Span
}

func (s *BreakStatement) StmtSpan() Span { return s.Span }
func (*BreakStatement) statement()       {}

// ContinueStatement advances the innermost loop.
type ContinueStatement struct {
	Span Span
}

func (s *ContinueStatement) StmtSpan() Span { return s.Span }
func (*ContinueStatement) statement()       {}

// Box groups statements as a scheduling unit, optionally with a duration.
type Box struct {
	Duration Expression
	Body     []Statement
	Span     Span
}

func (s *Box) StmtSpan() Span { return s.Span }
func (*Box) statement()       {}

// CalBlock is an opaque `cal { ... }` calibration block.
type CalBlock struct {
	Body []Statement
	Span Span
}

func (s *CalBlock) StmtSpan() Span { return s.Span }
func (*CalBlock) statement()       {}

// DefCalBlock is an opaque `defcal name ... { ... }` calibration definition.
type DefCalBlock struct {
	Name string
	Body []Statement
	Span Span
}

func (s *DefCalBlock) StmtSpan() Span { return s.Span }
func (*DefCalBlock) statement()       {}

// Include is a QASM2 `include "file";` statement.
type Include struct {
	Path string
	Span Span
}

func (s *Include) StmtSpan() Span { return s.Span }
func (*Include) statement()       {}
