package ast

// Deep-clone support. The unroller revisits loop bodies and gate/subroutine
// definition bodies many times; every revisit operates on an independent
// clone so no two expansions alias the same node.

// CloneStatements deep-copies a statement list.
func CloneStatements(stmts []Statement) []Statement {
	if stmts == nil {
		return nil
	}
	out := make([]Statement, len(stmts))
	for i, s := range stmts {
		out[i] = s.CloneStmt()
	}
	return out
}

// CloneExpressions deep-copies an expression list.
func CloneExpressions(exprs []Expression) []Expression {
	if exprs == nil {
		return nil
	}
	out := make([]Expression, len(exprs))
	for i, e := range exprs {
		out[i] = e.CloneExpr()
	}
	return out
}

func cloneExpr(e Expression) Expression {
	if e == nil {
		return nil
	}
	return e.CloneExpr()
}

func cloneType(t *ClassicalType) *ClassicalType {
	if t == nil {
		return nil
	}
	c := t.Clone()
	return &c
}

func cloneModifiers(mods []GateModifier) []GateModifier {
	if mods == nil {
		return nil
	}
	out := make([]GateModifier, len(mods))
	for i, m := range mods {
		out[i] = m.Clone()
	}
	return out
}

func (e *IntLiteral) CloneExpr() Expression {
	c := *e
	return &c
}

func (e *FloatLiteral) CloneExpr() Expression {
	c := *e
	return &c
}

func (e *BoolLiteral) CloneExpr() Expression {
	c := *e
	return &c
}

func (e *BitstringLiteral) CloneExpr() Expression {
	c := *e
	return &c
}

func (e *DurationLiteral) CloneExpr() Expression {
	c := *e
	return &c
}

func (e *Identifier) CloneExpr() Expression {
	c := *e
	return &c
}

func (e *IndexExpr) CloneExpr() Expression {
	return &IndexExpr{
		Collection: cloneExpr(e.Collection),
		Index:      cloneExpr(e.Index),
		Span:       e.Span,
	}
}

func (e *RangeExpr) CloneExpr() Expression {
	return &RangeExpr{
		Start: cloneExpr(e.Start),
		End:   cloneExpr(e.End),
		Step:  cloneExpr(e.Step),
		Span:  e.Span,
	}
}

func (e *DiscreteSet) CloneExpr() Expression {
	return &DiscreteSet{
		Values: CloneExpressions(e.Values),
		Span:   e.Span,
	}
}

func (e *UnaryExpr) CloneExpr() Expression {
	return &UnaryExpr{
		Op:      e.Op,
		Operand: cloneExpr(e.Operand),
		Span:    e.Span,
	}
}

func (e *BinaryExpr) CloneExpr() Expression {
	return &BinaryExpr{
		Op:    e.Op,
		Left:  cloneExpr(e.Left),
		Right: cloneExpr(e.Right),
		Span:  e.Span,
	}
}

func (e *CallExpr) CloneExpr() Expression {
	return &CallExpr{
		Name: e.Name,
		Args: CloneExpressions(e.Args),
		Span: e.Span,
	}
}

func (e *MeasureExpr) CloneExpr() Expression {
	return &MeasureExpr{
		Target: cloneExpr(e.Target),
		Span:   e.Span,
	}
}

func (e *CastExpr) CloneExpr() Expression {
	return &CastExpr{
		Type:    e.Type.Clone(),
		Operand: cloneExpr(e.Operand),
		Span:    e.Span,
	}
}

func (e *ArrayLiteral) CloneExpr() Expression {
	return &ArrayLiteral{
		Values: CloneExpressions(e.Values),
		Span:   e.Span,
	}
}

func (s *QuantumDeclaration) CloneStmt() Statement {
	return &QuantumDeclaration{
		Name: s.Name,
		Size: cloneExpr(s.Size),
		Span: s.Span,
	}
}

func (s *ClassicalDeclaration) CloneStmt() Statement {
	return &ClassicalDeclaration{
		Type:     s.Type.Clone(),
		Name:     s.Name,
		Init:     cloneExpr(s.Init),
		Constant: s.Constant,
		Span:     s.Span,
	}
}

func (s *IODeclaration) CloneStmt() Statement {
	return &IODeclaration{
		Direction: s.Direction,
		Type:      s.Type.Clone(),
		Name:      s.Name,
		Span:      s.Span,
	}
}

func (s *GateDefinition) CloneStmt() Statement {
	out := &GateDefinition{
		Name: s.Name,
		Body: CloneStatements(s.Body),
		Span: s.Span,
	}
	out.Params = append([]string(nil), s.Params...)
	out.Qubits = append([]string(nil), s.Qubits...)
	return out
}

func (s *QuantumGate) CloneStmt() Statement {
	return &QuantumGate{
		Modifiers: cloneModifiers(s.Modifiers),
		Name:      s.Name,
		Args:      CloneExpressions(s.Args),
		Qubits:    CloneExpressions(s.Qubits),
		Span:      s.Span,
	}
}

func (s *QuantumPhase) CloneStmt() Statement {
	return &QuantumPhase{
		Modifiers: cloneModifiers(s.Modifiers),
		Arg:       cloneExpr(s.Arg),
		Qubits:    CloneExpressions(s.Qubits),
		Span:      s.Span,
	}
}

func (s *QuantumMeasurement) CloneStmt() Statement {
	return &QuantumMeasurement{
		Qubit:  cloneExpr(s.Qubit),
		Target: cloneExpr(s.Target),
		Span:   s.Span,
	}
}

func (s *QuantumReset) CloneStmt() Statement {
	return &QuantumReset{
		Qubit: cloneExpr(s.Qubit),
		Span:  s.Span,
	}
}

func (s *QuantumBarrier) CloneStmt() Statement {
	return &QuantumBarrier{
		Qubits: CloneExpressions(s.Qubits),
		Span:   s.Span,
	}
}

func (s *Branch) CloneStmt() Statement {
	return &Branch{
		Condition: cloneExpr(s.Condition),
		Then:      CloneStatements(s.Then),
		Else:      CloneStatements(s.Else),
		Span:      s.Span,
	}
}

func (s *ForLoop) CloneStmt() Statement {
	return &ForLoop{
		VarType:  cloneType(s.VarType),
		VarName:  s.VarName,
		Iterable: cloneExpr(s.Iterable),
		Body:     CloneStatements(s.Body),
		Span:     s.Span,
	}
}

func (s *WhileLoop) CloneStmt() Statement {
	return &WhileLoop{
		Condition: cloneExpr(s.Condition),
		Body:      CloneStatements(s.Body),
		Span:      s.Span,
	}
}

func (s *SwitchStatement) CloneStmt() Statement {
	out := &SwitchStatement{
		Target:  cloneExpr(s.Target),
		Default: CloneStatements(s.Default),
		Span:    s.Span,
	}
	if s.Cases != nil {
		out.Cases = make([]SwitchCase, len(s.Cases))
		for i, c := range s.Cases {
			out.Cases[i] = SwitchCase{
				Values: CloneExpressions(c.Values),
				Body:   CloneStatements(c.Body),
				Span:   c.Span,
			}
		}
	}
	return out
}

func (s *AliasStatement) CloneStmt() Statement {
	return &AliasStatement{
		Name:   s.Name,
		Target: cloneExpr(s.Target),
		Span:   s.Span,
	}
}

func (s *SubroutineDefinition) CloneStmt() Statement {
	out := &SubroutineDefinition{
		Name:       s.Name,
		ReturnType: cloneType(s.ReturnType),
		Body:       CloneStatements(s.Body),
		Span:       s.Span,
	}
	if s.Params != nil {
		out.Params = make([]SubroutineParam, len(s.Params))
		for i, p := range s.Params {
			out.Params[i] = SubroutineParam{
				Kind:    p.Kind,
				Name:    p.Name,
				Type:    p.Type.Clone(),
				Size:    cloneExpr(p.Size),
				Mutable: p.Mutable,
				Span:    p.Span,
			}
		}
	}
	return out
}

func (s *ExpressionStatement) CloneStmt() Statement {
	return &ExpressionStatement{
		Expr: cloneExpr(s.Expr),
		Span: s.Span,
	}
}

func (s *Assignment) CloneStmt() Statement {
	return &Assignment{
		Target: cloneExpr(s.Target),
		Op:     s.Op,
		Value:  cloneExpr(s.Value),
		Span:   s.Span,
	}
}

func (s *ReturnStatement) CloneStmt() Statement {
	return &ReturnStatement{
		Value: cloneExpr(s.Value),
		Span:  s.Span,
	}
}

func (s *BreakStatement) CloneStmt() Statement {
	c := *s
	return &c
}

func (s *ContinueStatement) CloneStmt() Statement {
	c := *s
	return &c
}

func (s *Box) CloneStmt() Statement {
	return &Box{
		Duration: cloneExpr(s.Duration),
		Body:     CloneStatements(s.Body),
		Span:     s.Span,
	}
}

func (s *CalBlock) CloneStmt() Statement {
	return &CalBlock{
		Body: CloneStatements(s.Body),
		Span: s.Span,
	}
}

func (s *DefCalBlock) CloneStmt() Statement {
	return &DefCalBlock{
		Name: s.Name,
		Body: CloneStatements(s.Body),
		Span: s.Span,
	}
}

func (s *Include) CloneStmt() Statement {
	c := *s
	return &c
}
