package unroller

import (
	"strings"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/qasm"
)

// visitAlias binds `let name = target`. The alias is a resolved view over
// physical qubits, so later register operations see straight through it.
// Rebinding an existing alias is allowed; shadowing a register is not.
func (v *Visitor) visitAlias(s *ast.AliasStatement) error {
	if strings.HasPrefix(s.Name, ReservedPrefix) {
		return qasm.NewValidationError(s, "name %q uses the reserved prefix %q", s.Name, ReservedPrefix)
	}
	if v.scope.CheckInScope(s.Name) {
		return qasm.NewValidationError(s, "alias %q collides with a declared variable", s.Name)
	}

	targets, err := v.aliasTargets(s, s.Target)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return qasm.NewValidationError(s, "alias %q has no target qubits", s.Name)
	}
	if err := checkDuplicateRefs(s, "alias", targets); err != nil {
		return err
	}

	v.st.Aliases[s.Name] = &sym.Alias{Name: s.Name, Targets: targets}
	return nil
}

// aliasTargets resolves the alias expression, flattening `++`
// concatenations left to right.
func (v *Visitor) aliasTargets(node ast.Statement, e ast.Expression) ([]sym.AliasTarget, error) {
	if bin, ok := e.(*ast.BinaryExpr); ok && bin.Op == "++" {
		left, err := v.aliasTargets(node, bin.Left)
		if err != nil {
			return nil, err
		}
		right, err := v.aliasTargets(node, bin.Right)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil
	}
	return v.resolveQubitOperand(node, e)
}
