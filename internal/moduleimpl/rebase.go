package moduleimpl

import (
	"fmt"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/gates"
)

// Rebase decomposition knobs handed to the numeric collaborator.
const (
	rebaseDepth    = 10
	rebaseAccuracy = 1e-10
)

// Rebase rewrites the unrolled program onto the basis gate set. Gates in
// the basis pass through; single-axis rotations go through the configured
// Decomposer; anything else fails.
func (m *qasmModule) Rebase(basis []string) error {
	if m.unrolled == nil {
		return fmt.Errorf("module has not been unrolled")
	}
	if len(basis) == 0 {
		return fmt.Errorf("empty basis gate set")
	}
	set := make(map[string]struct{}, len(basis))
	for _, g := range basis {
		set[g] = struct{}{}
	}
	stmts, err := m.rebaseStatements(m.unrolled.Statements, set, basis)
	if err != nil {
		return err
	}
	m.unrolled.Statements = stmts
	return nil
}

func (m *qasmModule) rebaseStatements(stmts []ast.Statement, set map[string]struct{}, basis []string) ([]ast.Statement, error) {
	out := make([]ast.Statement, 0, len(stmts))
	for _, s := range stmts {
		switch x := s.(type) {
		case *ast.QuantumGate:
			if _, inBasis := set[x.Name]; inBasis {
				out = append(out, x)
				continue
			}
			seq, err := m.decomposeGate(x, basis)
			if err != nil {
				return nil, err
			}
			out = append(out, seq...)
		case *ast.Branch:
			then, err := m.rebaseStatements(x.Then, set, basis)
			if err != nil {
				return nil, err
			}
			els, err := m.rebaseStatements(x.Else, set, basis)
			if err != nil {
				return nil, err
			}
			x.Then, x.Else = then, els
			out = append(out, x)
		case *ast.Box:
			body, err := m.rebaseStatements(x.Body, set, basis)
			if err != nil {
				return nil, err
			}
			x.Body = body
			out = append(out, x)
		default:
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *qasmModule) decomposeGate(g *ast.QuantumGate, basis []string) ([]ast.Statement, error) {
	axis, ok := gates.RotationAxis(g.Name)
	if !ok {
		return nil, fmt.Errorf("gate %q cannot be rebased onto the target basis", g.Name)
	}
	if m.cfg.Decomposer == nil {
		return nil, fmt.Errorf("rebasing gate %q requires a decomposer", g.Name)
	}
	if len(g.Args) != 1 {
		return nil, fmt.Errorf("gate %q has %d parameters, expected 1", g.Name, len(g.Args))
	}
	angle, ok := literalFloat(g.Args[0])
	if !ok {
		return nil, fmt.Errorf("gate %q has a non-literal angle after unrolling", g.Name)
	}

	names, err := m.cfg.Decomposer.DecomposeRotation(axis, angle, basis, rebaseDepth, rebaseAccuracy)
	if err != nil {
		return nil, fmt.Errorf("decomposing %s(%g): %w", g.Name, angle, err)
	}
	out := make([]ast.Statement, len(names))
	for i, name := range names {
		out[i] = &ast.QuantumGate{
			Name:   name,
			Qubits: ast.CloneExpressions(g.Qubits),
			Span:   g.Span,
		}
	}
	return out, nil
}

func literalFloat(e ast.Expression) (float64, bool) {
	switch x := e.(type) {
	case *ast.FloatLiteral:
		return x.Value, true
	case *ast.IntLiteral:
		return float64(x.Value), true
	}
	return 0, false
}
