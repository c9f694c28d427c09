package testutil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goqasm/goqasm/ast"
)

// Render flattens a canonical statement list into compact one-line forms
// like "h q[0]" or "if (c[1] == 1) { x q[0] } else { y q[0] }", for
// readable output comparisons in tests.
func Render(stmts []ast.Statement) []string {
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		out = append(out, RenderStmt(s))
	}
	return out
}

// RenderStmt renders one statement.
func RenderStmt(s ast.Statement) string {
	switch x := s.(type) {
	case *ast.QuantumDeclaration:
		return fmt.Sprintf("qubit[%s] %s", RenderExpr(x.Size), x.Name)
	case *ast.ClassicalDeclaration:
		return fmt.Sprintf("%s %s", x.Type.Kind, x.Name)
	case *ast.QuantumGate:
		var b strings.Builder
		for _, m := range x.Modifiers {
			b.WriteString(m.Kind.String())
			if m.Arg != nil {
				b.WriteString("(" + RenderExpr(m.Arg) + ")")
			}
			b.WriteString(" @ ")
		}
		b.WriteString(x.Name)
		if len(x.Args) > 0 {
			b.WriteString("(" + renderExprs(x.Args) + ")")
		}
		b.WriteString(" " + renderExprs(x.Qubits))
		return b.String()
	case *ast.QuantumPhase:
		out := "gphase(" + RenderExpr(x.Arg) + ")"
		if len(x.Qubits) > 0 {
			out += " " + renderExprs(x.Qubits)
		}
		return out
	case *ast.QuantumMeasurement:
		if x.Target != nil {
			return fmt.Sprintf("measure %s -> %s", RenderExpr(x.Qubit), RenderExpr(x.Target))
		}
		return "measure " + RenderExpr(x.Qubit)
	case *ast.QuantumReset:
		return "reset " + RenderExpr(x.Qubit)
	case *ast.QuantumBarrier:
		if len(x.Qubits) == 0 {
			return "barrier"
		}
		return "barrier " + renderExprs(x.Qubits)
	case *ast.Branch:
		out := "if (" + RenderExpr(x.Condition) + ") { " + strings.Join(Render(x.Then), "; ") + " }"
		if len(x.Else) > 0 {
			out += " else { " + strings.Join(Render(x.Else), "; ") + " }"
		}
		return out
	case *ast.Box:
		return "box { " + strings.Join(Render(x.Body), "; ") + " }"
	case *ast.Assignment:
		return RenderExpr(x.Target) + " " + x.Op + " " + RenderExpr(x.Value)
	case *ast.Include:
		return `include "` + x.Path + `"`
	case *ast.GateDefinition:
		return "gate " + x.Name
	case *ast.CalBlock:
		return "cal"
	case *ast.DefCalBlock:
		return "defcal " + x.Name
	}
	return fmt.Sprintf("<%T>", s)
}

// RenderExpr renders one expression.
func RenderExpr(e ast.Expression) string {
	switch x := e.(type) {
	case nil:
		return ""
	case *ast.IntLiteral:
		return strconv.FormatInt(x.Value, 10)
	case *ast.FloatLiteral:
		return strconv.FormatFloat(x.Value, 'g', -1, 64)
	case *ast.BoolLiteral:
		return strconv.FormatBool(x.Value)
	case *ast.Identifier:
		return x.Name
	case *ast.IndexExpr:
		return RenderExpr(x.Collection) + "[" + RenderExpr(x.Index) + "]"
	case *ast.RangeExpr:
		return RenderExpr(x.Start) + ":" + RenderExpr(x.End)
	case *ast.UnaryExpr:
		return x.Op + RenderExpr(x.Operand)
	case *ast.BinaryExpr:
		return RenderExpr(x.Left) + " " + x.Op + " " + RenderExpr(x.Right)
	case *ast.CallExpr:
		return x.Name + "(" + renderExprs(x.Args) + ")"
	case *ast.MeasureExpr:
		return "measure " + RenderExpr(x.Target)
	}
	return fmt.Sprintf("<%T>", e)
}

func renderExprs(exprs []ast.Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = RenderExpr(e)
	}
	return strings.Join(parts, ", ")
}
