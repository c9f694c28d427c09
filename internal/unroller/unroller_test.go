package unroller_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/internal/testutil"
	"github.com/goqasm/goqasm/internal/types"
	"github.com/goqasm/goqasm/internal/unroller"
	"github.com/goqasm/goqasm/qasm"
)

func unroll(t *testing.T, prog *ast.Program, mutate ...func(*qasm.Config)) ([]ast.Statement, *unroller.State) {
	t.Helper()
	cfg := qasm.DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	st := unroller.NewState()
	out, err := unroller.Run(prog, st, &cfg, types.Logger{}, false)
	require.NoError(t, err)
	return out, st
}

func unrollErr(t *testing.T, prog *ast.Program, mutate ...func(*qasm.Config)) error {
	t.Helper()
	cfg := qasm.DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	_, err := unroller.Run(prog, unroller.NewState(), &cfg, types.Logger{}, false)
	require.Error(t, err)
	return err
}

func bin(op string, l, r ast.Expression) ast.Expression {
	return &ast.BinaryExpr{Op: op, Left: l, Right: r}
}

func TestQubitDeclarations(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(&ast.QuantumDeclaration{Name: "q"}).
		Qubits("r", 3).
		Build()
	out, st := unroll(t, prog)

	assert.Equal(t, []string{"qubit[1] q", "qubit[3] r"}, testutil.Render(out))
	assert.Equal(t, 4, st.TotalQubits)
	assert.Equal(t, []string{"q", "r"}, st.QubitRegOrder)
	assert.Equal(t, map[string]int{"q": 0, "r": 1}, st.RegBase)
	assert.Len(t, st.QubitDepths, 4)
}

func TestQubitDeclarationErrors(t *testing.T) {
	tests := []struct {
		name    string
		prog    *ast.Program
		wantErr string
	}{
		{
			"zero size",
			testutil.NewProgram("3.0").Qubits("q", 0).Build(),
			"positive size",
		},
		{
			"redeclaration",
			testutil.NewProgram("3.0").Qubits("q", 1).Qubits("q", 2).Build(),
			"redeclaration",
		},
		{
			"reserved prefix",
			testutil.NewProgram("3.0").Qubits("__q", 1).Build(),
			"reserved prefix",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := unrollErr(t, tt.prog)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestForLoopUnrolls(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 3).
		Stmt(&ast.ForLoop{
			VarName:  "i",
			Iterable: &ast.RangeExpr{Start: ast.Int(0), End: ast.Int(2)},
			Body: []ast.Statement{
				&ast.QuantumGate{Name: "h", Qubits: []ast.Expression{
					&ast.IndexExpr{Collection: ast.Ident("q"), Index: ast.Ident("i")},
				}},
			},
		}).
		Build()
	out, st := unroll(t, prog)

	assert.Equal(t, []string{"qubit[3] q", "h q[0]", "h q[1]", "h q[2]"}, testutil.Render(out))
	assert.Equal(t, 1, st.MaxDepth())
}

func TestForLoopDiscreteSet(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 4).
		Stmt(&ast.ForLoop{
			VarName:  "i",
			Iterable: &ast.DiscreteSet{Values: []ast.Expression{ast.Int(0), ast.Int(3)}},
			Body: []ast.Statement{
				&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{
					&ast.IndexExpr{Collection: ast.Ident("q"), Index: ast.Ident("i")},
				}},
			},
		}).
		Build()
	out, _ := unroll(t, prog)
	assert.Equal(t, []string{"qubit[4] q", "x q[0]", "x q[3]"}, testutil.Render(out))
}

func TestForLoopBreak(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 1).
		Stmt(&ast.ForLoop{
			VarName:  "i",
			Iterable: &ast.RangeExpr{Start: ast.Int(0), End: ast.Int(9)},
			Body: []ast.Statement{
				&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
				&ast.Branch{
					Condition: bin("==", ast.Ident("i"), ast.Int(0)),
					Then:      []ast.Statement{&ast.BreakStatement{}},
				},
			},
		}).
		Build()
	out, _ := unroll(t, prog)
	assert.Equal(t, []string{"qubit[1] q", "x q[0]"}, testutil.Render(out))
}

func TestForLoopErrors(t *testing.T) {
	body := []ast.Statement{
		&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
	}
	tests := []struct {
		name     string
		iterable ast.Expression
		wantErr  string
	}{
		{"open range", &ast.RangeExpr{Start: ast.Int(0)}, "explicit start and end"},
		{"zero step", &ast.RangeExpr{Start: ast.Int(0), End: ast.Int(3), Step: ast.Int(0)}, "non-zero"},
		{"bad iterable", ast.Ident("q"), "ranges or discrete sets"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := testutil.NewProgram("3.0").
				Qubits("q", 1).
				Stmt(&ast.ForLoop{VarName: "i", Iterable: tt.iterable, Body: body}).
				Build()
			assert.ErrorContains(t, unrollErr(t, prog), tt.wantErr)
		})
	}
}

func TestLoopLimit(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 1).
		Stmt(&ast.ForLoop{
			VarName:  "i",
			Iterable: &ast.RangeExpr{Start: ast.Int(0), End: ast.Int(100)},
			Body: []ast.Statement{
				&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			},
		}).
		Build()
	err := unrollErr(t, prog, func(c *qasm.Config) { c.MaxLoopIters = 10 })

	var limitErr *qasm.LoopLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Contains(t, limitErr.Message, "101 times")
}

func TestWhileLoop(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 1).
		Stmt(&ast.ClassicalDeclaration{
			Type: ast.ClassicalType{Kind: ast.TypeInt},
			Name: "n",
			Init: ast.Int(2),
		}).
		Stmt(&ast.WhileLoop{
			Condition: bin(">", ast.Ident("n"), ast.Int(0)),
			Body: []ast.Statement{
				&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
				&ast.Assignment{Target: ast.Ident("n"), Op: "=", Value: bin("-", ast.Ident("n"), ast.Int(1))},
			},
		}).
		Build()
	out, _ := unroll(t, prog)

	assert.Equal(t, []string{
		"qubit[1] q", "int n",
		"x q[0]", "n = n - 1",
		"x q[0]", "n = n - 1",
	}, testutil.Render(out))
}

func TestWhileLoopRuntimeCondition(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 1).
		Bits("c", 1).
		Stmt(&ast.WhileLoop{
			Condition: bin("==", ast.Ident("c"), ast.Int(1)),
			Body:      []ast.Statement{},
		}).
		Build()
	assert.ErrorContains(t, unrollErr(t, prog), "evaluable at compile time")
}

func TestSwitch(t *testing.T) {
	mk := func(target int64) *ast.Program {
		return testutil.NewProgram("3.0").
			Qubits("q", 1).
			Const("s", target).
			Stmt(&ast.SwitchStatement{
				Target: ast.Ident("s"),
				Cases: []ast.SwitchCase{
					{Values: []ast.Expression{ast.Int(1)}, Body: []ast.Statement{
						&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
					}},
					{Values: []ast.Expression{ast.Int(2), ast.Int(3)}, Body: []ast.Statement{
						&ast.QuantumGate{Name: "y", Qubits: []ast.Expression{ast.Bit("q", 0)}},
					}},
				},
				Default: []ast.Statement{
					&ast.QuantumGate{Name: "z", Qubits: []ast.Expression{ast.Bit("q", 0)}},
				},
			}).
			Build()
	}

	out, _ := unroll(t, mk(2))
	assert.Equal(t, "y q[0]", testutil.RenderStmt(out[len(out)-1]))

	out, _ = unroll(t, mk(7))
	assert.Equal(t, "z q[0]", testutil.RenderStmt(out[len(out)-1]))
}

func TestSwitchDuplicateCase(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Const("s", 1).
		Stmt(&ast.SwitchStatement{
			Target: ast.Ident("s"),
			Cases: []ast.SwitchCase{
				{Values: []ast.Expression{ast.Int(1)}},
				{Values: []ast.Expression{ast.Int(1)}},
			},
		}).
		Build()
	assert.ErrorContains(t, unrollErr(t, prog), "duplicate switch case value 1")
}

func TestSwitchCastTarget(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(&ast.SwitchStatement{
			Target: &ast.CastExpr{Type: ast.ClassicalType{Kind: ast.TypeInt}, Operand: ast.Int(1)},
			Cases:  []ast.SwitchCase{{Values: []ast.Expression{ast.Int(1)}}},
		}).
		Build()
	assert.ErrorContains(t, unrollErr(t, prog), "not a cast")
}

func TestSwitchCaseBodyRestrictions(t *testing.T) {
	mk := func(body ast.Statement) *ast.Program {
		return testutil.NewProgram("3.0").
			Const("s", 1).
			Stmt(&ast.SwitchStatement{
				Target: ast.Ident("s"),
				Cases:  []ast.SwitchCase{{Values: []ast.Expression{ast.Int(1)}, Body: []ast.Statement{body}}},
			}).
			Build()
	}
	tests := []struct {
		name string
		body ast.Statement
		want string
	}{
		{"qubit declaration", &ast.QuantumDeclaration{Name: "r", Size: ast.Int(1)}, "cannot declare qubits"},
		{"classical declaration", &ast.ClassicalDeclaration{Type: ast.ClassicalType{Kind: ast.TypeInt}, Name: "n", Init: ast.Int(1)}, "cannot declare classical variables"},
		{"gate definition", &ast.GateDefinition{Name: "g", Qubits: []string{"a"}}, "cannot define gates"},
		{"subroutine definition", &ast.SubroutineDefinition{Name: "f"}, "cannot define subroutines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, unrollErr(t, mk(tt.body)), tt.want)
		})
	}
}

func TestBroadcast(t *testing.T) {
	t.Run("single register chunks into pairs", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 4).
			Gate("cx", ast.Ident("q")).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[4] q", "cx q[0], q[1]", "cx q[2], q[3]"}, testutil.Render(out))
	})

	t.Run("two registers zip", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("a", 2).
			Qubits("b", 2).
			Gate("cx", ast.Ident("a"), ast.Ident("b")).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] a", "qubit[2] b", "cx a[0], b[0]", "cx a[1], b[1]"}, testutil.Render(out))
	})

	t.Run("single qubit broadcasts against register", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("a", 1).
			Qubits("b", 2).
			Gate("cx", ast.Ident("a"), ast.Ident("b")).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[1] a", "qubit[2] b", "cx a[0], b[0]", "cx a[0], b[1]"}, testutil.Render(out))
	})

	t.Run("mismatched sizes", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("a", 2).
			Qubits("b", 3).
			Gate("cx", ast.Ident("a"), ast.Ident("b")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "mismatched register sizes")
	})

	t.Run("odd chunk", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 3).
			Gate("cx", ast.Ident("q")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "multiples of 2")
	})

	t.Run("duplicate qubit", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Gate("cx", ast.Bit("q", 0), ast.Bit("q", 0)).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "duplicate qubit q[0]")
	})
}

func TestModifierAlgebra(t *testing.T) {
	tests := []struct {
		name string
		stmt ast.Statement
		want []string
	}{
		{
			"double inverse cancels",
			&ast.QuantumGate{Modifiers: []ast.GateModifier{testutil.Inv(), testutil.Inv()},
				Name: "h", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			[]string{"h q[0]"},
		},
		{
			"positive power repeats",
			&ast.QuantumGate{Modifiers: []ast.GateModifier{testutil.Pow(3)},
				Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			[]string{"x q[0]", "x q[0]", "x q[0]"},
		},
		{
			"zero power erases",
			&ast.QuantumGate{Modifiers: []ast.GateModifier{testutil.Pow(0)},
				Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			nil,
		},
		{
			"dagger pair",
			&ast.QuantumGate{Modifiers: []ast.GateModifier{testutil.Inv()},
				Name: "s", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			[]string{"sdg q[0]"},
		},
		{
			"negative power inverts and repeats",
			&ast.QuantumGate{Modifiers: []ast.GateModifier{testutil.Pow(-2)},
				Name: "t", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			[]string{"tdg q[0]", "tdg q[0]"},
		},
		{
			"pow then inv folds",
			&ast.QuantumGate{Modifiers: []ast.GateModifier{testutil.Pow(2), testutil.Inv()},
				Name: "s", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			[]string{"sdg q[0]", "sdg q[0]"},
		},
		{
			"rotation inverse negates the angle",
			&ast.QuantumGate{Modifiers: []ast.GateModifier{testutil.Inv()},
				Name: "rx", Args: []ast.Expression{&ast.FloatLiteral{Value: 0.5}},
				Qubits: []ast.Expression{ast.Bit("q", 0)}},
			[]string{"rx(-0.5) q[0]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := testutil.NewProgram("3.0").Qubits("q", 1).Stmt(tt.stmt).Build()
			out, _ := unroll(t, prog)
			assert.Equal(t, append([]string{"qubit[1] q"}, tt.want...), testutil.Render(out))
		})
	}
}

func TestControlModifiers(t *testing.T) {
	t.Run("single control ladders", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			ModGate([]ast.GateModifier{{Kind: ast.ModCtrl}}, "x", ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "cx q[0], q[1]"}, testutil.Render(out))
	})

	t.Run("two controls ladder twice", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 3).
			ModGate([]ast.GateModifier{testutil.Ctrl(2)}, "x",
				ast.Bit("q", 0), ast.Bit("q", 1), ast.Bit("q", 2)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[3] q", "ccx q[0], q[1], q[2]"}, testutil.Render(out))
	})

	t.Run("register control operand", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Qubits("r", 1).
			ModGate([]ast.GateModifier{testutil.Ctrl(1)}, "x", ast.Ident("q"), ast.Bit("r", 0)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "qubit[1] r", "ccx q[0], q[1], r[0]"}, testutil.Render(out))
	})

	t.Run("negative control sandwiches", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			ModGate([]ast.GateModifier{testutil.NegCtrl(1)}, "x", ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "x q[0]", "cx q[0], q[1]", "x q[0]"}, testutil.Render(out))
	})

	t.Run("controlled u3 appends the phase parameter", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Stmt(&ast.QuantumGate{
				Modifiers: []ast.GateModifier{testutil.Ctrl(1)},
				Name:      "u3",
				Args:      []ast.Expression{ast.Int(1), ast.Int(2), ast.Int(3)},
				Qubits:    []ast.Expression{ast.Bit("q", 0), ast.Bit("q", 1)},
			}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "cu(1, 2, 3, 0) q[0], q[1]"}, testutil.Render(out))
	})

	t.Run("no native controlled form", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			ModGate([]ast.GateModifier{testutil.Ctrl(1)}, "t", ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		assert.Error(t, unrollErr(t, prog))
	})

	t.Run("non-positive control count", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			ModGate([]ast.GateModifier{testutil.Ctrl(0)}, "x", ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "must be positive")
	})
}

func TestGphase(t *testing.T) {
	t.Run("bare phase", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(&ast.QuantumPhase{Arg: &ast.FloatLiteral{Value: 0.5}}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"gphase(0.5)"}, testutil.Render(out))
	})

	t.Run("exponent folds into the angle", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(&ast.QuantumPhase{
				Modifiers: []ast.GateModifier{testutil.Pow(2), testutil.Inv()},
				Arg:       &ast.FloatLiteral{Value: 0.5},
			}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"gphase(-1)"}, testutil.Render(out))
	})

	t.Run("qubit operands take a depth layer", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Stmt(&ast.QuantumPhase{Arg: &ast.FloatLiteral{Value: 0.25}, Qubits: []ast.Expression{ast.Ident("q")}}).
			Build()
		out, st := unroll(t, prog)
		assert.Equal(t, []string{"qubit[1] q", "gphase(0.25) q[0]"}, testutil.Render(out))
		assert.Equal(t, 1, st.MaxDepth())
	})

	t.Run("control becomes a phase gate", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Stmt(&ast.QuantumPhase{
				Modifiers: []ast.GateModifier{testutil.Ctrl(1)},
				Arg:       &ast.FloatLiteral{Value: 0.5},
				Qubits:    []ast.Expression{ast.Bit("q", 0)},
			}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[1] q", "p(0.5) q[0]"}, testutil.Render(out))
	})

	t.Run("two controls become a controlled phase", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Stmt(&ast.QuantumPhase{
				Modifiers: []ast.GateModifier{testutil.Ctrl(2)},
				Arg:       &ast.FloatLiteral{Value: 0.5},
				Qubits:    []ast.Expression{ast.Bit("q", 0), ast.Bit("q", 1)},
			}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "cp(0.5) q[0], q[1]"}, testutil.Render(out))
	})

	t.Run("negative control sandwiches the phase gate", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Stmt(&ast.QuantumPhase{
				Modifiers: []ast.GateModifier{testutil.NegCtrl(1)},
				Arg:       &ast.FloatLiteral{Value: 0.5},
				Qubits:    []ast.Expression{ast.Bit("q", 0)},
			}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[1] q", "x q[0]", "p(0.5) q[0]", "x q[0]"}, testutil.Render(out))
	})
}

func bellDef() *ast.GateDefinition {
	return &ast.GateDefinition{
		Name:   "bell",
		Qubits: []string{"a", "b"},
		Body: []ast.Statement{
			&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Ident("a")}},
			&ast.QuantumGate{Name: "cx", Qubits: []ast.Expression{ast.Ident("a"), ast.Ident("b")}},
		},
	}
}

func TestCustomGateInlining(t *testing.T) {
	t.Run("body substitutes call operands", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(bellDef()).
			Qubits("q", 2).
			Gate("bell", ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "x q[0]", "cx q[0], q[1]"}, testutil.Render(out))
	})

	t.Run("inverse reverses and inverts the body", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(bellDef()).
			Qubits("q", 2).
			ModGate([]ast.GateModifier{testutil.Inv()}, "bell", ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "cx q[0], q[1]", "x q[0]"}, testutil.Render(out))
	})

	t.Run("power repeats the body", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(bellDef()).
			Qubits("q", 2).
			ModGate([]ast.GateModifier{testutil.Pow(2)}, "bell", ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{
			"qubit[2] q",
			"x q[0]", "cx q[0], q[1]",
			"x q[0]", "cx q[0], q[1]",
		}, testutil.Render(out))
	})

	t.Run("control propagates onto inner calls", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(bellDef()).
			Qubits("q", 3).
			ModGate([]ast.GateModifier{testutil.Ctrl(1)}, "bell",
				ast.Bit("q", 2), ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[3] q", "cx q[2], q[0]", "ccx q[2], q[0], q[1]"}, testutil.Render(out))
	})

	t.Run("parameters substitute as literals", func(t *testing.T) {
		rot := &ast.GateDefinition{
			Name:   "rot",
			Params: []string{"t"},
			Qubits: []string{"a"},
			Body: []ast.Statement{
				&ast.QuantumGate{Name: "rx",
					Args:   []ast.Expression{ast.Ident("t")},
					Qubits: []ast.Expression{ast.Ident("a")}},
			},
		}
		prog := testutil.NewProgram("3.0").
			Stmt(rot).
			Qubits("q", 2).
			GateP("rot", []ast.Expression{&ast.FloatLiteral{Value: 0.5}}, ast.Ident("q")).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "rx(0.5) q[0]", "rx(0.5) q[1]"}, testutil.Render(out))
	})

	t.Run("controlled phase in the body", func(t *testing.T) {
		g := &ast.GateDefinition{
			Name:   "ph",
			Qubits: []string{"a"},
			Body: []ast.Statement{
				&ast.QuantumPhase{Arg: &ast.FloatLiteral{Value: 0.25}},
			},
		}
		prog := testutil.NewProgram("3.0").
			Stmt(g).
			Qubits("q", 2).
			ModGate([]ast.GateModifier{testutil.Ctrl(1)}, "ph", ast.Bit("q", 0), ast.Bit("q", 1)).
			Build()
		out, _ := unroll(t, prog)
		// The control folds into a phase gate on the control qubit; the
		// gate's formal target never appears in the output.
		assert.Equal(t, []string{"qubit[2] q", "p(0.25) q[0]"}, testutil.Render(out))
	})

	t.Run("recursion is rejected", func(t *testing.T) {
		g := &ast.GateDefinition{
			Name:   "loop",
			Qubits: []string{"a"},
			Body: []ast.Statement{
				&ast.QuantumGate{Name: "loop", Qubits: []ast.Expression{ast.Ident("a")}},
			},
		}
		prog := testutil.NewProgram("3.0").
			Stmt(g).
			Qubits("q", 1).
			Gate("loop", ast.Bit("q", 0)).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), `recursive definition of gate "loop"`)
	})

	t.Run("measurement in a gate body", func(t *testing.T) {
		g := &ast.GateDefinition{
			Name:   "bad",
			Qubits: []string{"a"},
			Body: []ast.Statement{
				&ast.QuantumMeasurement{Qubit: ast.Ident("a")},
			},
		}
		prog := testutil.NewProgram("3.0").
			Stmt(g).
			Qubits("q", 1).
			Gate("bad", ast.Bit("q", 0)).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "unsupported statement in gate body")
	})

	t.Run("parameter count mismatch", func(t *testing.T) {
		rot := &ast.GateDefinition{Name: "rot", Params: []string{"t"}, Qubits: []string{"a"}}
		prog := testutil.NewProgram("3.0").
			Stmt(rot).
			Qubits("q", 1).
			Gate("rot", ast.Bit("q", 0)).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "expects 1 parameters")
	})

	t.Run("duplicate formal qubits", func(t *testing.T) {
		g := &ast.GateDefinition{Name: "dup", Qubits: []string{"a", "a"}}
		prog := testutil.NewProgram("3.0").Stmt(g).Build()
		assert.ErrorContains(t, unrollErr(t, prog), "duplicate formal qubit")
	})

	t.Run("redefinition", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").Stmt(bellDef()).Stmt(bellDef()).Build()
		assert.ErrorContains(t, unrollErr(t, prog), "redefinition of gate")
	})
}

func TestExternalGates(t *testing.T) {
	external := func(c *qasm.Config) { c.ExternalGates = append(c.ExternalGates, "unitary") }
	def := &ast.GateDefinition{Name: "unitary", Qubits: []string{"a"}}

	t.Run("calls stay opaque and broadcast", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(def).
			Qubits("q", 2).
			Gate("unitary", ast.Ident("q")).
			Build()
		out, _ := unroll(t, prog, external)
		assert.Equal(t, []string{"gate unitary", "qubit[2] q", "unitary q[0]", "unitary q[1]"}, testutil.Render(out))
	})

	t.Run("modifiers survive on the call", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(def).
			Qubits("q", 2).
			ModGate([]ast.GateModifier{testutil.Ctrl(1), testutil.Inv()}, "unitary",
				ast.Bit("q", 1), ast.Bit("q", 0)).
			Build()
		out, _ := unroll(t, prog, external)
		assert.Equal(t, "ctrl(1) @ inv @ unitary q[1], q[0]", testutil.RenderStmt(out[len(out)-1]))
	})

	t.Run("undeclared external gate", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Gate("mystic", ast.Bit("q", 0)).
			Build()
		err := unrollErr(t, prog, func(c *qasm.Config) { c.ExternalGates = []string{"mystic"} })
		assert.ErrorContains(t, err, "not declared")
	})
}

func TestBranchCompileTimeFolding(t *testing.T) {
	mk := func(cond ast.Expression) *ast.Program {
		return testutil.NewProgram("3.0").
			Qubits("q", 1).
			Bits("c", 2).
			Const("k", 1).
			Stmt(&ast.Branch{
				Condition: cond,
				Then: []ast.Statement{
					&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
				},
				Else: []ast.Statement{
					&ast.QuantumGate{Name: "y", Qubits: []ast.Expression{ast.Bit("q", 0)}},
				},
			}).
			Build()
	}

	tests := []struct {
		name string
		cond ast.Expression
		want string
	}{
		{"constant true", bin("==", ast.Ident("k"), ast.Int(1)), "x q[0]"},
		{"constant false", bin(">", ast.Ident("k"), ast.Int(5)), "y q[0]"},
		// A 2-bit register can never hold 4: decided without a cascade.
		{"width-impossible equals", bin("==", ast.Ident("c"), ast.Int(4)), "y q[0]"},
		{"always satisfied compare", bin(">=", ast.Ident("c"), ast.Int(0)), "x q[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := unroll(t, mk(tt.cond))
			assert.Equal(t, tt.want, testutil.RenderStmt(out[len(out)-1]))
		})
	}
}

func TestBranchRuntimeLowering(t *testing.T) {
	mk := func(cond ast.Expression, withElse bool) *ast.Program {
		b := &ast.Branch{
			Condition: cond,
			Then: []ast.Statement{
				&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			},
		}
		if withElse {
			b.Else = []ast.Statement{
				&ast.QuantumGate{Name: "y", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			}
		}
		return testutil.NewProgram("3.0").
			Qubits("q", 1).
			Bits("c", 2).
			Stmt(b).
			Build()
	}
	cbit := func(i int64) ast.Expression { return ast.Bit("c", i) }

	tests := []struct {
		name     string
		cond     ast.Expression
		withElse bool
		want     string
	}{
		{
			"bit equality is already canonical",
			bin("==", cbit(1), ast.Int(1)), false,
			"if (c[1] == 1) { x q[0] }",
		},
		{
			"bare bit tests against one",
			cbit(0), false,
			"if (c[0] == 1) { x q[0] }",
		},
		{
			"negated bit swaps the arms",
			&ast.UnaryExpr{Op: "!", Operand: cbit(0)}, true,
			"if (c[0] == 1) { y q[0] } else { x q[0] }",
		},
		{
			"register greater-than cascades",
			bin(">", ast.Ident("c"), ast.Int(0)), false,
			"if (c[1] == 1) { x q[0] } else { if (c[0] == 1) { x q[0] } }",
		},
		{
			"cascade skips decided low bits",
			bin(">=", ast.Ident("c"), ast.Int(2)), false,
			"if (c[1] == 1) { x q[0] }",
		},
		{
			"register equality tests every bit",
			bin("==", ast.Ident("c"), ast.Int(2)), false,
			"if (c[1] == 1) { if (c[0] == 1) {  } else { x q[0] } }",
		},
		{
			"not-equals swaps the cascade arms",
			bin("!=", ast.Ident("c"), ast.Int(0)), false,
			"if (c[1] == 1) { x q[0] } else { if (c[0] == 1) { x q[0] } }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := unroll(t, mk(tt.cond, tt.withElse))
			assert.Equal(t, tt.want, testutil.RenderStmt(out[len(out)-1]))
		})
	}
}

func TestBranchRuntimeFlowRejected(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 1).
		Bits("c", 1).
		Stmt(&ast.ForLoop{
			VarName:  "i",
			Iterable: &ast.RangeExpr{Start: ast.Int(0), End: ast.Int(1)},
			Body: []ast.Statement{
				&ast.Branch{
					Condition: bin("==", ast.Bit("c", 0), ast.Int(1)),
					Then:      []ast.Statement{&ast.BreakStatement{}},
				},
			},
		}).
		Build()
	assert.ErrorContains(t, unrollErr(t, prog), "break under a run-time condition cannot be unrolled")
}

func TestBranchDepthCountsConditionBits(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 1).
		Bits("c", 1).
		Stmt(&ast.Branch{
			Condition: bin("==", ast.Bit("c", 0), ast.Int(1)),
			Then: []ast.Statement{
				&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			},
		}).
		Measure(ast.Bit("q", 0), ast.Bit("c", 0)).
		Build()
	_, st := unroll(t, prog)

	// The branch is one layer over qubit and condition bit alike; the
	// measurement stacks a second layer on both.
	assert.Equal(t, 2, st.MaxDepth())
	assert.Equal(t, 2, st.ClbitDepths[sym.BitRef{Reg: "c", Index: 0}].Depth)
}

func TestDepthAccounting(t *testing.T) {
	t.Run("serial gates stack", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Gate("h", ast.Bit("q", 0)).
			Gate("h", ast.Bit("q", 0)).
			Build()
		_, st := unroll(t, prog)
		assert.Equal(t, 2, st.MaxDepth())
		assert.Equal(t, 2, st.QubitDepths[sym.BitRef{Reg: "q", Index: 0}].NumGates)
	})

	t.Run("parallel gates share a layer", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Gate("h", ast.Bit("q", 0)).
			Gate("h", ast.Bit("q", 1)).
			Build()
		_, st := unroll(t, prog)
		assert.Equal(t, 1, st.MaxDepth())
	})

	t.Run("two-qubit gates synchronize operands", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Gate("h", ast.Bit("q", 0)).
			Gate("cx", ast.Bit("q", 0), ast.Bit("q", 1)).
			Gate("h", ast.Bit("q", 1)).
			Build()
		_, st := unroll(t, prog)
		assert.Equal(t, 3, st.MaxDepth())
		assert.Equal(t, 2, st.QubitDepths[sym.BitRef{Reg: "q", Index: 0}].Depth)
		assert.Equal(t, 3, st.QubitDepths[sym.BitRef{Reg: "q", Index: 1}].Depth)
	})

	t.Run("register measure is one layer across all touched bits", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Bits("c", 2).
			Gate("h", ast.Bit("q", 0)).
			Gate("h", ast.Bit("q", 0)).
			Gate("h", ast.Bit("q", 0)).
			Measure(ast.Ident("q"), ast.Ident("c")).
			Build()
		_, st := unroll(t, prog)
		assert.Equal(t, 4, st.QubitDepths[sym.BitRef{Reg: "q", Index: 0}].Depth)
		assert.Equal(t, 4, st.QubitDepths[sym.BitRef{Reg: "q", Index: 1}].Depth)
		assert.Equal(t, 4, st.ClbitDepths[sym.BitRef{Reg: "c", Index: 0}].Depth)
		assert.Equal(t, 4, st.ClbitDepths[sym.BitRef{Reg: "c", Index: 1}].Depth)
	})

	t.Run("register reset is one layer", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Gate("x", ast.Bit("q", 0)).
			Gate("x", ast.Bit("q", 0)).
			Stmt(&ast.QuantumReset{Qubit: ast.Ident("q")}).
			Build()
		_, st := unroll(t, prog)
		assert.Equal(t, 3, st.QubitDepths[sym.BitRef{Reg: "q", Index: 0}].Depth)
		assert.Equal(t, 3, st.QubitDepths[sym.BitRef{Reg: "q", Index: 1}].Depth)
	})

	t.Run("barrier is one layer across all operands", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Gate("h", ast.Bit("q", 0)).
			Stmt(&ast.QuantumBarrier{}).
			Gate("h", ast.Bit("q", 1)).
			Build()
		_, st := unroll(t, prog)
		assert.Equal(t, 3, st.MaxDepth())
		assert.Equal(t, 1, st.QubitDepths[sym.BitRef{Reg: "q", Index: 1}].NumBarriers)
	})
}

func TestMeasurement(t *testing.T) {
	t.Run("register measure broadcasts per bit", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Bits("c", 2).
			Measure(ast.Ident("q"), ast.Ident("c")).
			Build()
		out, st := unroll(t, prog)
		assert.Equal(t, []string{
			"qubit[2] q", "bit c",
			"measure q[0] -> c[0]", "measure q[1] -> c[1]",
		}, testutil.Render(out))
		assert.True(t, st.HasMeasure)
		assert.Equal(t, 1, st.ClbitDepths[sym.BitRef{Reg: "c", Index: 1}].NumMeasurements)
	})

	t.Run("count mismatch", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Bits("c", 3).
			Measure(ast.Ident("q"), ast.Ident("c")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "maps 2 qubits onto 3 classical bits")
	})

	t.Run("target must be classical", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Qubits("r", 1).
			Measure(ast.Bit("q", 0), ast.Bit("r", 0)).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "not a classical bit register")
	})

	t.Run("assignment form routes to measurement", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Bits("c", 1).
			Stmt(&ast.Assignment{
				Target: ast.Ident("c"),
				Op:     "=",
				Value:  &ast.MeasureExpr{Target: ast.Ident("q")},
			}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, "measure q[0] -> c[0]", testutil.RenderStmt(out[len(out)-1]))
	})

	t.Run("compound assignment of a measurement", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Bits("c", 1).
			Stmt(&ast.Assignment{
				Target: ast.Ident("c"),
				Op:     "+=",
				Value:  &ast.MeasureExpr{Target: ast.Ident("q")},
			}).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "only plain assignment")
	})
}

func TestReset(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 2).
		Stmt(&ast.QuantumReset{Qubit: ast.Ident("q")}).
		Build()
	out, st := unroll(t, prog)
	assert.Equal(t, []string{"qubit[2] q", "reset q[0]", "reset q[1]"}, testutil.Render(out))
	assert.Equal(t, 1, st.QubitDepths[sym.BitRef{Reg: "q", Index: 0}].NumResets)
	assert.Equal(t, 1, st.MaxDepth())
}

func TestBarrier(t *testing.T) {
	t.Run("bare barrier covers every declared qubit", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Stmt(&ast.QuantumBarrier{}).
			Build()
		out, st := unroll(t, prog)
		assert.Equal(t, []string{"qubit[2] q", "barrier q[0]", "barrier q[1]"}, testutil.Render(out))
		assert.True(t, st.HasBarriers)
	})

	t.Run("kept whole when unrolling is off", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Stmt(&ast.QuantumBarrier{Qubits: []ast.Expression{ast.Ident("q")}}).
			Build()
		out, _ := unroll(t, prog, func(c *qasm.Config) { c.UnrollBarriers = false })
		assert.Equal(t, []string{"qubit[2] q", "barrier q[0], q[1]"}, testutil.Render(out))
	})

	t.Run("bare barrier needs declared qubits", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").Stmt(&ast.QuantumBarrier{}).Build()
		assert.ErrorContains(t, unrollErr(t, prog), "barrier before any qubit declaration")
	})
}

func TestAlias(t *testing.T) {
	t.Run("slice alias resolves through", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 3).
			Stmt(&ast.AliasStatement{
				Name: "a",
				Target: &ast.IndexExpr{
					Collection: ast.Ident("q"),
					Index:      &ast.RangeExpr{Start: ast.Int(1), End: ast.Int(2)},
				},
			}).
			Gate("x", ast.Bit("a", 0)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, "x q[1]", testutil.RenderStmt(out[len(out)-1]))
	})

	t.Run("concatenation flattens left to right", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Qubits("r", 1).
			Stmt(&ast.AliasStatement{
				Name:   "both",
				Target: bin("++", ast.Ident("q"), ast.Ident("r")),
			}).
			Gate("x", ast.Ident("both")).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, []string{"qubit[1] q", "qubit[1] r", "x q[0]", "x r[0]"}, testutil.Render(out))
	})

	t.Run("rebinding replaces the view", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Stmt(&ast.AliasStatement{Name: "a", Target: ast.Bit("q", 0)}).
			Stmt(&ast.AliasStatement{Name: "a", Target: ast.Bit("q", 1)}).
			Gate("x", ast.Bit("a", 0)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, "x q[1]", testutil.RenderStmt(out[len(out)-1]))
	})

	t.Run("collides with a register name", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Stmt(&ast.AliasStatement{Name: "q", Target: ast.Bit("q", 0)}).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "collides")
	})

	t.Run("duplicate qubits in a concatenation", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Stmt(&ast.AliasStatement{
				Name:   "a",
				Target: bin("++", ast.Ident("q"), ast.Ident("q")),
			}).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "duplicate qubit")
	})
}

func TestInclude(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(&ast.Include{Path: "stdgates.inc"}).
		Build()
	out, _ := unroll(t, prog)
	assert.Equal(t, []string{`include "stdgates.inc"`}, testutil.Render(out))

	bad := testutil.NewProgram("3.0").Stmt(&ast.Include{Path: "secret.inc"}).Build()
	assert.ErrorContains(t, unrollErr(t, bad), "unknown include")
}

func TestBox(t *testing.T) {
	t.Run("body unrolls inside the boundary", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 2).
			Stmt(&ast.Box{Body: []ast.Statement{
				&ast.QuantumGate{Name: "h", Qubits: []ast.Expression{ast.Bit("q", 0)}},
				&ast.QuantumGate{Modifiers: []ast.GateModifier{testutil.Ctrl(1)}, Name: "x",
					Qubits: []ast.Expression{ast.Bit("q", 0), ast.Bit("q", 1)}},
			}}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, "box { h q[0]; cx q[0], q[1] }", testutil.RenderStmt(out[len(out)-1]))
	})

	t.Run("negative duration", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Qubits("q", 1).
			Stmt(&ast.Box{
				Duration: &ast.FloatLiteral{Value: -1},
				Body: []ast.Statement{
					&ast.QuantumGate{Name: "h", Qubits: []ast.Expression{ast.Bit("q", 0)}},
				},
			}).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "non-negative")
	})

	t.Run("empty body", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").Stmt(&ast.Box{}).Build()
		assert.ErrorContains(t, unrollErr(t, prog), "non-empty body")
	})
}

func subDef(name string, params []ast.SubroutineParam, ret *ast.ClassicalType, body ...ast.Statement) *ast.SubroutineDefinition {
	return &ast.SubroutineDefinition{Name: name, Params: params, ReturnType: ret, Body: body}
}

func qubitParam(name string, size int64) ast.SubroutineParam {
	return ast.SubroutineParam{Kind: ast.ParamQubit, Name: name, Size: ast.Int(size)}
}

func callStmt(name string, args ...ast.Expression) ast.Statement {
	return &ast.ExpressionStatement{Expr: &ast.CallExpr{Name: name, Args: args}}
}

func TestSubroutineQubitBinding(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(subDef("f", []ast.SubroutineParam{qubitParam("r", 2)}, nil,
			&ast.QuantumGate{Name: "cx", Qubits: []ast.Expression{ast.Bit("r", 0), ast.Bit("r", 1)}},
		)).
		Qubits("q", 2).
		Stmt(callStmt("f", ast.Ident("q"))).
		Build()
	out, _ := unroll(t, prog)
	assert.Equal(t, []string{"qubit[2] q", "cx q[0], q[1]"}, testutil.Render(out))
}

func TestSubroutineNestedCalls(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(subDef("inner", []ast.SubroutineParam{qubitParam("r", 1)}, nil,
			&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("r", 0)}},
		)).
		Stmt(subDef("outer", []ast.SubroutineParam{qubitParam("s", 1)}, nil,
			callStmt("inner", ast.Ident("s")),
		)).
		Qubits("q", 2).
		Stmt(callStmt("outer", ast.Bit("q", 1))).
		Build()
	out, _ := unroll(t, prog)
	assert.Equal(t, "x q[1]", testutil.RenderStmt(out[len(out)-1]))
}

func TestSubroutineClassicalParams(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(subDef("rotk",
			[]ast.SubroutineParam{
				{Kind: ast.ParamClassical, Name: "k", Type: ast.ClassicalType{Kind: ast.TypeFloat}},
				qubitParam("r", 1),
			}, nil,
			&ast.QuantumGate{Name: "rx",
				Args:   []ast.Expression{ast.Ident("k")},
				Qubits: []ast.Expression{ast.Bit("r", 0)}},
		)).
		Qubits("q", 1).
		Stmt(callStmt("rotk", &ast.FloatLiteral{Value: 0.25}, ast.Bit("q", 0))).
		Build()
	out, _ := unroll(t, prog)
	assert.Equal(t, "rx(0.25) q[0]", testutil.RenderStmt(out[len(out)-1]))
}

func TestSubroutineReturnValue(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(subDef("g", nil, &ast.ClassicalType{Kind: ast.TypeInt},
			&ast.ReturnStatement{Value: ast.Int(3)},
		)).
		Qubits("q", 1).
		Stmt(&ast.ClassicalDeclaration{
			Type: ast.ClassicalType{Kind: ast.TypeInt},
			Name: "x",
			Init: &ast.CallExpr{Name: "g"},
		}).
		GateP("rx", []ast.Expression{ast.Ident("x")}, ast.Bit("q", 0)).
		Build()
	out, _ := unroll(t, prog)

	assert.Equal(t, "rx(3) q[0]", testutil.RenderStmt(out[len(out)-1]))

	// The declaration survives, but its initializer was consumed by the
	// inlined call.
	decl, ok := out[len(out)-2].(*ast.ClassicalDeclaration)
	require.True(t, ok)
	assert.Equal(t, "x", decl.Name)
	assert.Nil(t, decl.Init)
}

func TestSubroutineMeasureReturn(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(subDef("mz", []ast.SubroutineParam{qubitParam("r", 1)}, &ast.ClassicalType{Kind: ast.TypeBit},
			&ast.ReturnStatement{Value: &ast.MeasureExpr{Target: ast.Ident("r")}},
		)).
		Qubits("q", 2).
		Stmt(callStmt("mz", ast.Bit("q", 1))).
		Build()
	out, st := unroll(t, prog)
	assert.Equal(t, "measure q[1]", testutil.RenderStmt(out[len(out)-1]))
	assert.True(t, st.HasMeasure)
}

func TestSubroutineArrayReference(t *testing.T) {
	arr := &ast.ClassicalDeclaration{
		Type: ast.ClassicalType{Kind: ast.TypeInt, Dimensions: []ast.Expression{ast.Int(2)}},
		Name: "arr",
		Init: &ast.ArrayLiteral{Values: []ast.Expression{ast.Int(1), ast.Int(2)}},
	}

	t.Run("readonly view evaluates in the callee", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("pick",
				[]ast.SubroutineParam{{Kind: ast.ParamArrayRef, Name: "a", Type: ast.ClassicalType{Kind: ast.TypeInt}}},
				&ast.ClassicalType{Kind: ast.TypeInt},
				&ast.ReturnStatement{Value: &ast.IndexExpr{Collection: ast.Ident("a"), Index: ast.Int(1)}},
			)).
			Qubits("q", 1).
			Stmt(arr.CloneStmt()).
			Stmt(&ast.ClassicalDeclaration{
				Type: ast.ClassicalType{Kind: ast.TypeInt},
				Name: "x",
				Init: &ast.CallExpr{Name: "pick", Args: []ast.Expression{ast.Ident("arr")}},
			}).
			GateP("rx", []ast.Expression{ast.Ident("x")}, ast.Bit("q", 0)).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, "rx(2) q[0]", testutil.RenderStmt(out[len(out)-1]))
	})

	t.Run("writes to a readonly view fail", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("w",
				[]ast.SubroutineParam{{Kind: ast.ParamArrayRef, Name: "a", Type: ast.ClassicalType{Kind: ast.TypeInt}}},
				nil,
				&ast.Assignment{
					Target: &ast.IndexExpr{Collection: ast.Ident("a"), Index: ast.Int(0)},
					Op:     "=",
					Value:  ast.Int(5),
				},
			)).
			Stmt(arr.CloneStmt()).
			Stmt(callStmt("w", ast.Ident("arr"))).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "readonly array")
	})

	t.Run("element type mismatch", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f",
				[]ast.SubroutineParam{{Kind: ast.ParamArrayRef, Name: "a", Type: ast.ClassicalType{Kind: ast.TypeFloat}}},
				nil,
			)).
			Stmt(arr.CloneStmt()).
			Stmt(callStmt("f", ast.Ident("arr"))).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "expects element type float, got int")
	})

	t.Run("dimension count mismatch", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f",
				[]ast.SubroutineParam{{Kind: ast.ParamArrayRef, Name: "a",
					Type: ast.ClassicalType{Kind: ast.TypeInt, Dimensions: []ast.Expression{ast.Int(2), ast.Int(2)}}}},
				nil,
			)).
			Stmt(arr.CloneStmt()).
			Stmt(callStmt("f", ast.Ident("arr"))).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "expects 2 dimensions, got 1")
	})

	t.Run("dimension too small", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f",
				[]ast.SubroutineParam{{Kind: ast.ParamArrayRef, Name: "a",
					Type: ast.ClassicalType{Kind: ast.TypeInt, Dimensions: []ast.Expression{ast.Int(3)}}}},
				nil,
			)).
			Stmt(arr.CloneStmt()).
			Stmt(callStmt("f", ast.Ident("arr"))).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "needs dimension 0 of size 3, got 2")
	})
}

func TestSubroutineErrors(t *testing.T) {
	t.Run("duplicate physical qubit across formals", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f", []ast.SubroutineParam{qubitParam("a", 1), qubitParam("b", 1)}, nil)).
			Qubits("q", 1).
			Stmt(callStmt("f", ast.Bit("q", 0), ast.Bit("q", 0))).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "duplicate qubit q[0]")
	})

	t.Run("argument count", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f", []ast.SubroutineParam{qubitParam("a", 1)}, nil)).
			Qubits("q", 1).
			Stmt(callStmt("f")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "expects 1 arguments, got 0")
	})

	t.Run("qubit size mismatch", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f", []ast.SubroutineParam{qubitParam("a", 2)}, nil)).
			Qubits("q", 3).
			Stmt(callStmt("f", ast.Ident("q"))).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "expects 2 qubits, got 3")
	})

	t.Run("recursion", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f", nil, nil, callStmt("f"))).
			Stmt(callStmt("f")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "recursive call")
	})

	t.Run("return value not evaluable", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f", nil, &ast.ClassicalType{Kind: ast.TypeInt},
				&ast.ReturnStatement{Value: ast.Ident("mystery")},
			)).
			Stmt(callStmt("f")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "return value:")
	})

	t.Run("return value does not fit return type", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f", nil, &ast.ClassicalType{Kind: ast.TypeInt, Width: ast.Int(2)},
				&ast.ReturnStatement{Value: ast.Int(9)},
			)).
			Stmt(callStmt("f")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "does not fit int[2]")
	})

	t.Run("return value without a return type", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f", nil, nil,
				&ast.ReturnStatement{Value: ast.Int(1)},
			)).
			Stmt(callStmt("f")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "no declared return type")
	})

	t.Run("missing return", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").
			Stmt(subDef("f", nil, &ast.ClassicalType{Kind: ast.TypeInt})).
			Stmt(callStmt("f")).
			Build()
		assert.ErrorContains(t, unrollErr(t, prog), "must return a value")
	})

	t.Run("return at top level", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").Stmt(&ast.ReturnStatement{}).Build()
		assert.ErrorContains(t, unrollErr(t, prog), "return outside of a subroutine")
	})

	t.Run("undefined call", func(t *testing.T) {
		prog := testutil.NewProgram("3.0").Stmt(callStmt("ghost")).Build()
		assert.ErrorContains(t, unrollErr(t, prog), `undefined subroutine "ghost"`)
	})
}

func TestExternFunctions(t *testing.T) {
	withExtern := func(c *qasm.Config) {
		c.ExternFunctions = map[string]qasm.ExternSignature{
			"ping": {ArgTypes: []ast.TypeKind{ast.TypeInt}},
		}
	}

	prog := testutil.NewProgram("3.0").
		Stmt(callStmt("ping", ast.Int(1))).
		Build()
	out, _ := unroll(t, prog, withExtern)
	assert.Empty(t, out)

	bad := testutil.NewProgram("3.0").Stmt(callStmt("ping")).Build()
	err := unrollErr(t, bad, withExtern)
	assert.ErrorContains(t, err, "expects 1 arguments")
}

type recordingPulse struct {
	calls    int
	isDefCal bool
}

func (p *recordingPulse) VisitBasicBlock(stmts []ast.Statement, isDefCal bool) ([]ast.Statement, error) {
	p.calls++
	p.isDefCal = isDefCal
	return nil, nil
}

func TestCalBlockDelegation(t *testing.T) {
	pulse := &recordingPulse{}
	prog := testutil.NewProgram("3.0").
		Stmt(&ast.CalBlock{Body: []ast.Statement{&ast.QuantumBarrier{Qubits: []ast.Expression{ast.Ident("f0")}}}}).
		Build()
	out, _ := unroll(t, prog, func(c *qasm.Config) { c.Pulse = pulse })

	require.Len(t, out, 1)
	cal, ok := out[0].(*ast.CalBlock)
	require.True(t, ok)
	assert.Empty(t, cal.Body, "pulse visitor rewrote the body")
	assert.Equal(t, 1, pulse.calls)
	assert.False(t, pulse.isDefCal)
}

func TestQasm2Restrictions(t *testing.T) {
	tests := []struct {
		name    string
		prog    *ast.Program
		wantErr string
	}{
		{
			"for loops",
			testutil.NewProgram("2.0").
				Stmt(&ast.ForLoop{VarName: "i", Iterable: &ast.RangeExpr{Start: ast.Int(0), End: ast.Int(1)}}).
				Build(),
			"not supported in OpenQASM 2.0",
		},
		{
			"non-bit classical types",
			testutil.NewProgram("2.0").
				Stmt(&ast.ClassicalDeclaration{Type: ast.ClassicalType{Kind: ast.TypeInt}, Name: "n", Init: ast.Int(1)}).
				Build(),
			"not supported in OpenQASM 2.0",
		},
		{
			"subroutines",
			testutil.NewProgram("2.0").Stmt(subDef("f", nil, nil)).Build(),
			"not supported in OpenQASM 2.0",
		},
		{
			"else branches",
			testutil.NewProgram("2.0").
				Qubits("q", 1).
				Bits("c", 1).
				Stmt(&ast.Branch{
					Condition: bin("==", ast.Ident("c"), ast.Int(1)),
					Then: []ast.Statement{
						&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
					},
					Else: []ast.Statement{
						&ast.QuantumGate{Name: "y", Qubits: []ast.Expression{ast.Bit("q", 0)}},
					},
				}).
				Build(),
			"else branches are not supported",
		},
		{
			"bit-indexed conditions",
			testutil.NewProgram("2.0").
				Qubits("q", 1).
				Bits("c", 1).
				Stmt(&ast.Branch{
					Condition: bin("==", ast.Bit("c", 0), ast.Int(1)),
					Then: []ast.Statement{
						&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
					},
				}).
				Build(),
			"whole register",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, unrollErr(t, tt.prog), tt.wantErr)
		})
	}

	t.Run("whole-register condition cascades", func(t *testing.T) {
		prog := testutil.NewProgram("2.0").
			Qubits("q", 1).
			Bits("c", 1).
			Stmt(&ast.Branch{
				Condition: bin("==", ast.Ident("c"), ast.Int(1)),
				Then: []ast.Statement{
					&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
				},
			}).
			Build()
		out, _ := unroll(t, prog)
		assert.Equal(t, "if (c[0] == 1) { x q[0] }", testutil.RenderStmt(out[len(out)-1]))
	})
}

func TestCheckOnlyEmitsNothing(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 2).
		Gate("cx", ast.Ident("q")).
		Build()

	cfg := qasm.DefaultConfig()
	st := unroller.NewState()
	out, err := unroller.Run(prog, st, &cfg, types.Logger{}, true)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Equal(t, 2, st.TotalQubits)
	assert.Equal(t, 1, st.MaxDepth())
}
