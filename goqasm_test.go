package goqasm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goqasm "github.com/goqasm/goqasm"
	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/testutil"
)

type fakeParser struct {
	prog *ast.Program
	err  error
}

func (p *fakeParser) Parse(source string) (*ast.Program, error) {
	return p.prog, p.err
}

func sampleProgram() *ast.Program {
	return testutil.NewProgram("3.0").
		Qubits("q", 2).
		Gate("h", ast.Bit("q", 0)).
		Gate("cx", ast.Bit("q", 0), ast.Bit("q", 1)).
		Build()
}

func TestNew(t *testing.T) {
	mod, err := goqasm.New(sampleProgram())
	require.NoError(t, err)
	assert.Equal(t, "3.0", mod.Version())
	assert.Equal(t, 2, mod.QubitCount())
}

func TestNewNilProgram(t *testing.T) {
	_, err := goqasm.New(nil)
	assert.ErrorIs(t, err, goqasm.ErrNoProgram)
}

func TestLoads(t *testing.T) {
	mod, err := goqasm.Loads("OPENQASM 3.0;", &fakeParser{prog: sampleProgram()})
	require.NoError(t, err)
	require.NoError(t, mod.Unroll())
	assert.Equal(t, 2, mod.QubitCount())
}

func TestLoadsParserFailure(t *testing.T) {
	parseErr := errors.New("unexpected token")
	_, err := goqasm.Loads("OPENQASM 3.0;", &fakeParser{err: parseErr})
	require.Error(t, err)

	var pe *goqasm.ParsingError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, parseErr)
}

func TestLoadsNilParser(t *testing.T) {
	_, err := goqasm.Loads("OPENQASM 3.0;", nil)
	assert.ErrorContains(t, err, "no parser")
}

func TestLoadsNilProgram(t *testing.T) {
	_, err := goqasm.Loads("", &fakeParser{})
	assert.ErrorIs(t, err, goqasm.ErrNoProgram)
}

func TestWithMaxLoopIters(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 1).
		Stmt(&ast.ForLoop{
			VarName:  "i",
			Iterable: &ast.RangeExpr{Start: ast.Int(0), End: ast.Int(50)},
			Body: []ast.Statement{
				&ast.QuantumGate{Name: "x", Qubits: []ast.Expression{ast.Bit("q", 0)}},
			},
		}).
		Build()
	mod, err := goqasm.New(prog, goqasm.WithMaxLoopIters(10))
	require.NoError(t, err)

	var limitErr *goqasm.LoopLimitError
	assert.ErrorAs(t, mod.Unroll(), &limitErr)
}

func TestWithUnrollBarriers(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("q", 2).
		Stmt(&ast.QuantumBarrier{Qubits: []ast.Expression{ast.Ident("q")}}).
		Build()
	mod, err := goqasm.New(prog, goqasm.WithUnrollBarriers(false))
	require.NoError(t, err)
	require.NoError(t, mod.Unroll())

	assert.Equal(t, []string{"qubit[2] q", "barrier q[0], q[1]"},
		testutil.Render(mod.UnrolledProgram().Statements))
}

func TestWithConsolidateQubits(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Qubits("a", 1).
		Qubits("b", 1).
		Gate("cx", ast.Bit("a", 0), ast.Bit("b", 0)).
		Build()
	mod, err := goqasm.New(prog,
		goqasm.WithConsolidateQubits(),
		goqasm.WithDeviceQubits(4),
	)
	require.NoError(t, err)
	require.NoError(t, mod.Unroll())

	assert.Equal(t, []string{"qubit[2] __qubits", "cx __qubits[0], __qubits[1]"},
		testutil.Render(mod.UnrolledProgram().Statements))
}

func TestWithExternalGates(t *testing.T) {
	prog := testutil.NewProgram("3.0").
		Stmt(&ast.GateDefinition{Name: "pulse90", Qubits: []string{"a"}}).
		Qubits("q", 1).
		Gate("pulse90", ast.Bit("q", 0)).
		Build()
	mod, err := goqasm.New(prog, goqasm.WithExternalGates("pulse90"))
	require.NoError(t, err)
	require.NoError(t, mod.Unroll())

	assert.Contains(t, testutil.Render(mod.UnrolledProgram().Statements), "pulse90 q[0]")
}

func TestDefaultConfig(t *testing.T) {
	cfg := goqasm.DefaultConfig()
	assert.Equal(t, int64(goqasm.DefaultMaxLoopIters), cfg.MaxLoopIters)
	assert.True(t, cfg.UnrollBarriers)
	assert.False(t, cfg.ConsolidateQubits)
}
