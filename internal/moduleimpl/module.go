// Package moduleimpl implements the public Module interface: the
// validate/unroll lifecycle state machine over the statement visitor.
package moduleimpl

import (
	"fmt"
	"log/slog"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/analyzer"
	"github.com/goqasm/goqasm/internal/sym"
	"github.com/goqasm/goqasm/internal/types"
	"github.com/goqasm/goqasm/internal/unroller"
	"github.com/goqasm/goqasm/qasm"
)

// DeviceRegister is the name of the flat register qubit consolidation
// maps every program qubit into.
const DeviceRegister = unroller.ReservedPrefix + "qubits"

type status int

const (
	statusUnset status = iota
	statusValid
	statusInvalid
)

type qasmModule struct {
	version string
	prog    *ast.Program
	cfg     qasm.Config
	log     types.Logger

	status   status
	st       *unroller.State
	unrolled *ast.Program
}

// New builds a module over a parsed program. The version is normalized to
// "2.0" or "3.0"; anything else is rejected.
func New(prog *ast.Program, cfg qasm.Config) (qasm.Module, error) {
	if prog == nil {
		return nil, fmt.Errorf("nil program")
	}
	version, err := normalizeVersion(prog.Version)
	if err != nil {
		return nil, err
	}
	base := types.Logger{L: cfg.Logger}
	return &qasmModule{
		version: version,
		prog:    prog,
		cfg:     cfg,
		log:     base.Component("module"),
	}, nil
}

func normalizeVersion(v string) (string, error) {
	switch v {
	case "2", "2.0":
		return "2.0", nil
	case "", "3", "3.0":
		return "3.0", nil
	}
	return "", fmt.Errorf("unsupported OpenQASM version %q", v)
}

func (m *qasmModule) Version() string { return m.version }

// run executes one visitor pass over a fresh deep copy of the original
// program, so the parse tree survives every outcome untouched.
func (m *qasmModule) run(checkOnly bool) (*unroller.State, []ast.Statement, error) {
	st := unroller.NewState()
	prog := m.prog.Clone()
	prog.Version = m.version
	out, err := unroller.Run(prog, st, &m.cfg, m.log, checkOnly)
	if err != nil {
		return nil, nil, err
	}
	return st, out, nil
}

func (m *qasmModule) Validate() error {
	if m.status == statusValid {
		return nil
	}
	st, _, err := m.run(true)
	if err != nil {
		m.fail()
		return err
	}
	m.status = statusValid
	m.st = st
	return nil
}

func (m *qasmModule) Unroll() error {
	st, out, err := m.run(false)
	if err != nil {
		m.fail()
		return err
	}
	if m.cfg.ConsolidateQubits {
		out, err = consolidate(st, out, m.cfg.DeviceQubits)
		if err != nil {
			m.fail()
			return err
		}
	}
	m.status = statusValid
	m.st = st
	m.unrolled = &ast.Program{Version: m.version, Statements: out}
	m.log.Debug("unrolled program",
		slog.Int("qubits", st.TotalQubits),
		slog.Int("clbits", st.TotalClbits),
		slog.Int("statements", len(out)))
	return nil
}

func (m *qasmModule) fail() {
	m.status = statusInvalid
	m.st = nil
	m.unrolled = nil
}

// ensureValid lazily validates an unset module so count queries work
// without an explicit Validate call.
func (m *qasmModule) ensureValid() bool {
	if m.status == statusUnset {
		_ = m.Validate()
	}
	return m.status == statusValid
}

func (m *qasmModule) QubitCount() int {
	if !m.ensureValid() {
		return -1
	}
	return m.st.TotalQubits
}

func (m *qasmModule) ClbitCount() int {
	if !m.ensureValid() {
		return -1
	}
	return m.st.TotalClbits
}

// Depth unrolls a throwaway copy with empty depth maps; the live module
// and its lifecycle state never change.
func (m *qasmModule) Depth() (int, error) {
	probe := &qasmModule{
		version: m.version,
		prog:    m.prog,
		cfg:     m.cfg,
		log:     m.log,
	}
	if err := probe.Unroll(); err != nil {
		return 0, err
	}
	return probe.st.MaxDepth(), nil
}

func (m *qasmModule) HasMeasurements() bool {
	return m.ensureValid() && m.st.HasMeasure
}

func (m *qasmModule) HasBarriers() bool {
	return m.ensureValid() && m.st.HasBarriers
}

func (m *qasmModule) QubitRegisters() map[string]int {
	if !m.ensureValid() {
		return nil
	}
	out := make(map[string]int, len(m.st.QubitRegs))
	for k, v := range m.st.QubitRegs {
		out[k] = v
	}
	return out
}

func (m *qasmModule) ClbitRegisters() map[string]int {
	if !m.ensureValid() {
		return nil
	}
	out := make(map[string]int, len(m.st.ClbitRegs))
	for k, v := range m.st.ClbitRegs {
		out[k] = v
	}
	return out
}

func (m *qasmModule) OriginalProgram() *ast.Program { return m.prog }

func (m *qasmModule) UnrolledProgram() *ast.Program { return m.unrolled }

func (m *qasmModule) Copy() qasm.Module {
	out := &qasmModule{
		version: m.version,
		prog:    m.prog.Clone(),
		cfg:     m.cfg,
		log:     m.log,
		status:  m.status,
	}
	if m.st != nil {
		out.st = m.st.Clone()
	}
	if m.unrolled != nil {
		out.unrolled = m.unrolled.Clone()
	}
	return out
}

// consolidate replaces every declared qubit register with one flat device
// register and rewrites all references. Depth bookkeeping is rekeyed to
// match.
func consolidate(st *unroller.State, out []ast.Statement, capacity int) ([]ast.Statement, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("qubit consolidation requires a positive device capacity")
	}
	offsets, total, err := analyzer.ConsolidateOffsets(st.QubitRegOrder, st.QubitRegs, capacity)
	if err != nil {
		return nil, err
	}

	analyzer.RemapQubitRefs(out, DeviceRegister, offsets)

	deviceDecl := &ast.QuantumDeclaration{
		Name: DeviceRegister,
		Size: &ast.IntLiteral{Value: int64(total)},
	}
	rewritten := make([]ast.Statement, 0, len(out)+1)
	placed := false
	for _, s := range out {
		if _, isQubitDecl := s.(*ast.QuantumDeclaration); isQubitDecl {
			if !placed {
				rewritten = append(rewritten, deviceDecl)
				placed = true
			}
			continue
		}
		rewritten = append(rewritten, s)
	}
	if !placed {
		rewritten = append([]ast.Statement{deviceDecl}, rewritten...)
	}

	rekeyDepths(st, offsets)
	st.QubitRegs = map[string]int{DeviceRegister: total}
	st.QubitRegOrder = []string{DeviceRegister}
	st.RegBase = map[string]int{DeviceRegister: 0}
	st.Aliases = map[string]*sym.Alias{}
	return rewritten, nil
}

// rekeyDepths moves per-bit depth nodes under the device register keys.
func rekeyDepths(st *unroller.State, offsets map[string]int) {
	out := make(map[sym.BitRef]*sym.QubitDepthNode, len(st.QubitDepths))
	for ref, n := range st.QubitDepths {
		off, ok := offsets[ref.Reg]
		if !ok {
			out[ref] = n
			continue
		}
		nref := sym.BitRef{Reg: DeviceRegister, Index: off + ref.Index}
		n.Ref = nref
		out[nref] = n
	}
	st.QubitDepths = out
}
