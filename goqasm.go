package goqasm

import (
	"errors"
	"log/slog"

	"github.com/goqasm/goqasm/ast"
	"github.com/goqasm/goqasm/internal/moduleimpl"
	"github.com/goqasm/goqasm/qasm"
)

// ErrNoProgram is returned when New is called without a program.
var ErrNoProgram = errors.New("no program provided")

// LevelTrace is a custom log level more verbose than Debug.
// Use for per-item iteration logging (statements, qubit bindings, scopes).
// Enable with: &slog.HandlerOptions{Level: slog.Level(-8)}
const LevelTrace = slog.Level(-8)

// Option configures New and Loads.
type Option func(*qasm.Config)

// WithLogger sets the logger for debug/trace output.
// If not set, no logging occurs (zero overhead).
func WithLogger(logger *slog.Logger) Option {
	return func(c *qasm.Config) { c.Logger = logger }
}

// WithMaxLoopIters caps the total iterations any single loop statement may
// unroll to.
func WithMaxLoopIters(n int64) Option {
	return func(c *qasm.Config) { c.MaxLoopIters = n }
}

// WithExternalGates marks gate names as opaque: calls are validated and
// broadcast but never inlined or decomposed.
func WithExternalGates(names ...string) Option {
	return func(c *qasm.Config) { c.ExternalGates = append(c.ExternalGates, names...) }
}

// WithExternFunctions declares extern classical functions by signature.
func WithExternFunctions(fns map[string]qasm.ExternSignature) Option {
	return func(c *qasm.Config) { c.ExternFunctions = fns }
}

// WithDeviceQubits sets the device capacity used by qubit consolidation.
func WithDeviceQubits(n int) Option {
	return func(c *qasm.Config) { c.DeviceQubits = n }
}

// WithDeviceCycleTime sets the hardware cycle duration forwarded to the
// pulse collaborator.
func WithDeviceCycleTime(t int) Option {
	return func(c *qasm.Config) { c.DeviceCycleTime = t }
}

// WithAngleTypeSize sets the default angle bit-width.
func WithAngleTypeSize(n int) Option {
	return func(c *qasm.Config) { c.AngleTypeSize = n }
}

// WithConsolidateQubits remaps all registers into one flat device register
// during Unroll. Requires WithDeviceQubits.
func WithConsolidateQubits() Option {
	return func(c *qasm.Config) { c.ConsolidateQubits = true }
}

// WithUnrollBarriers controls whether register-wide barriers expand into
// per-qubit barriers. Enabled by default.
func WithUnrollBarriers(enabled bool) Option {
	return func(c *qasm.Config) { c.UnrollBarriers = enabled }
}

// WithPulseVisitor installs the handler for cal and defcal blocks.
func WithPulseVisitor(p qasm.PulseVisitor) Option {
	return func(c *qasm.Config) { c.Pulse = p }
}

// WithDecomposer installs the rotation decomposer backing Module.Rebase.
func WithDecomposer(d qasm.Decomposer) Option {
	return func(c *qasm.Config) { c.Decomposer = d }
}

// New builds a module over an already-parsed program.
//
// Example:
//
//	mod, err := goqasm.New(prog,
//	    goqasm.WithLogger(slog.Default()),
//	    goqasm.WithMaxLoopIters(1_000_000),
//	)
//	if err := mod.Unroll(); err != nil { ... }
func New(prog *ast.Program, opts ...Option) (Module, error) {
	if prog == nil {
		return nil, ErrNoProgram
	}
	cfg := qasm.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return moduleimpl.New(prog, cfg)
}

// Loads parses OpenQASM source text with the given parser and builds a
// module over the result.
func Loads(source string, parser qasm.Parser, opts ...Option) (Module, error) {
	if parser == nil {
		return nil, errors.New("no parser provided")
	}
	prog, err := parser.Parse(source)
	if err != nil {
		return nil, &qasm.ParsingError{Message: "parsing OpenQASM source", Err: err}
	}
	if prog == nil {
		return nil, ErrNoProgram
	}
	return New(prog, opts...)
}
