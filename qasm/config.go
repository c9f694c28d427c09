package qasm

import (
	"log/slog"

	"github.com/goqasm/goqasm/ast"
)

// DefaultMaxLoopIters caps loop unrolling when no limit is configured.
const DefaultMaxLoopIters = int64(1e9)

// ExternSignature declares the classical signature of an extern function.
type ExternSignature struct {
	ArgTypes   []ast.TypeKind
	ReturnType ast.TypeKind
}

// Config is the full configuration surface of validation and unrolling.
// The zero value is not usable; start from DefaultConfig.
type Config struct {
	// Logger enables debug/trace output. Nil means no logging.
	Logger *slog.Logger

	// MaxLoopIters caps total iterations of any single loop statement.
	MaxLoopIters int64

	// ExternalGates are kept opaque: calls are validated and broadcast
	// but never inlined or decomposed.
	ExternalGates []string

	// ExternFunctions maps extern function names to their signatures.
	ExternFunctions map[string]ExternSignature

	// DeviceQubits is the device capacity used by qubit consolidation.
	DeviceQubits int

	// DeviceCycleTime is the hardware cycle duration, forwarded to the
	// pulse collaborator.
	DeviceCycleTime int

	// AngleTypeSize is the compiler's default angle bit-width.
	AngleTypeSize int

	// ConsolidateQubits remaps all registers into one flat device
	// register after unrolling.
	ConsolidateQubits bool

	// UnrollBarriers expands register-wide barrier operands into
	// individual qubit references. Disabled keeps barriers as written.
	UnrollBarriers bool

	// FrameInDefCal, FrameLimitPerPort, and PlayInCalBlock configure the
	// pulse collaborator's frame rules.
	FrameInDefCal     bool
	FrameLimitPerPort int
	PlayInCalBlock    bool

	// Pulse handles cal/defcal blocks. Nil keeps them untouched.
	Pulse PulseVisitor

	// Decomposer serves Module.Rebase. Nil makes Rebase fail for gates
	// outside the basis.
	Decomposer Decomposer
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		MaxLoopIters:   DefaultMaxLoopIters,
		UnrollBarriers: true,
	}
}

// IsExternalGate reports whether a gate name is configured opaque.
func (c *Config) IsExternalGate(name string) bool {
	for _, g := range c.ExternalGates {
		if g == name {
			return true
		}
	}
	return false
}
