// Package scope implements the lexical scope and context stacks that govern
// variable visibility during traversal.
//
// Visibility rules:
//   - Global context sees only the global table.
//   - Function and Gate contexts see the innermost table, plus global
//     variables that are constants or qubits. Nothing else is captured.
//   - Block contexts (loops, branches, box) scan frames from innermost
//     outward while the frame is Block-tagged; the first non-Block ancestor
//     is the terminal fallback.
package scope

import (
	"errors"

	"github.com/goqasm/goqasm/internal/sym"
)

// ErrRedeclared is returned when a name is declared while already visible.
var ErrRedeclared = errors.New("variable already declared")

// ErrUndefined is returned when updating a name that is not visible.
var ErrUndefined = errors.New("variable not declared")

// Context tags a scope frame with the construct that opened it.
type Context int

const (
	CtxGlobal Context = iota
	CtxBlock
	CtxFunction
	CtxGate
	CtxBox
	CtxPulse
)

func (c Context) String() string {
	switch c {
	case CtxGlobal:
		return "global"
	case CtxBlock:
		return "block"
	case CtxFunction:
		return "function"
	case CtxGate:
		return "gate"
	case CtxBox:
		return "box"
	case CtxPulse:
		return "pulse"
	}
	return "unknown"
}

// isBlockLike reports whether a frame participates in block-chain lookup.
// Box frames scope like any other block.
func isBlockLike(c Context) bool {
	return c == CtxBlock || c == CtxBox
}

// isClosureLike reports whether a frame captures only global constants and
// qubits. Pulse frames follow function capture rules.
func isClosureLike(c Context) bool {
	return c == CtxFunction || c == CtxGate || c == CtxPulse
}

// Manager holds the parallel table and context stacks. The two stacks are
// always the same length; frame 0 is the global frame.
type Manager struct {
	tables   []map[string]*sym.Variable
	contexts []Context
}

// NewManager creates a manager with a single global frame.
func NewManager() *Manager {
	return &Manager{
		tables:   []map[string]*sym.Variable{{}},
		contexts: []Context{CtxGlobal},
	}
}

// Depth returns the number of active frames.
func (m *Manager) Depth() int {
	return len(m.tables)
}

// CurrentContext returns the innermost context tag.
func (m *Manager) CurrentContext() Context {
	return m.contexts[len(m.contexts)-1]
}

// InGlobal reports whether the innermost frame is the global frame.
func (m *Manager) InGlobal() bool {
	return m.CurrentContext() == CtxGlobal
}

// InContext reports whether any active frame carries the given tag.
func (m *Manager) InContext(c Context) bool {
	for i := len(m.contexts) - 1; i >= 0; i-- {
		if m.contexts[i] == c {
			return true
		}
	}
	return false
}

// Push opens a new frame tagged with the given context.
func (m *Manager) Push(c Context) {
	m.tables = append(m.tables, map[string]*sym.Variable{})
	m.contexts = append(m.contexts, c)
}

// Pop closes the innermost frame, destroying its variables. Popping the
// global frame is a programming error.
func (m *Manager) Pop() {
	if len(m.tables) <= 1 {
		panic("scope: pop below global frame")
	}
	m.tables = m.tables[:len(m.tables)-1]
	m.contexts = m.contexts[:len(m.contexts)-1]
}

// Enter opens a frame and returns the function that closes it, so callers
// can defer the pop and keep the stacks balanced on every error path.
func (m *Manager) Enter(c Context) func() {
	m.Push(c)
	return m.Pop
}

// lookup resolves a name under the visibility rules of the innermost
// context and returns the owning variable.
func (m *Manager) lookup(name string) (*sym.Variable, bool) {
	top := len(m.tables) - 1
	ctx := m.contexts[top]

	switch {
	case ctx == CtxGlobal:
		v, ok := m.tables[0][name]
		return v, ok

	case isClosureLike(ctx):
		if v, ok := m.tables[top][name]; ok {
			return v, true
		}
		// Closures capture only constants and qubits from the global frame.
		if v, ok := m.tables[0][name]; ok && (v.Constant || v.IsQubit) {
			return v, true
		}
		return nil, false

	default:
		// Block chain: innermost Block frames shadow, the first non-Block
		// ancestor is the terminal fallback.
		i := top
		for i > 0 && isBlockLike(m.contexts[i]) {
			if v, ok := m.tables[i][name]; ok {
				return v, true
			}
			i--
		}
		if v, ok := m.tables[i][name]; ok {
			return v, true
		}
		// A chain ending at a closure frame keeps that frame's capture
		// rules for the global fallback.
		if i > 0 && isClosureLike(m.contexts[i]) {
			if v, ok := m.tables[0][name]; ok && (v.Constant || v.IsQubit) {
				return v, true
			}
		}
		return nil, false
	}
}

// CheckInScope reports whether a name is visible from the current context.
func (m *Manager) CheckInScope(name string) bool {
	_, ok := m.lookup(name)
	return ok
}

// GetFromVisibleScope returns the variable bound to name, if visible.
func (m *Manager) GetFromVisibleScope(name string) (*sym.Variable, bool) {
	return m.lookup(name)
}

// AddVarInScope declares a variable in the innermost frame. A name already
// visible is a redeclaration error, except that a Block frame may shadow a
// name bound only in an ancestor frame.
func (m *Manager) AddVarInScope(v *sym.Variable) error {
	top := len(m.tables) - 1
	if isBlockLike(m.contexts[top]) {
		if _, ok := m.tables[top][v.Name]; ok {
			return ErrRedeclared
		}
		if m.CheckInScope(v.Name) {
			v.Shadow = true
		}
	} else if m.CheckInScope(v.Name) {
		return ErrRedeclared
	}
	m.tables[top][v.Name] = v
	return nil
}

// UpdateVarInScope assigns a new value to a visible variable.
func (m *Manager) UpdateVarInScope(name string, value any) error {
	v, ok := m.lookup(name)
	if !ok {
		return ErrUndefined
	}
	v.Value = value
	return nil
}

// DeleteVarInScope removes a name from the innermost frame that holds it
// under current visibility. Used when an alias is re-bound.
func (m *Manager) DeleteVarInScope(name string) {
	for i := len(m.tables) - 1; i >= 0; i-- {
		if _, ok := m.tables[i][name]; ok {
			delete(m.tables[i], name)
			return
		}
	}
}

// GlobalVars returns the global frame's table. The caller must not mutate
// it; register declarations go through AddVarInScope.
func (m *Manager) GlobalVars() map[string]*sym.Variable {
	return m.tables[0]
}
