// Package gates holds the static gate tables: primitive arity and parameter
// counts, inverse rules, and the control ladder used to resolve ctrl
// modifiers onto native controlled forms.
package gates

import (
	"fmt"
	"math"
)

// Entry describes one primitive gate: how many qubits it acts on and how
// many classical parameters it takes.
type Entry struct {
	Qubits int
	Params int
}

// OneQubit maps single-qubit gate names to their table entries.
var OneQubit = map[string]Entry{
	"id":    {Qubits: 1, Params: 0},
	"h":     {Qubits: 1, Params: 0},
	"x":     {Qubits: 1, Params: 0},
	"y":     {Qubits: 1, Params: 0},
	"z":     {Qubits: 1, Params: 0},
	"s":     {Qubits: 1, Params: 0},
	"t":     {Qubits: 1, Params: 0},
	"sdg":   {Qubits: 1, Params: 0},
	"tdg":   {Qubits: 1, Params: 0},
	"sx":    {Qubits: 1, Params: 0},
	"sxdg":  {Qubits: 1, Params: 0},
	"rx":    {Qubits: 1, Params: 1},
	"ry":    {Qubits: 1, Params: 1},
	"rz":    {Qubits: 1, Params: 1},
	"p":     {Qubits: 1, Params: 1},
	"phase": {Qubits: 1, Params: 1},
	"u1":    {Qubits: 1, Params: 1},
	"u2":    {Qubits: 1, Params: 2},
	"u3":    {Qubits: 1, Params: 3},
	"u":     {Qubits: 1, Params: 3},
	"U":     {Qubits: 1, Params: 3},
}

// TwoQubit maps two-qubit gate names to their table entries.
var TwoQubit = map[string]Entry{
	"cx":   {Qubits: 2, Params: 0},
	"CX":   {Qubits: 2, Params: 0},
	"cy":   {Qubits: 2, Params: 0},
	"cz":   {Qubits: 2, Params: 0},
	"ch":   {Qubits: 2, Params: 0},
	"swap": {Qubits: 2, Params: 0},
	"crx":  {Qubits: 2, Params: 1},
	"cry":  {Qubits: 2, Params: 1},
	"crz":  {Qubits: 2, Params: 1},
	"cp":   {Qubits: 2, Params: 1},
	"cu":   {Qubits: 2, Params: 4},
	"rxx":  {Qubits: 2, Params: 1},
	"ryy":  {Qubits: 2, Params: 1},
	"rzz":  {Qubits: 2, Params: 1},
}

// ThreeQubit maps three-qubit gate names to their table entries.
var ThreeQubit = map[string]Entry{
	"ccx":   {Qubits: 3, Params: 0},
	"ccz":   {Qubits: 3, Params: 0},
	"cswap": {Qubits: 3, Params: 0},
}

// Lookup finds a gate entry across the three tables.
func Lookup(name string) (Entry, bool) {
	if e, ok := OneQubit[name]; ok {
		return e, true
	}
	if e, ok := TwoQubit[name]; ok {
		return e, true
	}
	if e, ok := ThreeQubit[name]; ok {
		return e, true
	}
	return Entry{}, false
}

// selfInverse lists gates that are their own inverse.
var selfInverse = map[string]struct{}{
	"id": {}, "h": {}, "x": {}, "y": {}, "z": {},
	"cx": {}, "CX": {}, "cy": {}, "cz": {}, "ch": {},
	"swap": {}, "ccx": {}, "ccz": {}, "cswap": {},
}

// daggerPairs maps phase gates to their dagger counterparts, both ways.
var daggerPairs = map[string]string{
	"s": "sdg", "sdg": "s",
	"t": "tdg", "tdg": "t",
	"sx": "sxdg", "sxdg": "sx",
}

// rotationGates lists gates whose inverse negates every parameter.
var rotationGates = map[string]struct{}{
	"rx": {}, "ry": {}, "rz": {},
	"crx": {}, "cry": {}, "crz": {},
	"p": {}, "phase": {}, "u1": {}, "cp": {},
	"rxx": {}, "ryy": {}, "rzz": {},
}

// Inverse returns the gate and parameters implementing the inverse of the
// named gate. Self-inverse gates map to themselves; phase gates map to
// their dagger; rotation gates negate their parameters; the u family uses
// a dedicated inverse decomposition.
func Inverse(name string, params []float64) (string, []float64, error) {
	if _, ok := selfInverse[name]; ok {
		return name, params, nil
	}
	if dag, ok := daggerPairs[name]; ok {
		return dag, params, nil
	}
	if _, ok := rotationGates[name]; ok {
		neg := make([]float64, len(params))
		for i, p := range params {
			neg[i] = -p
		}
		return name, neg, nil
	}
	switch name {
	case "u", "u3", "U":
		if len(params) != 3 {
			return "", nil, fmt.Errorf("gate %s expects 3 parameters, got %d", name, len(params))
		}
		return name, []float64{-params[0], -params[2], -params[1]}, nil
	case "u2":
		if len(params) != 2 {
			return "", nil, fmt.Errorf("gate u2 expects 2 parameters, got %d", len(params))
		}
		return "u3", []float64{-math.Pi / 2, -params[1], -params[0]}, nil
	case "cu":
		if len(params) != 4 {
			return "", nil, fmt.Errorf("gate cu expects 4 parameters, got %d", len(params))
		}
		return "cu", []float64{-params[0], -params[2], -params[1], -params[3]}, nil
	}
	return "", nil, fmt.Errorf("no inverse known for gate %s", name)
}

// controlLadder maps each gate to its natively controlled form. Resolving
// a ctrl modifier walks the ladder once per requested control.
var controlLadder = map[string]string{
	"x":    "cx",
	"cx":   "ccx",
	"y":    "cy",
	"z":    "cz",
	"cz":   "ccz",
	"h":    "ch",
	"swap": "cswap",
	"rx":   "crx",
	"ry":   "cry",
	"rz":   "crz",
	"p":    "cp",
	"u":    "cu",
	"u3":   "cu",
	"U":    "cu",
}

// Controlled resolves name under controls additional control qubits,
// walking the ladder until a native entry absorbs every control.
func Controlled(name string, controls int) (string, error) {
	for controls > 0 {
		next, ok := controlLadder[name]
		if !ok {
			return "", fmt.Errorf("gate %s does not support %d more control(s)", name, controls)
		}
		name = next
		controls--
	}
	return name, nil
}

// RotationAxis returns the rotation axis for single-axis rotation gates
// handed to the decomposition collaborator during rebasing.
func RotationAxis(name string) (string, bool) {
	switch name {
	case "rx", "ry", "rz", "p", "phase", "u1":
		axis := name
		if name == "p" || name == "phase" || name == "u1" {
			axis = "rz"
		}
		return axis, true
	}
	return "", false
}
