package analyzer

import (
	"fmt"

	"github.com/goqasm/goqasm/ast"
)

// ResolveIndices resolves one bit-reference form against a register of the
// given size and returns the ordered index list. Accepted forms: a bare
// identifier (the whole register), a single index, an inclusive range with
// optional step, or a discrete set. Every resolved index is bounds-checked;
// negative indices count from the end of the register.
func (ev *Evaluator) ResolveIndices(operand ast.Expression, regName string, size int) ([]int, error) {
	switch x := operand.(type) {
	case *ast.Identifier:
		out := make([]int, size)
		for i := range out {
			out[i] = i
		}
		return out, nil

	case *ast.IndexExpr:
		switch idx := x.Index.(type) {
		case *ast.RangeExpr:
			return ev.resolveRange(idx, regName, size)
		case *ast.DiscreteSet:
			return ev.resolveSet(idx, regName, size)
		default:
			i, err := ev.EvalInt(idx)
			if err != nil {
				return nil, err
			}
			norm, err := normalizeIndex(i, regName, size)
			if err != nil {
				return nil, err
			}
			return []int{norm}, nil
		}
	}
	return nil, fmt.Errorf("unsupported bit reference form")
}

func (ev *Evaluator) resolveRange(r *ast.RangeExpr, regName string, size int) ([]int, error) {
	start := int64(0)
	end := int64(size - 1)
	step := int64(1)
	var err error
	if r.Start != nil {
		if start, err = ev.EvalInt(r.Start); err != nil {
			return nil, err
		}
	}
	if r.End != nil {
		if end, err = ev.EvalInt(r.End); err != nil {
			return nil, err
		}
	}
	if r.Step != nil {
		if step, err = ev.EvalInt(r.Step); err != nil {
			return nil, err
		}
		if step == 0 {
			return nil, fmt.Errorf("range step must not be zero")
		}
	}
	if step > 0 && start > end {
		return nil, fmt.Errorf("empty range [%d:%d] over register %s", start, end, regName)
	}
	if step < 0 && start < end {
		return nil, fmt.Errorf("empty range [%d:%d:%d] over register %s", start, step, end, regName)
	}
	var out []int
	if step > 0 {
		for i := start; i <= end; i += step {
			norm, err := normalizeIndex(i, regName, size)
			if err != nil {
				return nil, err
			}
			out = append(out, norm)
		}
	} else {
		for i := start; i >= end; i += step {
			norm, err := normalizeIndex(i, regName, size)
			if err != nil {
				return nil, err
			}
			out = append(out, norm)
		}
	}
	return out, nil
}

func (ev *Evaluator) resolveSet(s *ast.DiscreteSet, regName string, size int) ([]int, error) {
	out := make([]int, 0, len(s.Values))
	for _, v := range s.Values {
		i, err := ev.EvalInt(v)
		if err != nil {
			return nil, err
		}
		norm, err := normalizeIndex(i, regName, size)
		if err != nil {
			return nil, err
		}
		out = append(out, norm)
	}
	return out, nil
}

func normalizeIndex(i int64, regName string, size int) (int, error) {
	if i < 0 {
		i += int64(size)
	}
	if i < 0 || i >= int64(size) {
		return 0, fmt.Errorf("index %d out of bounds for register %s of size %d", i, regName, size)
	}
	return int(i), nil
}

// OperandName extracts the register or alias name an operand refers to.
func OperandName(operand ast.Expression) (string, bool) {
	switch x := operand.(type) {
	case *ast.Identifier:
		return x.Name, true
	case *ast.IndexExpr:
		return collectionName(x)
	}
	return "", false
}
