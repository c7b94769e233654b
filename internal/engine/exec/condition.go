// Condition evaluation (§4.9): resolves columns via Row.Lookup, applies
// numeric-vs-lexicographic comparison, and treats a missing operand as
// false rather than erroring.
package exec

import (
	"fmt"
	"strconv"

	"github.com/duskdb/duskdb/internal/engine/parser"
)

// evalBool evaluates a boolean expression tree (Compare/And/Or/Not) against
// row.
func evalBool(e parser.Expr, row *Row) (bool, error) {
	switch v := e.(type) {
	case parser.Compare:
		return evalCompare(v, row)
	case parser.And:
		l, err := evalBool(v.Left, row)
		if err != nil {
			return false, err
		}
		if !l {
			return false, nil
		}
		return evalBool(v.Right, row)
	case parser.Or:
		l, err := evalBool(v.Left, row)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return evalBool(v.Right, row)
	case parser.Not:
		inner, err := evalBool(v.Inner, row)
		if err != nil {
			return false, err
		}
		return !inner, nil
	default:
		return false, fmt.Errorf("exec: %T is not a boolean expression", e)
	}
}

// operand resolves a Compare side (either a ColumnRef or a Literal) to a Go
// value, reporting whether the operand is present.
func operand(e parser.Expr, row *Row) (any, bool) {
	switch v := e.(type) {
	case parser.ColumnRef:
		key := v.Name
		if v.Alias != "" {
			key = v.Alias + "." + v.Name
		}
		return row.Lookup(key)
	case parser.Literal:
		return v.Value, true
	default:
		return nil, false
	}
}

// evalCompare implements §4.9's "Condition evaluation" rules: a missing
// operand is false, numeric comparison when both sides are numeric, else
// lexicographic comparison of the string form.
func evalCompare(c parser.Compare, row *Row) (bool, error) {
	l, lok := operand(c.Left, row)
	r, rok := operand(c.Right, row)
	if !lok || !rok {
		return false, nil
	}
	if lf, lIsNum := asFloat(l); lIsNum {
		if rf, rIsNum := asFloat(r); rIsNum {
			return compareOrdered(lf, c.Op, rf), nil
		}
	}
	if lb, ok := l.(bool); ok {
		if rb, ok := r.(bool); ok {
			switch c.Op {
			case parser.OpEQ:
				return lb == rb, nil
			case parser.OpNE:
				return lb != rb, nil
			default:
				return false, fmt.Errorf("exec: operator %s not valid for BOOL", c.Op)
			}
		}
	}
	return compareOrdered(fmt.Sprintf("%v", l), c.Op, fmt.Sprintf("%v", r)), nil
}

// asFloat reports whether v is numeric, coercing a string that parses
// cleanly as a number (so a VARCHAR holding "100" compares numerically
// against an INT/FLOAT rather than falling through to a lexicographic
// comparison of its string form).
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func compareOrdered[T int64 | float64 | string](l T, op parser.CompareOp, r T) bool {
	switch op {
	case parser.OpEQ:
		return l == r
	case parser.OpNE:
		return l != r
	case parser.OpLT:
		return l < r
	case parser.OpLE:
		return l <= r
	case parser.OpGT:
		return l > r
	case parser.OpGE:
		return l >= r
	default:
		return false
	}
}
