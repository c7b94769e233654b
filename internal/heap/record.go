// Package heap implements the Heap File: a per-table linked list of data
// pages holding variable-length records, plus record (de)serialization by
// typed schema.
//
// What: create_table/insert_record/read_records/delete_records/
// update_records against the page/buffer layers.
// How: a table-heap pattern seen across several small SQL engines
// (kyosu-1-minidb's TableHeap: a chain of pages walked to find free space or
// extended at the tail) generalized to duskdb's fixed binary record format.
// Why: records are packed contiguously and rewritten wholesale on
// delete/update (no free-list of slots) to keep the on-disk format simple —
// no WAL, no slotted-page free-space map beyond "walk existing records to
// find the free-space offset".
package heap

import (
	"fmt"
	"strconv"

	"github.com/duskdb/duskdb/internal/catalog"
)

// Record is one row's values, in schema column order.
type Record []any

// Op is a storage-level comparison operator.
type Op string

const (
	OpEQ Op = "="
	OpNE Op = "!="
	OpLT Op = "<"
	OpLE Op = "<="
	OpGT Op = ">"
	OpGE Op = ">="
)

// Predicate is the single `column OP constant` comparison the heap file
// accepts for pushdown, per §4.3's "Predicate format accepted for pushdown".
type Predicate struct {
	Column string
	Op     Op
	Value  any
}

// Matches evaluates the predicate against a decoded record, given the
// column's index within the schema.
func (p *Predicate) Matches(rec Record, colIdx int) (bool, error) {
	if colIdx < 0 || colIdx >= len(rec) {
		return false, fmt.Errorf("heap: predicate column %q out of range", p.Column)
	}
	return compare(rec[colIdx], p.Op, p.Value)
}

func compare(left any, op Op, right any) (bool, error) {
	switch l := left.(type) {
	case int32, float32:
		lf, _ := asNumeric(l)
		rf, ok := asNumeric(right)
		if !ok {
			return false, nil
		}
		return compareOrdered(lf, op, rf)
	case bool:
		r, ok := right.(bool)
		if !ok {
			return false, nil
		}
		switch op {
		case OpEQ:
			return l == r, nil
		case OpNE:
			return l != r, nil
		default:
			return false, fmt.Errorf("heap: operator %s not valid for BOOL", op)
		}
	case string:
		if lf, ok := asNumeric(l); ok {
			if rf, ok := asNumeric(right); ok {
				return compareOrdered(lf, op, rf)
			}
		}
		r, ok := right.(string)
		if !ok {
			return false, nil
		}
		return compareOrdered(l, op, r)
	default:
		return false, fmt.Errorf("heap: unsupported value type %T in predicate", left)
	}
}

// asNumeric reports whether v is numeric, coercing a string that parses
// cleanly as a number — a VARCHAR value holding "100" compares numerically
// against an INT/FLOAT column rather than falling through to a
// lexicographic comparison of its string form.
func asNumeric(v any) (float64, bool) {
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

func toInt32(v any) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case int:
		return int32(n), true
	case float32:
		return int32(n), true
	case float64:
		return int32(n), true
	default:
		return 0, false
	}
}

func toFloat32(v any) (float32, bool) {
	switch n := v.(type) {
	case float32:
		return n, true
	case float64:
		return float32(n), true
	case int32:
		return float32(n), true
	case int:
		return float32(n), true
	default:
		return 0, false
	}
}

type ordered interface {
	~int64 | ~float64 | ~string
}

func compareOrdered[T ordered](l T, op Op, r T) (bool, error) {
	switch op {
	case OpEQ:
		return l == r, nil
	case OpNE:
		return l != r, nil
	case OpLT:
		return l < r, nil
	case OpLE:
		return l <= r, nil
	case OpGT:
		return l > r, nil
	case OpGE:
		return l >= r, nil
	default:
		return false, fmt.Errorf("heap: unknown operator %s", op)
	}
}

// encodedSize returns the on-disk byte width of a column's value.
func encodedSize(col catalog.Column, v any) (int, error) {
	switch col.Type {
	case catalog.Int:
		return 4, nil
	case catalog.Float:
		return 4, nil
	case catalog.Bool:
		return 1, nil
	case catalog.Varchar:
		s, ok := v.(string)
		if !ok {
			return 0, fmt.Errorf("heap: column %q expects VARCHAR, got %T", col.Name, v)
		}
		return 4 + len(s), nil
	default:
		return 0, fmt.Errorf("heap: unsupported column type %q", col.Type)
	}
}

// recordSize returns the total encoded size of rec against schema.
func recordSize(schema []catalog.Column, rec Record) (int, error) {
	if len(rec) != len(schema) {
		return 0, fmt.Errorf("heap: record has %d values, schema has %d columns", len(rec), len(schema))
	}
	total := 0
	for i, col := range schema {
		n, err := encodedSize(col, rec[i])
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
