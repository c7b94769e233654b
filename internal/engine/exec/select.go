// SELECT pipeline (§4.9 step 1-5): scan → residual filter → then either
// grouping/aggregation with ordered groups, or ordering of the
// pre-projection rows → projection.
package exec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/duskdb/duskdb/internal/engine/errs"
	"github.com/duskdb/duskdb/internal/engine/parser"
	"github.com/duskdb/duskdb/internal/engine/planner"
)

func (e *Executor) execSelect(p planner.SelectPlan) (*Result, error) {
	rows, err := e.evalSource(p.Source)
	if err != nil {
		return nil, err
	}

	if p.Residual != nil {
		var filtered []*Row
		for _, r := range rows {
			ok, err := evalBool(p.Residual, r)
			if err != nil {
				return nil, errs.NewRuntimeError("evaluate WHERE", err)
			}
			if ok {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}

	if len(p.Aggregates) > 0 {
		return e.projectAggregates(p, rows)
	}
	return e.projectPlain(p, rows)
}

// --- source evaluation ------------------------------------------------

func (e *Executor) evalSource(n planner.SourceNode) ([]*Row, error) {
	switch v := n.(type) {
	case planner.TableScan:
		return e.scanTable(v)
	case planner.JoinNode:
		return e.evalJoin(v)
	default:
		return nil, &errs.InternalError{Message: fmt.Sprintf("exec: unhandled source node %T", n)}
	}
}

func (e *Executor) scanTable(scan planner.TableScan) ([]*Row, error) {
	schema, err := e.Heap.Schema(scan.Table)
	if err != nil {
		return nil, errs.NewRuntimeError(fmt.Sprintf("scan %s", scan.Table), err)
	}
	recs, err := e.Heap.ReadRecords(scan.Table, toHeapPredicate(exprToCompare(scan.Pushed)))
	if err != nil {
		return nil, errs.NewRuntimeError(fmt.Sprintf("scan %s", scan.Table), err)
	}
	var out []*Row
	for _, rec := range recs {
		row := NewRow()
		for i, col := range schema {
			row.SetBoth(scan.Alias, col.Name, rec[i])
		}
		// The heap only narrows on the first comparison atom of scan.Pushed
		// (see exprToCompare); re-evaluate the full pushed expression here so
		// any further AND-ed conjuncts attached to this scan are still
		// enforced instead of silently passing through.
		if scan.Pushed != nil {
			ok, err := evalBool(scan.Pushed, row)
			if err != nil {
				return nil, errs.NewRuntimeError(fmt.Sprintf("scan %s", scan.Table), err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// exprToCompare narrows a pushed predicate expression back to the single
// comparison atom the heap file's ReadRecords accepts, for coarse narrowing
// only. It is not required to capture every AND-ed conjunct: scanTable
// re-evaluates the full scan.Pushed expression against each row after the
// read, so any conjunct dropped here still gets enforced in-process.
func exprToCompare(e parser.Expr) *parser.Compare {
	if e == nil {
		return nil
	}
	if c, ok := e.(parser.Compare); ok {
		return &c
	}
	if and, ok := e.(parser.And); ok {
		return exprToCompare(and.Left)
	}
	return nil
}

func (e *Executor) evalJoin(j planner.JoinNode) ([]*Row, error) {
	left, err := e.evalSource(j.Left)
	if err != nil {
		return nil, err
	}
	right, err := e.evalSource(j.Right)
	if err != nil {
		return nil, err
	}

	var rightZero map[string]any
	if j.Kind == parser.JoinLeft {
		rightZero, err = e.zeroRowFor(j.Right)
		if err != nil {
			return nil, err
		}
	}

	var out []*Row
	for _, l := range left {
		matched := false
		for _, r := range right {
			combined := l.Clone()
			combined.Merge(r)
			ok, err := evalBool(j.On, combined)
			if err != nil {
				return nil, errs.NewRuntimeError("evaluate JOIN ON", err)
			}
			if ok {
				matched = true
				out = append(out, combined)
			}
		}
		if !matched && j.Kind == parser.JoinLeft {
			combined := l.Clone()
			for k, zero := range rightZero {
				combined.SetAbsent(k, zero)
			}
			out = append(out, combined)
		}
	}
	return out, nil
}

// zeroRowFor recovers the key set (bare + alias-qualified) a LEFT JOIN's
// empty right side would have produced, from catalog metadata, per §4.9
// step 1's "recover its key set from catalog metadata" instruction.
func (e *Executor) zeroRowFor(n planner.SourceNode) (map[string]any, error) {
	scan, ok := n.(planner.TableScan)
	if !ok {
		return nil, &errs.InternalError{Message: "LEFT JOIN right side must be a single table scan"}
	}
	schema, err := e.Heap.Schema(scan.Table)
	if err != nil {
		return nil, errs.NewRuntimeError(fmt.Sprintf("resolve schema for %s", scan.Table), err)
	}
	out := map[string]any{}
	for _, col := range schema {
		z := zeroValue(col.Type)
		out[col.Name] = z
		out[scan.Alias+"."+col.Name] = z
	}
	return out, nil
}

// --- aggregation --------------------------------------------------------

type aggAcc struct {
	count int
	sum   float64
	isSum bool
}

func (e *Executor) projectAggregates(p planner.SelectPlan, rows []*Row) (*Result, error) {
	if p.GroupBy == "" {
		acc, err := computeAggregates(p.Aggregates, rows)
		if err != nil {
			return nil, err
		}
		row := aggregateRow(p.Aggregates, acc)
		cols := aggregateColumnNames(p.Columns)
		return &Result{Columns: cols, Rows: []map[string]any{row}}, nil
	}

	buckets := map[string][]*Row{}
	var order []string
	for _, r := range rows {
		v, _ := r.Lookup(p.GroupBy)
		key := fmt.Sprintf("%v", v)
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], r)
	}

	// Group keys default to ascending by the GROUP BY value itself (numeric,
	// not its string form) unless an explicit ORDER BY says otherwise.
	dir := parser.Asc
	if p.HasOrder {
		dir = p.OrderDir
	}
	sort.SliceStable(order, func(i, j int) bool {
		vi, _ := buckets[order[i]][0].Lookup(p.GroupBy)
		vj, _ := buckets[order[j]][0].Lookup(p.GroupBy)
		cmp := compareAny(vi, vj)
		if dir == parser.Desc {
			return cmp > 0
		}
		return cmp < 0
	})

	var out []map[string]any
	for _, key := range order {
		bucketRows := buckets[key]
		acc, err := computeAggregates(p.Aggregates, bucketRows)
		if err != nil {
			return nil, err
		}
		row := aggregateRow(p.Aggregates, acc)
		groupVal, _ := bucketRows[0].Lookup(p.GroupBy)
		row[p.GroupBy] = groupVal
		out = append(out, row)
	}
	cols := append([]string{p.GroupBy}, aggregateColumnNames(p.Columns)...)
	return &Result{Columns: cols, Rows: out}, nil
}

func computeAggregates(calls []parser.FuncCall, rows []*Row) ([]aggAcc, error) {
	accs := make([]aggAcc, len(calls))
	for i, fc := range calls {
		if fc.Name == "COUNT" && fc.Star {
			accs[i].count = len(rows)
			continue
		}
		ref, ok := fc.Arg.(parser.ColumnRef)
		if !ok {
			return nil, &errs.InternalError{Message: fmt.Sprintf("%s argument is not a column", fc.Name)}
		}
		key := ref.Name
		if ref.Alias != "" {
			key = ref.Alias + "." + ref.Name
		}
		for _, r := range rows {
			v, ok := r.Lookup(key)
			if !ok {
				continue
			}
			if fc.Name == "COUNT" {
				accs[i].count++
				continue
			}
			f, numeric := asFloat(v)
			if !numeric {
				continue
			}
			accs[i].sum += f
			accs[i].count++
			accs[i].isSum = true
		}
	}
	return accs, nil
}

func aggregateRow(calls []parser.FuncCall, accs []aggAcc) map[string]any {
	row := map[string]any{}
	for i, fc := range calls {
		name := aggregateOutputName(fc)
		switch fc.Name {
		case "COUNT":
			row[name] = int32(accs[i].count)
		case "SUM":
			row[name] = float32(accs[i].sum)
		case "AVG":
			if accs[i].count == 0 {
				row[name] = float32(0)
			} else {
				row[name] = float32(accs[i].sum / float64(accs[i].count))
			}
		}
	}
	return row
}

func aggregateOutputName(fc parser.FuncCall) string {
	if fc.Star {
		return fmt.Sprintf("%s(*)", fc.Name)
	}
	ref, _ := fc.Arg.(parser.ColumnRef)
	return fmt.Sprintf("%s(%s)", fc.Name, ref.Name)
}

func aggregateColumnNames(items []parser.SelectItem) []string {
	var out []string
	for _, it := range items {
		if fc, ok := it.Expr.(parser.FuncCall); ok {
			name := aggregateOutputName(fc)
			if it.Alias != "" {
				name = it.Alias
			}
			out = append(out, name)
		}
	}
	return out
}

// --- projection -----------------------------------------------------------

func (e *Executor) projectPlain(p planner.SelectPlan, rows []*Row) (*Result, error) {
	if p.HasOrder {
		sortSourceRows(rows, p.OrderBy, p.OrderDir)
	}

	star := len(p.Columns) == 0
	for _, it := range p.Columns {
		if it.Star {
			star = true
		}
	}

	var cols []string
	if star {
		cols = barePlainColumns(rows)
	} else {
		for _, it := range p.Columns {
			name := it.Alias
			if name == "" {
				if ref, ok := it.Expr.(parser.ColumnRef); ok {
					name = ref.Name
				}
			}
			cols = append(cols, name)
		}
	}

	var out []map[string]any
	for _, r := range rows {
		m := map[string]any{}
		if star {
			for _, c := range cols {
				v, _ := r.Lookup(c)
				m[c] = v
			}
		} else {
			for _, it := range p.Columns {
				ref, ok := it.Expr.(parser.ColumnRef)
				if !ok {
					continue
				}
				key := ref.Name
				if ref.Alias != "" {
					key = ref.Alias + "." + ref.Name
				}
				v, _ := r.Lookup(key)
				name := it.Alias
				if name == "" {
					name = ref.Name
				}
				m[name] = v
			}
		}
		out = append(out, m)
	}

	return &Result{Columns: cols, Rows: out}, nil
}

// sortSourceRows orders the pre-projection rows by a scope-resolved column
// (which need not be among the selected columns), since §4.9's ORDER BY
// clause is validated during semantic analysis against the full FROM/JOIN
// scope rather than just the projection list.
func sortSourceRows(rows []*Row, key string, dir parser.OrderDir) {
	sort.SliceStable(rows, func(i, j int) bool {
		vi, oki := rows[i].Lookup(key)
		vj, okj := rows[j].Lookup(key)
		if !oki && !okj {
			return false
		}
		if !oki {
			return false
		}
		if !okj {
			return true
		}
		cmp := compareAny(vi, vj)
		if dir == parser.Desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

// barePlainColumns recovers the bare (non-alias-qualified) key set from the
// first row, for "SELECT *" output (§4.9 step 4).
func barePlainColumns(rows []*Row) []string {
	if len(rows) == 0 {
		return nil
	}
	var out []string
	for k := range rows[0].Values {
		if !strings.Contains(k, ".") {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// compareAny returns -1, 0, or 1 comparing a and b numerically when both
// coerce to a number, else lexicographically on their string form.
func compareAny(a, b any) int {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	sa, sb := fmt.Sprintf("%v", a), fmt.Sprintf("%v", b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

