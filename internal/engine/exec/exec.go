// Executor dispatch and the non-SELECT statement kinds (§4.9).
package exec

import (
	"fmt"
	"log"
	"strings"

	"github.com/duskdb/duskdb/internal/catalog"
	"github.com/duskdb/duskdb/internal/engine/errs"
	"github.com/duskdb/duskdb/internal/engine/hints"
	"github.com/duskdb/duskdb/internal/engine/parser"
	"github.com/duskdb/duskdb/internal/engine/planner"
	"github.com/duskdb/duskdb/internal/heap"
)

// Executor runs a planner.Plan against a live catalog and heap file.
type Executor struct {
	Cat    *catalog.Catalog
	Heap   *heap.Heap
	Logger *log.Logger
}

// New returns an Executor wired to cat and hp. logger receives one line per
// executed plan kind; a nil logger discards it.
func New(cat *catalog.Catalog, hp *heap.Heap, logger *log.Logger) *Executor {
	return &Executor{Cat: cat, Heap: hp, Logger: logger}
}

// Result is what Execute returns: either tabular rows (Select), a status
// Message (everything else), or pre-rendered ExplainText.
type Result struct {
	Columns     []string
	Rows        []map[string]any
	Message     string
	ExplainText string
}

func (e *Executor) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Execute dispatches plan by kind and drives `flush_all` after any
// write-producing statement (§5's concurrency model).
func (e *Executor) Execute(plan planner.Plan) (*Result, error) {
	switch p := plan.(type) {
	case planner.CreateTablePlan:
		e.logf("EXEC CreateTable %s", p.Stmt.Name)
		return e.flushAfter(e.execCreateTable(p))
	case planner.InsertPlan:
		e.logf("EXEC Insert into %s", p.Stmt.Table)
		return e.flushAfter(e.execInsert(p))
	case planner.DeletePlan:
		e.logf("EXEC Delete from %s", p.Table)
		return e.flushAfter(e.execDelete(p))
	case planner.UpdatePlan:
		e.logf("EXEC Update %s", p.Table)
		return e.flushAfter(e.execUpdate(p))
	case planner.SelectPlan:
		e.logf("EXEC Select")
		return e.execSelect(p)
	case planner.ExplainPlan:
		e.logf("EXEC Explain")
		return &Result{ExplainText: planner.Explain(p.Inner)}, nil
	default:
		return nil, &errs.InternalError{Message: fmt.Sprintf("exec: unhandled plan type %T", plan)}
	}
}

// flushAfter runs FlushAll once a write-producing statement has succeeded,
// leaving the original result/error untouched on failure (no rollback, per
// §7: a failed statement simply never reaches this point with dirty pages
// worth flushing beyond what it already wrote).
func (e *Executor) flushAfter(res *Result, err error) (*Result, error) {
	if err != nil {
		return res, err
	}
	if ferr := e.Heap.FlushAll(); ferr != nil {
		return nil, errs.NewRuntimeError("flush_all", ferr)
	}
	return res, nil
}

func toCatalogColumn(c parser.ColumnDef) catalog.Column {
	return catalog.Column{Name: c.Name, Type: c.Type, VarcharN: c.VarcharN}
}

func (e *Executor) execCreateTable(p planner.CreateTablePlan) (*Result, error) {
	stmt := p.Stmt
	cols := make([]catalog.Column, len(stmt.Columns))
	for i, c := range stmt.Columns {
		cols[i] = toCatalogColumn(c)
	}
	if err := e.Heap.CreateTable(stmt.Name, cols); err != nil {
		return nil, errs.NewRuntimeError("create table", err)
	}
	if err := e.Cat.CreateTable(stmt.Name, cols); err != nil {
		return nil, errs.NewRuntimeError("create table", err)
	}
	pk := stmt.TablePK
	for _, c := range stmt.Columns {
		if c.InlinePK {
			pk = c.Name
		}
	}
	if pk != "" {
		if err := e.Cat.SetPrimaryKey(stmt.Name, pk); err != nil {
			return nil, errs.NewRuntimeError("create table: set primary key", err)
		}
	}
	for _, fk := range stmt.ForeignKeys {
		if err := e.Cat.AddConstraint(stmt.Name, catalog.ForeignKey{
			LocalCol: fk.LocalCol, RefTable: fk.RefTable, RefCol: fk.RefCol,
		}); err != nil {
			return nil, errs.NewRuntimeError("create table: add constraint", err)
		}
	}
	return &Result{Message: fmt.Sprintf("Table '%s' created successfully", stmt.Name)}, nil
}

func zeroValue(t catalog.Type) any {
	switch t {
	case catalog.Int:
		return int32(0)
	case catalog.Float:
		return float32(0)
	case catalog.Bool:
		return false
	case catalog.Varchar:
		return ""
	default:
		return nil
	}
}

// execInsert implements the INSERT row lifecycle state machine:
// Assembled -> TypeChecked -> PK-Checked -> FK-Checked -> Written ->
// Counted, with any failure transitioning to Rejected before a page is
// ever touched.
func (e *Executor) execInsert(p planner.InsertPlan) (*Result, error) {
	stmt := p.Stmt
	info, ok := e.Cat.GetTableInfo(stmt.Table)
	if !ok {
		return nil, &errs.SemanticError{Message: fmt.Sprintf("table %q does not exist", stmt.Table)}
	}
	targetCols := stmt.Columns
	if targetCols == nil {
		targetCols = info.ColumnNames()
	}
	colIndex := make(map[string]int, len(info.Columns))
	for i, c := range info.Columns {
		colIndex[strings.ToLower(c.Name)] = i
	}

	inserted := 0
	for _, row := range stmt.Rows {
		// Assembled: build a full-width record defaulted to each column's
		// zero value — an omitted column (when an explicit column list does
		// not cover the full schema) takes its type's zero value rather
		// than NULL.
		rec := make(heap.Record, len(info.Columns))
		for i, c := range info.Columns {
			rec[i] = zeroValue(c.Type)
		}

		// TypeChecked: coerce and place each provided value.
		for i, target := range targetCols {
			idx, ok := colIndex[strings.ToLower(target)]
			if !ok {
				return nil, &errs.SemanticError{Message: fmt.Sprintf("column %q does not exist on table %q", target, stmt.Table)}
			}
			lit, ok := row[i].(parser.Literal)
			if !ok {
				return nil, &errs.InternalError{Message: "INSERT value is not a literal"}
			}
			coerced, err := coerceInsertValue(info.Columns[idx], lit.Value)
			if err != nil {
				return nil, err
			}
			rec[idx] = coerced
		}

		// PK-Checked.
		if info.PrimaryKey != "" {
			pkIdx := colIndex[strings.ToLower(info.PrimaryKey)]
			exists, err := e.pkExists(stmt.Table, info.PrimaryKey, rec[pkIdx])
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, errs.NewConstraintError(
					fmt.Sprintf("primary key violation: %s=%v already exists in %s", info.PrimaryKey, rec[pkIdx], stmt.Table),
					"",
				)
			}
		}

		// FK-Checked.
		for _, fk := range info.ForeignKeys {
			idx := colIndex[strings.ToLower(fk.LocalCol)]
			if err := e.checkForeignKey(stmt.Table, fk, rec[idx]); err != nil {
				return nil, err
			}
		}

		// Written.
		if err := e.Heap.InsertRecord(stmt.Table, rec); err != nil {
			return nil, errs.NewRuntimeError("insert record", err)
		}
		inserted++
	}

	// Counted.
	newCount, err := e.Heap.RowCount(stmt.Table)
	if err != nil {
		return nil, errs.NewRuntimeError("read row count after insert", err)
	}
	if err := e.Cat.UpdateRowCount(stmt.Table, newCount); err != nil {
		return nil, errs.NewRuntimeError("update catalog row count", err)
	}
	return &Result{Message: fmt.Sprintf("%d row(s) inserted into '%s'", inserted, stmt.Table)}, nil
}

func coerceInsertValue(col catalog.Column, v any) (any, error) {
	switch col.Type {
	case catalog.Int:
		n, ok := v.(int32)
		if !ok {
			return nil, errs.NewConstraintError(fmt.Sprintf("column %q expects INT, got %v", col.Name, v), "")
		}
		return n, nil
	case catalog.Float:
		switch n := v.(type) {
		case int32:
			return float32(n), nil
		case float32:
			return n, nil
		default:
			return nil, errs.NewConstraintError(fmt.Sprintf("column %q expects FLOAT, got %v", col.Name, v), "")
		}
	case catalog.Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, errs.NewConstraintError(fmt.Sprintf("column %q expects BOOL, got %v", col.Name, v), "")
		}
		return b, nil
	case catalog.Varchar:
		s, ok := v.(string)
		if !ok {
			return nil, errs.NewConstraintError(fmt.Sprintf("column %q expects VARCHAR, got %v", col.Name, v), "")
		}
		if col.VarcharN > 0 && len(s) > col.VarcharN {
			return nil, errs.NewConstraintError(fmt.Sprintf("column %q: value exceeds VARCHAR(%d)", col.Name, col.VarcharN), "")
		}
		return s, nil
	default:
		return nil, &errs.InternalError{Message: fmt.Sprintf("unsupported column type %q", col.Type)}
	}
}

func (e *Executor) pkExists(table, pkCol string, value any) (bool, error) {
	recs, err := e.Heap.ReadRecords(table, &heap.Predicate{Column: pkCol, Op: heap.OpEQ, Value: value})
	if err != nil {
		return false, errs.NewRuntimeError("primary key scan", err)
	}
	return len(recs) > 0, nil
}

// checkForeignKey raises a ConstraintError with a smart hint (§4.9 step 3)
// when value is absent from fk's referenced table/column. The message
// includes the literal phrase required for foreign-key violations.
func (e *Executor) checkForeignKey(table string, fk catalog.ForeignKey, value any) error {
	recs, err := e.Heap.ReadRecords(fk.RefTable, nil)
	if err != nil {
		return errs.NewRuntimeError("foreign key scan", err)
	}
	schema, err := e.Heap.Schema(fk.RefTable)
	if err != nil {
		return errs.NewRuntimeError("foreign key scan", err)
	}
	refIdx := -1
	for i, c := range schema {
		if strings.EqualFold(c.Name, fk.RefCol) {
			refIdx = i
			break
		}
	}
	var candidates []string
	found := false
	for _, r := range recs {
		if refIdx >= 0 && refIdx < len(r) {
			if fmt.Sprintf("%v", r[refIdx]) == fmt.Sprintf("%v", value) {
				found = true
				break
			}
			if len(candidates) < 10 {
				candidates = append(candidates, fmt.Sprintf("%v", r[refIdx]))
			}
		}
	}
	if found {
		return nil
	}
	hint := fmt.Sprintf("%s现有候选值（最多10个）：[%s]\n%s建议：先向 %s 插入 %s=%v 的父行，或改用已存在的键值之一。",
		hints.Prefix, strings.Join(candidates, ", "), hints.Prefix, fk.RefTable, fk.RefCol, value)
	hint += fmt.Sprintf("\n%s示例：INSERT INTO %s (%s) VALUES (%v);", hints.Prefix, fk.RefTable, fk.RefCol, value)
	return errs.NewConstraintError(
		fmt.Sprintf("外键约束失败：%s.%s=%v 在 %s.%s 中不存在", table, fk.LocalCol, value, fk.RefTable, fk.RefCol),
		hint,
	)
}

func toHeapPredicate(c *parser.Compare) *heap.Predicate {
	if c == nil {
		return nil
	}
	ref, ok := c.Left.(parser.ColumnRef)
	if !ok {
		return nil
	}
	lit, ok := c.Right.(parser.Literal)
	if !ok {
		return nil
	}
	return &heap.Predicate{Column: ref.Name, Op: heap.Op(c.Op), Value: lit.Value}
}

func (e *Executor) execDelete(p planner.DeletePlan) (*Result, error) {
	if !e.Cat.TableExists(p.Table) {
		return nil, &errs.SemanticError{Message: fmt.Sprintf("table %q does not exist", p.Table)}
	}
	n, err := e.Heap.DeleteRecords(p.Table, toHeapPredicate(p.Where))
	if err != nil {
		return nil, errs.NewRuntimeError("delete records", err)
	}
	newCount, err := e.Heap.RowCount(p.Table)
	if err != nil {
		return nil, errs.NewRuntimeError("read row count after delete", err)
	}
	if err := e.Cat.UpdateRowCount(p.Table, newCount); err != nil {
		return nil, errs.NewRuntimeError("update catalog row count", err)
	}
	return &Result{Message: fmt.Sprintf("%d row(s) deleted from '%s'", n, p.Table)}, nil
}

// execUpdate implements §4.9's UPDATE rule plus the cascade: when exactly
// one assignment equality-keys the same column the WHERE filters on, and
// at least one row changed, every table that foreign-keys this (table,
// column) gets a synthesized cascading UPDATE recursively executed.
func (e *Executor) execUpdate(p planner.UpdatePlan) (*Result, error) {
	info, ok := e.Cat.GetTableInfo(p.Table)
	if !ok {
		return nil, &errs.SemanticError{Message: fmt.Sprintf("table %q does not exist", p.Table)}
	}
	var assigns []heap.Assignment
	for _, a := range p.Sets {
		col, ok := info.Column(a.Column)
		if !ok {
			return nil, &errs.SemanticError{Message: fmt.Sprintf("column %q does not exist on table %q", a.Column, p.Table)}
		}
		lit, ok := a.Value.(parser.Literal)
		if !ok {
			return nil, &errs.InternalError{Message: "UPDATE value is not a literal"}
		}
		coerced, err := coerceInsertValue(col, lit.Value)
		if err != nil {
			return nil, err
		}
		assigns = append(assigns, heap.Assignment{Column: a.Column, Value: coerced})
	}
	n, err := e.Heap.UpdateRecords(p.Table, assigns, toHeapPredicate(p.Where))
	if err != nil {
		return nil, errs.NewRuntimeError("update records", err)
	}

	if n > 0 && len(p.Sets) == 1 && p.Where != nil && p.Where.Op == parser.OpEQ {
		if ref, ok := p.Where.Left.(parser.ColumnRef); ok && strings.EqualFold(ref.Name, p.Sets[0].Column) {
			oldVal := p.Where.Right
			newVal := p.Sets[0].Value
			for _, fk := range e.Cat.FindReferencingTables(p.Table, p.Sets[0].Column) {
				oldLit, ok1 := oldVal.(parser.Literal)
				newLit, ok2 := newVal.(parser.Literal)
				if !ok1 || !ok2 {
					continue
				}
				cascade := planner.UpdatePlan{
					Table: fk.RefTable,
					Sets:  []parser.Assignment{{Column: fk.LocalCol, Value: newLit}},
					Where: &parser.Compare{Op: parser.OpEQ, Left: parser.ColumnRef{Name: fk.LocalCol}, Right: oldLit},
				}
				if _, err := e.execUpdate(cascade); err != nil {
					return nil, errs.NewRuntimeError(fmt.Sprintf("cascading update on %s", fk.RefTable), err)
				}
			}
		}
	}
	return &Result{Message: fmt.Sprintf("Updated %d row(s)", n)}, nil
}
