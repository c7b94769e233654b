// Package semantic validates a parsed AST against the catalog (§4.7):
// table/column existence, arity and type checks, alias resolution,
// aggregate/grouping rules. Analysis is pure — it consumes an immutable
// catalog.Snapshot and never mutates catalog state, unlike analyzers that
// resolve types by querying a live, mutable catalog mid-walk.
//
// Walks the AST with one check* function per statement kind and an
// alias->table scope map for SELECT, over duskdb's expression-tree AST,
// extended with smart-hint messages on most unknown-column, arity and type
// failures; the other failures carry a message only.
package semantic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/duskdb/duskdb/internal/catalog"
	"github.com/duskdb/duskdb/internal/engine/errs"
	"github.com/duskdb/duskdb/internal/engine/hints"
	"github.com/duskdb/duskdb/internal/engine/parser"
)

// Analyze validates stmt against snap, returning a *errs.SemanticError on
// failure (including a FOREIGN KEY whose target table or column is missing),
// or an *errs.InternalError for an unhandled statement type.
func Analyze(stmt parser.Statement, snap *catalog.Snapshot) error {
	switch s := stmt.(type) {
	case parser.CreateTableStmt:
		return checkCreateTable(s, snap)
	case parser.InsertStmt:
		return checkInsert(s, snap)
	case parser.SelectStmt:
		return checkSelect(s, snap)
	case parser.DeleteStmt:
		return checkDelete(s, snap)
	case parser.UpdateStmt:
		return checkUpdate(s, snap)
	case parser.ExplainStmt:
		return Analyze(s.Inner, snap)
	default:
		return &errs.InternalError{Message: fmt.Sprintf("semantic: unhandled statement type %T", stmt)}
	}
}

func sem(msg string) *errs.SemanticError { return &errs.SemanticError{Message: msg} }

func semHint(msg, hint string) *errs.SemanticError {
	return &errs.SemanticError{Message: msg, Hint: hint}
}

// --- CREATE TABLE -----------------------------------------------------

func checkCreateTable(s parser.CreateTableStmt, snap *catalog.Snapshot) error {
	if snap.TableExists(s.Name) {
		return sem(fmt.Sprintf("table %q already exists", s.Name))
	}
	seen := make(map[string]bool, len(s.Columns))
	colByName := make(map[string]parser.ColumnDef, len(s.Columns))
	for _, c := range s.Columns {
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			return sem(fmt.Sprintf("duplicate column %q in CREATE TABLE %s", c.Name, s.Name))
		}
		seen[lower] = true
		colByName[lower] = c
		if c.Type == catalog.Varchar && c.VarcharN < 0 {
			return sem(fmt.Sprintf("column %q: VARCHAR(n) requires n>0", c.Name))
		}
	}
	if s.TablePK != "" {
		if _, ok := colByName[strings.ToLower(s.TablePK)]; !ok {
			return sem(fmt.Sprintf("PRIMARY KEY column %q is not defined in %s", s.TablePK, s.Name))
		}
	}
	for _, fk := range s.ForeignKeys {
		if _, ok := colByName[strings.ToLower(fk.LocalCol)]; !ok {
			return sem(fmt.Sprintf("FOREIGN KEY column %q is not defined in %s", fk.LocalCol, s.Name))
		}
		ref, ok := snap.GetTableInfo(fk.RefTable)
		if !ok {
			return sem(fmt.Sprintf("FOREIGN KEY references unknown table %q", fk.RefTable))
		}
		if _, ok := ref.Column(fk.RefCol); !ok {
			return sem(fmt.Sprintf("FOREIGN KEY references unknown column %q on table %q", fk.RefCol, fk.RefTable))
		}
	}
	return nil
}

// --- INSERT -------------------------------------------------------------

func checkInsert(s parser.InsertStmt, snap *catalog.Snapshot) error {
	info, ok := snap.GetTableInfo(s.Table)
	if !ok {
		return sem(fmt.Sprintf("table %q does not exist", s.Table))
	}
	targetCols := s.Columns
	if targetCols == nil {
		targetCols = info.ColumnNames()
	} else {
		for _, c := range targetCols {
			if _, ok := info.Column(c); !ok {
				return semHint(
					fmt.Sprintf("column %q does not exist on table %q", c, s.Table),
					hints.ExpectedVsGot(info.ColumnNames(), c),
				)
			}
		}
	}
	for _, row := range s.Rows {
		if len(row) != len(targetCols) {
			return semHint(
				fmt.Sprintf("INSERT into %s expects %d value(s), got %d", s.Table, len(targetCols), len(row)),
				insertArityHint(s.Table, targetCols, row),
			)
		}
		for i, val := range row {
			lit, ok := val.(parser.Literal)
			if !ok {
				return sem("INSERT values must be literal constants")
			}
			col, _ := info.Column(targetCols[i])
			if err := checkLiteralType(col, lit); err != nil {
				return err
			}
		}
	}
	return nil
}

func insertArityHint(table string, targetCols []string, row []parser.Expr) string {
	gotVals := make([]string, len(row))
	for i, v := range row {
		if lit, ok := v.(parser.Literal); ok {
			gotVals[i] = fmt.Sprintf("%v", lit.Value)
		}
	}
	example := make([]string, len(targetCols))
	for i := range targetCols {
		if i < len(gotVals) {
			example[i] = gotVals[i]
		} else {
			example[i] = "..."
		}
	}
	return hints.Line("expected columns (%s); try: INSERT INTO %s (%s) VALUES (%s)",
		strings.Join(targetCols, ", "), table, strings.Join(targetCols, ", "), strings.Join(example, ", "))
}

// checkLiteralType enforces §4.9 step 1's coercion rules at analysis time:
// INT rejects bool, FLOAT accepts numerics, BOOL accepts bool, VARCHAR
// accepts strings (checked against its bound if any).
func checkLiteralType(col catalog.Column, lit parser.Literal) error {
	switch col.Type {
	case catalog.Int:
		if _, ok := lit.Value.(int32); !ok {
			return semHint(fmt.Sprintf("column %q expects INT, got %v", col.Name, lit.Value),
				hints.Line("INT columns accept only whole-number literals"))
		}
	case catalog.Float:
		switch lit.Value.(type) {
		case int32, float32:
		default:
			return semHint(fmt.Sprintf("column %q expects FLOAT, got %v", col.Name, lit.Value),
				hints.Line("FLOAT columns accept numeric literals"))
		}
	case catalog.Bool:
		if _, ok := lit.Value.(bool); !ok {
			return semHint(fmt.Sprintf("column %q expects BOOL, got %v", col.Name, lit.Value),
				hints.Line("BOOL columns accept TRUE or FALSE"))
		}
	case catalog.Varchar:
		str, ok := lit.Value.(string)
		if !ok {
			return semHint(fmt.Sprintf("column %q expects VARCHAR, got %v", col.Name, lit.Value),
				hints.Line("VARCHAR columns accept quoted string literals"))
		}
		if col.VarcharN > 0 && len(str) > col.VarcharN {
			return semHint(
				fmt.Sprintf("column %q: value %q exceeds VARCHAR(%d)", col.Name, str, col.VarcharN),
				hints.Line("shorten the value to at most %d characters", col.VarcharN))
		}
	}
	return nil
}

// --- DELETE / UPDATE ------------------------------------------------------

func checkDelete(s parser.DeleteStmt, snap *catalog.Snapshot) error {
	info, ok := snap.GetTableInfo(s.Table)
	if !ok {
		return sem(fmt.Sprintf("table %q does not exist", s.Table))
	}
	if s.Where != nil {
		if err := checkSimpleWhereColumn(s.Where, info); err != nil {
			return err
		}
	}
	return nil
}

func checkUpdate(s parser.UpdateStmt, snap *catalog.Snapshot) error {
	info, ok := snap.GetTableInfo(s.Table)
	if !ok {
		return sem(fmt.Sprintf("table %q does not exist", s.Table))
	}
	for _, a := range s.Sets {
		col, ok := info.Column(a.Column)
		if !ok {
			return semHint(fmt.Sprintf("column %q does not exist on table %q", a.Column, s.Table),
				hints.ExpectedVsGot(info.ColumnNames(), a.Column))
		}
		lit, ok := a.Value.(parser.Literal)
		if !ok {
			return sem("SET values must be literal constants")
		}
		if err := checkLiteralType(col, lit); err != nil {
			return err
		}
	}
	if s.Where != nil {
		if err := checkSimpleWhereColumn(s.Where, info); err != nil {
			return err
		}
	}
	return nil
}

func checkSimpleWhereColumn(cmp *parser.Compare, info *catalog.Entry) error {
	ref, ok := cmp.Left.(parser.ColumnRef)
	if !ok {
		return sem("WHERE clause must compare a column to a constant")
	}
	if _, ok := info.Column(ref.Name); !ok {
		return semHint(fmt.Sprintf("column %q does not exist", ref.Name),
			hints.ExpectedVsGot(info.ColumnNames(), ref.Name))
	}
	return nil
}

// --- SELECT ---------------------------------------------------------------

// scope maps an alias (or bare table name used without an alias) to the
// table it names, per §4.7's "alias→table mapping from FROM and JOINs".
type scope struct {
	aliasToTable map[string]string
	tables       []string // table names in FROM/JOIN order, for unqualified resolution
	snap         *catalog.Snapshot
}

func buildScope(s parser.SelectStmt, snap *catalog.Snapshot) (*scope, error) {
	sc := &scope{aliasToTable: map[string]string{}, snap: snap}
	add := func(fi parser.FromItem) error {
		if !snap.TableExists(fi.Table) {
			return sem(fmt.Sprintf("table %q does not exist", fi.Table))
		}
		key := fi.Alias
		if key == "" {
			key = fi.Table
		}
		sc.aliasToTable[key] = fi.Table
		sc.tables = append(sc.tables, fi.Table)
		return nil
	}
	if err := add(s.From); err != nil {
		return nil, err
	}
	for _, j := range s.Joins {
		if err := add(parser.FromItem{Table: j.Table, Alias: j.Alias}); err != nil {
			return nil, err
		}
	}
	return sc, nil
}

// resolve finds which table a ColumnRef belongs to, enforcing §4.7's rule:
// qualified refs require a defined alias and an existing column; unqualified
// refs must be unambiguous across every table in scope.
func (sc *scope) resolve(ref parser.ColumnRef) (table string, col catalog.Column, err error) {
	if ref.Alias != "" {
		table, ok := sc.aliasToTable[ref.Alias]
		if !ok {
			return "", catalog.Column{}, sem(fmt.Sprintf("alias %q is not defined in FROM/JOIN", ref.Alias))
		}
		info, _ := sc.snap.GetTableInfo(table)
		c, ok := info.Column(ref.Name)
		if !ok {
			return "", catalog.Column{}, semHint(
				fmt.Sprintf("column %q does not exist on %s", ref.Name, ref.Alias),
				hints.ExpectedVsGot(info.ColumnNames(), ref.Name))
		}
		return table, c, nil
	}
	var matches []string
	var found catalog.Column
	for _, t := range sc.tables {
		info, _ := sc.snap.GetTableInfo(t)
		if c, ok := info.Column(ref.Name); ok {
			matches = append(matches, t)
			found = c
		}
	}
	switch len(matches) {
	case 0:
		return "", catalog.Column{}, sem(fmt.Sprintf("column %q does not resolve in any table in scope", ref.Name))
	case 1:
		return matches[0], found, nil
	default:
		return "", catalog.Column{}, sem(fmt.Sprintf("column %q is ambiguous between tables %s", ref.Name, strings.Join(matches, ", ")))
	}
}

func checkSelect(s parser.SelectStmt, snap *catalog.Snapshot) error {
	sc, err := buildScope(s, snap)
	if err != nil {
		return err
	}
	hasAggregate := false
	hasStar := false
	var bareCols []string
	for _, item := range s.Items {
		if item.Star {
			hasStar = true
			continue
		}
		if err := checkExprResolves(item.Expr, sc); err != nil {
			return err
		}
		if fc, ok := item.Expr.(parser.FuncCall); ok {
			hasAggregate = true
			if fc.Name != "COUNT" && !fc.Star {
				ref, ok := fc.Arg.(parser.ColumnRef)
				if !ok {
					return sem(fmt.Sprintf("%s requires a column argument", fc.Name))
				}
				_, col, err := sc.resolve(ref)
				if err != nil {
					return err
				}
				if col.Type != catalog.Int && col.Type != catalog.Float {
					return sem(fmt.Sprintf("%s requires a numeric column, got %s", fc.Name, col.Type))
				}
			}
			continue
		}
		if ref, ok := item.Expr.(parser.ColumnRef); ok {
			bareCols = append(bareCols, ref.Name)
		}
	}
	if hasAggregate && hasStar {
		return sem("cannot mix * with aggregate functions")
	}
	if hasAggregate {
		if s.GroupBy != "" {
			for _, bc := range bareCols {
				if !strings.EqualFold(bc, s.GroupBy) {
					return sem(fmt.Sprintf("non-aggregate column %q must match the GROUP BY column %q", bc, s.GroupBy))
				}
			}
		} else if len(bareCols) > 0 {
			return sem("aggregate query without GROUP BY cannot project non-aggregate columns")
		}
	}
	for _, j := range s.Joins {
		if err := checkExprResolves(j.On, sc); err != nil {
			return err
		}
	}
	if s.Where != nil {
		if err := checkExprResolves(s.Where, sc); err != nil {
			return err
		}
	}
	if s.GroupBy != "" {
		if _, _, err := sc.resolve(parser.ColumnRef{Name: s.GroupBy}); err != nil {
			return err
		}
	}
	if s.HasOrder {
		if _, _, err := sc.resolve(parser.ColumnRef{Name: s.OrderBy}); err != nil {
			return err
		}
	}
	return nil
}

// checkExprResolves walks a boolean/comparison expression tree validating
// every ColumnRef resolves in scope; literals pass through unchecked.
func checkExprResolves(e parser.Expr, sc *scope) error {
	switch v := e.(type) {
	case parser.ColumnRef:
		_, _, err := sc.resolve(v)
		return err
	case parser.Literal:
		return nil
	case parser.Compare:
		if err := checkExprResolves(v.Left, sc); err != nil {
			return err
		}
		return checkExprResolves(v.Right, sc)
	case parser.And:
		if err := checkExprResolves(v.Left, sc); err != nil {
			return err
		}
		return checkExprResolves(v.Right, sc)
	case parser.Or:
		if err := checkExprResolves(v.Left, sc); err != nil {
			return err
		}
		return checkExprResolves(v.Right, sc)
	case parser.Not:
		return checkExprResolves(v.Inner, sc)
	case parser.FuncCall:
		if v.Arg != nil {
			return checkExprResolves(v.Arg, sc)
		}
		return nil
	default:
		return &errs.InternalError{Message: fmt.Sprintf("semantic: unhandled expression type %T", e)}
	}
}

// sortedTableNames returns the in-scope table names sorted, for a
// deterministic scope dump.
func sortedTableNames(sc *scope) []string {
	out := append([]string(nil), sc.tables...)
	sort.Strings(out)
	return out
}
