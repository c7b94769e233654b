package parser

import (
	"log"
	"testing"

	"github.com/duskdb/duskdb/internal/catalog"
	"github.com/duskdb/duskdb/internal/engine/errs"
	"github.com/duskdb/duskdb/internal/engine/lexer"
)

func parse(t *testing.T, src string) Statement {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	stmt, err := Parse(src, toks, log.New(devNull{}, "", 0))
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return stmt
}

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func TestParseCreateTable(t *testing.T) {
	stmt := parse(t, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20), age INT);`)
	ct, ok := stmt.(CreateTableStmt)
	if !ok {
		t.Fatalf("got %T", stmt)
	}
	if ct.Name != "users" || len(ct.Columns) != 3 {
		t.Fatalf("got %+v", ct)
	}
	if ct.Columns[0].Type != catalog.Int || !ct.Columns[0].InlinePK {
		t.Errorf("expected inline PK on id, got %+v", ct.Columns[0])
	}
	if ct.Columns[1].Type != catalog.Varchar || ct.Columns[1].VarcharN != 20 {
		t.Errorf("expected VARCHAR(20), got %+v", ct.Columns[1])
	}
}

func TestParseCreateTableWithForeignKey(t *testing.T) {
	stmt := parse(t, `CREATE TABLE orders (id INT, uid INT, FOREIGN KEY(uid) REFERENCES users(id));`)
	ct := stmt.(CreateTableStmt)
	if len(ct.ForeignKeys) != 1 {
		t.Fatalf("expected one foreign key, got %+v", ct.ForeignKeys)
	}
	fk := ct.ForeignKeys[0]
	if fk.LocalCol != "uid" || fk.RefTable != "users" || fk.RefCol != "id" {
		t.Errorf("got %+v", fk)
	}
}

func TestParseInsertMultiRow(t *testing.T) {
	stmt := parse(t, `INSERT INTO users (id, name) VALUES (1, 'a'), (2, 'b');`)
	ins := stmt.(InsertStmt)
	if len(ins.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(ins.Rows))
	}
	if ins.Rows[0][0].(Literal).Value.(int32) != 1 {
		t.Errorf("got %+v", ins.Rows[0])
	}
}

func TestParseSelectWithJoinAndWhereAndOrder(t *testing.T) {
	stmt := parse(t, `SELECT a.name, b.total FROM users a JOIN orders b ON a.id = b.uid WHERE a.age > 18 ORDER BY b.total DESC;`)
	sel := stmt.(SelectStmt)
	if len(sel.Items) != 2 || sel.From.Table != "users" || sel.From.Alias != "a" {
		t.Fatalf("got %+v", sel)
	}
	if len(sel.Joins) != 1 || sel.Joins[0].Table != "orders" {
		t.Fatalf("got %+v", sel.Joins)
	}
	if _, ok := sel.Where.(Compare); !ok {
		t.Fatalf("expected a Compare where clause, got %T", sel.Where)
	}
	if !sel.HasOrder || sel.OrderDir != Desc {
		t.Errorf("expected DESC order, got %+v", sel)
	}
}

func TestParseSelectWithAndOrNot(t *testing.T) {
	stmt := parse(t, `SELECT * FROM t WHERE NOT (a = 1) AND b = 2 OR c = 3;`)
	sel := stmt.(SelectStmt)
	if _, ok := sel.Where.(Or); !ok {
		t.Fatalf("expected top-level Or, got %T", sel.Where)
	}
}

func TestParseAggregateSelectWithGroupBy(t *testing.T) {
	stmt := parse(t, `SELECT dept, COUNT(*) FROM emp GROUP BY dept;`)
	sel := stmt.(SelectStmt)
	if sel.GroupBy != "dept" {
		t.Fatalf("got %+v", sel)
	}
	fc, ok := sel.Items[1].Expr.(FuncCall)
	if !ok || fc.Name != "COUNT" || !fc.Star {
		t.Fatalf("got %+v", sel.Items[1])
	}
}

func TestParseDeleteWithWhere(t *testing.T) {
	stmt := parse(t, `DELETE FROM users WHERE age < 18;`)
	del := stmt.(DeleteStmt)
	if del.Where == nil || del.Where.Op != OpLT {
		t.Fatalf("got %+v", del)
	}
}

func TestParseUpdateMultiAssignment(t *testing.T) {
	stmt := parse(t, `UPDATE users SET age = 30, name = 'x' WHERE id = 1;`)
	upd := stmt.(UpdateStmt)
	if len(upd.Sets) != 2 || upd.Where == nil {
		t.Fatalf("got %+v", upd)
	}
}

func TestParseExplainWrapsInnerStatement(t *testing.T) {
	stmt := parse(t, `EXPLAIN SELECT * FROM users;`)
	ex := stmt.(ExplainStmt)
	if _, ok := ex.Inner.(SelectStmt); !ok {
		t.Fatalf("got %T", ex.Inner)
	}
}

func TestParseErrorReportsLocationAndHint(t *testing.T) {
	toks, err := lexer.Tokenize(`SELECT * FORM users;`)
	if err != nil {
		t.Fatal(err)
	}
	_, err = Parse(`SELECT * FORM users;`, toks, log.New(devNull{}, "", 0))
	if err == nil {
		t.Fatal("expected a syntax error")
	}
	se, ok := err.(*errs.SyntaxError)
	if !ok {
		t.Fatalf("expected *errs.SyntaxError, got %T", err)
	}
	if se.Line != 1 {
		t.Errorf("expected line 1, got %d", se.Line)
	}
	if se.Hint == "" {
		t.Error("expected a non-empty hint")
	}
}
