package exec

import (
	"log"
	"path/filepath"
	"testing"

	"github.com/duskdb/duskdb/internal/buffer"
	"github.com/duskdb/duskdb/internal/catalog"
	"github.com/duskdb/duskdb/internal/engine/errs"
	"github.com/duskdb/duskdb/internal/engine/lexer"
	"github.com/duskdb/duskdb/internal/engine/parser"
	"github.com/duskdb/duskdb/internal/engine/planner"
	"github.com/duskdb/duskdb/internal/engine/semantic"
	"github.com/duskdb/duskdb/internal/heap"
	"github.com/duskdb/duskdb/internal/page"
)

type devNull struct{}

func (devNull) Write(p []byte) (int, error) { return len(p), nil }

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	dir := t.TempDir()
	mgr, err := page.Open(filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("open page manager: %v", err)
	}
	pool := buffer.New(mgr, 0, buffer.PolicyLRU)
	hp, err := heap.Open(pool, filepath.Join(dir, "heap.json"))
	if err != nil {
		t.Fatalf("open heap: %v", err)
	}
	cat, err := catalog.Open(filepath.Join(dir, "catalog.json"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	return New(cat, hp, log.New(devNull{}, "", 0))
}

// run lexes, parses, analyzes, plans, and executes sql against e, failing the
// test on any error at any stage.
func run(t *testing.T, e *Executor, sql string) *Result {
	t.Helper()
	res, err := tryRun(e, sql)
	if err != nil {
		t.Fatalf("run %q: %v", sql, err)
	}
	return res
}

func tryRun(e *Executor, sql string) (*Result, error) {
	toks, err := lexer.Tokenize(sql)
	if err != nil {
		return nil, err
	}
	stmt, err := parser.Parse(sql, toks, log.New(devNull{}, "", 0))
	if err != nil {
		return nil, err
	}
	if err := semantic.Analyze(stmt, e.Cat.Snapshot()); err != nil {
		return nil, err
	}
	plan := planner.Build(stmt)
	return e.Execute(plan)
}

func TestCreateTableInsertSelectRoundtrip(t *testing.T) {
	e := newExecutor(t)
	run(t, e, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20), age INT);`)
	run(t, e, `INSERT INTO users (id, name, age) VALUES (1, 'alice', 30), (2, 'bob', 25);`)

	res := run(t, e, `SELECT name, age FROM users WHERE age > 26;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %v", len(res.Rows), res.Rows)
	}
	if res.Rows[0]["name"] != "alice" {
		t.Errorf("expected alice, got %v", res.Rows[0]["name"])
	}
}

func TestInsertPrimaryKeyViolation(t *testing.T) {
	e := newExecutor(t)
	run(t, e, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20));`)
	run(t, e, `INSERT INTO users (id, name) VALUES (1, 'alice');`)

	_, err := tryRun(e, `INSERT INTO users (id, name) VALUES (1, 'eve');`)
	if err == nil {
		t.Fatal("expected a primary key violation")
	}
	var ce *errs.ConstraintError
	if !asConstraintError(err, &ce) {
		t.Fatalf("expected *errs.ConstraintError, got %T: %v", err, err)
	}
}

func TestInsertForeignKeyViolationCarriesRequiredHintString(t *testing.T) {
	e := newExecutor(t)
	run(t, e, `CREATE TABLE departments (id INT PRIMARY KEY, name VARCHAR(20));`)
	run(t, e, `INSERT INTO departments (id, name) VALUES (1, 'eng');`)
	run(t, e, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT, FOREIGN KEY (dept_id) REFERENCES departments(id));`)

	_, err := tryRun(e, `INSERT INTO employees (id, dept_id) VALUES (1, 99);`)
	if err == nil {
		t.Fatal("expected a foreign key violation")
	}
	var ce *errs.ConstraintError
	if !asConstraintError(err, &ce) {
		t.Fatalf("expected *errs.ConstraintError, got %T: %v", err, err)
	}
	if !containsChinese(ce.Message) {
		t.Fatalf("expected message to contain 外键约束失败, got: %s", ce.Message)
	}
	if ce.Hint == "" {
		t.Fatal("expected a smart hint on the foreign key violation")
	}
}

func containsChinese(s string) bool {
	return len(s) > 0 && indexOf(s, "外键约束失败") >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func asConstraintError(err error, target **errs.ConstraintError) bool {
	ce, ok := err.(*errs.ConstraintError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

func TestUpdateCascadesToReferencingTable(t *testing.T) {
	e := newExecutor(t)
	run(t, e, `CREATE TABLE departments (id INT PRIMARY KEY, name VARCHAR(20));`)
	run(t, e, `INSERT INTO departments (id, name) VALUES (1, 'eng');`)
	run(t, e, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT, FOREIGN KEY (dept_id) REFERENCES departments(id));`)
	run(t, e, `INSERT INTO employees (id, dept_id) VALUES (1, 1);`)

	run(t, e, `UPDATE departments SET id = 2 WHERE id = 1;`)

	res := run(t, e, `SELECT dept_id FROM employees WHERE id = 1;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(res.Rows))
	}
	if res.Rows[0]["dept_id"] != int32(2) {
		t.Errorf("expected cascaded dept_id=2, got %v", res.Rows[0]["dept_id"])
	}
}

func TestDeleteRemovesMatchingRows(t *testing.T) {
	e := newExecutor(t)
	run(t, e, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20));`)
	run(t, e, `INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob');`)
	run(t, e, `DELETE FROM users WHERE id = 1;`)

	res := run(t, e, `SELECT id FROM users;`)
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 row remaining, got %d", len(res.Rows))
	}
	if res.Rows[0]["id"] != int32(2) {
		t.Errorf("expected remaining id=2, got %v", res.Rows[0]["id"])
	}
}

func TestSelectJoinAndAggregateWithGroupBy(t *testing.T) {
	e := newExecutor(t)
	run(t, e, `CREATE TABLE departments (id INT PRIMARY KEY, name VARCHAR(20));`)
	run(t, e, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT, salary FLOAT, FOREIGN KEY (dept_id) REFERENCES departments(id));`)
	run(t, e, `INSERT INTO departments (id, name) VALUES (1, 'eng'), (2, 'sales');`)
	run(t, e, `INSERT INTO employees (id, dept_id, salary) VALUES (1, 1, 100.0), (2, 1, 200.0), (3, 2, 50.0);`)

	res := run(t, e, `SELECT dept_id, SUM(salary) FROM employees GROUP BY dept_id;`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 groups, got %d: %v", len(res.Rows), res.Rows)
	}

	joined := run(t, e, `SELECT e.id, e.salary FROM employees e JOIN departments d ON e.dept_id = d.id WHERE d.name = 'eng' ORDER BY salary;`)
	if len(joined.Rows) != 2 {
		t.Fatalf("expected 2 eng employees, got %d", len(joined.Rows))
	}
}

func TestSelectLeftJoinNullPadsUnmatchedRows(t *testing.T) {
	e := newExecutor(t)
	run(t, e, `CREATE TABLE departments (id INT PRIMARY KEY, name VARCHAR(20));`)
	run(t, e, `CREATE TABLE employees (id INT PRIMARY KEY, dept_id INT);`)
	run(t, e, `INSERT INTO departments (id, name) VALUES (1, 'eng');`)
	run(t, e, `INSERT INTO employees (id, dept_id) VALUES (1, 1), (2, 99);`)

	res := run(t, e, `SELECT e.id, e.dept_id, d.name FROM employees e LEFT JOIN departments d ON e.dept_id = d.id ORDER BY dept_id;`)
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Rows[1]["name"] != "" {
		t.Errorf("expected zero-value padded name for unmatched row, got %v", res.Rows[1]["name"])
	}
}

func TestExplainDoesNotExecute(t *testing.T) {
	e := newExecutor(t)
	run(t, e, `CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20));`)
	res := run(t, e, `EXPLAIN SELECT * FROM users WHERE id = 1;`)
	if res.ExplainText == "" {
		t.Fatal("expected non-empty explain text")
	}
}
